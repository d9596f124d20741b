package entity

import "time"

// Review is a read-only customer review of a business.
type Review struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"businessId"`
	AuthorName      string    `json:"authorName"`
	Rating          int       `json:"rating"`
	Text            string    `json:"text"`
	TimeAgo         string    `json:"timeAgo"`
	ProfilePhotoURL *string   `json:"profilePhotoUrl"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}
