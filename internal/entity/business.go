package entity

import "time"

// Photo sources recorded on each PhotoRecord.
const (
	PhotoSourceHosted  = "s3"
	PhotoSourceCache   = "cache"
	PhotoSourceAPI     = "api"
	PhotoSourceDefault = "default"
)

// Business is a directory entry keyed by its Google Place ID (or a synthetic sample id).
type Business struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Category    string  `json:"category"`
	Phone       string  `json:"phone,omitempty"`
	Website     string  `json:"website,omitempty"`
	Email       string  `json:"email,omitempty"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
	LogoURL     *string `json:"logoUrl"`
	// LogoRef is the Places photo resource name the logo was taken from.
	LogoRef        string    `json:"-"`
	Photos         []Photo   `json:"photos"`
	BusinessStatus string    `json:"businessStatus,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

// Photo is one image attached to a business.
type Photo struct {
	ID      string  `json:"id"`
	URL     *string `json:"url"`
	HostURL *string `json:"s3Url"`
	Base64  *string `json:"base64,omitempty"`
	Caption *string `json:"caption,omitempty"`
	Source  string  `json:"source"`
	// Reference is the Places photo resource name the image was taken from.
	Reference string `json:"-"`
}

// Displayable reports whether the photo carries something a browser can render.
func (p Photo) Displayable() bool {
	return nonEmpty(p.URL) || nonEmpty(p.HostURL) || nonEmpty(p.Base64)
}

// PlaceholderPhoto is rendered when a business has no displayable photo.
func PlaceholderPhoto(businessID string) Photo {
	url := "/images/business-placeholder.jpg"
	return Photo{ID: businessID + "-default", URL: &url, Source: PhotoSourceDefault}
}

// DisplayablePhotos drops photos without any payload, falling back to the placeholder.
func DisplayablePhotos(businessID string, photos []Photo) []Photo {
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		if p.Displayable() {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, PlaceholderPhoto(businessID))
	}
	return out
}

func nonEmpty(value *string) bool {
	return value != nil && *value != ""
}
