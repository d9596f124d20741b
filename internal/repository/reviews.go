package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
)

// ReviewsRepository stores reviews cached from Google Places.
type ReviewsRepository interface {
	ListByBusiness(ctx context.Context, businessID string) ([]entity.Review, error)
	UpsertMany(ctx context.Context, reviews []entity.Review) error
}

// PGXReviewsRepository implements ReviewsRepository using pgx.
type PGXReviewsRepository struct {
	pool pgxPool
}

// NewPGXReviewsRepository wires a pgx backed repository.
func NewPGXReviewsRepository(pool *pgxpool.Pool) *PGXReviewsRepository {
	return &PGXReviewsRepository{pool: pool}
}

// ListByBusiness returns the reviews of a business, newest first.
func (r *PGXReviewsRepository) ListByBusiness(ctx context.Context, businessID string) ([]entity.Review, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, business_id, author_name, rating, text, time_ago, profile_photo_url, created_at
        FROM reviews
        WHERE business_id = $1
        ORDER BY created_at DESC, id ASC
    `, businessID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []entity.Review{}
	for rows.Next() {
		var (
			review  entity.Review
			text    sql.NullString
			timeAgo sql.NullString
			photo   sql.NullString
		)
		if err := rows.Scan(&review.ID, &review.BusinessID, &review.AuthorName, &review.Rating, &text, &timeAgo, &photo, &review.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		review.Text = text.String
		review.TimeAgo = timeAgo.String
		review.ProfilePhotoURL = nullStringToPtr(photo)
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

// UpsertMany stores reviews keyed by id in one transaction.
func (r *PGXReviewsRepository) UpsertMany(ctx context.Context, reviews []entity.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start reviews tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, review := range reviews {
		var createdAt any
		if !review.CreatedAt.IsZero() {
			createdAt = review.CreatedAt
		}
		_, err := tx.Exec(ctx, `
            INSERT INTO reviews (id, business_id, author_name, rating, text, time_ago, profile_photo_url, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
            ON CONFLICT (id) DO UPDATE SET
                author_name = EXCLUDED.author_name,
                rating = EXCLUDED.rating,
                text = EXCLUDED.text,
                time_ago = EXCLUDED.time_ago,
                profile_photo_url = EXCLUDED.profile_photo_url
        `,
			review.ID,
			review.BusinessID,
			review.AuthorName,
			review.Rating,
			stringOrNil(review.Text),
			stringOrNil(review.TimeAgo),
			ptrOrNil(review.ProfilePhotoURL),
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("upsert review %s: %w", review.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reviews tx: %w", err)
	}
	return nil
}
