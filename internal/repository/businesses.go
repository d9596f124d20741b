package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
)

// ErrBusinessNotFound is returned when no business matches the id.
var ErrBusinessNotFound = errors.New("business not found")

// BusinessesRepository describes persistence operations for directory listings.
type BusinessesRepository interface {
	List(ctx context.Context, filter dto.ListFilter) ([]entity.Business, error)
	Count(ctx context.Context, filter dto.ListFilter) (int, error)
	Get(ctx context.Context, id string) (*entity.Business, error)
	Upsert(ctx context.Context, business *entity.Business) (bool, error)
	BulkUpsert(ctx context.Context, businesses []entity.Business) (BulkUpsertResult, error)
	ListBatch(ctx context.Context, offset, limit int) ([]entity.Business, error)
	UpdateImages(ctx context.Context, id, logoURL, logoRef string, photos []entity.Photo) error
}

// PGXBusinessesRepository implements BusinessesRepository using pgx.
type PGXBusinessesRepository struct {
	pool pgxPool
}

// NewPGXBusinessesRepository wires a pgx backed repository.
func NewPGXBusinessesRepository(pool *pgxpool.Pool) *PGXBusinessesRepository {
	return &PGXBusinessesRepository{pool: pool}
}

const businessColumns = `
            id,
            name,
            address,
            category,
            phone,
            website,
            email,
            rating,
            review_count,
            logo_url,
            photos,
            business_status,
            created_at,
            updated_at`

// Imports never blank out images that ingestion already rewrote.
const upsertBusinessSQL = `
        INSERT INTO businesses (
            id, name, address, category, phone, website, email,
            rating, review_count, logo_url, photos, business_status, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,NOW())
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            address = EXCLUDED.address,
            category = EXCLUDED.category,
            phone = COALESCE(EXCLUDED.phone, businesses.phone),
            website = COALESCE(EXCLUDED.website, businesses.website),
            email = COALESCE(EXCLUDED.email, businesses.email),
            rating = EXCLUDED.rating,
            review_count = EXCLUDED.review_count,
            logo_url = COALESCE(EXCLUDED.logo_url, businesses.logo_url),
            photos = CASE WHEN jsonb_array_length(EXCLUDED.photos) > 0 THEN EXCLUDED.photos ELSE businesses.photos END,
            business_status = COALESCE(EXCLUDED.business_status, businesses.business_status),
            updated_at = NOW()
        RETURNING xmax = 0;
    `

// photoRow is the persisted shape of a photo, including its upstream reference.
// A row with Logo set only carries the reference the logo was taken from and is
// not part of the gallery.
type photoRow struct {
	ID        string  `json:"id"`
	URL       *string `json:"url,omitempty"`
	HostURL   *string `json:"hostUrl,omitempty"`
	Base64    *string `json:"base64,omitempty"`
	Caption   *string `json:"caption,omitempty"`
	Source    string  `json:"source"`
	Reference string  `json:"reference,omitempty"`
	Logo      bool    `json:"logo,omitempty"`
}

const logoRowID = "logo"

func encodePhotos(logoRef string, photos []entity.Photo) (string, error) {
	rows := make([]photoRow, 0, len(photos)+1)
	if logoRef != "" {
		rows = append(rows, photoRow{ID: logoRowID, Source: entity.PhotoSourceAPI, Reference: logoRef, Logo: true})
	}
	for _, p := range photos {
		rows = append(rows, photoRow{
			ID:        p.ID,
			URL:       p.URL,
			HostURL:   p.HostURL,
			Base64:    p.Base64,
			Caption:   p.Caption,
			Source:    p.Source,
			Reference: p.Reference,
		})
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal photos: %w", err)
	}
	return string(raw), nil
}

func decodePhotos(raw []byte) (string, []entity.Photo, error) {
	photos := []entity.Photo{}
	if len(raw) == 0 {
		return "", photos, nil
	}
	var rows []photoRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return "", nil, fmt.Errorf("unmarshal photos: %w", err)
	}
	var logoRef string
	for _, r := range rows {
		if r.Logo {
			logoRef = r.Reference
			continue
		}
		photos = append(photos, entity.Photo{
			ID:        r.ID,
			URL:       r.URL,
			HostURL:   r.HostURL,
			Base64:    r.Base64,
			Caption:   r.Caption,
			Source:    r.Source,
			Reference: r.Reference,
		})
	}
	return logoRef, photos, nil
}

// Upsert inserts or updates a business keyed by id and reports whether it was new.
func (r *PGXBusinessesRepository) Upsert(ctx context.Context, business *entity.Business) (bool, error) {
	if business == nil {
		return false, fmt.Errorf("business payload is nil")
	}
	if strings.TrimSpace(business.ID) == "" {
		return false, fmt.Errorf("business id is required")
	}

	args, err := upsertArgs(business)
	if err != nil {
		return false, err
	}

	var inserted bool
	if err := r.pool.QueryRow(ctx, upsertBusinessSQL, args...).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert business %s: %w", business.ID, err)
	}
	return inserted, nil
}

func upsertArgs(b *entity.Business) ([]any, error) {
	photos, err := encodePhotos(b.LogoRef, b.Photos)
	if err != nil {
		return nil, err
	}
	return []any{
		b.ID,
		b.Name,
		b.Address,
		b.Category,
		stringOrNil(b.Phone),
		stringOrNil(b.Website),
		stringOrNil(b.Email),
		b.Rating,
		b.ReviewCount,
		ptrOrNil(b.LogoURL),
		photos,
		stringOrNil(b.BusinessStatus),
	}, nil
}

// BulkUpsert persists a batch of businesses in one transaction.
func (r *PGXBusinessesRepository) BulkUpsert(ctx context.Context, businesses []entity.Business) (BulkUpsertResult, error) {
	var result BulkUpsertResult
	if len(businesses) == 0 {
		return result, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, fmt.Errorf("start bulk upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range businesses {
		args, err := upsertArgs(&businesses[i])
		if err != nil {
			return result, err
		}

		var inserted bool
		if err := tx.QueryRow(ctx, upsertBusinessSQL, args...).Scan(&inserted); err != nil {
			return result, fmt.Errorf("bulk upsert business %q: %w", businesses[i].Name, err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.Total++
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit bulk upsert tx: %w", err)
	}

	return result, nil
}

// likeEscaper makes user input match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func listClauses(filter dto.ListFilter) ([]string, []any) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if q := strings.TrimSpace(filter.Q); q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		clauses = append(clauses, fmt.Sprintf(`(name ILIKE $%d ESCAPE '\' OR category ILIKE $%d ESCAPE '\' OR address ILIKE $%d ESCAPE '\')`, idx, idx, idx))
		args = append(args, pattern)
		idx++
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(category) = LOWER($%d)", idx))
		args = append(args, c)
	}
	return clauses, args
}

func orderClause(sort string) string {
	switch strings.ToLower(sort) {
	case "name":
		return "name ASC, id ASC"
	case "reviews":
		return "review_count DESC, rating DESC, name ASC"
	default:
		return "rating DESC, review_count DESC, name ASC"
	}
}

// List retrieves businesses matching the filter.
func (r *PGXBusinessesRepository) List(ctx context.Context, filter dto.ListFilter) ([]entity.Business, error) {
	query := strings.Builder{}
	query.WriteString("SELECT")
	query.WriteString(businessColumns)
	query.WriteString(" FROM businesses")

	clauses, args := listClauses(filter)
	if len(clauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY ")
	query.WriteString(orderClause(filter.Sort))

	idx := len(args) + 1
	limit, offset := filter.Window()
	if filter.Limit > 0 {
		query.WriteString(fmt.Sprintf(" LIMIT $%d", idx))
		args = append(args, limit)
	} else {
		query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1))
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	return scanBusinesses(rows)
}

// Count returns the number of businesses matching the filter.
func (r *PGXBusinessesRepository) Count(ctx context.Context, filter dto.ListFilter) (int, error) {
	query := "SELECT COUNT(*) FROM businesses"
	clauses, args := listClauses(filter)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count businesses: %w", err)
	}
	return total, nil
}

// Get fetches one business by id.
func (r *PGXBusinessesRepository) Get(ctx context.Context, id string) (*entity.Business, error) {
	rows, err := r.pool.Query(ctx, "SELECT"+businessColumns+" FROM businesses WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}
	defer rows.Close()

	businesses, err := scanBusinesses(rows)
	if err != nil {
		return nil, err
	}
	if len(businesses) == 0 {
		return nil, ErrBusinessNotFound
	}
	return &businesses[0], nil
}

// ListBatch returns a stable slice of businesses for ingestion.
func (r *PGXBusinessesRepository) ListBatch(ctx context.Context, offset, limit int) ([]entity.Business, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT"+businessColumns+" FROM businesses ORDER BY created_at ASC, id ASC LIMIT $1 OFFSET $2",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list business batch: %w", err)
	}
	defer rows.Close()

	return scanBusinesses(rows)
}

// UpdateImages rewrites the logo and gallery of a business. logoRef is the
// upstream reference of the logo image, kept so a rerun can fetch it again.
func (r *PGXBusinessesRepository) UpdateImages(ctx context.Context, id, logoURL, logoRef string, photos []entity.Photo) error {
	encoded, err := encodePhotos(logoRef, photos)
	if err != nil {
		return err
	}

	cmd, err := r.pool.Exec(ctx,
		`UPDATE businesses SET logo_url = $2, photos = $3::jsonb, updated_at = NOW() WHERE id = $1`,
		id, stringOrNil(logoURL), encoded,
	)
	if err != nil {
		return fmt.Errorf("update business images: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrBusinessNotFound
	}
	return nil
}

func scanBusinesses(rows pgx.Rows) ([]entity.Business, error) {
	businesses := []entity.Business{}
	for rows.Next() {
		var (
			b              entity.Business
			address        sql.NullString
			category       sql.NullString
			phone          sql.NullString
			website        sql.NullString
			email          sql.NullString
			rating         sql.NullFloat64
			reviewCount    sql.NullInt64
			logoURL        sql.NullString
			photos         []byte
			businessStatus sql.NullString
		)

		err := rows.Scan(
			&b.ID,
			&b.Name,
			&address,
			&category,
			&phone,
			&website,
			&email,
			&rating,
			&reviewCount,
			&logoURL,
			&photos,
			&businessStatus,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}

		b.Address = address.String
		b.Category = category.String
		b.Phone = phone.String
		b.Website = website.String
		b.Email = email.String
		b.Rating = rating.Float64
		b.ReviewCount = int(reviewCount.Int64)
		b.LogoURL = nullStringToPtr(logoURL)
		b.BusinessStatus = businessStatus.String

		b.LogoRef, b.Photos, err = decodePhotos(photos)
		if err != nil {
			return nil, fmt.Errorf("business %s: %w", b.ID, err)
		}

		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return businesses, nil
}
