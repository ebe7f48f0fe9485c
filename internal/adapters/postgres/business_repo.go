package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

const businessColumns = `
	id, COALESCE(external_id, ''), COALESCE(source, ''), name,
	COALESCE(address, ''), COALESCE(city, ''), COALESCE(country, ''),
	COALESCE(email, ''), COALESCE(website, ''), COALESCE(secondary_url, ''),
	COALESCE(logo, ''), COALESCE(images, '{}'), COALESCE(industry, ''),
	COALESCE(description, ''), latitude, longitude, click_count, last_clicked_at`

// BusinessRepo implements ports.BusinessRepository with pgx.
type BusinessRepo struct {
	db *DB
}

// NewBusinessRepo creates a new BusinessRepo.
func NewBusinessRepo(db *DB) *BusinessRepo {
	return &BusinessRepo{db: db}
}

// Find returns businesses matching filter. Latitude and longitude ranges are
// exclusive at both ends.
func (r *BusinessRepo) Find(ctx context.Context, filter domain.BusinessFilter, page domain.Page) ([]domain.Business, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args := buildWhere(filter)

	q := "SELECT " + businessColumns + " FROM businesses" + where + " ORDER BY " + orderBy(filter.Sort)
	if page.Limit > 0 {
		args = append(args, page.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if page.Skip > 0 {
		args = append(args, page.Skip)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// CountAll returns the number of businesses in the directory.
func (r *BusinessRepo) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM businesses`).Scan(&n)
	return n, err
}

// GetByID returns a business by id.
func (r *BusinessRepo) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	row := r.db.Pool.QueryRow(ctx, "SELECT "+businessColumns+" FROM businesses WHERE id = $1", id)
	b, err := scanBusiness(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: business %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetByIDs returns the businesses with the given ids, in name order.
func (r *BusinessRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Business, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx,
		"SELECT "+businessColumns+" FROM businesses WHERE id = ANY($1) ORDER BY name, id", ids)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// RecordClick increments the click count and stamps the click time.
func (r *BusinessRepo) RecordClick(ctx context.Context, id string, at time.Time) (*domain.Business, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE businesses
		SET click_count = COALESCE(click_count, 0) + 1, last_clicked_at = $2
		WHERE id = $1
		RETURNING `+businessColumns, id, at)
	b, err := scanBusiness(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: business %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

const upsertSQL = `
	INSERT INTO businesses (id, external_id, source, name, address, city, country,
	                        email, website, secondary_url, logo, images, industry,
	                        description, latitude, longitude)
	VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, address = EXCLUDED.address, city = EXCLUDED.city,
	    country = EXCLUDED.country, email = EXCLUDED.email, website = EXCLUDED.website,
	    secondary_url = EXCLUDED.secondary_url, logo = EXCLUDED.logo,
	    images = EXCLUDED.images, industry = EXCLUDED.industry,
	    description = EXCLUDED.description,
	    latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude
`

func upsertArgs(b *domain.Business) []any {
	return []any{b.ID, b.ExternalID, b.Source, b.Name, b.Address, b.City, b.Country,
		b.Email, b.Website, b.SecondaryURL, b.Logo, b.Images, b.Industry,
		b.Description, b.Location.Latitude, b.Location.Longitude}
}

// Upsert inserts a business or replaces its directory fields. Click history
// is left untouched.
func (r *BusinessRepo) Upsert(ctx context.Context, b *domain.Business) error {
	_, err := r.db.Pool.Exec(ctx, upsertSQL, upsertArgs(b)...)
	return err
}

// UpsertBatch upserts bs in one round trip.
func (r *BusinessRepo) UpsertBatch(ctx context.Context, bs []domain.Business) error {
	if len(bs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range bs {
		batch.Queue(upsertSQL, upsertArgs(&bs[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range bs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d (%s): %w", i, bs[i].ID, err)
		}
	}
	return nil
}

// buildWhere renders filter as a WHERE clause with positional arguments.
func buildWhere(f domain.BusinessFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.LatRange != nil {
		conds = append(conds, fmt.Sprintf("latitude > %s AND latitude < %s",
			arg(f.LatRange.Min), arg(f.LatRange.Max)))
	}
	if len(f.LongRanges) > 0 {
		parts := make([]string, 0, len(f.LongRanges))
		for _, lr := range f.LongRanges {
			lo, hi := ">", "<"
			if lr.IncludeMin {
				lo = ">="
			}
			if lr.IncludeMax {
				hi = "<="
			}
			parts = append(parts, fmt.Sprintf("(longitude %s %s AND longitude %s %s)", lo, arg(lr.Min), hi, arg(lr.Max)))
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}
	if f.NameContains != "" {
		conds = append(conds, fmt.Sprintf(`name ILIKE '%%' || %s || '%%' ESCAPE '\'`, arg(escapeLike(f.NameContains))))
	}
	if len(f.IDs) > 0 {
		conds = append(conds, "id = ANY("+arg(f.IDs)+")")
	}
	if f.ClickedOnly {
		conds = append(conds, "click_count IS NOT NULL")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(s domain.SortOrder) string {
	switch s {
	case domain.SortClickCountDesc:
		return "click_count DESC NULLS LAST, id"
	case domain.SortLastClickedDesc:
		return "last_clicked_at DESC NULLS LAST, id"
	default:
		return "id"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user text match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanBusiness(row pgx.Row) (*domain.Business, error) {
	var b domain.Business
	if err := row.Scan(
		&b.ID, &b.ExternalID, &b.Source, &b.Name,
		&b.Address, &b.City, &b.Country,
		&b.Email, &b.Website, &b.SecondaryURL,
		&b.Logo, &b.Images, &b.Industry,
		&b.Description, &b.Location.Latitude, &b.Location.Longitude,
		&b.ClickCount, &b.LastClickedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func collect(rows pgx.Rows) ([]domain.Business, error) {
	defer rows.Close()

	out := []domain.Business{}
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
