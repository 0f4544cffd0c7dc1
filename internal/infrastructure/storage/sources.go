package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
)

// SourceRepository manages cities and agenda sources in Postgres.
type SourceRepository struct {
	db *sqlx.DB
}

var _ ports.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository wires a connection pool.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

type sourceRow struct {
	ID             int64      `db:"id"`
	CityID         int64      `db:"city_id"`
	Fetcher        string     `db:"fetcher"`
	BaseURL        string     `db:"base_url"`
	ListingPath    string     `db:"listing_path"`
	MaxPages       int        `db:"max_pages"`
	LookbackMonths int        `db:"lookback_months"`
	Active         bool       `db:"active"`
	LastFetchedAt  *time.Time `db:"last_fetched_at"`
	CityName       string     `db:"city_name"`
	CitySlug       string     `db:"city_slug"`
	CityCounty     string     `db:"city_county"`
	CityStateCode  string     `db:"city_state_code"`
}

func (r sourceRow) toDomain() domain.Source {
	return domain.Source{
		ID:     r.ID,
		CityID: r.CityID,
		City: domain.City{
			ID:        r.CityID,
			Name:      r.CityName,
			Slug:      r.CitySlug,
			County:    r.CityCounty,
			StateCode: r.CityStateCode,
		},
		Fetcher:        r.Fetcher,
		BaseURL:        r.BaseURL,
		ListingPath:    r.ListingPath,
		MaxPages:       r.MaxPages,
		LookbackMonths: r.LookbackMonths,
		Active:         r.Active,
		LastFetchedAt:  r.LastFetchedAt,
	}
}

// ListActive returns every active source together with its city.
func (r *SourceRepository) ListActive(ctx context.Context) ([]domain.Source, error) {
	const query = `
		SELECT s.id, s.city_id, s.fetcher, s.base_url, s.listing_path,
		       s.max_pages, s.lookback_months, s.active, s.last_fetched_at,
		       c.name AS city_name, c.slug AS city_slug,
		       c.county AS city_county, c.state_code AS city_state_code
		FROM agenda_sources s
		JOIN cities c ON c.id = s.city_id
		WHERE s.active
		ORDER BY c.name`

	var rows []sourceRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}

	sources := make([]domain.Source, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, row.toDomain())
	}
	return sources, nil
}

// TouchFetched stamps the source's last-fetch timestamp.
func (r *SourceRepository) TouchFetched(ctx context.Context, sourceID int64, at time.Time) error {
	query, args, err := psql.Update("agenda_sources").
		Set("last_fetched_at", at).
		Set("updated_at", at).
		Where("id = ?", sourceID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch source %d: %w", sourceID, err)
	}
	return nil
}

// EnsureCity upserts a city by slug and returns the stored row.
func (r *SourceRepository) EnsureCity(ctx context.Context, city domain.City) (domain.City, error) {
	const query = `
		INSERT INTO cities (name, slug, county, state_code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
		    county = EXCLUDED.county,
		    state_code = EXCLUDED.state_code,
		    updated_at = NOW()
		RETURNING id`

	if err := r.db.QueryRowContext(ctx, query,
		city.Name, city.Slug, city.County, city.StateCode,
	).Scan(&city.ID); err != nil {
		return domain.City{}, fmt.Errorf("ensure city %s: %w", city.Slug, err)
	}
	return city, nil
}

// EnsureSource upserts an agenda source by (city, fetcher) and returns its id.
func (r *SourceRepository) EnsureSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	const query = `
		INSERT INTO agenda_sources (city_id, fetcher, base_url, listing_path, max_pages, lookback_months)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (city_id, fetcher) DO UPDATE
		SET base_url = EXCLUDED.base_url,
		    listing_path = EXCLUDED.listing_path,
		    max_pages = EXCLUDED.max_pages,
		    lookback_months = EXCLUDED.lookback_months,
		    updated_at = NOW()
		RETURNING id`

	if err := r.db.QueryRowContext(ctx, query,
		src.CityID, src.Fetcher, src.BaseURL, src.ListingPath, src.MaxPages, src.LookbackMonths,
	).Scan(&src.ID); err != nil {
		return domain.Source{}, fmt.Errorf("ensure source %s/%s: %w", src.City.Slug, src.Fetcher, err)
	}
	return src, nil
}
