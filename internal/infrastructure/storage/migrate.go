package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrate creates the schema if it does not exist yet. Natural keys are
// enforced with unique constraints so get-or-create operations stay correct
// under concurrent fetch cycles.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS cities (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	county TEXT NOT NULL DEFAULT '',
	state_code TEXT NOT NULL DEFAULT 'CA',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS agenda_sources (
	id BIGSERIAL PRIMARY KEY,
	city_id BIGINT NOT NULL REFERENCES cities(id),
	fetcher TEXT NOT NULL,
	base_url TEXT NOT NULL,
	listing_path TEXT NOT NULL DEFAULT '',
	max_pages INTEGER NOT NULL DEFAULT 1,
	lookback_months INTEGER NOT NULL DEFAULT 6,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	last_fetched_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (city_id, fetcher)
);

CREATE TABLE IF NOT EXISTS council_meetings (
	id BIGSERIAL PRIMARY KEY,
	agenda_source_id BIGINT NOT NULL REFERENCES agenda_sources(id),
	meeting_date DATE NOT NULL,
	meeting_type TEXT NOT NULL DEFAULT 'regular',
	status TEXT NOT NULL DEFAULT 'pending',
	pdf_url TEXT NOT NULL DEFAULT '',
	pdf_blob_key TEXT,
	pdf_filename TEXT,
	pdf_content_type TEXT,
	pdf_byte_size BIGINT,
	fetched_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (agenda_source_id, meeting_date)
);

CREATE TABLE IF NOT EXISTS agenda_items (
	id BIGSERIAL PRIMARY KEY,
	council_meeting_id BIGINT NOT NULL REFERENCES council_meetings(id),
	item_number INTEGER,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	item_type TEXT NOT NULL DEFAULT 'appeal',
	project_address TEXT NOT NULL DEFAULT '',
	apn TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (council_meeting_id, item_number)
);

CREATE TABLE IF NOT EXISTS housing_appeals (
	id BIGSERIAL PRIMARY KEY,
	city_id BIGINT NOT NULL REFERENCES cities(id),
	agenda_item_id BIGINT REFERENCES agenda_items(id),
	reference_number TEXT,
	project_name TEXT NOT NULL DEFAULT '',
	project_address TEXT NOT NULL DEFAULT '',
	apn TEXT NOT NULL DEFAULT '',
	appellant_name TEXT NOT NULL DEFAULT '',
	grounds_category TEXT NOT NULL DEFAULT '',
	grounds_description TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'filed',
	decision TEXT,
	filed_date DATE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_appeals_city_reference
	ON housing_appeals (city_id, reference_number)
	WHERE reference_number IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_appeals_city_status ON housing_appeals (city_id, status);

CREATE TABLE IF NOT EXISTS housing_appeal_hearings (
	id BIGSERIAL PRIMARY KEY,
	housing_appeal_id BIGINT NOT NULL REFERENCES housing_appeals(id),
	council_meeting_id BIGINT NOT NULL REFERENCES council_meetings(id),
	hearing_type TEXT NOT NULL DEFAULT 'other',
	action_taken TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	grounds_description TEXT NOT NULL DEFAULT '',
	page_number INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (housing_appeal_id, council_meeting_id)
);
`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
