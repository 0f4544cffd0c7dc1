package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
)

// HearingRepository persists per-meeting hearing rows in Postgres.
type HearingRepository struct {
	db *sqlx.DB
}

var _ ports.HearingRepository = (*HearingRepository)(nil)

// NewHearingRepository wires a connection pool.
func NewHearingRepository(db *sqlx.DB) *HearingRepository {
	return &HearingRepository{db: db}
}

type hearingRow struct {
	ID                 int64  `db:"id"`
	AppealID           int64  `db:"housing_appeal_id"`
	MeetingID          int64  `db:"council_meeting_id"`
	Type               string `db:"hearing_type"`
	ActionTaken        string `db:"action_taken"`
	Description        string `db:"description"`
	GroundsDescription string `db:"grounds_description"`
	PageNumber         *int   `db:"page_number"`
}

func (r hearingRow) toDomain() domain.Hearing {
	return domain.Hearing{
		ID:                 r.ID,
		AppealID:           r.AppealID,
		MeetingID:          r.MeetingID,
		Type:               domain.HearingType(r.Type),
		ActionTaken:        r.ActionTaken,
		Description:        r.Description,
		GroundsDescription: r.GroundsDescription,
		PageNumber:         r.PageNumber,
	}
}

const hearingColumns = `id, housing_appeal_id, council_meeting_id, hearing_type, action_taken,
	description, grounds_description, page_number`

// GetOrCreate inserts the hearing unless one already exists for the (appeal,
// meeting) pair. On conflict the first write's content is preserved, which is
// what makes reprocessing a meeting idempotent.
func (r *HearingRepository) GetOrCreate(ctx context.Context, hearing domain.Hearing) (domain.Hearing, bool, error) {
	insert, args, err := psql.Insert("housing_appeal_hearings").
		Columns("housing_appeal_id", "council_meeting_id", "hearing_type", "action_taken",
			"description", "grounds_description", "page_number").
		Values(hearing.AppealID, hearing.MeetingID, hearing.Type, hearing.ActionTaken,
			hearing.Description, hearing.GroundsDescription, hearing.PageNumber).
		Suffix("ON CONFLICT (housing_appeal_id, council_meeting_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.Hearing{}, false, fmt.Errorf("build hearing insert: %w", err)
	}

	created := true
	err = r.db.QueryRowContext(ctx, insert, args...).Scan(&hearing.ID)
	if errors.Is(err, sql.ErrNoRows) {
		created = false
	} else if err != nil {
		return domain.Hearing{}, false, fmt.Errorf("insert hearing: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM housing_appeal_hearings
		WHERE housing_appeal_id = $1 AND council_meeting_id = $2`, hearingColumns)
	var row hearingRow
	if err := r.db.GetContext(ctx, &row, query, hearing.AppealID, hearing.MeetingID); err != nil {
		return domain.Hearing{}, false, fmt.Errorf("select hearing: %w", err)
	}

	return row.toDomain(), created, nil
}
