package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
)

// MeetingRepository persists council meetings in Postgres.
type MeetingRepository struct {
	db *sqlx.DB
}

var _ ports.MeetingRepository = (*MeetingRepository)(nil)

// NewMeetingRepository wires a connection pool.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

type meetingRow struct {
	ID          int64      `db:"id"`
	SourceID    int64      `db:"agenda_source_id"`
	Date        time.Time  `db:"meeting_date"`
	Type        string     `db:"meeting_type"`
	Status      string     `db:"status"`
	PDFURL      string     `db:"pdf_url"`
	BlobKey     *string    `db:"pdf_blob_key"`
	Filename    *string    `db:"pdf_filename"`
	ContentType *string    `db:"pdf_content_type"`
	ByteSize    *int64     `db:"pdf_byte_size"`
	FetchedAt   *time.Time `db:"fetched_at"`
}

func (r meetingRow) toDomain() domain.Meeting {
	m := domain.Meeting{
		ID:        r.ID,
		SourceID:  r.SourceID,
		Date:      r.Date,
		Type:      domain.MeetingType(r.Type),
		Status:    domain.MeetingStatus(r.Status),
		PDFURL:    r.PDFURL,
		FetchedAt: r.FetchedAt,
	}
	if r.BlobKey != nil {
		blob := domain.BlobRef{Key: *r.BlobKey}
		if r.Filename != nil {
			blob.Filename = *r.Filename
		}
		if r.ContentType != nil {
			blob.ContentType = *r.ContentType
		}
		if r.ByteSize != nil {
			blob.ByteSize = *r.ByteSize
		}
		m.PDF = &blob
	}
	return m
}

const meetingColumns = `id, agenda_source_id, meeting_date, meeting_type, status, pdf_url,
	pdf_blob_key, pdf_filename, pdf_content_type, pdf_byte_size, fetched_at`

// GetOrCreate resolves the meeting for (source, date), inserting a pending row
// with the supplied PDF URL when none exists. The insert-then-select shape
// keeps the operation atomic under concurrent cycles; an existing meeting's
// URL and status are left exactly as first recorded.
func (r *MeetingRepository) GetOrCreate(ctx context.Context, sourceID int64, date time.Time, pdfURL string) (domain.Meeting, error) {
	insert, args, err := psql.Insert("council_meetings").
		Columns("agenda_source_id", "meeting_date", "meeting_type", "status", "pdf_url").
		Values(sourceID, date, domain.MeetingRegular, domain.MeetingPending, pdfURL).
		Suffix("ON CONFLICT (agenda_source_id, meeting_date) DO NOTHING").
		ToSql()
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("build meeting insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, insert, args...); err != nil {
		return domain.Meeting{}, fmt.Errorf("insert meeting: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM council_meetings WHERE agenda_source_id = $1 AND meeting_date = $2`, meetingColumns)
	var row meetingRow
	if err := r.db.GetContext(ctx, &row, query, sourceID, date); err != nil {
		return domain.Meeting{}, fmt.Errorf("select meeting: %w", err)
	}
	return row.toDomain(), nil
}

// AttachPDF records the downloaded blob on the meeting. A blob attached by an
// earlier run is never replaced.
func (r *MeetingRepository) AttachPDF(ctx context.Context, meetingID int64, blob domain.BlobRef) error {
	query, args, err := psql.Update("council_meetings").
		Set("pdf_blob_key", blob.Key).
		Set("pdf_filename", blob.Filename).
		Set("pdf_content_type", blob.ContentType).
		Set("pdf_byte_size", blob.ByteSize).
		Set("fetched_at", time.Now().UTC()).
		Set("updated_at", time.Now().UTC()).
		Where("id = ? AND pdf_blob_key IS NULL", meetingID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attach query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("attach pdf to meeting %d: %w", meetingID, err)
	}
	return nil
}

// SetStatus advances the meeting's pipeline status.
func (r *MeetingRepository) SetStatus(ctx context.Context, meetingID int64, status domain.MeetingStatus) error {
	query, args, err := psql.Update("council_meetings").
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", meetingID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build status query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set meeting %d status %s: %w", meetingID, status, err)
	}
	return nil
}
