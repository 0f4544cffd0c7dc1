package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"AppealScanner/internal/domain"
)

// ErrMalformedExtraction marks an extraction response that violated the JSON
// contract. The meeting stays pending so the next cycle retries it.
var ErrMalformedExtraction = errors.New("extraction response violates JSON contract")

// SourceRepository manages agenda-source configuration rows.
type SourceRepository interface {
	ListActive(ctx context.Context) ([]domain.Source, error)
	TouchFetched(ctx context.Context, sourceID int64, at time.Time) error
}

// MeetingRepository persists council meetings keyed by (source, date).
type MeetingRepository interface {
	// GetOrCreate looks up the meeting for (source, date), creating it in
	// pending status with the supplied PDF URL when absent. An existing
	// meeting's URL and status are never overwritten.
	GetOrCreate(ctx context.Context, sourceID int64, date time.Time, pdfURL string) (domain.Meeting, error)
	AttachPDF(ctx context.Context, meetingID int64, blob domain.BlobRef) error
	SetStatus(ctx context.Context, meetingID int64, status domain.MeetingStatus) error
}

// AgendaItemRepository persists raw agenda entries keyed by (meeting, item number).
type AgendaItemRepository interface {
	GetOrCreate(ctx context.Context, item domain.AgendaItem) (domain.AgendaItem, error)
}

// AppealRepository persists canonical appeals keyed by (city, reference number).
type AppealRepository interface {
	// GetOrCreateByReference resolves an appeal by (city, reference number),
	// creating it with the given defaults when absent. The second return
	// reports whether a new row was created.
	GetOrCreateByReference(ctx context.Context, appeal domain.Appeal) (domain.Appeal, bool, error)
	// Create inserts an appeal with no reference number; no merge is possible.
	Create(ctx context.Context, appeal domain.Appeal) (domain.Appeal, error)
	UpdateProgress(ctx context.Context, appealID int64, status domain.AppealStatus, decision *domain.Decision) error
	// ListActive returns the prompt context for every appeal in the city whose
	// status is neither decided nor withdrawn.
	ListActive(ctx context.Context, cityID int64) ([]domain.ActiveAppealContext, error)
}

// HearingRepository persists per-meeting hearing rows keyed by (appeal, meeting).
type HearingRepository interface {
	// GetOrCreate inserts the hearing unless one already exists for the
	// (appeal, meeting) pair, in which case the stored row wins. The second
	// return reports whether a new row was created.
	GetOrCreate(ctx context.Context, hearing domain.Hearing) (domain.Hearing, bool, error)
}

// BlobStore is the opaque sink for downloaded agenda PDFs.
type BlobStore interface {
	Attach(ctx context.Context, r io.Reader, filename, contentType string) (domain.BlobRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ExtractionRequest carries one meeting's PDF and prompt context to the extractor.
type ExtractionRequest struct {
	PDF           io.Reader
	PDFSize       int64
	DisplayName   string
	ActiveAppeals []domain.ActiveAppealContext
}

// Extractor ships a PDF to the document-understanding backend and returns the
// structured appeal items it reports.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) ([]domain.ExtractedItem, error)
}

// Scheduler controls when fetch cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
