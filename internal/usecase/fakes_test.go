package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
	"AppealScanner/internal/scraper"
)

// In-memory fakes of the persistence ports, enforcing the same natural-key
// uniqueness the Postgres schema does.

type memSources struct {
	mu      sync.Mutex
	sources []domain.Source
	touched map[int64]time.Time
}

func newMemSources(sources ...domain.Source) *memSources {
	return &memSources{sources: sources, touched: map[int64]time.Time{}}
}

func (m *memSources) ListActive(context.Context) ([]domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []domain.Source
	for _, s := range m.sources {
		if s.Active {
			active = append(active, s)
		}
	}
	return active, nil
}

func (m *memSources) TouchFetched(_ context.Context, sourceID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[sourceID] = at
	return nil
}

type meetingKey struct {
	sourceID int64
	date     string
}

type memMeetings struct {
	mu       sync.Mutex
	meetings map[meetingKey]*domain.Meeting
	nextID   int64
}

func newMemMeetings() *memMeetings {
	return &memMeetings{meetings: map[meetingKey]*domain.Meeting{}}
}

func (m *memMeetings) GetOrCreate(_ context.Context, sourceID int64, date time.Time, pdfURL string) (domain.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := meetingKey{sourceID, date.Format("2006-01-02")}
	if existing, ok := m.meetings[key]; ok {
		return *existing, nil
	}

	m.nextID++
	meeting := &domain.Meeting{
		ID:       m.nextID,
		SourceID: sourceID,
		Date:     date,
		Type:     domain.MeetingRegular,
		Status:   domain.MeetingPending,
		PDFURL:   pdfURL,
	}
	m.meetings[key] = meeting
	return *meeting, nil
}

func (m *memMeetings) AttachPDF(_ context.Context, meetingID int64, blob domain.BlobRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, meeting := range m.meetings {
		if meeting.ID == meetingID && meeting.PDF == nil {
			b := blob
			meeting.PDF = &b
		}
	}
	return nil
}

func (m *memMeetings) SetStatus(_ context.Context, meetingID int64, status domain.MeetingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, meeting := range m.meetings {
		if meeting.ID == meetingID {
			meeting.Status = status
		}
	}
	return nil
}

func (m *memMeetings) byID(meetingID int64) domain.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, meeting := range m.meetings {
		if meeting.ID == meetingID {
			return *meeting
		}
	}
	return domain.Meeting{}
}

type memAgendaItems struct {
	mu     sync.Mutex
	items  []domain.AgendaItem
	nextID int64
}

func (m *memAgendaItems) GetOrCreate(_ context.Context, item domain.AgendaItem) (domain.AgendaItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.MeetingID == item.MeetingID && intPtrEqual(existing.ItemNumber, item.ItemNumber) {
			return existing, nil
		}
	}

	m.nextID++
	item.ID = m.nextID
	m.items = append(m.items, item)
	return item, nil
}

type memAppeals struct {
	mu      sync.Mutex
	appeals []*domain.Appeal
	nextID  int64
	// failRefs makes persistence fail for specific reference numbers,
	// simulating constraint violations.
	failRefs map[string]bool
}

func (m *memAppeals) GetOrCreateByReference(_ context.Context, appeal domain.Appeal) (domain.Appeal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failRefs[appeal.ReferenceNumber] {
		return domain.Appeal{}, false, fmt.Errorf("constraint violation for %s", appeal.ReferenceNumber)
	}

	for _, existing := range m.appeals {
		if existing.CityID == appeal.CityID && existing.ReferenceNumber == appeal.ReferenceNumber {
			return *existing, false, nil
		}
	}

	m.nextID++
	appeal.ID = m.nextID
	stored := appeal
	m.appeals = append(m.appeals, &stored)
	return appeal, true, nil
}

func (m *memAppeals) Create(_ context.Context, appeal domain.Appeal) (domain.Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	appeal.ID = m.nextID
	stored := appeal
	m.appeals = append(m.appeals, &stored)
	return appeal, nil
}

func (m *memAppeals) UpdateProgress(_ context.Context, appealID int64, status domain.AppealStatus, decision *domain.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, appeal := range m.appeals {
		if appeal.ID == appealID {
			appeal.Status = status
			if decision != nil {
				appeal.Decision = decision
			}
		}
	}
	return nil
}

func (m *memAppeals) ListActive(_ context.Context, cityID int64) ([]domain.ActiveAppealContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []domain.ActiveAppealContext
	for _, appeal := range m.appeals {
		if appeal.CityID != cityID || !appeal.Active() {
			continue
		}
		active = append(active, domain.ActiveAppealContext{
			ReferenceNumber: appeal.ReferenceNumber,
			ProjectAddress:  appeal.ProjectAddress,
			Summary:         appeal.Description,
		})
	}
	return active, nil
}

func (m *memAppeals) byReference(ref string) *domain.Appeal {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, appeal := range m.appeals {
		if appeal.ReferenceNumber == ref {
			copied := *appeal
			return &copied
		}
	}
	return nil
}

type memHearings struct {
	mu       sync.Mutex
	hearings []domain.Hearing
	nextID   int64
}

func (m *memHearings) GetOrCreate(_ context.Context, hearing domain.Hearing) (domain.Hearing, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.hearings {
		if existing.AppealID == hearing.AppealID && existing.MeetingID == hearing.MeetingID {
			return existing, false, nil
		}
	}

	m.nextID++
	hearing.ID = m.nextID
	m.hearings = append(m.hearings, hearing)
	return hearing, true, nil
}

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: map[string][]byte{}}
}

func (m *memBlobs) Attach(_ context.Context, r io.Reader, filename, contentType string) (domain.BlobRef, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return domain.BlobRef{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := uuid.NewString()
	m.blobs[key] = content
	return domain.BlobRef{Key: key, Filename: filename, ContentType: contentType, ByteSize: int64(len(content))}, nil
}

func (m *memBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

type fakeExtractor struct {
	mu        sync.Mutex
	items     []domain.ExtractedItem
	err       error
	calls     int
	gotActive [][]domain.ActiveAppealContext
}

func (f *fakeExtractor) Extract(_ context.Context, req ports.ExtractionRequest) ([]domain.ExtractedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotActive = append(f.gotActive, req.ActiveAppeals)
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeScraper struct {
	mu        sync.Mutex
	pages     [][]scraper.Row
	requested []int
}

func (f *fakeScraper) Name() string { return "fake" }

func (f *fakeScraper) ListPage(_ context.Context, page int) ([]scraper.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, page)
	if page >= len(f.pages) {
		return nil, nil
	}
	return f.pages[page], nil
}

func registryWith(s scraper.Scraper) *scraper.Registry {
	registry := scraper.NewRegistry()
	registry.Register("fake", func(scraper.Config) scraper.Scraper { return s })
	return registry
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtr(n int) *int { return &n }
