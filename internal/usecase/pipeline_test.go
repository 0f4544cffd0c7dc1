package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/infrastructure/fetch"
	"AppealScanner/internal/ports"
	"AppealScanner/internal/scraper"
)

func fixedNow() time.Time {
	return time.Date(2026, 2, 15, 6, 0, 0, 0, time.UTC)
}

func testSource() domain.Source {
	return domain.Source{
		ID:             1,
		CityID:         1,
		City:           testCity,
		Fetcher:        "fake",
		BaseURL:        "https://berkeleyca.gov",
		MaxPages:       5,
		LookbackMonths: 6,
		Active:         true,
	}
}

func pdfServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 agenda content")
	}))
	t.Cleanup(srv.Close)
	return srv
}

type pipelineEnv struct {
	pipeline  *Pipeline
	sources   *memSources
	meetings  *memMeetings
	appeals   *memAppeals
	hearings  *memHearings
	blobs     *memBlobs
	extractor *fakeExtractor
	scraper   *fakeScraper
}

func newPipelineEnv(src domain.Source, scr *fakeScraper, ext *fakeExtractor) *pipelineEnv {
	env := &pipelineEnv{
		sources:   newMemSources(src),
		meetings:  newMemMeetings(),
		appeals:   &memAppeals{},
		hearings:  &memHearings{},
		blobs:     newMemBlobs(),
		extractor: ext,
		scraper:   scr,
	}
	items := &memAgendaItems{}
	env.pipeline = NewPipeline(PipelineDeps{
		Registry:   registryWith(scr),
		Fetch:      fetch.NewClient(5 * time.Second),
		Sources:    env.sources,
		Meetings:   env.meetings,
		Appeals:    env.appeals,
		Blobs:      env.blobs,
		Extractor:  ext,
		Reconciler: NewReconciler(items, env.appeals, env.hearings, nil),
		Now:        fixedNow,
	})
	return env
}

func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := pdfServer(t, &hits)

	meetingDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	scr := &fakeScraper{pages: [][]scraper.Row{{
		{Date: meetingDate, PDFURL: srv.URL + "/agenda.pdf", Type: domain.MeetingRegular},
	}}}
	ext := &fakeExtractor{items: []domain.ExtractedItem{{
		ItemNumber:      intPtr(12),
		Title:           "Appeal of Use Permit #ZP2024-0042",
		HearingType:     "initial",
		AppealStatus:    "pending",
		ReferenceNumber: "24-0091",
	}}}
	env := newPipelineEnv(testSource(), scr, ext)

	require.NoError(t, env.pipeline.RunAll(context.Background()))

	meeting, err := env.meetings.GetOrCreate(context.Background(), 1, meetingDate, "")
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingProcessed, meeting.Status)
	require.NotNil(t, meeting.PDF)
	assert.Equal(t, "agenda_berkeley_2026-02-10.pdf", meeting.PDF.Filename)
	assert.Positive(t, meeting.PDF.ByteSize)

	appeal := env.appeals.byReference("24-0091")
	require.NotNil(t, appeal)
	assert.Equal(t, domain.AppealPending, appeal.Status)
	assert.Nil(t, appeal.Decision)
	assert.Len(t, env.hearings.hearings, 1)

	assert.Equal(t, int64(1), hits.Load())
	assert.Contains(t, env.sources.touched, int64(1))
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := pdfServer(t, &hits)

	meetingDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	scr := &fakeScraper{pages: [][]scraper.Row{{
		{Date: meetingDate, PDFURL: srv.URL + "/agenda.pdf"},
	}}}
	ext := &fakeExtractor{items: []domain.ExtractedItem{{
		Title:           "Appeal of Use Permit #ZP2024-0042",
		ReferenceNumber: "24-0091",
		AppealStatus:    "pending",
	}}}
	env := newPipelineEnv(testSource(), scr, ext)

	require.NoError(t, env.pipeline.RunAll(context.Background()))
	require.NoError(t, env.pipeline.RunAll(context.Background()))

	assert.Len(t, env.meetings.meetings, 1)
	assert.Len(t, env.appeals.appeals, 1)
	assert.Len(t, env.hearings.hearings, 1)
	// A processed meeting is skipped outright: no second download, no second
	// extraction call.
	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, 1, ext.calls)
}

func TestPipelineExtractionFailureLeavesMeetingPending(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := pdfServer(t, &hits)

	meetingDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	scr := &fakeScraper{pages: [][]scraper.Row{{
		{Date: meetingDate, PDFURL: srv.URL + "/agenda.pdf"},
	}}}
	ext := &fakeExtractor{err: fmt.Errorf("%w: unexpected token", ports.ErrMalformedExtraction)}
	env := newPipelineEnv(testSource(), scr, ext)

	// Per-meeting failures are swallowed; the cycle itself succeeds.
	require.NoError(t, env.pipeline.RunAll(context.Background()))

	meeting, err := env.meetings.GetOrCreate(context.Background(), 1, meetingDate, "")
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingPending, meeting.Status)
	require.NotNil(t, meeting.PDF)
	assert.Empty(t, env.appeals.appeals)
	assert.Contains(t, env.sources.touched, int64(1))

	// The next cycle retries extraction without re-downloading the PDF.
	ext.err = nil
	ext.items = []domain.ExtractedItem{{Title: "Appeal", ReferenceNumber: "24-0091"}}
	require.NoError(t, env.pipeline.RunAll(context.Background()))

	meeting = env.meetings.byID(meeting.ID)
	assert.Equal(t, domain.MeetingProcessed, meeting.Status)
	assert.Equal(t, int64(1), hits.Load())
}

func TestPipelinePaginationStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	scr := &fakeScraper{pages: [][]scraper.Row{
		{{Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)}},
		{},
	}}
	env := newPipelineEnv(testSource(), scr, &fakeExtractor{})

	_ = env.pipeline.RunAll(context.Background())

	assert.Equal(t, []int{0, 1}, scr.requested)
}

func TestPipelinePaginationStopsAtMaxPages(t *testing.T) {
	t.Parallel()

	row := scraper.Row{Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)}
	scr := &fakeScraper{pages: [][]scraper.Row{{row}, {row}, {row}, {row}}}
	src := testSource()
	src.MaxPages = 2
	env := newPipelineEnv(src, scr, &fakeExtractor{})

	_ = env.pipeline.RunAll(context.Background())

	assert.Equal(t, []int{0, 1}, scr.requested)
}

func TestPipelinePaginationStopsPastLookback(t *testing.T) {
	t.Parallel()

	recent := scraper.Row{Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)}
	stale := scraper.Row{Date: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)}
	scr := &fakeScraper{pages: [][]scraper.Row{{recent}, {stale}, {recent}}}
	env := newPipelineEnv(testSource(), scr, &fakeExtractor{})

	_ = env.pipeline.RunAll(context.Background())

	// Page 1 is entirely before the cutoff, so page 2 is never requested and
	// the stale meeting is not created.
	assert.Equal(t, []int{0, 1}, scr.requested)
	assert.Len(t, env.meetings.meetings, 1)
}

func TestPipelinePassesActiveAppealsToExtractor(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := pdfServer(t, &hits)

	scr := &fakeScraper{pages: [][]scraper.Row{{
		{Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), PDFURL: srv.URL + "/agenda.pdf"},
	}}}
	ext := &fakeExtractor{}
	env := newPipelineEnv(testSource(), scr, ext)

	decided := domain.DecisionDenied
	env.appeals.appeals = []*domain.Appeal{
		{ID: 1, CityID: 1, ReferenceNumber: "23-0007", Status: domain.AppealDecided, Decision: &decided},
		{ID: 2, CityID: 1, ReferenceNumber: "24-0042", Status: domain.AppealPending, ProjectAddress: "2190 Shattuck Ave"},
		{ID: 3, CityID: 2, ReferenceNumber: "SF-100", Status: domain.AppealPending},
	}
	env.appeals.nextID = 3

	require.NoError(t, env.pipeline.RunAll(context.Background()))

	require.Len(t, ext.gotActive, 1)
	require.Len(t, ext.gotActive[0], 1)
	assert.Equal(t, "24-0042", ext.gotActive[0][0].ReferenceNumber)
	assert.Equal(t, "2190 Shattuck Ave", ext.gotActive[0][0].ProjectAddress)
}

func TestPipelineOneCityFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := pdfServer(t, &hits)

	good := testSource()
	bad := domain.Source{
		ID:      2,
		CityID:  2,
		City:    domain.City{ID: 2, Name: "San Francisco", Slug: "san-francisco"},
		Fetcher: "unregistered",
		Active:  true,
	}

	scr := &fakeScraper{pages: [][]scraper.Row{{
		{Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), PDFURL: srv.URL + "/agenda.pdf"},
	}}}
	ext := &fakeExtractor{items: []domain.ExtractedItem{{Title: "Appeal", ReferenceNumber: "24-0091"}}}
	env := newPipelineEnv(good, scr, ext)
	env.sources.sources = append(env.sources.sources, bad)

	err := env.pipeline.RunAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "san-francisco")

	// The healthy city still completed its cycle.
	assert.NotNil(t, env.appeals.byReference("24-0091"))
	assert.Contains(t, env.sources.touched, int64(1))
	assert.NotContains(t, env.sources.touched, int64(2))
}

func TestPipelineInactiveSourceSkipped(t *testing.T) {
	t.Parallel()

	src := testSource()
	src.Active = false
	scr := &fakeScraper{pages: [][]scraper.Row{{
		{Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
	}}}
	env := newPipelineEnv(src, scr, &fakeExtractor{})

	require.NoError(t, env.pipeline.RunAll(context.Background()))

	assert.Empty(t, scr.requested)
	assert.Empty(t, env.meetings.meetings)
}
