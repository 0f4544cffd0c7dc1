package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/infrastructure/fetch"
	"AppealScanner/internal/ports"
	"AppealScanner/internal/scraper"
)

// PipelineDeps wires all collaborators into the fetch-cycle orchestrator.
type PipelineDeps struct {
	Registry   *scraper.Registry
	Fetch      *fetch.Client
	Sources    ports.SourceRepository
	Meetings   ports.MeetingRepository
	Appeals    ports.AppealRepository
	Blobs      ports.BlobStore
	Extractor  ports.Extractor
	Reconciler *Reconciler
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline runs one fetch cycle per source: scrape the listing, resolve
// meetings, download and extract agendas, reconcile appeal state.
type Pipeline struct {
	registry   *scraper.Registry
	fetch      *fetch.Client
	sources    ports.SourceRepository
	meetings   ports.MeetingRepository
	appeals    ports.AppealRepository
	blobs      ports.BlobStore
	extractor  ports.Extractor
	reconciler *Reconciler
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		registry:   deps.Registry,
		fetch:      deps.Fetch,
		sources:    deps.Sources,
		meetings:   deps.Meetings,
		appeals:    deps.Appeals,
		blobs:      deps.Blobs,
		extractor:  deps.Extractor,
		reconciler: deps.Reconciler,
		logger:     deps.Logger,
		now:        now,
	}
}

// RunAll executes one fetch cycle for every active source. Each city runs in
// its own goroutine with no shared state beyond the store, so one city's
// failure never blocks another's cycle.
func (p *Pipeline) RunAll(ctx context.Context) error {
	sources, err := p.sources.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, src := range sources {
		wg.Add(1)
		go func(src domain.Source) {
			defer wg.Done()
			if runErr := p.RunSource(ctx, src); runErr != nil {
				p.error("fetch cycle failed", "city", src.City.Slug, "error", runErr)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", src.City.Slug, runErr))
				mu.Unlock()
			}
		}(src)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// RunSource runs one city's fetch cycle. Individual meeting failures are
// logged and left pending for the next cycle; the last-fetch timestamp is
// stamped regardless, so partial failures do not block progress tracking.
func (p *Pipeline) RunSource(ctx context.Context, src domain.Source) error {
	scr, err := p.registry.Resolve(src.Fetcher, scraper.Config{
		BaseURL:     src.BaseURL,
		ListingPath: src.ListingPath,
	})
	if err != nil {
		return fmt.Errorf("source %d: %w", src.ID, err)
	}

	rows, err := p.discover(ctx, src, scr)
	if err != nil {
		return fmt.Errorf("discover meetings: %w", err)
	}
	p.info("discovered meetings", "city", src.City.Slug, "count", len(rows))

	processed := 0
	for _, row := range rows {
		meeting, mErr := p.meetings.GetOrCreate(ctx, src.ID, row.Date, row.PDFURL)
		if mErr != nil {
			p.error("resolve meeting failed", "city", src.City.Slug, "date", row.Date.Format("2006-01-02"), "error", mErr)
			continue
		}

		if pErr := p.processMeeting(ctx, src, meeting); pErr != nil {
			p.error("meeting left pending", "city", src.City.Slug, "date", meeting.Date.Format("2006-01-02"), "error", pErr)
			continue
		}
		processed++
	}
	p.info("fetch cycle done", "city", src.City.Slug, "processed", processed, "total", len(rows))

	if err := p.sources.TouchFetched(ctx, src.ID, p.now().UTC()); err != nil {
		return fmt.Errorf("stamp last fetch: %w", err)
	}
	return nil
}

// discover paginates the listing until an empty page, the configured page
// limit, or a page whose rows all fall before the lookback cutoff.
func (p *Pipeline) discover(ctx context.Context, src domain.Source, scr scraper.Scraper) ([]scraper.Row, error) {
	var cutoff time.Time
	if src.LookbackMonths > 0 {
		cutoff = p.now().UTC().AddDate(0, -src.LookbackMonths, 0)
	}

	var discovered []scraper.Row
	for page := 0; ; page++ {
		if src.MaxPages > 0 && page >= src.MaxPages {
			break
		}

		rows, err := scr.ListPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(rows) == 0 {
			break
		}

		allBeforeCutoff := !cutoff.IsZero()
		for _, row := range rows {
			if !cutoff.IsZero() && row.Date.Before(cutoff) {
				continue
			}
			allBeforeCutoff = false
			discovered = append(discovered, row)
		}
		if allBeforeCutoff {
			break
		}
	}

	return discovered, nil
}

// processMeeting advances one meeting through its state machine: download and
// attach the PDF when missing, then extract and reconcile. The meeting only
// reaches processed when the whole chain succeeds; any failure leaves it
// pending for the next cycle to retry.
func (p *Pipeline) processMeeting(ctx context.Context, src domain.Source, meeting domain.Meeting) error {
	switch meeting.Status {
	case domain.MeetingProcessed:
		p.debug("meeting already processed", "city", src.City.Slug, "date", meeting.Date.Format("2006-01-02"))
		return nil
	case domain.MeetingError:
		return nil
	}

	if meeting.PDF == nil {
		blob, err := p.downloadPDF(ctx, src, meeting)
		if err != nil {
			return fmt.Errorf("download pdf: %w", err)
		}
		if err := p.meetings.AttachPDF(ctx, meeting.ID, blob); err != nil {
			return fmt.Errorf("attach pdf: %w", err)
		}
		meeting.PDF = &blob
	}

	items, err := p.extract(ctx, src, meeting)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	results := p.reconciler.Reconcile(ctx, src.City, meeting, items)
	skipped := 0
	for _, res := range results {
		if res.Err != nil {
			skipped++
		}
	}
	p.info("reconciled meeting", "city", src.City.Slug, "date", meeting.Date.Format("2006-01-02"),
		"appeals", len(TouchedAppeals(results)), "skipped", skipped)

	return p.meetings.SetStatus(ctx, meeting.ID, domain.MeetingProcessed)
}

func (p *Pipeline) downloadPDF(ctx context.Context, src domain.Source, meeting domain.Meeting) (domain.BlobRef, error) {
	if meeting.PDFURL == "" {
		return domain.BlobRef{}, fmt.Errorf("meeting has no pdf url")
	}

	resp, err := p.fetch.Get(ctx, meeting.PDFURL)
	if err != nil {
		return domain.BlobRef{}, err
	}
	defer resp.Body.Close()

	filename := fmt.Sprintf("agenda_%s_%s.pdf", src.City.Slug, meeting.Date.Format("2006-01-02"))
	blob, err := p.blobs.Attach(ctx, resp.Body, filename, "application/pdf")
	if err != nil {
		return domain.BlobRef{}, err
	}
	return blob, nil
}

func (p *Pipeline) extract(ctx context.Context, src domain.Source, meeting domain.Meeting) ([]domain.ExtractedItem, error) {
	if meeting.PDF == nil {
		return nil, fmt.Errorf("no pdf attached to meeting %d", meeting.ID)
	}

	active, err := p.appeals.ListActive(ctx, src.CityID)
	if err != nil {
		return nil, fmt.Errorf("load active appeals: %w", err)
	}

	pdf, err := p.blobs.Open(ctx, meeting.PDF.Key)
	if err != nil {
		return nil, fmt.Errorf("open pdf blob: %w", err)
	}
	defer pdf.Close()

	return p.extractor.Extract(ctx, ports.ExtractionRequest{
		PDF:           pdf,
		PDFSize:       meeting.PDF.ByteSize,
		DisplayName:   fmt.Sprintf("%s Agenda %s", src.City.Name, meeting.Date.Format("2006-01-02")),
		ActiveAppeals: active,
	})
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) error(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
