package scrapers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/infrastructure/fetch"
	"AppealScanner/internal/scraper"
)

// SanFrancisco scrapes sfbos.org's full-board meeting listing. Rows live in a
// Drupal views table with the machine-readable date in a content attribute;
// the listing paginates with ?page=N.
type SanFrancisco struct {
	cfg    scraper.Config
	client *fetch.Client
	logger *slog.Logger
}

var _ scraper.Scraper = (*SanFrancisco)(nil)

// NewSanFrancisco wires the shared fetch client into an SF scraper.
func NewSanFrancisco(cfg scraper.Config, client *fetch.Client, logger *slog.Logger) *SanFrancisco {
	return &SanFrancisco{cfg: cfg, client: client, logger: logger}
}

// Name identifies the variant inside the registry.
func (s *SanFrancisco) Name() string {
	return "san_francisco"
}

// ListPage fetches one listing page and extracts its meeting rows. Rows
// missing a date or agenda link are skipped, not fatal.
func (s *SanFrancisco) ListPage(ctx context.Context, page int) ([]scraper.Row, error) {
	pageURL, err := buildPageURL(s.cfg.BaseURL+s.cfg.ListingPath, page)
	if err != nil {
		return nil, err
	}

	doc, err := s.client.Document(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("sf listing page %d: %w", page, err)
	}

	var rows []scraper.Row
	doc.Find("table.views-table tr").Each(func(_ int, tr *goquery.Selection) {
		row, ok := s.parseRow(tr)
		if !ok {
			return
		}
		rows = append(rows, row)
	})

	return rows, nil
}

func (s *SanFrancisco) parseRow(tr *goquery.Selection) (scraper.Row, bool) {
	content, ok := tr.Find("td.views-field-field-date .date-display-single").First().Attr("content")
	if !ok {
		return scraper.Row{}, false
	}

	date, err := parseSFDate(content)
	if err != nil {
		s.debug("skip row with bad date", "content", content, "error", err)
		return scraper.Row{}, false
	}

	href, ok := tr.Find("td.views-field-field-meeting-type-1 a").First().Attr("href")
	if !ok {
		return scraper.Row{}, false
	}

	return scraper.Row{Date: date, PDFURL: resolveHref(s.cfg.BaseURL, href), Type: domain.MeetingRegular}, true
}

// parseSFDate accepts the ISO 8601 content attribute, with or without a time
// component. The calendar date is taken in the attribute's own zone; an
// evening Pacific meeting must not slide to the next UTC day.
func parseSFDate(content string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, content); err == nil {
		year, month, day := t.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", content)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", content, err)
	}
	return t, nil
}

func buildPageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	if page > 0 {
		query := parsed.Query()
		query.Set("page", strconv.Itoa(page))
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func (s *SanFrancisco) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
