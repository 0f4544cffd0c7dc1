package scrapers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/infrastructure/fetch"
	"AppealScanner/internal/scraper"
)

// Only Regular meetings carry appeal hearings worth processing; Special and
// Closed Session rows are skipped.
var berkeleyTitleExpr = regexp.MustCompile(`(?i)City Council (\d{4}-\d{2}-\d{2}) - Regular`)

// Berkeley scrapes berkeleyca.gov's council agenda listing. The page is a
// single table with no pagination: one row per meeting, the meeting date
// embedded in the link text and the agenda-packet PDF in the minutes column.
type Berkeley struct {
	cfg    scraper.Config
	client *fetch.Client
	logger *slog.Logger
}

var _ scraper.Scraper = (*Berkeley)(nil)

// NewBerkeley wires the shared fetch client into a Berkeley scraper.
func NewBerkeley(cfg scraper.Config, client *fetch.Client, logger *slog.Logger) *Berkeley {
	return &Berkeley{cfg: cfg, client: client, logger: logger}
}

// Name identifies the variant inside the registry.
func (b *Berkeley) Name() string {
	return "berkeley"
}

// ListPage returns every regular meeting on the listing table. Berkeley has a
// single page, so any page index past 0 yields no rows.
func (b *Berkeley) ListPage(ctx context.Context, page int) ([]scraper.Row, error) {
	if page > 0 {
		return nil, nil
	}

	doc, err := b.client.Document(ctx, b.cfg.BaseURL+b.cfg.ListingPath)
	if err != nil {
		return nil, fmt.Errorf("berkeley listing: %w", err)
	}

	var rows []scraper.Row
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row, ok := b.parseRow(tr)
		if !ok {
			return
		}
		rows = append(rows, row)
	})

	return rows, nil
}

func (b *Berkeley) parseRow(tr *goquery.Selection) (scraper.Row, bool) {
	title := strings.TrimSpace(tr.Find("td.council-meeting-name a").First().Text())
	if title == "" {
		return scraper.Row{}, false
	}

	match := berkeleyTitleExpr.FindStringSubmatch(title)
	if match == nil {
		return scraper.Row{}, false
	}

	date, err := time.Parse("2006-01-02", match[1])
	if err != nil {
		b.debug("skip row with bad date", "title", title, "error", err)
		return scraper.Row{}, false
	}

	// First PDF is the agenda packet; annotated agendas are later links on
	// the same row.
	href, ok := tr.Find(`td.council-meeting-minutes a[href$=".pdf"]`).First().Attr("href")
	if !ok {
		return scraper.Row{}, false
	}

	return scraper.Row{Date: date, PDFURL: resolveHref(b.cfg.BaseURL, href), Type: domain.MeetingRegular}, true
}

func (b *Berkeley) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}
