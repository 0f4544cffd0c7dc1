package scrapers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"AppealScanner/internal/infrastructure/fetch"
	"AppealScanner/internal/scraper"
)

const berkeleyListing = `
<table>
  <tr>
    <td class="council-meeting-name"><a href="/m1">City Council 2026-02-10 - Regular</a></td>
    <td class="council-meeting-minutes">
      <a href="/files/agenda-2026-02-10.pdf">Agenda Packet</a>
      <a href="/files/annotated-2026-02-10.pdf">Annotated Agenda</a>
    </td>
  </tr>
  <tr>
    <td class="council-meeting-name"><a href="/m2">City Council 2026-02-03 - Special</a></td>
    <td class="council-meeting-minutes"><a href="/files/agenda-2026-02-03.pdf">Agenda Packet</a></td>
  </tr>
  <tr>
    <td class="council-meeting-name"><a href="/m3">City Council 2026-01-27 - Regular</a></td>
    <td class="council-meeting-minutes"><a href="/files/minutes.docx">Minutes</a></td>
  </tr>
  <tr>
    <td class="council-meeting-name"><a href="/m4">City Council 2026-01-20 - Regular</a></td>
    <td class="council-meeting-minutes"><a href="/files/agenda-2026-01-20.pdf">Agenda Packet</a></td>
  </tr>
</table>`

func TestBerkeleyListPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/your-government/city-council/city-council-agendas" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(berkeleyListing))
	}))
	defer server.Close()

	b := NewBerkeley(scraper.Config{
		BaseURL:     server.URL,
		ListingPath: "/your-government/city-council/city-council-agendas",
	}, fetch.NewClient(5*time.Second), nil)

	rows, err := b.ListPage(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListPage returned error: %v", err)
	}

	// Special meeting and the row without a PDF are skipped.
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	want := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	if !rows[0].Date.Equal(want) {
		t.Fatalf("unexpected first date: %v", rows[0].Date)
	}
	if rows[0].PDFURL != server.URL+"/files/agenda-2026-02-10.pdf" {
		t.Fatalf("unexpected pdf url: %s", rows[0].PDFURL)
	}
}

func TestBerkeleySinglePage(t *testing.T) {
	t.Parallel()

	b := NewBerkeley(scraper.Config{BaseURL: "http://unused.test"}, fetch.NewClient(time.Second), nil)

	rows, err := b.ListPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListPage returned error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows past page 0, got %d", len(rows))
	}
}
