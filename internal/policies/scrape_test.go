package policies

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const indexPage = `<!DOCTYPE html>
<html><body>
<div class="view-content">
  <div class="views-row">
    <div class="views-field views-field-title">
      <span class="field-content"><a href="/newsroom/alerts/opt-update">USCIS Updates OPT Employment Rules</a></span>
    </div>
    <div class="views-field views-field-field-display-date">
      <time datetime="2026-08-10T00:00:00Z">August 10, 2026</time>
    </div>
  </div>
  <div class="views-row">
    <div class="views-field views-field-title">
      <span class="field-content"><a href="/newsroom/alerts/building">Agency marks 50 years of service</a></span>
    </div>
    <div class="views-field views-field-field-display-date">
      <time datetime="2026-08-09T00:00:00Z">August 9, 2026</time>
    </div>
  </div>
  <div class="views-row">
    <div class="views-field views-field-title">
      <span class="field-content"><a href="https://example.gov/h1b-fees">New H-1B Registration Fees Announced</a></span>
    </div>
  </div>
</div>
</body></html>`

func newTestScraper(t *testing.T, indexURLs ...string) *NewsScraper {
	t.Helper()
	s := NewNewsScraper(indexURLs)
	s.Now = func() time.Time {
		return time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	}
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s
}

func TestScraperParsesIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, indexPage)
	}))
	t.Cleanup(srv.Close)

	s := newTestScraper(t, srv.URL+"/newsroom/news-releases")
	s.Client = srv.Client()

	articles, err := s.Articles(context.Background())
	if err != nil {
		t.Fatalf("Articles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("articles = %+v, want the two immigration titles", articles)
	}

	first := articles[0]
	if first.Title != "USCIS Updates OPT Employment Rules" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.URL != srv.URL+"/newsroom/alerts/opt-update" {
		t.Fatalf("relative href not resolved: %q", first.URL)
	}
	if want := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC); !first.PublishedAt.Equal(want) {
		t.Fatalf("published_at = %v", first.PublishedAt)
	}

	second := articles[1]
	if second.URL != "https://example.gov/h1b-fees" {
		t.Fatalf("absolute href rewritten: %q", second.URL)
	}
	// No date on the row, so it sorts as published now.
	if !second.PublishedAt.Equal(s.Now()) {
		t.Fatalf("fallback published_at = %v", second.PublishedAt)
	}
}

func TestScraperCapsIndexRows(t *testing.T) {
	var page strings.Builder
	page.WriteString("<html><body>")
	for i := 0; i < maxIndexItems+5; i++ {
		fmt.Fprintf(&page, `<div class="views-row"><div class="views-field-title"><a href="/n/%d">Visa notice %d</a></div></div>`, i, i)
	}
	page.WriteString("</body></html>")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page.String())
	}))
	t.Cleanup(srv.Close)

	s := newTestScraper(t, srv.URL)
	s.Client = srv.Client()

	articles, err := s.Articles(context.Background())
	if err != nil {
		t.Fatalf("Articles: %v", err)
	}
	if len(articles) != maxIndexItems {
		t.Fatalf("articles = %d, want %d", len(articles), maxIndexItems)
	}
}

func TestScraperRetriesWithBackoff(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, indexPage)
	}))
	t.Cleanup(srv.Close)

	s := newTestScraper(t, srv.URL)
	s.Client = srv.Client()
	var delays []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	articles, err := s.Articles(context.Background())
	if err != nil {
		t.Fatalf("Articles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("articles = %d", len(articles))
	}
	if hits != 3 {
		t.Fatalf("hits = %d", hits)
	}
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Fatalf("delays = %v", delays)
	}
}

func TestScraperReportsUnreachableSource(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s := newTestScraper(t, srv.URL)
	s.Client = srv.Client()

	_, err := s.Articles(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
	if hits != scrapeAttempts {
		t.Fatalf("hits = %d, want %d", hits, scrapeAttempts)
	}
}

func TestScraperSkipsDownSourceWhenAnotherWorks(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, indexPage)
	}))
	t.Cleanup(up.Close)

	s := newTestScraper(t, down.URL, up.URL)
	s.Client = up.Client()

	articles, err := s.Articles(context.Background())
	if err != nil {
		t.Fatalf("Articles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("articles = %d", len(articles))
	}
}

func TestScraperSendsIdentifyingHeaders(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, indexPage)
	}))
	t.Cleanup(srv.Close)

	s := newTestScraper(t, srv.URL)
	s.Client = srv.Client()

	if _, err := s.Articles(context.Background()); err != nil {
		t.Fatalf("Articles: %v", err)
	}
	if gotAgent != userAgent {
		t.Fatalf("user agent = %q", gotAgent)
	}
}

func TestArticleTextExtractsReadableBody(t *testing.T) {
	article := `<!DOCTYPE html>
<html><head><title>USCIS Updates OPT Employment Rules</title></head>
<body>
<nav><a href="/">Skip to main content</a></nav>
<article>
  <h1>USCIS Updates OPT Employment Rules</h1>
  <p>U.S. Citizenship and Immigration Services today announced updated guidance on how
  unemployment days are counted for students working under Optional Practical Training.
  The change takes effect immediately and applies to all pending applications.</p>
  <p>Under the new rules, students must report employer changes within ten business days
  through the SEVP portal. Designated school officials are expected to review reported
  employment for completeness during each certification cycle.</p>
  <p>The agency said the update responds to feedback from schools and employers collected
  during last year's public comment period, and published a fact sheet alongside the
  announcement with examples of common reporting scenarios.</p>
</article>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, article)
	}))
	t.Cleanup(srv.Close)

	s := newTestScraper(t, srv.URL)
	s.Client = srv.Client()

	text, err := s.ArticleText(context.Background(), srv.URL+"/newsroom/alerts/opt-update")
	if err != nil {
		t.Fatalf("ArticleText: %v", err)
	}
	if !strings.Contains(text, "unemployment days are counted") {
		t.Fatalf("body text missing:\n%s", text)
	}
	if !strings.Contains(text, "SEVP portal") {
		t.Fatalf("second paragraph missing:\n%s", text)
	}
}

func TestParseDateLayouts(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC) }
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-08-10T00:00:00Z", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
		{"August 10, 2026", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
		{"08/10/2026", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
		{"2026-08-10", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
		{"sometime soon", now()},
		{"", now()},
	}
	for _, tc := range cases {
		if got := parseDate(tc.in, now); !got.Equal(tc.want) {
			t.Errorf("parseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
