package policies

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"visatrack/internal/shared/telemetry"
)

const (
	scrapeAttempts = 3
	scrapeDelay    = 2 * time.Second
	fetchTimeout   = 30 * time.Second
	maxFetchBytes  = 4 << 20
	// maxIndexItems bounds how many rows of one news index are read.
	maxIndexItems = 20

	userAgent = "visatrack-bot/1.0"
)

// Article is one candidate policy announcement found on a news index.
type Article struct {
	Title       string
	URL         string
	PublishedAt time.Time
}

// Source yields candidate policy articles and their readable text.
type Source interface {
	Articles(ctx context.Context) ([]Article, error)
	ArticleText(ctx context.Context, articleURL string) (string, error)
}

// NewsScraper reads government newsroom index pages, keeps announcements
// whose titles look immigration related, and extracts article bodies
// with go-readability.
type NewsScraper struct {
	IndexURLs []string
	Client    *http.Client

	// Now and sleep are overridden in tests.
	Now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewNewsScraper(indexURLs []string) *NewsScraper {
	return &NewsScraper{
		IndexURLs: indexURLs,
		Client:    &http.Client{Timeout: fetchTimeout},
	}
}

var _ Source = (*NewsScraper)(nil)

// Articles walks the configured index pages in order. A source that
// stays down is skipped; the fetch error surfaces only when no source
// produced any articles.
func (s *NewsScraper) Articles(ctx context.Context) ([]Article, error) {
	var articles []Article
	var firstErr error
	for _, indexURL := range s.IndexURLs {
		page, err := s.fetch(ctx, indexURL)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		parsed, err := parseIndex(indexURL, page, s.now)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		articles = append(articles, parsed...)
	}
	if len(articles) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return articles, nil
}

// ArticleText fetches one announcement page and returns its readable
// body text.
func (s *NewsScraper) ArticleText(ctx context.Context, articleURL string) (string, error) {
	page, err := s.fetch(ctx, articleURL)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(articleURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(bytes.NewReader(page), parsed)
	if err != nil {
		return "", fmt.Errorf("extract article text: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}

func (s *NewsScraper) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < scrapeAttempts; attempt++ {
		if attempt > 0 {
			if err := s.wait(ctx, scrapeDelay*time.Duration(1<<(attempt-1))); err != nil {
				return nil, err
			}
		}
		body, err := s.fetchOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		telemetry.Error("policies.fetch_failed", map[string]any{
			"request_id": telemetry.RequestIDFrom(ctx),
			"url":        rawURL,
			"attempt":    attempt + 1,
			"error":      err.Error(),
		})
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, rawURL, lastErr)
}

func (s *NewsScraper) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
}

func (s *NewsScraper) wait(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *NewsScraper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// parseIndex pulls article rows out of a Drupal-style newsroom listing,
// the markup USCIS and similar agency sites share.
func parseIndex(indexURL string, page []byte, now func() time.Time) ([]Article, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	var articles []Article
	doc.Find("div.views-row").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= maxIndexItems {
			return false
		}
		link := row.Find("div.views-field-title a").First()
		title := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if title == "" || !ok || !immigrationRelated(title) {
			return true
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		published := parseDate(row.Find("div.views-field-field-display-date time").First().AttrOr("datetime", ""), now)
		articles = append(articles, Article{
			Title:       title,
			URL:         base.ResolveReference(ref).String(),
			PublishedAt: published,
		})
		return true
	})
	return articles, nil
}

var topicKeywords = []string{
	"visa", "immigration", "opt", "h-1b", "f-1", "stem",
	"work authorization", "ead", "i-20", "i-797", "green card",
	"petition", "nonimmigrant", "employment", "tps", "asylum",
	"naturalization", "citizenship",
}

func immigrationRelated(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range topicKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"01/02/2006",
	"2006-01-02",
}

// parseDate is forgiving: announcements without a usable date sort as
// if published now.
func parseDate(value string, now func() time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return now()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return now()
}
