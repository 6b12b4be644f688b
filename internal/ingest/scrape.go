package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
)

const (
	fetchTimeout = 30 * time.Second
	perHostDelay = 2 * time.Second
	userAgent    = "f1gpt-ingest/1.0 (+https://github.com/pitlane/f1gpt)"
)

// Scraper fetches pages and extracts their readable article text.
type Scraper struct {
	collector *colly.Collector
}

// NewScraper builds a scraper with a shared collector: custom UA,
// revisits allowed (sources are re-ingested), and a per-host delay so
// news sites are not hammered.
func NewScraper() (*Scraper, error) {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(fetchTimeout)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      perHostDelay,
	}); err != nil {
		return nil, fmt.Errorf("configuring rate limit: %w", err)
	}

	return &Scraper{collector: c}, nil
}

// Fetch downloads the page at rawURL and returns its readable text.
func (s *Scraper) Fetch(rawURL string) (string, error) {
	var (
		body     []byte
		fetchErr error
	)

	c := s.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(rawURL); err != nil {
		return "", fmt.Errorf("visiting %s: %w", rawURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, fetchErr)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("fetching %s: empty response", rawURL)
	}

	return extractText(body, rawURL)
}

// extractText pulls article text from HTML, preferring readability's
// article extraction and falling back to a tag strip when the page has
// no recognizable article structure.
func extractText(html []byte, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(html), pageURL)
	if err == nil {
		if text := normalizeWhitespace(article.TextContent); text != "" {
			return text, nil
		}
	}

	return stripTags(html)
}

// stripTags is the fallback extractor: drop non-content elements and
// return the body text.
func stripTags(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	text := normalizeWhitespace(doc.Find("body").Text())
	if text == "" {
		return "", fmt.Errorf("no text content")
	}
	return text, nil
}

// normalizeWhitespace collapses runs of blank space while keeping
// paragraph breaks for the splitter.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
