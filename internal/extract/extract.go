// Package extract retrieves article pages and pulls out the main
// readable text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrTooShort means the extracted text is below the usefulness
// threshold; callers fall back to the feed-supplied summary.
var ErrTooShort = errors.New("extracted text too short")

var multiNewline = regexp.MustCompile(`\n{3,}`)

// Extractor fetches article HTML and extracts readable text.
type Extractor struct {
	client    *http.Client
	userAgent string
	minChars  int
}

// New creates an extractor. minChars is the minimum acceptable length
// of extracted text.
func New(timeout time.Duration, userAgent string, minChars int) *Extractor {
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		minChars:  minChars,
	}
}

// ArticleText fetches the page at link and extracts its main text,
// best-effort. Returns ErrTooShort when nothing useful was found.
func (e *Extractor) ArticleText(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch article: http status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}

	text := ReadableText(doc)
	if len(text) < e.minChars {
		return "", ErrTooShort
	}
	return text, nil
}

// ReadableText extracts the main text from a parsed document. Prefers
// <article>, then <main>, then body, with scripts and styles removed.
func ReadableText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	cand := doc.Find("article").First()
	if cand.Length() == 0 {
		cand = doc.Find("main").First()
	}
	if cand.Length() == 0 {
		cand = doc.Find("body").First()
	}
	if cand.Length() == 0 {
		return ""
	}

	var b strings.Builder
	cand.Contents().Each(func(_ int, s *goquery.Selection) {
		line := strings.TrimSpace(s.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	})
	text := strings.TrimSpace(b.String())
	return multiNewline.ReplaceAllString(text, "\n\n")
}

// StripTags reduces an HTML fragment (e.g. a feed summary) to its text
// content.
func StripTags(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			token := z.Token()
			if token.Data == "script" || token.Data == "style" {
				skip++
			}
		case html.EndTagToken:
			token := z.Token()
			if (token.Data == "script" || token.Data == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				text := strings.TrimSpace(z.Token().Data)
				if text != "" {
					if b.Len() > 0 {
						b.WriteByte(' ')
					}
					b.WriteString(text)
				}
			}
		}
	}
}
