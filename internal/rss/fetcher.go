// Package rss provides feed fetching and parsing.
package rss

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bryan-buckman/babelfeed/internal/model"
	"github.com/mmcdole/gofeed"
)

// Per-domain politeness settings.
const (
	// MaxConcurrencyPerDomain limits parallel requests to any single domain.
	MaxConcurrencyPerDomain = 2
	// DelayBetweenDomainRequests is the minimum delay between requests to the same domain.
	DelayBetweenDomainRequests = 500 * time.Millisecond
)

// domainLimiter controls rate limiting per domain to avoid overwhelming hosts.
type domainLimiter struct {
	mu          sync.Mutex
	semaphores  map[string]chan struct{}
	lastRequest map[string]time.Time
}

// newDomainLimiter creates a new per-domain rate limiter.
func newDomainLimiter() *domainLimiter {
	return &domainLimiter{
		semaphores:  make(map[string]chan struct{}),
		lastRequest: make(map[string]time.Time),
	}
}

// acquire gets a slot for the domain, blocking if necessary.
// It also enforces the minimum delay between requests to the same domain.
func (dl *domainLimiter) acquire(ctx context.Context, domain string) error {
	dl.mu.Lock()
	sem, ok := dl.semaphores[domain]
	if !ok {
		sem = make(chan struct{}, MaxConcurrencyPerDomain)
		dl.semaphores[domain] = sem
	}
	dl.mu.Unlock()

	// Acquire semaphore slot
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Enforce delay between requests to same domain
	dl.mu.Lock()
	lastReq := dl.lastRequest[domain]
	dl.mu.Unlock()

	if !lastReq.IsZero() {
		elapsed := time.Since(lastReq)
		if elapsed < DelayBetweenDomainRequests {
			delay := DelayBetweenDomainRequests - elapsed
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				// Release the semaphore on cancel
				<-sem
				return ctx.Err()
			}
		}
	}

	return nil
}

// release returns a slot for the domain and records the request time.
func (dl *domainLimiter) release(domain string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.lastRequest[domain] = time.Now()
	if sem, ok := dl.semaphores[domain]; ok {
		<-sem
	}
}

// extractDomain gets the host from a URL.
func extractDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL // fallback to full URL
	}
	return u.Host
}

// Fetcher retrieves and parses RSS/Atom feeds into article records.
type Fetcher struct {
	parser        *gofeed.Parser
	maxItems      int
	domainLimiter *domainLimiter
}

// NewFetcher creates a fetcher that keeps at most maxItems entries per
// feed (0 means unlimited).
func NewFetcher(userAgent string, maxItems int) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Fetcher{
		parser:        parser,
		maxItems:      maxItems,
		domainLimiter: newDomainLimiter(),
	}
}

// Result is one fetched feed.
type Result struct {
	Title    string // feed-declared title, falling back to the subscription title
	Articles []model.ArticleRecord
}

// FetchFeed fetches and parses a single feed. feedID is the stable
// identity used for fingerprints (the subscription's xmlUrl).
func (f *Fetcher) FetchFeed(ctx context.Context, feedID, title string) (*Result, error) {
	// Apply per-domain rate limiting
	domain := extractDomain(feedID)
	if err := f.domainLimiter.acquire(ctx, domain); err != nil {
		return nil, fmt.Errorf("rate limit cancelled for %s: %w", feedID, err)
	}
	defer f.domainLimiter.release(domain)

	parsed, err := f.parser.ParseURLWithContext(feedID, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedID, err)
	}

	if parsed.Title != "" {
		title = parsed.Title
	}

	items := parsed.Items
	if f.maxItems > 0 && len(items) > f.maxItems {
		items = items[:f.maxItems]
	}

	res := &Result{Title: title}
	for i, item := range items {
		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}
		var pubDate time.Time
		if item.PublishedParsed != nil {
			pubDate = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pubDate = *item.UpdatedParsed
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		res.Articles = append(res.Articles, model.ArticleRecord{
			FeedID:      feedID,
			GUID:        guid,
			Title:       item.Title,
			Link:        item.Link,
			Summary:     summary,
			PublishedAt: pubDate,
			Index:       i,
		})
	}
	return res, nil
}
