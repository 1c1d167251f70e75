// Package model defines shared data structures.
package model

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// ArticleRecord is one article within a single run. It is ephemeral:
// built once per fetch cycle and never persisted.
type ArticleRecord struct {
	FeedID      string
	GUID        string // guid from the feed, falling back to the link
	Title       string
	Link        string
	Summary     string // feed-supplied summary/description (may contain HTML)
	SourceLang  string // optional hint, empty means auto-detect
	PublishedAt time.Time
	Index       int // position within the source feed
}

// Fingerprint returns the article's stable cache identity.
func (a *ArticleRecord) Fingerprint() string {
	return Fingerprint(a.FeedID, a.GUID)
}

// CacheEntry is one persisted translation, keyed by (fingerprint, target_lang).
type CacheEntry struct {
	Fingerprint     string
	TargetLang      string
	TranslatedText  string
	TranslatedTitle string
	ContentHash     string
	Translator      string
	SourceLen       int
	CreatedAt       time.Time
}

// TranslatedItem is one entry of an output feed.
type TranslatedItem struct {
	Index               int // original position, used to restore feed order
	Title               string
	Link                string
	GUID                string
	PublishedAt         time.Time
	Description         string // HTML: translation followed by original snippet
	PartiallyTranslated bool
	FromCache           bool
}

// TranslatedFeed is the output artifact for one source feed. It is fully
// regenerated each run and owned by the feed writer. SubscriptionTitle
// is the title from the source OPML; output filenames derive from it so
// every consumer of the output can compute them without fetching the
// feed.
type TranslatedFeed struct {
	FeedID            string
	Title             string // feed-declared title, shown in the channel
	SubscriptionTitle string
	SourceURL         string
	TargetLang        string
	Items             []TranslatedItem
}

// FeedSummary reports per-feed article outcomes.
type FeedSummary struct {
	Title      string
	URL        string
	Translated int
	Cached     int
	Partial    int
	Skipped    int
	Failed     int
	FeedFailed bool // the feed itself could not be fetched or written
}

// RunSummary aggregates one pipeline invocation.
type RunSummary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Feeds    []FeedSummary
}

// FailedFeeds returns the number of feeds that failed entirely.
func (r *RunSummary) FailedFeeds() int {
	n := 0
	for _, f := range r.Feeds {
		if f.FeedFailed {
			n++
		}
	}
	return n
}

// Degraded reports whether any article was skipped or only partially
// translated, even though every feed was written.
func (r *RunSummary) Degraded() bool {
	for _, f := range r.Feeds {
		if f.Partial > 0 || f.Skipped > 0 || f.Failed > 0 {
			return true
		}
	}
	return false
}

// Fingerprint hashes a feed identity and an article guid/link into the
// cache key. Stable across runs for the same pair.
func Fingerprint(feedID, guidOrLink string) string {
	return sha1Hex(feedID + "\x00" + guidOrLink)
}

// ContentHash hashes the article's source text, so a changed body under
// an unchanged guid is detected as stale.
func ContentHash(sourceText string) string {
	return sha1Hex(sourceText)
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	multiDash = regexp.MustCompile(`-{2,}`)
)

// Slugify turns a feed title into a filesystem- and URL-safe name.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "-")
	s = multiDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "feed"
	}
	return s
}
