// Package pipeline orchestrates one translation run: fetch, extract,
// cache, translate, write feeds, rebuild OPML.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryan-buckman/babelfeed/internal/cache"
	"github.com/bryan-buckman/babelfeed/internal/config"
	"github.com/bryan-buckman/babelfeed/internal/extract"
	"github.com/bryan-buckman/babelfeed/internal/feedout"
	"github.com/bryan-buckman/babelfeed/internal/model"
	"github.com/bryan-buckman/babelfeed/internal/opml"
	"github.com/bryan-buckman/babelfeed/internal/plan"
	"github.com/bryan-buckman/babelfeed/internal/rss"
	"github.com/bryan-buckman/babelfeed/internal/translate"
)

// outcome classifies one article's processing result.
type outcome int

const (
	outcomeTranslated outcome = iota
	outcomeCached
	outcomePartial
	outcomeSkipped
	outcomeFailed
)

// Pipeline wires the components of one run. Constructed once at
// startup; no package-level state.
type Pipeline struct {
	cfg       *config.Config
	log       *slog.Logger
	cache     cache.Store
	fetcher   *rss.Fetcher
	extractor *extract.Extractor
	exec      *plan.Executor

	locks keyedLocks
	memo  runMemo
}

// New builds a pipeline around an explicit provider and cache store.
// Callers construct both once at startup; Open wires the defaults.
func New(cfg *config.Config, log *slog.Logger, provider translate.Provider, store cache.Store) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		log:       log,
		cache:     store,
		fetcher:   rss.NewFetcher(cfg.Fetch.UserAgent, cfg.Fetch.MaxItemsPerFeed),
		extractor: extract.New(cfg.HTTPTimeout(), cfg.Fetch.UserAgent, cfg.Fetch.MinExtractChars),
		exec:      plan.NewExecutor(provider, cfg.Retry, log),
		locks:     newKeyedLocks(),
		memo:      newRunMemo(),
	}
}

// Open constructs the pipeline from configuration alone: the configured
// provider (missing credential is fatal) and the SQLite cache, which
// degrades to no-cache mode when the store cannot be opened.
func Open(cfg *config.Config, log *slog.Logger) (*Pipeline, error) {
	provider, err := translate.New(cfg)
	if err != nil {
		return nil, err
	}
	var store cache.Store
	store, err = cache.Open(cfg.Output.CachePath)
	if err != nil {
		log.Warn("cache unavailable, translating everything", "error", err)
		store = cache.NopStore{}
	}
	return New(cfg, log, provider, store), nil
}

// Close releases the cache store.
func (p *Pipeline) Close() error {
	return p.cache.Close()
}

type articleJob struct {
	feedIdx int
	article model.ArticleRecord
}

type articleResult struct {
	feedIdx int
	item    *model.TranslatedItem // nil when skipped or failed
	outcome outcome
	err     error
}

// Run executes the full pipeline. A returned error is fatal (auth or
// I/O on the outputs); per-feed and per-article failures are isolated
// and reported in the summary.
func (p *Pipeline) Run(ctx context.Context) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	p.log.Info("run started", "run_id", summary.RunID,
		"provider", p.cfg.Provider, "target_lang", p.cfg.TargetLang)

	f, err := os.Open(p.cfg.OPMLPath)
	if err != nil {
		return nil, fmt.Errorf("open opml: %w", err)
	}
	entries, err := opml.Parse(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("parse opml: %w", err)
	}
	p.log.Info("subscriptions loaded", "feeds", len(entries))

	// Fetch all feeds first; failures are isolated per feed.
	feeds := make([]*rss.Result, len(entries))
	summary.Feeds = make([]model.FeedSummary, len(entries))
	var jobs []articleJob
	for i, entry := range entries {
		summary.Feeds[i] = model.FeedSummary{Title: entry.Title, URL: entry.URL}
		res, err := p.fetcher.FetchFeed(ctx, entry.URL, entry.Title)
		if err != nil {
			p.log.Error("feed fetch failed", "feed", entry.URL, "error", err)
			summary.Feeds[i].FeedFailed = true
			continue
		}
		summary.Feeds[i].Title = res.Title
		feeds[i] = res
		for _, a := range res.Articles {
			jobs = append(jobs, articleJob{feedIdx: i, article: a})
		}
	}

	items, fatal := p.processAll(ctx, jobs, summary)
	if fatal != nil {
		return summary, fatal
	}

	if err := p.writeOutputs(entries, feeds, items, summary); err != nil {
		return summary, err
	}

	summary.Finished = time.Now()
	p.logSummary(summary)
	return summary, nil
}

// processAll runs the article jobs through a bounded worker pool and
// groups the translated items per feed. Only auth errors are fatal.
func (p *Pipeline) processAll(ctx context.Context, jobs []articleJob, summary *model.RunSummary) ([][]model.TranslatedItem, error) {
	items := make([][]model.TranslatedItem, len(summary.Feeds))
	if len(jobs) == 0 {
		return items, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobChan := make(chan articleJob, len(jobs))
	resultChan := make(chan articleResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				select {
				case <-runCtx.Done():
					resultChan <- articleResult{feedIdx: job.feedIdx, outcome: outcomeFailed, err: runCtx.Err()}
					continue
				default:
				}
				item, oc, err := p.processArticle(runCtx, &job.article)
				if err != nil && translate.KindOf(err) == translate.KindAuth {
					cancel()
				}
				resultChan <- articleResult{feedIdx: job.feedIdx, item: item, outcome: oc, err: err}
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var fatal error
	for res := range resultChan {
		fs := &summary.Feeds[res.feedIdx]
		switch res.outcome {
		case outcomeTranslated:
			fs.Translated++
		case outcomeCached:
			fs.Cached++
		case outcomePartial:
			fs.Partial++
		case outcomeSkipped:
			fs.Skipped++
		case outcomeFailed:
			fs.Failed++
		}
		if res.err != nil && translate.KindOf(res.err) == translate.KindAuth && fatal == nil {
			fatal = res.err
		}
		if res.item != nil {
			items[res.feedIdx] = append(items[res.feedIdx], *res.item)
		}
	}
	if fatal != nil {
		return nil, fmt.Errorf("provider authentication failed, aborting run: %w", fatal)
	}
	return items, nil
}

// processArticle implements the per-article flow: fingerprint, extract,
// content hash, cache lookup, plan, translate, store.
func (p *Pipeline) processArticle(ctx context.Context, a *model.ArticleRecord) (*model.TranslatedItem, outcome, error) {
	fingerprint := a.Fingerprint()

	// At most one worker translates a given fingerprint per run;
	// duplicates (e.g. the same guid in two feeds) reuse its result.
	unlock := p.locks.lock(fingerprint)
	defer unlock()
	if item, ok := p.memo.get(fingerprint); ok {
		dup := *item
		dup.Index = a.Index
		dup.FromCache = true
		return &dup, outcomeCached, nil
	}

	sourceText := p.sourceText(ctx, a)
	if sourceText == "" {
		p.log.Warn("article has no usable text, skipping", "link", a.Link)
		return nil, outcomeSkipped, nil
	}
	contentHash := model.ContentHash(sourceText)

	if entry, err := p.cache.Lookup(fingerprint, p.cfg.TargetLang); err != nil {
		p.log.Warn("cache lookup failed", "error", err)
	} else if entry != nil && entry.ContentHash == contentHash {
		item := p.buildItem(a, entry.TranslatedTitle, entry.TranslatedText, sourceText, false)
		item.FromCache = true
		p.memo.put(fingerprint, item)
		return item, outcomeCached, nil
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.ArticleTimeout())
	defer cancel()

	pl := plan.Build(sourceText, p.cfg.Translation.ChunkLimit, p.cfg.Translation.ChunkFactor)
	p.log.Debug("translation plan", "link", a.Link, "kind", pl.Kind.String(),
		"chunks", len(pl.Chunks), "source_len", len(sourceText))

	res, err := p.exec.Execute(actx, pl, a.SourceLang, p.cfg.TargetLang)
	if err != nil {
		switch translate.KindOf(err) {
		case translate.KindAuth:
			return nil, outcomeFailed, err
		case translate.KindUnsupportedLanguage:
			p.log.Warn("language unsupported, skipping article", "link", a.Link, "error", err)
			return nil, outcomeSkipped, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || actx.Err() != nil {
			// Timed out: fall back to the original-language text so the
			// run never blocks on one article.
			p.log.Warn("article translation timed out", "link", a.Link)
			item := p.buildItem(a, a.Title, sourceText, sourceText, true)
			return item, outcomePartial, nil
		}
		p.log.Error("article translation failed", "link", a.Link, "error", err)
		return nil, outcomeFailed, err
	}

	title := a.Title
	if translated, terr := p.exec.TranslateText(actx, a.Title, a.SourceLang, p.cfg.TargetLang); terr == nil {
		title = translated
	} else if translate.KindOf(terr) == translate.KindAuth {
		return nil, outcomeFailed, terr
	} else {
		res.Partial = true
	}

	if !res.Partial {
		// Partial translations are not cached, so the next run retries them.
		entry := &model.CacheEntry{
			Fingerprint:     fingerprint,
			TargetLang:      p.cfg.TargetLang,
			TranslatedText:  res.Text,
			TranslatedTitle: title,
			ContentHash:     contentHash,
			Translator:      p.cfg.Provider,
			SourceLen:       len(sourceText),
		}
		if err := p.cache.Upsert(entry); err != nil {
			p.log.Warn("cache store failed", "error", err)
		}
	}

	item := p.buildItem(a, title, res.Text, sourceText, res.Partial)
	p.memo.put(fingerprint, item)
	if res.Partial {
		return item, outcomePartial, nil
	}
	return item, outcomeTranslated, nil
}

// sourceText extracts the article body, falling back to the stripped
// feed summary when extraction fails or is too short.
func (p *Pipeline) sourceText(ctx context.Context, a *model.ArticleRecord) string {
	if a.Link != "" {
		text, err := p.extractor.ArticleText(ctx, a.Link)
		if err == nil {
			return text
		}
		p.log.Debug("extraction fell back to summary", "link", a.Link, "error", err)
	}
	return extract.StripTags(a.Summary)
}

func (p *Pipeline) buildItem(a *model.ArticleRecord, title, translated, source string, partial bool) *model.TranslatedItem {
	return &model.TranslatedItem{
		Index:               a.Index,
		Title:               title,
		Link:                a.Link,
		GUID:                a.Fingerprint(),
		PublishedAt:         a.PublishedAt,
		Description:         feedout.Description(translated, source),
		PartiallyTranslated: partial,
	}
}

// writeOutputs serializes every fetched feed and rebuilds the OPML.
// Filenames and OPML entries are keyed by the subscription title, not
// the feed-declared one, so the standalone OPML rebuild finds the same
// files without fetching anything.
func (p *Pipeline) writeOutputs(entries []opml.FeedEntry, feeds []*rss.Result, items [][]model.TranslatedItem, summary *model.RunSummary) error {
	var refs []opml.TranslatedFeedRef
	for i, feed := range feeds {
		if feed == nil {
			continue // fetch failed, keep whatever output a prior run left
		}
		tf := &model.TranslatedFeed{
			FeedID:            entries[i].URL,
			Title:             feed.Title,
			SubscriptionTitle: entries[i].Title,
			SourceURL:         entries[i].URL,
			TargetLang:        p.cfg.TargetLang,
			Items:             items[i],
		}
		name, err := feedout.Write(p.cfg.Output.FeedsDir, tf)
		if err != nil {
			p.log.Error("feed write failed", "feed", tf.Title, "error", err)
			summary.Feeds[i].FeedFailed = true
			continue
		}
		refs = append(refs, opml.TranslatedFeedRef{
			Title:    entries[i].Title,
			Filename: name,
			Lang:     p.cfg.TargetLang,
		})
	}

	doc, err := opml.Rebuild(p.cfg.Output.CollectionName, p.cfg.Output.PublicBaseURL, refs)
	if err != nil {
		return fmt.Errorf("rebuild opml: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.cfg.Output.OPMLPath), 0o755); err != nil {
		return fmt.Errorf("create opml dir: %w", err)
	}
	if err := os.WriteFile(p.cfg.Output.OPMLPath, doc, 0o644); err != nil {
		return fmt.Errorf("write opml: %w", err)
	}
	return nil
}

func (p *Pipeline) logSummary(summary *model.RunSummary) {
	for _, fs := range summary.Feeds {
		p.log.Info("feed done", "feed", fs.Title,
			"translated", fs.Translated, "cached", fs.Cached,
			"partial", fs.Partial, "skipped", fs.Skipped,
			"failed", fs.Failed, "feed_failed", fs.FeedFailed)
	}
	p.log.Info("run finished", "run_id", summary.RunID,
		"feeds", len(summary.Feeds), "failed_feeds", summary.FailedFeeds(),
		"duration", summary.Finished.Sub(summary.Started).Round(time.Millisecond))
}

// keyedLocks serializes work per fingerprint.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() keyedLocks {
	return keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// runMemo shares completed items between duplicate fingerprints within
// one run, covering the degraded no-cache mode too.
type runMemo struct {
	mu    sync.Mutex
	items map[string]*model.TranslatedItem
}

func newRunMemo() runMemo {
	return runMemo{items: make(map[string]*model.TranslatedItem)}
}

func (r *runMemo) get(key string) (*model.TranslatedItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[key]
	return item, ok
}

func (r *runMemo) put(key string, item *model.TranslatedItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key] = item
}
