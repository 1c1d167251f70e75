package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Example Journal</title>
<link>https://example.org/</link>
<description>sample</description>
<item>
  <title>With guid</title>
  <guid>tag:example.org,2026:1</guid>
  <link>https://example.org/1</link>
  <description>first body</description>
  <pubDate>Sun, 01 Mar 2026 08:00:00 +0000</pubDate>
</item>
<item>
  <title>Link only</title>
  <link>https://example.org/2</link>
  <content:encoded xmlns:content="http://purl.org/rss/1.0/modules/content/">second body</content:encoded>
</item>
<item>
  <title>No identity at all</title>
  <description>ignored</description>
</item>
<item>
  <title>Over the cap</title>
  <guid>tag:example.org,2026:4</guid>
  <description>fourth body</description>
</item>
</channel></rss>`

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFeed(t *testing.T) {
	srv := serveFeed(t, sampleRSS)
	f := NewFetcher("test/1.0", 0)
	res, err := f.FetchFeed(context.Background(), srv.URL, "Subscription Title")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Title != "Example Journal" {
		t.Errorf("title = %q, want feed-declared title", res.Title)
	}
	if len(res.Articles) != 3 {
		t.Fatalf("articles = %d, want 3 (identity-less item dropped)", len(res.Articles))
	}

	first := res.Articles[0]
	if first.GUID != "tag:example.org,2026:1" || first.Summary != "first body" {
		t.Errorf("first article = %+v", first)
	}
	if first.PublishedAt.IsZero() {
		t.Error("first article pubDate not parsed")
	}
	if first.FeedID != srv.URL {
		t.Errorf("feed id = %q, want subscription url", first.FeedID)
	}

	second := res.Articles[1]
	if second.GUID != "https://example.org/2" {
		t.Errorf("guid fallback to link failed: %q", second.GUID)
	}
	if second.Summary != "second body" {
		t.Errorf("content fallback failed: %q", second.Summary)
	}

	if res.Articles[0].Index != 0 || res.Articles[1].Index != 1 {
		t.Error("indexes must follow feed order")
	}
}

func TestFetchFeedCapsItems(t *testing.T) {
	srv := serveFeed(t, sampleRSS)
	f := NewFetcher("test/1.0", 2)
	res, err := f.FetchFeed(context.Background(), srv.URL, "t")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Articles) != 2 {
		t.Errorf("articles = %d, want 2", len(res.Articles))
	}
}

func TestFetchFeedKeepsSubscriptionTitle(t *testing.T) {
	body := `<?xml version="1.0"?><rss version="2.0"><channel>
<title></title><link>https://example.org/</link><description>d</description>
<item><guid>g</guid><title>x</title><description>b</description></item>
</channel></rss>`
	srv := serveFeed(t, body)
	f := NewFetcher("test/1.0", 0)
	res, err := f.FetchFeed(context.Background(), srv.URL, "Subscription Title")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Title != "Subscription Title" {
		t.Errorf("title = %q, want subscription fallback", res.Title)
	}
}

func TestFetchFeedBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	f := NewFetcher("test/1.0", 0)
	if _, err := f.FetchFeed(context.Background(), srv.URL, "t"); err == nil {
		t.Error("fetch of a failing feed must error")
	}
}
