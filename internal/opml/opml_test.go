package opml

import (
	"strings"
	"testing"
)

const sampleOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline text="World">
      <outline text="Le Monde" type="rss" xmlUrl="https://lemonde.fr/rss.xml" htmlUrl="https://lemonde.fr"/>
      <outline text="Der Spiegel" type="rss" xmlUrl="https://spiegel.de/rss.xml"/>
    </outline>
    <outline text="Asahi Shimbun" type="rss" xmlUrl="https://asahi.com/rss.xml"/>
    <outline text="Dup" type="rss" xmlUrl="https://lemonde.fr/rss.xml"/>
  </body>
</opml>`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleOPML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (duplicate URL collapsed), got %d", len(entries))
	}
	if entries[0].Title != "Le Monde" || entries[0].URL != "https://lemonde.fr/rss.xml" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[2].Title != "Asahi Shimbun" {
		t.Errorf("root-level feed missing, got %+v", entries[2])
	}
}

func TestParseFallsBackToText(t *testing.T) {
	doc := `<opml version="2.0"><body><outline text="Named" xmlUrl="https://x.com/f"/></body></opml>`
	entries, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if entries[0].Title != "Named" {
		t.Errorf("title = %q, want Named", entries[0].Title)
	}
}

func TestSanitizeControlChars(t *testing.T) {
	raw := []byte("<opml>\x00\x08ok\x1f</opml>\n")
	got := string(Sanitize(raw))
	if got != "<opml>ok</opml>\n" {
		t.Errorf("Sanitize = %q", got)
	}
}

func TestSanitizeBareAmpersands(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`<outline text="News & Views"/>`, `<outline text="News &amp; Views"/>`},
		{`already &amp; escaped`, `already &amp; escaped`},
		{`numeric &#38; entity`, `numeric &#38; entity`},
		{`hex &#x26; entity`, `hex &#x26; entity`},
		{`trailing &`, `trailing &amp;`},
	}
	for _, tt := range tests {
		if got := string(Sanitize([]byte(tt.in))); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSanitizesRealWorldExport(t *testing.T) {
	dirty := `<opml version="2.0"><body><outline text="Q&A Weekly" type="rss" xmlUrl="https://q.com/rss?a=1&b=2"/></body></opml>`
	entries, err := Parse(strings.NewReader(dirty))
	if err != nil {
		t.Fatalf("parse dirty opml: %v", err)
	}
	if entries[0].URL != "https://q.com/rss?a=1&b=2" {
		t.Errorf("url = %q", entries[0].URL)
	}
	if entries[0].Title != "Q&A Weekly" {
		t.Errorf("title = %q", entries[0].Title)
	}
}

func TestRebuild(t *testing.T) {
	refs := []TranslatedFeedRef{
		{Title: "Le Monde", Filename: "le-monde.en.xml", Lang: "en"},
		{Title: "Der Spiegel", Filename: "der-spiegel.en.xml", Lang: "en"},
	}
	doc, err := Rebuild("Translated Feeds", "https://feeds.example.com/", refs)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// The result must itself parse, with urls under the base.
	entries, err := Parse(strings.NewReader(string(doc)))
	if err != nil {
		t.Fatalf("reparse rebuilt opml: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].URL != "https://feeds.example.com/le-monde.en.xml" {
		t.Errorf("url = %q", entries[0].URL)
	}
	if entries[0].Title != "Le Monde (EN translated)" {
		t.Errorf("title = %q", entries[0].Title)
	}
	// Grouping: collection outline then one folder per feed.
	for _, want := range []string{`text="Translated Feeds"`, `text="Le Monde"`, `text="Der Spiegel"`} {
		if !strings.Contains(string(doc), want) {
			t.Errorf("rebuilt opml missing %s", want)
		}
	}
}
