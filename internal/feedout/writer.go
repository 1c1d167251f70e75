// Package feedout serializes translated feeds back into RSS 2.0 XML.
package feedout

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bryan-buckman/babelfeed/internal/model"
)

// rssDoc mirrors the RSS 2.0 element set the pipeline emits.
type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link,omitempty"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate,omitempty"`
	Description cdata    `xml:"description"`
	Category    []string `xml:"category,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

// Filename returns the deterministic output filename for a
// subscription title and target language.
func Filename(subscriptionTitle, targetLang string) string {
	return model.Slugify(subscriptionTitle) + "." + targetLang + ".xml"
}

// Write serializes the translated feed to dir using its deterministic
// filename, replacing any previous output atomically. Returns the
// filename written. The filename derives from the subscription title,
// not the feed-declared one, so it can be recomputed from the source
// OPML alone.
func Write(dir string, tf *model.TranslatedFeed) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	items := make([]model.TranslatedItem, len(tf.Items))
	copy(items, tf.Items)
	// Restore original feed order regardless of translation completion order.
	sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })

	channelTitle := fmt.Sprintf("%s (Translated → %s)", tf.Title, tf.TargetLang)
	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:         channelTitle,
			Link:          tf.SourceURL,
			Description:   channelTitle,
			LastBuildDate: lastBuildDate(items),
		},
	}
	for _, it := range items {
		ri := rssItem{
			Title:       fmt.Sprintf("[%s] %s", strings.ToUpper(tf.TargetLang), it.Title),
			Link:        it.Link,
			GUID:        rssGUID{IsPermaLink: "false", Value: it.GUID},
			Description: cdata{Value: it.Description},
		}
		if !it.PublishedAt.IsZero() {
			ri.PubDate = it.PublishedAt.UTC().Format(time.RFC1123Z)
		}
		if it.PartiallyTranslated {
			ri.Category = append(ri.Category, "partially_translated")
		}
		doc.Channel.Items = append(doc.Channel.Items, ri)
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal rss: %w", err)
	}
	output = append([]byte(xml.Header), output...)

	name := Filename(tf.SubscriptionTitle, tf.TargetLang)
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, output, 0o644); err != nil {
		return "", fmt.Errorf("write feed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replace feed: %w", err)
	}
	return name, nil
}

// lastBuildDate is derived from the newest entry so unchanged input
// yields byte-identical output across runs.
func lastBuildDate(items []model.TranslatedItem) string {
	var newest time.Time
	for _, it := range items {
		if it.PublishedAt.After(newest) {
			newest = it.PublishedAt
		}
	}
	if newest.IsZero() {
		return ""
	}
	return newest.UTC().Format(time.RFC1123Z)
}

// Description builds the item body: the translation as HTML paragraphs,
// then a bounded original-language snippet for audit.
func Description(translated, original string) string {
	const snippetLen = 600
	snippet := original
	if len(snippet) > snippetLen {
		cut := snippetLen
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut] + "..."
	}
	var b strings.Builder
	b.WriteString("<p><b>Translated:</b></p>")
	b.WriteString(htmlParagraphs(translated))
	b.WriteString("<hr/><p><b>Original snippet:</b></p>")
	b.WriteString(htmlParagraphs(snippet))
	return b.String()
}

func htmlParagraphs(plaintext string) string {
	var b strings.Builder
	for _, line := range strings.Split(plaintext, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(escape(line))
		b.WriteString("</p>")
	}
	return b.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
