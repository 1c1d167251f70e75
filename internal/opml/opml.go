// Package opml handles reading subscription OPML files and rebuilding
// the OPML that points at the translated feeds.
package opml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (folder or feed).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// FeedEntry represents a flattened feed subscription. Folder grouping
// from the source document is discarded; the rebuilt OPML uses its own
// per-feed folders.
type FeedEntry struct {
	Title string
	URL   string
}

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// entityRE matches the tail of a valid XML entity after '&'.
var entityRE = regexp.MustCompile(`^(?:amp|lt|gt|quot|apos);|^#[0-9]+;|^#x[0-9A-Fa-f]+;`)

// Sanitize cleans a real-world OPML export so it parses as XML: strips
// C0 control characters (keeping \t \r \n) and escapes bare ampersands
// that are not part of a valid entity.
func Sanitize(raw []byte) []byte {
	raw = controlChars.ReplaceAll(raw, nil)

	var out bytes.Buffer
	out.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '&' {
			out.WriteByte(raw[i])
			continue
		}
		rest := raw[i+1:]
		if entityRE.Match(rest) {
			out.WriteByte('&')
		} else {
			out.WriteString("&amp;")
		}
	}
	return out.Bytes()
}

// Parse reads a sanitized OPML document and returns a flat list of
// FeedEntry, deduplicated by URL preserving first occurrence.
func Parse(r io.Reader) ([]FeedEntry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read opml: %w", err)
	}
	var doc OPML
	if err := xml.Unmarshal(Sanitize(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}

	var entries []FeedEntry
	seen := make(map[string]bool)
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				if seen[o.XMLURL] {
					continue
				}
				seen[o.XMLURL] = true
				title := o.Title
				if title == "" {
					title = o.Text
				}
				if title == "" {
					title = "Feed"
				}
				entries = append(entries, FeedEntry{Title: title, URL: o.XMLURL})
			} else if len(o.Outlines) > 0 {
				walk(o.Outlines)
			}
		}
	}
	walk(doc.Body.Outlines)
	return entries, nil
}

// TranslatedFeedRef links a source feed title to its translated output file.
type TranslatedFeedRef struct {
	Title    string
	Filename string
	Lang     string
}

// Rebuild generates the OPML that a feed reader imports: one collection
// outline containing, per source feed, a folder outline with the
// translated feed pointing at baseURL + filename. baseURL must end in "/".
func Rebuild(collectionName, baseURL string, refs []TranslatedFeedRef) ([]byte, error) {
	root := Outline{Text: collectionName}
	for _, ref := range refs {
		folder := Outline{
			Text: ref.Title,
			Outlines: []Outline{{
				Text:   fmt.Sprintf("%s (%s translated)", ref.Title, strings.ToUpper(ref.Lang)),
				Type:   "rss",
				XMLURL: baseURL + ref.Filename,
			}},
		}
		root.Outlines = append(root.Outlines, folder)
	}

	doc := OPML{
		Version: "2.0",
		Head:    Head{Title: collectionName},
		Body:    Body{Outlines: []Outline{root}},
	}
	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
