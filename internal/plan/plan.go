// Package plan decides and executes the translation strategy for one
// article: translate whole, chunk and reassemble, or summarize first.
package plan

import (
	"strings"
	"unicode/utf8"
)

// Kind is the chosen strategy for one article.
type Kind int

const (
	// TranslateWhole sends the text as a single request.
	TranslateWhole Kind = iota
	// ChunkAndTranslate splits into bounded chunks, translates each
	// independently and reassembles in original order.
	ChunkAndTranslate
	// SummarizeThenTranslate summarizes overlong text first, then
	// translates the summary.
	SummarizeThenTranslate
)

func (k Kind) String() string {
	switch k {
	case ChunkAndTranslate:
		return "chunk"
	case SummarizeThenTranslate:
		return "summarize"
	default:
		return "whole"
	}
}

// Plan is a translation plan: the strategy plus the ordered text spans
// to send to the provider.
type Plan struct {
	Kind   Kind
	Limit  int // L: max chars per provider request
	Chunks []string
}

// lookback bounds how far back from the hard limit we search for a
// sentence boundary before giving up and cutting at the limit.
const lookback = 500

// Build chooses the strategy for text given the provider request limit
// and the summarize factor K (summarize above K*limit chars).
func Build(text string, limit, factor int) Plan {
	text = strings.TrimSpace(text)
	switch {
	case len(text) <= limit:
		return Plan{Kind: TranslateWhole, Limit: limit, Chunks: []string{text}}
	case len(text) <= factor*limit:
		return Plan{Kind: ChunkAndTranslate, Limit: limit, Chunks: split(text, limit)}
	default:
		return Plan{Kind: SummarizeThenTranslate, Limit: limit, Chunks: []string{text}}
	}
}

// split cuts text into ordered chunks of at most limit bytes, breaking
// at paragraph boundaries where possible, then at sentence boundaries
// within the lookback window, then at the hard limit.
func split(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		if para == "" {
			continue
		}
		// Paragraph fits into the current chunk with a separator.
		need := len(para)
		if cur.Len() > 0 {
			need += 2
		}
		if cur.Len()+need <= limit {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
			continue
		}
		flush()
		if len(para) <= limit {
			cur.WriteString(para)
			continue
		}
		// Oversized paragraph: cut at sentence boundaries.
		for len(para) > limit {
			cut := boundary(para, limit)
			if chunk := strings.TrimSpace(para[:cut]); chunk != "" {
				chunks = append(chunks, chunk)
			}
			para = strings.TrimSpace(para[cut:])
		}
		if para != "" {
			cur.WriteString(para)
		}
	}
	flush()
	return chunks
}

// boundary returns the byte offset to cut at, preferring the last
// sentence end within the lookback window before limit, else the last
// rune boundary at or before limit.
func boundary(s string, limit int) int {
	window := limit - lookback
	if window < 0 {
		window = 0
	}
	best := -1
	for i := window; i < limit && i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 >= len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				best = i + 1
			}
		case '\n':
			best = i + 1
		}
	}
	if best > 0 {
		return best
	}
	// Hard cut, but never in the middle of a UTF-8 sequence.
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		// The limit is narrower than the first rune. Cut after it so the
		// caller always consumes at least one rune.
		_, cut = utf8.DecodeRuneInString(s)
	}
	return cut
}
