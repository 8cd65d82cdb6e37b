// Package chunker splits normalized document text into bounded, section-aware
// analysis units.
//
// Splitting is hierarchical: whole sections are packed greedily into chunks;
// a section too large for one chunk is split by paragraph, and a paragraph too
// large is split by sentence. A single sentence longer than the limit is
// returned unsplit; that is the one documented exception to the size bound.
//
// Usage:
//
//	c := chunker.New(chunker.Options{MaxChunkSize: 4000})
//	chunks := c.Chunk(doc.Text, sections)
package chunker

import (
	"fmt"
	"strings"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// DefaultMaxChunkSize bounds chunk text length when Options does not.
const DefaultMaxChunkSize = 4000

// Options configures a Chunker.
type Options struct {
	// MaxChunkSize is the maximum chunk text length in bytes (default 4000).
	MaxChunkSize int `json:"max_chunk_size" yaml:"max_chunk_size"`
}

func (o *Options) defaults() {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
}

// Chunker splits text into bounded chunks. Chunking is a pure, synchronous
// transform; a Chunker is safe for concurrent use.
type Chunker struct {
	opts Options
}

// New creates a Chunker with the given options.
func New(opts Options) *Chunker {
	opts.defaults()
	return &Chunker{opts: opts}
}

// piece is an intermediate chunk before index/total annotation.
type piece struct {
	text         string
	heading      string
	continuation bool
}

// Chunk splits text into ordered chunks no longer than MaxChunkSize.
// Sections, when provided, guide the boundaries: whole sections are packed
// greedily, oversized sections are split by paragraph then sentence with
// their heading carried as "{heading} (Part i/n)". Without sections the text
// is packed by paragraph directly. Empty text yields nil.
func (c *Chunker) Chunk(text string, sections []analysis.Section) []analysis.TextChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	max := c.opts.MaxChunkSize
	if len(text) <= max {
		single := []analysis.TextChunk{{Index: 0, TotalChunks: 1, Text: text}}
		if len(sections) == 1 {
			single[0].SectionHeading = sections[0].Heading
		}
		return single
	}

	var pieces []piece
	if len(sections) > 0 {
		pieces = c.packSections(sections)
	} else {
		pieces = c.packUnits(splitParagraphs(text), "")
	}

	chunks := make([]analysis.TextChunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = analysis.TextChunk{
			Index:          i,
			TotalChunks:    len(pieces),
			Text:           p.text,
			SectionHeading: p.heading,
			IsContinuation: p.continuation,
		}
	}
	return chunks
}

// packSections packs whole sections greedily; a section whose body exceeds
// the limit is split on its own and flushed as multiple parts.
func (c *Chunker) packSections(sections []analysis.Section) []piece {
	max := c.opts.MaxChunkSize

	var pieces []piece
	var cur strings.Builder
	var curHeading string

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		pieces = append(pieces, piece{text: cur.String(), heading: curHeading})
		cur.Reset()
		curHeading = ""
	}

	for _, sec := range sections {
		body := strings.TrimSpace(sec.Text)
		if body == "" {
			continue
		}

		if len(body) > max {
			// Oversized section: close the running chunk, then emit the
			// section as annotated parts.
			flush()
			pieces = append(pieces, c.splitSection(sec.Heading, body)...)
			continue
		}

		sep := 0
		if cur.Len() > 0 {
			sep = 2 // "\n\n" joiner between packed sections
		}
		if cur.Len()+sep+len(body) > max {
			flush()
		}
		if cur.Len() == 0 {
			curHeading = sec.Heading
		} else {
			cur.WriteString("\n\n")
		}
		cur.WriteString(body)
	}
	flush()

	return pieces
}

// splitSection breaks one oversized section body into parts, each annotated
// with the section heading plus its part number.
func (c *Chunker) splitSection(heading, body string) []piece {
	parts := c.packUnits(splitParagraphs(body), heading)
	n := len(parts)
	if n <= 1 {
		return parts
	}
	for i := range parts {
		if heading != "" {
			parts[i].heading = fmt.Sprintf("%s (Part %d/%d)", heading, i+1, n)
		}
		parts[i].continuation = i > 0
	}
	return parts
}

// packUnits greedily packs paragraph units into pieces, splitting an
// oversized paragraph into sentences first.
func (c *Chunker) packUnits(paragraphs []string, heading string) []piece {
	max := c.opts.MaxChunkSize

	var units []string
	for _, para := range paragraphs {
		if len(para) <= max {
			units = append(units, para)
			continue
		}
		// Paragraph over the limit: fall back to sentences. A single
		// sentence over the limit stays whole.
		units = append(units, splitSentences(para)...)
	}

	var pieces []piece
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		pieces = append(pieces, piece{text: cur.String(), heading: heading})
		cur.Reset()
	}

	for _, u := range units {
		sep := 0
		if cur.Len() > 0 {
			sep = 1 // " " joiner
		}
		if cur.Len() > 0 && cur.Len()+sep+len(u) > max {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(u)
		if cur.Len() > max {
			// Only possible for a lone unsplittable sentence.
			flush()
		}
	}
	flush()

	return pieces
}

// splitParagraphs splits text on blank lines, trimming each paragraph.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences splits a paragraph after terminal punctuation followed by a
// space. It is deliberately simple: abbreviations may over-split, which only
// produces smaller chunks, never oversized ones.
func splitSentences(para string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(para)-1; i++ {
		ch := para[i]
		if (ch == '.' || ch == '!' || ch == '?') && para[i+1] == ' ' {
			s := strings.TrimSpace(para[start : i+1])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 2
		}
	}
	if start < len(para) {
		s := strings.TrimSpace(para[start:])
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
