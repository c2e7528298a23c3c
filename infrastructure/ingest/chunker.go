// Package ingest turns legislation text files into knowledge chunks and
// watches the source directory for changes.
package ingest

import (
	"strings"
	"unicode"
)

// Default chunking parameters, in words.
const (
	DefaultChunkSize    = 256
	DefaultChunkOverlap = 20
)

// Chunker splits text into overlapping chunks of at most Size words,
// breaking on sentence boundaries where possible.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a chunker. Non-positive sizes fall back to the
// defaults and the overlap is kept below the size.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split returns the chunks of text. Blank text yields none.
func (c Chunker) Split(text string) []string {
	var (
		chunks  []string
		current []string
		fresh   int // words added since the last flush, overlap excluded
	)
	flush := func() {
		if fresh == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))
		if c.Overlap > 0 && len(current) > c.Overlap {
			current = append([]string(nil), current[len(current)-c.Overlap:]...)
		} else if c.Overlap == 0 {
			current = nil
		}
		fresh = 0
	}

	for _, sentence := range sentences(text) {
		words := strings.Fields(sentence)
		if len(current)+len(words) > c.Size {
			flush()
		}
		for len(words) > 0 {
			room := c.Size - len(current)
			if room <= 0 {
				flush()
				room = c.Size - len(current)
			}
			n := min(room, len(words))
			current = append(current, words[:n]...)
			fresh += n
			words = words[n:]
		}
	}
	flush()
	return chunks
}

// sentences splits on terminal punctuation followed by a space and on
// blank lines.
func sentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		end := false
		switch r {
		case '.', '!', '?', ';':
			end = i+1 == len(runes) || unicode.IsSpace(runes[i+1])
		case '\n':
			end = i+1 < len(runes) && runes[i+1] == '\n'
		}
		if end {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}
