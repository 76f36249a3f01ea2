package embed

import (
	"strings"
	"unicode/utf8"
)

// Chunking defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// MinChunkLength is the shortest chunk worth embedding. Shorter pieces are noise.
	MinChunkLength = 50

	// boundaryWindow is how far around the target end we look for a newline or
	// sentence end to snap to.
	boundaryWindow = 100
)

// Chunker splits document text into overlapping segments at natural boundaries.
type Chunker struct {
	size    int
	overlap int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets how many characters consecutive chunks share.
func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a chunker. An overlap that does not fit inside the chunk
// size is reduced to a quarter of it.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Size returns the target chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk returns the trimmed chunks of text, in document order. Chunks shorter
// than MinChunkLength are dropped, so the result may be empty.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	var chunks []string
	for _, w := range c.windows(runes) {
		piece := strings.TrimSpace(string(runes[w.start:w.end]))
		if utf8.RuneCountInString(piece) < MinChunkLength {
			continue
		}
		chunks = append(chunks, piece)
	}
	return chunks
}

type window struct {
	start, end int
}

// windows walks the text with a greedy cursor. end is kept unclamped for the
// cursor arithmetic and clamped only for slicing.
func (c *Chunker) windows(runes []rune) []window {
	n := len(runes)
	snap := boundaryWindow
	if stride := (c.size - c.overlap) / 2; stride < snap {
		snap = stride
	}

	var out []window
	start := 0
	for start < n {
		end := start + c.size
		if end < n && snap > 0 {
			if nl := indexFrom(runes, "\n", end-snap); nl != -1 && nl < end+snap {
				end = nl + 1
			} else if p := indexFrom(runes, ". ", end-snap); p != -1 && p < end+snap {
				end = p + 2
			}
		}

		sliceEnd := end
		if sliceEnd > n {
			sliceEnd = n
		}
		out = append(out, window{start: start, end: sliceEnd})

		next := end - c.overlap
		if next < 0 {
			next = 0
		}
		if next <= start {
			next = start + 1
		}
		start = next
		// The remainder is already inside the last window's overlap.
		if start >= n-c.overlap {
			break
		}
	}
	return out
}

// indexFrom returns the rune index of the first occurrence of sep at or after from.
func indexFrom(runes []rune, sep string, from int) int {
	if from < 0 {
		from = 0
	}
	pattern := []rune(sep)
	for i := from; i+len(pattern) <= len(runes); i++ {
		match := true
		for j, r := range pattern {
			if runes[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
