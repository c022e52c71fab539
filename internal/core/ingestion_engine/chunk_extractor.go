package ingestion_engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/Procura/internal/core"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators go from paragraph to character level. The empty
// separator means "cut anywhere".
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// ChunkerOptions configure the recursive splitter. Sizes count characters
// (runes), not bytes.
type ChunkerOptions struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// Segment is a chunk plus its byte offset in the source text.
type Segment struct {
	Text   string
	Offset int
}

// RecursiveChunker splits text on the coarsest separator that keeps every
// chunk under ChunkSize, falling back to finer separators for oversize
// pieces. Separators stay attached to the piece before them, so no input
// character is dropped.
type RecursiveChunker struct {
	size       int
	overlap    int
	separators []string
}

var _ core.Chunker = (*RecursiveChunker)(nil)

func NewRecursiveChunker(opts ChunkerOptions) (*RecursiveChunker, error) {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Separators == nil {
		opts.Separators = DefaultSeparators
	}
	if opts.ChunkSize < 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", opts.ChunkSize, opts.Overlap)
	}
	return &RecursiveChunker{
		size:       opts.ChunkSize,
		overlap:    opts.Overlap,
		separators: opts.Separators,
	}, nil
}

// Split returns the chunk texts, skipping whitespace-only chunks.
func (c *RecursiveChunker) Split(text string) []string {
	segs := c.SplitWithOffsets(text)
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		out = append(out, s.Text)
	}
	return out
}

// SplitWithOffsets returns every chunk with its byte offset. Consecutive
// segments overlap by at most Overlap characters and never leave a gap.
func (c *RecursiveChunker) SplitWithOffsets(text string) []Segment {
	if text == "" {
		return nil
	}
	return c.split(Segment{Text: text}, c.separators)
}

func (c *RecursiveChunker) split(in Segment, separators []string) []Segment {
	if runeLen(in.Text) <= c.size {
		return []Segment{in}
	}

	sep, rest, ok := pickSeparator(in.Text, separators)
	if !ok {
		return c.windows(in)
	}

	var (
		out     []Segment
		pending []Segment
	)
	offset := in.Offset
	for _, piece := range strings.SplitAfter(in.Text, sep) {
		if piece == "" {
			continue
		}
		seg := Segment{Text: piece, Offset: offset}
		offset += len(piece)

		if runeLen(piece) <= c.size {
			pending = append(pending, seg)
			continue
		}
		out = append(out, c.merge(pending)...)
		pending = nil
		out = append(out, c.split(seg, rest)...)
	}
	return append(out, c.merge(pending)...)
}

// merge packs consecutive pieces into chunks of at most size characters.
// Each new chunk starts with a tail of whole pieces from the previous one,
// no longer than overlap.
func (c *RecursiveChunker) merge(pieces []Segment) []Segment {
	var (
		out    []Segment
		cur    []Segment
		curLen int
	)
	for _, p := range pieces {
		n := runeLen(p.Text)
		if len(cur) > 0 && curLen+n > c.size {
			out = append(out, join(cur))
			for len(cur) > 0 && (curLen > c.overlap || curLen+n > c.size) {
				curLen -= runeLen(cur[0].Text)
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		curLen += n
	}
	if len(cur) > 0 {
		out = append(out, join(cur))
	}
	return out
}

// windows cuts text into fixed rune windows advancing by size-overlap.
func (c *RecursiveChunker) windows(in Segment) []Segment {
	// byte index of every rune start, plus the end.
	idx := make([]int, 0, len(in.Text)+1)
	for i := range in.Text {
		idx = append(idx, i)
	}
	n := len(idx)
	idx = append(idx, len(in.Text))

	step := c.size - c.overlap
	var out []Segment
	for start := 0; ; start += step {
		end := min(start+c.size, n)
		out = append(out, Segment{
			Text:   in.Text[idx[start]:idx[end]],
			Offset: in.Offset + idx[start],
		})
		if end == n {
			return out
		}
	}
}

// pickSeparator returns the first separator present in text and the
// separators after it. The empty separator never splits.
func pickSeparator(text string, separators []string) (string, []string, bool) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil, false
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:], true
		}
	}
	return "", nil, false
}

// join concatenates contiguous segments.
func join(segs []Segment) Segment {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return Segment{Text: b.String(), Offset: segs[0].Offset}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
