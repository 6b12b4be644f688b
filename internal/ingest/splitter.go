package ingest

import "strings"

// Splitter defaults matching the ingestion schema the retrieval side
// was tuned against.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 100
)

// Splitter breaks long text into overlapping chunks by recursive
// separator descent: paragraph breaks first, then lines, then
// sentences, then words, then raw runes as a last resort.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a splitter. Non-positive size or overlap fall
// back to the defaults; overlap is clamped below size.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: []string{"\n\n", "\n", ". ", " ", ""},
	}
}

// Split returns the chunks of text, each at most chunkSize runes,
// consecutive chunks sharing roughly overlap runes. Whitespace-only
// input yields no chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := s.split(text, 0)
	return s.merge(pieces)
}

// split recursively breaks text on the separator at depth until every
// piece fits in chunkSize.
func (s *Splitter) split(text string, depth int) []string {
	if len([]rune(text)) <= s.chunkSize {
		return []string{text}
	}
	if depth >= len(s.separators) {
		return s.hardSplit(text)
	}

	sep := s.separators[depth]
	if sep == "" {
		return s.hardSplit(text)
	}

	var out []string
	parts := strings.Split(text, sep)
	for i, part := range parts {
		// Keep the separator attached so merged chunks read naturally.
		if i < len(parts)-1 {
			part += sep
		}
		if part == "" {
			continue
		}
		out = append(out, s.split(part, depth+1)...)
	}
	return out
}

// hardSplit cuts text into chunkSize rune windows when no separator
// can break it down further.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += s.chunkSize {
		end := min(start+s.chunkSize, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// merge packs small pieces into chunks up to chunkSize, carrying the
// tail of each chunk into the next as overlap.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current []rune
	fresh := 0 // runes added since the last flush

	flush := func() {
		trimmed := strings.TrimSpace(string(current))
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		if s.overlap > 0 && len(current) > s.overlap {
			current = append([]rune(nil), current[len(current)-s.overlap:]...)
		} else {
			current = nil
		}
		fresh = 0
	}

	for _, piece := range pieces {
		runes := []rune(piece)
		if fresh > 0 && len(current)+len(runes) > s.chunkSize {
			flush()
		}
		// A near-chunkSize piece can overflow the carried overlap
		// tail; shrink the tail so the chunk stays within bounds.
		if fresh == 0 && len(current)+len(runes) > s.chunkSize {
			keep := max(s.chunkSize-len(runes), 0)
			current = current[len(current)-keep:]
		}
		current = append(current, runes...)
		fresh += len(runes)
	}
	if fresh > 0 {
		flush()
	}
	return chunks
}
