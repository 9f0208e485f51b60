package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// DefaultSeparators are tried in order: paragraph break, line break,
// sentence end, word boundary, then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// Splitter cuts text into chunks of at most chunkSize characters where each
// chunk starts with the last overlap characters of the previous one.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a splitter for the size policy. An invalid overlap is
// reduced to a quarter of the chunk size.
func NewSplitter(policy domain.SizePolicy, separators []string) *Splitter {
	s := &Splitter{
		chunkSize:  policy.ChunkSize,
		overlap:    policy.ChunkOverlap,
		separators: separators,
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.overlap < 0 || s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	if len(s.separators) == 0 {
		s.separators = DefaultSeparators
	}
	return s
}

// ChunkSize returns the maximum chunk length in characters.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the overlap in characters.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split returns the chunks of text. Text no longer than the chunk size is
// returned whole; blank text yields nothing.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	// Bodies leave room for the overlap prefix so that prefix+body fits.
	step := s.chunkSize - s.overlap
	bodies := merge(s.pieces(text, s.separators, step), step)

	chunks := make([]string, 0, len(bodies))
	var prev []rune
	for _, body := range bodies {
		if strings.TrimSpace(body) == "" {
			continue
		}
		chunk := body
		if prev != nil {
			from := len(prev) - s.overlap
			if from < 0 {
				from = 0
			}
			chunk = string(prev[from:]) + body
		}
		chunks = append(chunks, chunk)
		prev = []rune(chunk)
	}
	return chunks
}

// pieces recursively breaks text at the first separator present until every
// piece is at most limit characters. Concatenating the pieces yields text.
func (s *Splitter) pieces(text string, separators []string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	sep, rest, ok := pickSeparator(text, separators)
	if !ok {
		return hardSplit(text, limit)
	}

	var out []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= limit {
			out = append(out, part)
			continue
		}
		out = append(out, s.pieces(part, rest, limit)...)
	}
	return out
}

// pickSeparator returns the first non-empty separator occurring in text and
// the lower-priority separators after it. ok is false when only a character
// split remains.
func pickSeparator(text string, separators []string) (sep string, rest []string, ok bool) {
	for i, candidate := range separators {
		if candidate == "" {
			return "", nil, false
		}
		if strings.Contains(text, candidate) {
			return candidate, separators[i+1:], true
		}
	}
	return "", nil, false
}

// hardSplit cuts text every limit characters.
func hardSplit(text string, limit int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// merge greedily joins adjacent pieces while the result stays within limit.
func merge(pieces []string, limit int) []string {
	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+n > limit {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		cur.WriteString(p)
		curLen += n
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}
