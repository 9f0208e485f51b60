package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

func sentences(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("Sentence number %d talks about retrieval and memory budgets.", i)
	}
	return strings.Join(parts, " ")
}

func assertOverlap(t *testing.T, chunks []string, overlap int) {
	t.Helper()
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		from := len(prev) - overlap
		if from < 0 {
			from = 0
		}
		tail := string(prev[from:])
		if !strings.HasPrefix(chunks[i], tail) {
			t.Fatalf("chunk %d does not start with the trailing %d characters of chunk %d", i, overlap, i-1)
		}
	}
}

func assertMaxLen(t *testing.T, chunks []string, max int) {
	t.Helper()
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > max {
			t.Fatalf("chunk %d has %d characters, limit %d", i, n, max)
		}
	}
}

func TestNewSplitter(t *testing.T) {
	t.Run("policy values", func(t *testing.T) {
		s := NewSplitter(domain.SizePolicy{ChunkSize: 500, ChunkOverlap: 50}, nil)
		if s.ChunkSize() != 500 || s.Overlap() != 50 {
			t.Errorf("expected 500/50, got %d/%d", s.ChunkSize(), s.Overlap())
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		s := NewSplitter(domain.SizePolicy{ChunkSize: 100, ChunkOverlap: 150}, nil)
		if s.Overlap() >= s.ChunkSize() {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero size uses default", func(t *testing.T) {
		s := NewSplitter(domain.SizePolicy{}, nil)
		if s.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected default chunk size, got %d", s.ChunkSize())
		}
	})
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	s := NewSplitter(domain.SizePolicy{ChunkSize: 800, ChunkOverlap: 100}, nil)
	text := strings.Repeat("x", 800)

	chunks := s.Split(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("expected the text as a single chunk, got %d chunks", len(chunks))
	}
}

func TestSplit_BlankText(t *testing.T) {
	s := NewSplitter(domain.SizePolicy{ChunkSize: 10, ChunkOverlap: 2}, nil)
	if got := s.Split(" \n\n\t "); got != nil {
		t.Errorf("expected no chunks, got %q", got)
	}
}

func TestSplit_OverlapInvariant(t *testing.T) {
	policies := []domain.SizePolicy{
		{ChunkSize: 800, ChunkOverlap: 100},
		{ChunkSize: 1200, ChunkOverlap: 150},
		{ChunkSize: 120, ChunkOverlap: 30},
	}
	text := sentences(200)

	for _, policy := range policies {
		t.Run(fmt.Sprintf("%d/%d", policy.ChunkSize, policy.ChunkOverlap), func(t *testing.T) {
			s := NewSplitter(policy, nil)
			chunks := s.Split(text)
			if len(chunks) < 2 {
				t.Fatalf("expected several chunks, got %d", len(chunks))
			}
			assertMaxLen(t, chunks, policy.ChunkSize)
			assertOverlap(t, chunks, policy.ChunkOverlap)
		})
	}
}

func TestSplit_Lossless(t *testing.T) {
	policy := domain.SizePolicy{ChunkSize: 300, ChunkOverlap: 40}
	s := NewSplitter(policy, nil)
	text := sentences(60)

	chunks := s.Split(text)

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		prev := utf8.RuneCountInString(chunks[i-1])
		skip := policy.ChunkOverlap
		if prev < skip {
			skip = prev
		}
		rebuilt.WriteString(string([]rune(chunks[i])[skip:]))
	}
	if rebuilt.String() != text {
		t.Error("chunks minus overlaps should reproduce the input")
	}
}

func TestSplit_PrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("word ", 30) // 150 characters
	text := para + "\n\n" + para + "\n\n" + para
	s := NewSplitter(domain.SizePolicy{ChunkSize: 200, ChunkOverlap: 20}, nil)

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected one chunk per paragraph, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Errorf("first chunk should end at the paragraph break, got %q", chunks[0][len(chunks[0])-10:])
	}
}

func TestSplit_NoSeparatorsFallsBackToCharacters(t *testing.T) {
	s := NewSplitter(domain.SizePolicy{ChunkSize: 800, ChunkOverlap: 100}, nil)
	chunks := s.Split(strings.Repeat("a", 2000))

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	assertMaxLen(t, chunks, 800)
	assertOverlap(t, chunks, 100)
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	s := NewSplitter(domain.SizePolicy{ChunkSize: 50, ChunkOverlap: 5}, nil)
	text := strings.Repeat("résumé ", 20)

	chunks := s.Split(text)
	assertMaxLen(t, chunks, 50)
	assertOverlap(t, chunks, 5)
	for _, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatal("chunk split inside a multi-byte character")
		}
	}
}

func TestProcessor_Name(t *testing.T) {
	p := New(domain.DefaultConfig().Chunking)
	if p.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", p.Name())
	}
}

func TestProcessor_SizePolicySwitch(t *testing.T) {
	p := New(domain.DefaultConfig().Chunking)
	base := strings.Repeat("abcd ", 1000) // exactly the threshold

	t.Run("at threshold uses default policy", func(t *testing.T) {
		if got := p.SplitterFor(len(base)).ChunkSize(); got != 800 {
			t.Errorf("expected 800, got %d", got)
		}
		doc := &domain.SourceDocument{File: domain.SourceFile{Key: "a.txt"}, Pages: []domain.Page{{Content: base}}}
		chunks, err := p.Process(context.Background(), doc, nil)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range chunks {
			if c.Metadata.Length > 800 {
				t.Fatalf("chunk of %d characters exceeds default policy", c.Metadata.Length)
			}
		}
	})

	t.Run("one past threshold uses large policy", func(t *testing.T) {
		text := base + "x"
		if got := p.SplitterFor(len(text)).ChunkSize(); got != 1200 {
			t.Errorf("expected 1200, got %d", got)
		}
		doc := &domain.SourceDocument{File: domain.SourceFile{Key: "a.txt"}, Pages: []domain.Page{{Content: text}}}
		chunks, err := p.Process(context.Background(), doc, nil)
		if err != nil {
			t.Fatal(err)
		}
		longest := 0
		for _, c := range chunks {
			if c.Metadata.Length > longest {
				longest = c.Metadata.Length
			}
		}
		if longest <= 800 || longest > 1200 {
			t.Errorf("expected large-policy chunks, longest was %d", longest)
		}
	})
}

func TestProcessor_StampsMetadata(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	p := New(domain.ChunkingSettings{
		Default:        domain.SizePolicy{ChunkSize: 100, ChunkOverlap: 10},
		Large:          domain.SizePolicy{ChunkSize: 200, ChunkOverlap: 20},
		LargeThreshold: 5000,
	}, WithClock(func() time.Time { return at }))

	doc := &domain.SourceDocument{
		File: domain.SourceFile{Key: "docs/guide.pdf", Fingerprint: "abc123", Size: 4096},
		Pages: []domain.Page{
			{Content: sentences(5), Number: 1},
			{Content: "Short page.", Number: 2},
		},
	}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	last := chunks[len(chunks)-1]
	if last.Metadata.Page != 2 || last.Metadata.ChunkIndex != 0 || last.Metadata.TotalChunks != 1 {
		t.Errorf("unexpected metadata for page 2 chunk: %+v", last.Metadata)
	}

	firstPageTotal := chunks[0].Metadata.TotalChunks
	for i, c := range chunks {
		if c.Metadata.Sequence != i {
			t.Errorf("chunk %d: expected sequence %d, got %d", i, i, c.Metadata.Sequence)
		}
		if c.ID != PointID("docs/guide.pdf", i) {
			t.Errorf("chunk %d: id is not the deterministic point id", i)
		}
		if c.Metadata.SourceFile != "docs/guide.pdf" || c.Metadata.FileHash != "abc123" || c.Metadata.FileSize != 4096 {
			t.Errorf("chunk %d: missing file provenance: %+v", i, c.Metadata)
		}
		if !c.Metadata.IngestedAt.Equal(at) {
			t.Errorf("chunk %d: expected ingestion time %v, got %v", i, at, c.Metadata.IngestedAt)
		}
		if c.Metadata.Length != utf8.RuneCountInString(c.Content) {
			t.Errorf("chunk %d: length mismatch", i)
		}
		if c.Metadata.Page == 1 && c.Metadata.TotalChunks != firstPageTotal {
			t.Errorf("chunk %d: total count should be per page", i)
		}
	}
}

func TestProcessor_CancelledContext(t *testing.T) {
	p := New(domain.DefaultConfig().Chunking)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, &domain.SourceDocument{Pages: []domain.Page{{Content: "text"}}}, nil)
	if err == nil {
		t.Error("expected context error")
	}
}

func TestPointID_Deterministic(t *testing.T) {
	if PointID("a.txt", 0) != PointID("a.txt", 0) {
		t.Error("point id should be stable")
	}
	if PointID("a.txt", 0) == PointID("a.txt", 1) || PointID("a.txt", 0) == PointID("b.txt", 0) {
		t.Error("point ids should differ across files and sequences")
	}
}
