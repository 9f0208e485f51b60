package markdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, &Normaliser{}, normaliser)
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".md", ".markdown"}, New().Extensions())
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "headings become blocks",
			input:    "# Title\n## Subtitle\n### Third",
			expected: "Title\n\nSubtitle\n\nThird",
		},
		{
			name:     "emphasis removed",
			input:    "This is **bold** and *italic* text",
			expected: "This is bold and italic text",
		},
		{
			name:     "links keep their text",
			input:    "Click [here](https://example.com)",
			expected: "Click here",
		},
		{
			name:     "autolinks keep the url",
			input:    "See <https://example.com>",
			expected: "See https://example.com",
		},
		{
			name:     "code blocks kept verbatim",
			input:    "Before\n```go\ncode here\n```\nAfter",
			expected: "Before\n\ncode here\n\nAfter",
		},
		{
			name:     "inline code kept",
			input:    "Use `code` here",
			expected: "Use code here",
		},
		{
			name:     "blockquotes unwrapped",
			input:    "> This is a quote",
			expected: "This is a quote",
		},
		{
			name:     "list markers removed",
			input:    "- Item 1\n- Item 2",
			expected: "Item 1\nItem 2",
		},
		{
			name:     "numbered list markers removed",
			input:    "1. First\n2. Second",
			expected: "First\nSecond",
		},
		{
			name:     "soft line breaks preserved",
			input:    "line one\nline two",
			expected: "line one\nline two",
		},
		{
			name:     "thematic breaks dropped",
			input:    "above\n\n---\n\nbelow",
			expected: "above\n\nbelow",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	n := New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, n.PlainText(tc.input))
		})
	}
}

func TestNormalise_ComplexMarkdown(t *testing.T) {
	complexMarkdown := `# Main Title

## Section 1

This is a paragraph with **bold** and *italic* text.

- List item 1
- List item 2
  - Nested item

` + "```go" + `
func main() {
    fmt.Println("Hello, World!")
}
` + "```" + `

[Link](https://example.com)
`
	path := filepath.Join(t.TempDir(), "complex.md")
	require.NoError(t, os.WriteFile(path, []byte(complexMarkdown), 0o644))

	pages, err := New().Normalise(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	content := pages[0].Content
	assert.Contains(t, content, "Main Title")
	assert.NotContains(t, content, "**bold**")
	assert.Contains(t, content, "bold")
	assert.Contains(t, content, "Nested item")
	assert.Contains(t, content, `fmt.Println("Hello, World!")`)
	assert.NotContains(t, content, "```")
	assert.NotContains(t, content, "https://example.com")
	assert.Contains(t, content, "Link")
}

func TestNormalise_MissingFile(t *testing.T) {
	_, err := New().Normalise(context.Background(), filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}

func BenchmarkPlainText(b *testing.B) {
	n := New()
	input := "# Title\n\nSome **bold** text with a [link](https://x.y).\n\n- a\n- b\n"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = n.PlainText(input)
	}
}
