package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

type fakeNormaliser struct {
	name string
	exts []string
}

func (f *fakeNormaliser) Extensions() []string { return f.exts }
func (f *fakeNormaliser) Normalise(_ context.Context, _ string) ([]domain.Page, error) {
	return []domain.Page{{Content: f.name}}, nil
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeNormaliser{name: "text", exts: []string{".txt", "TEXT"}})

	n, err := r.Get(".TXT")
	require.NoError(t, err)
	pages, _ := n.Normalise(context.Background(), "x")
	assert.Equal(t, "text", pages[0].Content)

	_, err = r.Get("text")
	assert.NoError(t, err)

	_, err = r.Get(".pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeNormaliser{name: "first", exts: []string{".md"}})
	r.Register(&fakeNormaliser{name: "second", exts: []string{".md"}})

	n, err := r.Get(".md")
	require.NoError(t, err)
	pages, _ := n.Normalise(context.Background(), "x")
	assert.Equal(t, "second", pages[0].Content)
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	exts := r.Extensions()

	for _, ext := range domain.DefaultConfig().Ingestion.Extensions {
		assert.Contains(t, exts, ext)
	}
	assert.IsIncreasing(t, exts)
}
