package tokenizer

import (
	"errors"
	"testing"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
)

func TestApproxCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace", "  \n\t ", 0},
		{"short word", "hi", 1},
		{"four letters", "word", 1},
		{"five letters", "words", 2},
		{"sentence", "The cat sat.", 4},
		{"punctuation only", "?!", 2},
		{"unicode", "café über", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, approxCount(tt.text))
		})
	}
}

func TestApprox_Deterministic(t *testing.T) {
	tok := NewApprox()
	text := "Conversation memory is bounded by a token budget."

	assert.Equal(t, ApproxName, tok.Name())
	assert.Equal(t, tok.Count(text), tok.Count(text))
	assert.Greater(t, tok.Count(text+" More words here."), tok.Count(text))
}

func TestNew_FallsBackWhenEncodingUnavailable(t *testing.T) {
	orig := getEncoding
	t.Cleanup(func() { getEncoding = orig })

	var requested string
	getEncoding = func(name string) (*tiktoken.Tiktoken, error) {
		requested = name
		return nil, errors.New("offline")
	}

	tok := New("")

	assert.Equal(t, DefaultEncoding, requested)
	assert.Equal(t, ApproxName, tok.Name())
	assert.Equal(t, 2, tok.Count("hello"))
}

func TestNew_UsesEncoding(t *testing.T) {
	tok := New(DefaultEncoding)

	assert.Equal(t, DefaultEncoding, tok.Name())
	assert.Equal(t, 2, tok.Count("hello world"))
	assert.Zero(t, tok.Count(""))
}

func TestNew_UnknownEncoding(t *testing.T) {
	tok := New("no_such_base")

	assert.Equal(t, ApproxName, tok.Name())
	assert.Equal(t, 4, tok.Count("hello, all"))
}
