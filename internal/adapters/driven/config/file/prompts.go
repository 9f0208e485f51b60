package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Qingzhee/rag-engine/internal/core/ports/driven"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves the answer, compress, summarize and condense templates
// from <dir>/<name>.txt. Missing files are seeded with the built-in
// templates on first use. A file that lost a required placeholder is
// ignored in favour of the built-in template.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore creates a store over dir, ~/.ragengine/prompts when empty.
// Nothing is written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		base, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the template for name.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, known := driven.DefaultPrompts()[name]

	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		if known {
			return builtin, nil
		}
		return "", fmt.Errorf("prompt %q: %w", name, s.seedErr)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	text, err := s.read(name)
	switch {
	case err != nil && !known:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	case err != nil:
		text = builtin
	default:
		if missing := driven.MissingPlaceholders(name, text); len(missing) > 0 {
			logger.Warn("prompt %s: %s is missing %s, using the built-in template",
				name, s.path(name), strings.Join(missing, ", "))
			text = builtin
		}
	}

	s.mu.Lock()
	if prev, ok := s.cache[name]; ok {
		text = prev
	} else {
		s.cache[name] = text
	}
	s.mu.Unlock()
	return text, nil
}

// Reload drops cached templates so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// seed writes the built-in templates that do not exist yet, and a README.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	for name, text := range driven.DefaultPrompts() {
		if err := writeIfMissing(s.path(name), text); err != nil {
			s.seedErr = fmt.Errorf("seed prompt %q: %w", name, err)
			return
		}
	}
	s.seedErr = s.createReadme()
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0600)
}

// createReadme explains the directory to whoever opens it.
func (s *PromptStore) createReadme() error {
	return writeIfMissing(filepath.Join(s.dir, "README.md"), readme)
}

const readme = `# Prompts

This directory contains the prompt templates used to answer questions
about your documents.

## Files

- ` + "`answer.txt`" + ` - Answers the question from the retrieved context
- ` + "`compress.txt`" + ` - Extracts the relevant part of each retrieved chunk
- ` + "`summarize.txt`" + ` - Folds old conversation turns into a running summary
- ` + "`condense.txt`" + ` - Rewrites a follow-up into a standalone question

## Customisation

Edit any file to customise the behaviour. Changes take effect on the next
command, or after restarting ` + "`ragengine serve`" + `.

## Placeholders

Templates use named placeholders in braces:
- ` + "`{context}`" + `, ` + "`{question}`" + ` - answer and compress
- ` + "`{summary}`" + `, ` + "`{new_lines}`" + ` - summarize
- ` + "`{chat_history}`" + `, ` + "`{question}`" + ` - condense

The compress prompt must tell the model to reply ` + "`NO_OUTPUT`" + ` when
nothing in the chunk is relevant. A template that loses a required
placeholder is ignored and the built-in template is used instead.
`
