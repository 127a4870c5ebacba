//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt is true in binaries compiled with in-process llama support.
const llamaBuilt = true

// llamaTokenizer counts tokens with the vocabulary of a local GGUF model.
// The model is loaded lazily on first use and shared across calls.
type llamaTokenizer struct {
	path    string
	ctxSize int

	once   sync.Once
	mu     sync.Mutex
	model  *llama.LLama
	err    error
	closed bool
}

// NewLlamaTokenizer returns a Tokenizer backed by go-llama.cpp.
func NewLlamaTokenizer(modelPath string, ctxSize int) (Tokenizer, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("tokenizer model path is empty")
	}
	return &llamaTokenizer{path: modelPath, ctxSize: ctxSize}, nil
}

func (t *llamaTokenizer) load() {
	opts := []llama.ModelOption{}
	if t.ctxSize > 0 {
		opts = append(opts, llama.SetContext(t.ctxSize))
	}
	t.model, t.err = llama.New(t.path, opts...)
}

func (t *llamaTokenizer) Count(ctx context.Context, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrTokenizerClosed
	}
	t.once.Do(t.load)
	if t.err != nil {
		return 0, t.err
	}
	n, _, err := t.model.TokenizeString(text)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close frees the loaded model. Count fails with ErrTokenizerClosed afterwards.
func (t *llamaTokenizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.model != nil {
		t.model.Free()
		t.model = nil
	}
	return nil
}
