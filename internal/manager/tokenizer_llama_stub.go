//go:build !llama

package manager

// This file provides a no-CGO stub for the llama tokenizer. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds CGO-free.

const llamaBuilt = false

// NewLlamaTokenizer refuses to build a tokenizer without the 'llama' build tag.
func NewLlamaTokenizer(modelPath string, ctxSize int) (Tokenizer, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
