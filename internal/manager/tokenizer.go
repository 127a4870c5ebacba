package manager

import (
	"context"
	"errors"
	"unicode"
)

// ErrTokenizerClosed is returned by Count after the tokenizer was closed.
var ErrTokenizerClosed = errors.New("tokenizer closed")

// Tokenizer re-tokenizes generated text for throughput accounting. Chunk
// boundaries seen on the stream are not token boundaries, so counts always
// come from the concatenated text.
type Tokenizer interface {
	Count(ctx context.Context, text string) (int, error)
}

// WordTokenizer approximates model tokens without a vocabulary: runs of
// letters/digits are one token, every other non-space rune is its own token,
// and each Han/Hiragana/Katakana/Hangul rune counts separately.
type WordTokenizer struct{}

func (WordTokenizer) Count(_ context.Context, text string) (int, error) {
	n := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			inWord = false
		case isIdeograph(r):
			n++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				n++
				inWord = true
			}
		default:
			n++
			inWord = false
		}
	}
	return n, nil
}

func isIdeograph(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
