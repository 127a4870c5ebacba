package manager

import (
	"context"
	"strings"
	"unicode"
)

// splitFragments cuts text into word fragments, each carrying its trailing
// whitespace, so that concatenating them reproduces text exactly.
func splitFragments(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range text {
		sp := unicode.IsSpace(r)
		if inSpace && !sp {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = sp
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// replayFragments delivers a finished recognition result through onToken for
// backends that cannot stream natively.
func replayFragments(ctx context.Context, text string, params InferParams, onToken func(string) error) (FinalResult, error) {
	var sb strings.Builder
	for _, frag := range splitFragments(text) {
		if params.stop() {
			return FinalResult{Content: sb.String()}, errStopped
		}
		if err := ctx.Err(); err != nil {
			return FinalResult{Content: sb.String()}, err
		}
		sb.WriteString(frag)
		if err := onToken(frag); err != nil {
			return FinalResult{Content: sb.String()}, err
		}
	}
	return FinalResult{Content: sb.String(), FinishReason: "stop"}, nil
}
