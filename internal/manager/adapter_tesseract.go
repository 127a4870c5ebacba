//go:build tesseract

package manager

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

const tesseractBuilt = true

// tesseractAdapter runs classic OCR locally. Recognition is not incremental,
// so the text is replayed word by word to keep the fragment contract.
type tesseractAdapter struct {
	langs         []string
	clientFactory func() *gosseract.Client
}

// NewTesseractAdapter returns an adapter using the given tesseract languages
// (for example "eng", "chi_sim"); none means the tesseract default.
func NewTesseractAdapter(langs ...string) (InferenceAdapter, error) {
	return &tesseractAdapter{langs: langs, clientFactory: gosseract.NewClient}, nil
}

func (a *tesseractAdapter) Name() string { return "tesseract" }

func (a *tesseractAdapter) Close() error { return nil }

func (a *tesseractAdapter) Generate(ctx context.Context, in ModelInput, params InferParams, onToken func(string) error) (FinalResult, error) {
	c := a.clientFactory()
	defer c.Close()
	if len(a.langs) > 0 {
		if err := c.SetLanguage(a.langs...); err != nil {
			return FinalResult{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.Mode == ModeTable {
		// Preserve column spacing so table cells stay separable.
		if err := c.SetVariable(gosseract.SettableVariable("preserve_interword_spaces"), "1"); err != nil {
			return FinalResult{}, fmt.Errorf("set variable: %w", err)
		}
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return FinalResult{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return FinalResult{}, fmt.Errorf("recognize text: %w", err)
	}
	return replayFragments(ctx, text, params, onToken)
}
