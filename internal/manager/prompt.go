package manager

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	tablePrompt = "Table Recognition:"
	textPrompt  = "Text Recognition:"
)

// PromptFor returns the recognition instruction for mode.
func PromptFor(mode Mode) string {
	if mode == ModeTable {
		return tablePrompt
	}
	return textPrompt
}

// BuildModelInput reads the image and pairs it with the instruction for mode.
// An unreadable or empty image is an *InputError.
func BuildModelInput(imagePath string, mode Mode) (ModelInput, error) {
	if strings.TrimSpace(imagePath) == "" {
		return ModelInput{}, &InputError{Path: imagePath, Err: errors.New("empty image path")}
	}
	b, err := os.ReadFile(imagePath)
	if err != nil {
		return ModelInput{}, &InputError{Path: imagePath, Err: err}
	}
	if len(b) == 0 {
		return ModelInput{}, &InputError{Path: imagePath, Err: errors.New("empty image")}
	}
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		abs = imagePath
	}
	return ModelInput{
		ImagePath: abs,
		Image:     b,
		MediaType: mediaType(b),
		Prompt:    PromptFor(mode),
		Mode:      mode,
	}, nil
}

func mediaType(b []byte) string {
	ct := http.DetectContentType(b)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if !strings.HasPrefix(ct, "image/") {
		return "image/png"
	}
	return ct
}
