//go:build !tesseract

package manager

const tesseractBuilt = false

// NewTesseractAdapter reports the backend as unavailable in builds without the
// tesseract tag.
func NewTesseractAdapter(langs ...string) (InferenceAdapter, error) {
	return nil, ErrDependencyUnavailable("tesseract backend not built (rebuild with -tags tesseract)")
}
