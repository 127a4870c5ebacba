package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ocrd/internal/common/fsutil"
)

// ErrNoModel is returned when a directory holds no usable language model file.
var ErrNoModel = errors.New("no gguf model found")

// Pair is a vision-language model and its multimodal projector.
// MMProj is empty when no projector file sits next to the model.
type Pair struct {
	Model  string
	MMProj string
}

// isProjector reports whether a gguf filename names a multimodal projector.
func isProjector(name string) bool {
	return strings.Contains(strings.ToLower(name), "mmproj")
}

// LoadDir scans dir for *.gguf files and returns absolute paths split into
// language models and projectors, each sorted by filename.
func LoadDir(dir string) (models, projectors []string, err error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		p := filepath.Join(abs, name)
		if isProjector(name) {
			projectors = append(projectors, p)
		} else {
			models = append(models, p)
		}
	}
	sort.Strings(models)
	sort.Strings(projectors)
	return models, projectors, nil
}

// Discover resolves the model pair to serve. Explicit model and mmproj paths
// win; otherwise the first model and projector found in dir are used.
// A model path relative to nothing is looked up inside dir.
func Discover(dir, model, mmproj string) (Pair, error) {
	resolve := func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		p, err := fsutil.ExpandHome(p)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(p) && dir != "" && !fsutil.IsFile(p) {
			d, err := fsutil.ExpandHome(dir)
			if err != nil {
				return "", err
			}
			p = filepath.Join(d, p)
		}
		if !fsutil.IsFile(p) {
			return "", fmt.Errorf("model file not found: %s", p)
		}
		return filepath.Abs(p)
	}

	var out Pair
	var err error
	if out.Model, err = resolve(model); err != nil {
		return Pair{}, err
	}
	if out.MMProj, err = resolve(mmproj); err != nil {
		return Pair{}, err
	}
	if out.Model != "" && out.MMProj != "" {
		return out, nil
	}
	if dir == "" {
		if out.Model == "" {
			return Pair{}, ErrNoModel
		}
		return out, nil
	}
	models, projectors, err := LoadDir(dir)
	if err != nil {
		if out.Model != "" {
			return out, nil
		}
		return Pair{}, err
	}
	if out.Model == "" {
		if len(models) == 0 {
			return Pair{}, fmt.Errorf("%w in %s", ErrNoModel, dir)
		}
		out.Model = models[0]
	}
	if out.MMProj == "" && len(projectors) > 0 {
		out.MMProj = projectors[0]
	}
	return out, nil
}
