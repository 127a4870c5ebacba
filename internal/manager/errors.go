package manager

import (
	"errors"
	"fmt"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// dependencyUnavailableError signals that the recognition model is not loaded
// or a runtime dependency is missing, so the HTTP layer can return 503.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// ErrModelUnavailable is returned for every generation request when no model worker was initialized.
var ErrModelUnavailable = ErrDependencyUnavailable("model not loaded")

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}

// InputError reports an image that cannot be turned into model input.
// It is raised before any generation starts.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string { return fmt.Sprintf("read image %s: %v", e.Path, e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err is an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// InferenceError wraps a fault raised inside the generation loop on the blocking path.
type InferenceError struct {
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed (%s): %v", e.Backend, e.Err)
}
func (e *InferenceError) Unwrap() error { return e.Err }

// IsInferenceError reports whether err is an *InferenceError.
func IsInferenceError(err error) bool {
	var ie *InferenceError
	return errors.As(err, &ie)
}

// errStopped is returned from onToken once the stopping predicate fired; adapters
// propagate it and the worker treats it as a clean stop.
var errStopped = errors.New("generation stopped")

// errFragmentLimit ends generation at the fragment ceiling.
var errFragmentLimit = errors.New("fragment limit reached")
