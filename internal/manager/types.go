package manager

import (
	"fmt"
	"strings"
	"time"
)

// State represents lifecycle state of the model worker.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateError   State = "error"
)

// Mode selects the recognition instruction.
type Mode string

const (
	ModeTable Mode = "table"
	ModeText  Mode = "text"
)

// ParseMode maps a request value to a Mode. Anything but "table" selects text.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeTable)) {
		return ModeTable
	}
	return ModeText
}

// GenerationRequest is one recognition job. It is consumed once.
type GenerationRequest struct {
	ImagePath string
	Mode      Mode
}

// ModelInput is the backend-facing input built from an image and a mode.
type ModelInput struct {
	ImagePath string
	Image     []byte
	MediaType string
	Prompt    string
	Mode      Mode
}

const (
	// AbortSentinel is the final chunk of an aborted stream and the result of
	// an aborted blocking call. It is an HTML comment so it cannot be
	// mistaken for recognized text.
	AbortSentinel = "<!-- Process Aborted -->"

	// UnknownDimensions is recorded when the image cannot be probed.
	UnknownDimensions = "Unknown"

	defaultMaxFragments = 8192
)

// ErrorMarker formats an inference fault as an inline stream chunk.
func ErrorMarker(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = strings.ReplaceAll(err.Error(), "-->", "- ->")
	}
	return fmt.Sprintf("<!-- Error: %s -->", msg)
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State   State
	Backend string
	Err     string
	Started time.Time
}
