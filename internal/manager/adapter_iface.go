package manager

import "context"

// InferenceAdapter abstracts the recognition model runtime used by the Manager.
// Concrete implementations (llama-server, Anthropic, Tesseract) satisfy this interface.
type InferenceAdapter interface {
	// Name identifies the backend in logs and /status.
	Name() string
	// Generate produces text for the model input, invoking onToken for each
	// fragment as soon as it is available. Implementations must poll
	// params.ShouldStop between fragments and return promptly once it reports
	// true, and must return when ctx is canceled.
	Generate(ctx context.Context, in ModelInput, params InferParams, onToken func(string) error) (FinalResult, error)
	// Close releases any resources held by the adapter.
	Close() error
}

// InferParams captures generation parameters passed to the adapter.
type InferParams struct {
	// MaxTokens is a hard ceiling on produced fragments.
	MaxTokens int
	// ShouldStop is the stopping predicate; nil means never stop early.
	ShouldStop func() bool
	// Temperature is forwarded to backends that sample; zero keeps the backend default.
	Temperature float32
}

func (p InferParams) stop() bool {
	return p.ShouldStop != nil && p.ShouldStop()
}

// FinalResult summarizes the generation after streaming.
type FinalResult struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting as reported by the backend, when it reports any.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// BuildFeatures reports which optional cgo backends were compiled in.
func BuildFeatures() map[string]bool {
	return map[string]bool{"llama": llamaBuilt, "tesseract": tesseractBuilt}
}
