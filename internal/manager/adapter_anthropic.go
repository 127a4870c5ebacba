package manager

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// anthropicAdapter recognizes images through the Anthropic Messages API.
// Text deltas of the streamed response are forwarded as fragments.
type anthropicAdapter struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicAdapter returns an adapter for the given API key and model.
// baseURL is optional and mainly used by tests.
func NewAnthropicAdapter(apiKey, model, baseURL string) (InferenceAdapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrDependencyUnavailable("anthropic api key not set")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicAdapter{client: &client, model: model}, nil
}

func (a *anthropicAdapter) Name() string { return "anthropic" }

func (a *anthropicAdapter) Close() error { return nil }

func (a *anthropicAdapter) Generate(ctx context.Context, in ModelInput, params InferParams, onToken func(string) error) (FinalResult, error) {
	maxTokens := int64(params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxFragments
	}
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(in.MediaType, base64.StdEncoding.EncodeToString(in.Image)),
				anthropic.NewTextBlock(in.Prompt),
			),
		},
	}
	if params.Temperature > 0 {
		req.Temperature = anthropic.Float(float64(params.Temperature))
	}

	stream := a.client.Messages.NewStreaming(ctx, req)
	defer stream.Close()

	var final FinalResult
	var sb strings.Builder
	for stream.Next() {
		if params.stop() {
			final.Content = sb.String()
			return final, errStopped
		}
		switch e := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			final.Usage.PromptTokens = int(e.Message.Usage.InputTokens)
		case anthropic.ContentBlockDeltaEvent:
			if d, ok := e.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
				sb.WriteString(d.Text)
				if err := onToken(d.Text); err != nil {
					final.Content = sb.String()
					return final, err
				}
			}
		case anthropic.MessageDeltaEvent:
			final.FinishReason = string(e.Delta.StopReason)
			final.Usage.CompletionTokens = int(e.Usage.OutputTokens)
		}
	}
	final.Content = sb.String()
	final.Usage.TotalTokens = final.Usage.PromptTokens + final.Usage.CompletionTokens
	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return final, ctx.Err()
		}
		return final, fmt.Errorf("anthropic stream: %w", err)
	}
	return final, nil
}
