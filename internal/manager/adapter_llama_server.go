package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// llamaServerAdapter implements InferenceAdapter by talking to a running
// llama.cpp server (started with a multimodal projector) over its
// OpenAI-compatible chat endpoint.
type llamaServerAdapter struct {
	baseURL        string
	apiKey         string
	model          string
	reqTimeout     time.Duration
	connectTimeout time.Duration
	httpClient     *http.Client
	// proc is set when the adapter owns the server process.
	proc *LlamaProcess
}

// NewLlamaServerAdapter constructs a server-backed adapter. model is sent as the
// request's model field and may be empty.
func NewLlamaServerAdapter(baseURL, apiKey, model string, reqTimeout, connectTimeout time.Duration) InferenceAdapter {
	return newLlamaServerAdapter(baseURL, apiKey, model, reqTimeout, connectTimeout)
}

func newLlamaServerAdapter(baseURL, apiKey, model string, reqTimeout, connectTimeout time.Duration) *llamaServerAdapter {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays zero: a streaming body can legitimately run for minutes,
	// deadlines are carried by the request context instead.
	return &llamaServerAdapter{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		model:          strings.TrimSpace(model),
		reqTimeout:     reqTimeout,
		connectTimeout: connectTimeout,
		httpClient:     &http.Client{Transport: tr, Timeout: 0},
	}
}

// NewSpawnedLlamaServerAdapter wraps a process started by StartLlamaServer.
// Closing the adapter stops the process.
func NewSpawnedLlamaServerAdapter(p *LlamaProcess, reqTimeout time.Duration) InferenceAdapter {
	a := newLlamaServerAdapter(p.BaseURL(), "", "", reqTimeout, 0)
	a.proc = p
	return a
}

func (a *llamaServerAdapter) Name() string { return "llama-server" }

func (a *llamaServerAdapter) Close() error {
	if a.proc != nil {
		return a.proc.Stop()
	}
	return nil
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	// Content is the native llama.cpp streaming field, tolerated for older servers.
	Content string `json:"content"`
}

func dataURL(mediaType string, img []byte) string {
	if mediaType == "" {
		mediaType = "image/png"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(img)
}

func (a *llamaServerAdapter) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	return req, nil
}

// Generate streams a chat completion for the image and prompt in `in`.
func (a *llamaServerAdapter) Generate(ctx context.Context, in ModelInput, params InferParams, onToken func(string) error) (FinalResult, error) {
	if a.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.reqTimeout)
		defer cancel()
	}
	payload := chatCompletionRequest{
		Model: a.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL(in.MediaType, in.Image)}},
				{Type: "text", Text: in.Prompt},
			},
		}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		Stream:      true,
	}
	req, err := a.newRequest(ctx, "/v1/chat/completions", payload)
	if err != nil {
		return FinalResult{}, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, fmt.Errorf("llama-server request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return FinalResult{}, fmt.Errorf("llama-server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	r := bufio.NewReader(resp.Body)
	var final FinalResult
	var sb strings.Builder
	for {
		if params.stop() {
			final.Content = sb.String()
			return final, errStopped
		}
		line, rerr := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
			data := strings.TrimSpace(l[len("data:"):])
			if data == "[DONE]" {
				break
			}
			var msg chatStreamChunk
			if e := json.Unmarshal([]byte(data), &msg); e != nil {
				logger().Debug().Err(e).Str("adapter", a.Name()).Msg("skip malformed stream line")
			} else {
				frag := msg.Content
				if len(msg.Choices) > 0 {
					frag = msg.Choices[0].Delta.Content
					if fr := msg.Choices[0].FinishReason; fr != "" {
						final.FinishReason = fr
					}
				}
				if msg.Usage != nil {
					final.Usage = Usage{
						PromptTokens:     msg.Usage.PromptTokens,
						CompletionTokens: msg.Usage.CompletionTokens,
						TotalTokens:      msg.Usage.TotalTokens,
					}
				}
				if frag != "" {
					if params.stop() {
						final.Content = sb.String()
						return final, errStopped
					}
					sb.WriteString(frag)
					if cbErr := onToken(frag); cbErr != nil {
						final.Content = sb.String()
						return final, cbErr
					}
				}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return final, ctx.Err()
			}
			return final, fmt.Errorf("llama-server stream: %w", rerr)
		}
	}
	final.Content = sb.String()
	return final, nil
}

// llamaServerTokenizer counts tokens with the server's own vocabulary.
type llamaServerTokenizer struct {
	a *llamaServerAdapter
}

// NewLlamaServerTokenizer returns a Tokenizer backed by POST /tokenize on baseURL.
func NewLlamaServerTokenizer(baseURL string, timeout time.Duration) Tokenizer {
	return &llamaServerTokenizer{a: newLlamaServerAdapter(baseURL, "", "", timeout, 0)}
}

func (t *llamaServerTokenizer) Count(ctx context.Context, text string) (int, error) {
	if t.a.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.a.reqTimeout)
		defer cancel()
	}
	req, err := t.a.newRequest(ctx, "/tokenize", map[string]any{"content": text})
	if err != nil {
		return 0, err
	}
	resp, err := t.a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tokenize: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("tokenize: %s", resp.Status)
	}
	var out struct {
		Tokens []json.RawMessage `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("tokenize decode: %w", err)
	}
	return len(out.Tokens), nil
}
