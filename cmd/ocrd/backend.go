package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ocrd/internal/config"
	"ocrd/internal/manager"
	"ocrd/internal/registry"
)

// backend bundles the recognition adapter with what was resolved to build it.
type backend struct {
	adapter manager.InferenceAdapter
	// serverURL is the llama-server root when one is in use.
	serverURL string
	model     registry.Pair
}

// startLlama is swapped in tests.
var startLlama = manager.StartLlamaServer

// buildBackend constructs the configured adapter. A failure is not fatal for
// the server: the manager then runs without a model and reports why.
func buildBackend(ctx context.Context, cfg config.Config) (backend, error) {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	switch cfg.Backend {
	case "anthropic":
		a, err := manager.NewAnthropicAdapter(cfg.AnthropicAPIKey, cfg.AnthropicModel, "")
		return backend{adapter: a}, err
	case "tesseract":
		a, err := manager.NewTesseractAdapter(cfg.TesseractLangs...)
		return backend{adapter: a}, err
	case "llama-server", "":
		if cfg.LlamaServerURL != "" {
			a := manager.NewLlamaServerAdapter(cfg.LlamaServerURL, cfg.LlamaAPIKey, cfg.Model, timeout, 5*time.Second)
			return backend{adapter: a, serverURL: cfg.LlamaServerURL}, nil
		}
		pair, err := registry.Discover(cfg.ModelsDir, cfg.Model, cfg.MMProj)
		if err != nil {
			return backend{}, manager.ErrDependencyUnavailable(fmt.Sprintf("model discovery: %v", err))
		}
		if pair.MMProj == "" {
			log.Warn().Str("model", pair.Model).Msg("no mmproj found; the server will not accept images")
		}
		proc, err := startLlama(ctx, manager.LlamaServerOptions{
			Bin:     cfg.LlamaBin,
			Model:   pair.Model,
			MMProj:  pair.MMProj,
			CtxSize: cfg.LlamaCtxSize,
			Threads: cfg.LlamaThreads,
			NGL:     cfg.LlamaNGL,
			Extra:   cfg.LlamaExtraArgs,
		})
		if err != nil {
			return backend{model: pair}, err
		}
		log.Info().Int("pid", proc.Pid()).Str("url", proc.BaseURL()).Str("model", pair.Model).Msg("llama-server ready")
		return backend{
			adapter:   manager.NewSpawnedLlamaServerAdapter(proc, timeout),
			serverURL: proc.BaseURL(),
			model:     pair,
		}, nil
	default:
		return backend{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// buildTokenizer picks the throughput tokenizer, falling back to word
// counting when the requested one cannot be used.
func buildTokenizer(cfg config.Config, b backend) manager.Tokenizer {
	switch cfg.Tokenizer {
	case "server":
		if b.serverURL != "" {
			return manager.NewLlamaServerTokenizer(b.serverURL, 10*time.Second)
		}
		log.Warn().Msg("server tokenizer needs a llama-server backend; using word count")
	case "llama":
		path := cfg.TokenizerModel
		if path == "" {
			path = b.model.Model
		}
		tok, err := manager.NewLlamaTokenizer(path, cfg.LlamaCtxSize)
		if err == nil {
			return tok
		}
		log.Warn().Err(err).Msg("llama tokenizer unavailable; using word count")
	}
	return manager.WordTokenizer{}
}

// newManager builds the generation manager. Backend errors leave it without
// a model so the UI can still come up and explain the problem.
func newManager(ctx context.Context, cfg config.Config) *manager.Manager {
	b, err := buildBackend(ctx, cfg)
	mc := manager.ManagerConfig{
		Adapter:        b.adapter,
		Tokenizer:      buildTokenizer(cfg, b),
		MetricsLogPath: cfg.MetricsLog,
		MaxQueueDepth:  cfg.MaxQueueDepth,
		MaxWait:        time.Duration(cfg.MaxWaitSeconds) * time.Second,
		MaxFragments:   cfg.MaxFragments,
		Publisher:      manager.NewLogPublisher(log.Logger.With().Str("component", "events").Logger()),
	}
	if err != nil {
		mc.Adapter = nil
		mc.LoadErr = err.Error()
		ev := log.Error()
		if manager.IsDependencyUnavailable(err) || errors.Is(err, registry.ErrNoModel) {
			ev = log.Warn()
		}
		ev.Err(err).Str("backend", cfg.Backend).Msg("model not loaded")
	}
	return manager.NewWithConfig(mc)
}
