package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ocrd/internal/config"
	"ocrd/internal/httpapi"
	"ocrd/internal/manager"
	"ocrd/internal/session"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
	envFiles   []string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{cfg: config.Default()}
	root := &cobra.Command{
		Use:           "ocrd",
		Short:         "Image-to-text OCR service with a streaming web front end",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd.Flags())
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (.yaml, .json or .toml)")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before OCRD_* overrides")
	bindFlags(pf, &opts.cfg)

	root.AddCommand(newServeCmd(opts), newRecognizeCmd(opts), newVersionCmd())
	return root
}

// bindFlags registers one flag per commonly tuned config field. Defaults come
// from cfg but only flags the user set win over the file and environment.
func bindFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.String("addr", cfg.Addr, "HTTP listen address")
	fs.String("backend", cfg.Backend, "Recognition backend: llama-server|anthropic|tesseract")
	fs.String("llama-server-url", cfg.LlamaServerURL, "URL of a running llama-server (skips spawning)")
	fs.String("llama-bin", cfg.LlamaBin, "llama-server binary to spawn")
	fs.String("models-dir", cfg.ModelsDir, "Directory scanned for the GGUF model and mmproj")
	fs.String("model", cfg.Model, "GGUF model file")
	fs.String("mmproj", cfg.MMProj, "Multimodal projector GGUF file")
	fs.Int("ngl", cfg.LlamaNGL, "Layers offloaded to the GPU")
	fs.String("tokenizer", cfg.Tokenizer, "Throughput tokenizer: word|server|llama")
	fs.String("metrics-log", cfg.MetricsLog, "Append-only generation metrics log (empty disables)")
	fs.String("session-driver", cfg.SessionDriver, "Session store: file|redis|mysql")
	fs.String("data-dir", cfg.DataDir, "Directory for saved sessions (file driver)")
	fs.String("upload-dir", cfg.UploadDir, "Directory for uploaded images")
	fs.String("log-level", cfg.LogLevel, "Log level: trace|debug|info|warn|error|off")
	fs.String("log-format", cfg.LogFormat, "Log format: console|json")
}

// resolve layers defaults, config file, dotenv + environment and flags.
func (o *rootOptions) resolve(fs *pflag.FlagSet) error {
	cfg := config.Default()
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if err := applyFlags(fs, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	setupLogging(cfg, os.Stderr)
	return nil
}

func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	str := map[string]*string{
		"addr": &cfg.Addr, "backend": &cfg.Backend, "llama-server-url": &cfg.LlamaServerURL,
		"llama-bin": &cfg.LlamaBin, "models-dir": &cfg.ModelsDir, "model": &cfg.Model, "mmproj": &cfg.MMProj,
		"tokenizer": &cfg.Tokenizer, "metrics-log": &cfg.MetricsLog, "session-driver": &cfg.SessionDriver,
		"data-dir": &cfg.DataDir, "upload-dir": &cfg.UploadDir, "log-level": &cfg.LogLevel, "log-format": &cfg.LogFormat,
	}
	for name, dst := range str {
		if f := fs.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	if f := fs.Lookup("ngl"); f != nil && f.Changed {
		n, err := fs.GetInt("ngl")
		if err != nil {
			return err
		}
		cfg.LlamaNGL = n
	}
	return nil
}

// setupLogging installs the process logger and hands it to every package.
func setupLogging(cfg config.Config, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.LogLevel == "off" {
		lvl = zerolog.Disabled
	}
	w := out
	if cfg.LogFormat != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	log.Logger = l
	manager.SetLogger(l.With().Str("component", "manager").Logger())
	session.SetLogger(l.With().Str("component", "session").Logger())
	httpapi.SetLogger(l.With().Str("component", "http").Logger())
	return l
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled-in backends",
		// Skip config resolution: version must work without a valid config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			feats := manager.BuildFeatures()
			names := make([]string, 0, len(feats))
			for n := range feats {
				names = append(names, n)
			}
			sort.Strings(names)
			fmt.Fprintf(cmd.OutOrStdout(), "ocrd %s\n", version)
			for _, n := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %v\n", n, feats[n])
			}
			return nil
		},
	}
}
