package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Load and Default fill every field; zero values in a file keep the default.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr" validate:"required"`
	UploadDir string `json:"upload_dir" yaml:"upload_dir" toml:"upload_dir" validate:"required"`
	DataDir   string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	// MaxUploadMB bounds the size of an uploaded image.
	MaxUploadMB int `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb" validate:"gte=1"`

	// Backend is one of llama-server, anthropic, tesseract.
	Backend string `json:"backend" yaml:"backend" toml:"backend" validate:"oneof=llama-server anthropic tesseract"`

	// llama-server: either LlamaServerURL of a running server, or Model (+MMProj)
	// to spawn LlamaBin locally.
	LlamaServerURL        string   `json:"llama_server_url" yaml:"llama_server_url" toml:"llama_server_url" validate:"omitempty,url"`
	LlamaAPIKey           string   `json:"llama_api_key" yaml:"llama_api_key" toml:"llama_api_key"`
	LlamaBin              string   `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	ModelsDir             string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Model                 string   `json:"model" yaml:"model" toml:"model"`
	MMProj                string   `json:"mmproj" yaml:"mmproj" toml:"mmproj"`
	LlamaCtxSize          int      `json:"llama_ctx_size" yaml:"llama_ctx_size" toml:"llama_ctx_size" validate:"gte=0"`
	LlamaThreads          int      `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads" validate:"gte=0"`
	LlamaNGL              int      `json:"llama_ngl" yaml:"llama_ngl" toml:"llama_ngl" validate:"gte=0"`
	LlamaExtraArgs        []string `json:"llama_extra_args" yaml:"llama_extra_args" toml:"llama_extra_args"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds" validate:"gte=0"`

	AnthropicAPIKey string `json:"anthropic_api_key" yaml:"anthropic_api_key" toml:"anthropic_api_key"`
	AnthropicModel  string `json:"anthropic_model" yaml:"anthropic_model" toml:"anthropic_model"`

	TesseractLangs []string `json:"tesseract_langs" yaml:"tesseract_langs" toml:"tesseract_langs"`

	// Tokenizer used to re-tokenize output for throughput: word, server or llama.
	Tokenizer      string `json:"tokenizer" yaml:"tokenizer" toml:"tokenizer" validate:"oneof=word server llama"`
	TokenizerModel string `json:"tokenizer_model" yaml:"tokenizer_model" toml:"tokenizer_model"`
	MetricsLog     string `json:"metrics_log" yaml:"metrics_log" toml:"metrics_log"`

	MaxFragments   int `json:"max_fragments" yaml:"max_fragments" toml:"max_fragments" validate:"gte=1"`
	MaxQueueDepth  int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth" validate:"gte=1"`
	MaxWaitSeconds int `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds" validate:"gte=1"`

	// SessionDriver is one of file, redis, mysql.
	SessionDriver string `json:"session_driver" yaml:"session_driver" toml:"session_driver" validate:"oneof=file redis mysql"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr" validate:"required_if=SessionDriver redis"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" toml:"redis_db" validate:"gte=0"`
	// RedisKey prefixes the session hash and sorted set.
	RedisKey      string `json:"redis_key" yaml:"redis_key" toml:"redis_key"`
	MySQLDSN      string `json:"mysql_dsn" yaml:"mysql_dsn" toml:"mysql_dsn" validate:"required_if=SessionDriver mysql"`

	// NvidiaSMI is the GPU query binary; "-" disables /gpu probing.
	NvidiaSMI string `json:"nvidia_smi" yaml:"nvidia_smi" toml:"nvidia_smi"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" validate:"oneof=trace debug info warn error off"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" validate:"oneof=console json"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                  ":4444",
		UploadDir:             "uploads",
		DataDir:               "data",
		MaxUploadMB:           32,
		Backend:               "llama-server",
		ModelsDir:             "~/models/ocr",
		RequestTimeoutSeconds: 600,
		Tokenizer:             "word",
		MetricsLog:            "logs/metrics.log",
		MaxFragments:          8192,
		MaxQueueDepth:         8,
		MaxWaitSeconds:        30,
		SessionDriver:         "file",
		RedisAddr:             "localhost:6379",
		RedisKey:              "ocrd:sessions",
		LogLevel:              "info",
		LogFormat:             "console",
	}
}

// Load reads a configuration file based on its extension, on top of Default().
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// EnvPrefix prefixes every environment override, e.g. OCRD_ADDR.
const EnvPrefix = "OCRD_"

// ApplyEnv overrides fields from OCRD_* variables found through lookup
// (os.LookupEnv in production). ANTHROPIC_API_KEY is honored when
// OCRD_ANTHROPIC_API_KEY is unset.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"ADDR": &c.Addr, "UPLOAD_DIR": &c.UploadDir, "DATA_DIR": &c.DataDir,
		"BACKEND": &c.Backend, "LLAMA_SERVER_URL": &c.LlamaServerURL, "LLAMA_API_KEY": &c.LlamaAPIKey,
		"LLAMA_BIN": &c.LlamaBin, "MODELS_DIR": &c.ModelsDir, "MODEL": &c.Model, "MMPROJ": &c.MMProj,
		"ANTHROPIC_API_KEY": &c.AnthropicAPIKey, "ANTHROPIC_MODEL": &c.AnthropicModel,
		"TOKENIZER": &c.Tokenizer, "TOKENIZER_MODEL": &c.TokenizerModel, "METRICS_LOG": &c.MetricsLog,
		"SESSION_DRIVER": &c.SessionDriver, "REDIS_ADDR": &c.RedisAddr, "REDIS_KEY": &c.RedisKey,
		"MYSQL_DSN": &c.MySQLDSN, "NVIDIA_SMI": &c.NvidiaSMI, "LOG_LEVEL": &c.LogLevel, "LOG_FORMAT": &c.LogFormat,
	}
	ints := map[string]*int{
		"MAX_UPLOAD_MB": &c.MaxUploadMB, "LLAMA_CTX_SIZE": &c.LlamaCtxSize, "LLAMA_THREADS": &c.LlamaThreads,
		"LLAMA_NGL": &c.LlamaNGL, "REQUEST_TIMEOUT_SECONDS": &c.RequestTimeoutSeconds,
		"MAX_FRAGMENTS": &c.MaxFragments, "MAX_QUEUE_DEPTH": &c.MaxQueueDepth,
		"MAX_WAIT_SECONDS": &c.MaxWaitSeconds, "REDIS_DB": &c.RedisDB,
	}
	lists := map[string]*[]string{
		"TESSERACT_LANGS": &c.TesseractLangs, "CORS_ORIGINS": &c.CORSOrigins, "LLAMA_EXTRA_ARGS": &c.LlamaExtraArgs,
	}
	if v, ok := lookup("ANTHROPIC_API_KEY"); ok && v != "" {
		c.AnthropicAPIKey = v
	}
	for k, dst := range str {
		if v, ok := lookup(EnvPrefix + k); ok {
			*dst = v
		}
	}
	for k, dst := range ints {
		if v, ok := lookup(EnvPrefix + k); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, k, err)
			}
			*dst = n
		}
	}
	for k, dst := range lists {
		if v, ok := lookup(EnvPrefix + k); ok {
			*dst = SplitCSV(v)
		}
	}
	if v, ok := lookup(EnvPrefix + "CORS_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCORS_ENABLED: %w", EnvPrefix, err)
		}
		c.CORSEnabled = b
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints (enums, ranges, driver requirements).
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
