// Package config resolves process settings from a .env file, an optional
// YAML file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the resolved setting set for the memory daemon and CLI.
type Config struct {
	AppName    string `yaml:"app_name"`
	AppVersion string `yaml:"app_version"`
	Debug      bool   `yaml:"debug"`
	Log        Log    `yaml:"log"`
	Memory     Memory `yaml:"memory"`
	HTTPAddr   string `yaml:"http_addr"`
	GRPCAddr   string `yaml:"grpc_addr,omitempty"`

	// AllowedOrigins lists browser origins, besides the server's own host,
	// that may open the websocket.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Memory selects and configures the memory backend.
type Memory struct {
	// Backend is "chromem" (self-hosted index) or "supermemory" (hosted service).
	Backend     string      `yaml:"backend"`
	Path        string      `yaml:"path"`
	Collection  string      `yaml:"collection"`
	Supermemory Supermemory `yaml:"supermemory"`
	Embedder    Embedder    `yaml:"embedder"`
}

type Supermemory struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url"`
}

// Embedder configures text embedding for the chromem backend.
type Embedder struct {
	// Provider is "hash", "openai", "ollama" or "onnx".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	CacheSize  int64  `yaml:"cache_size,omitempty"`
	ONNX       ONNX   `yaml:"onnx,omitempty"`
}

type ONNX struct {
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path,omitempty"`
}

const (
	BackendChromem     = "chromem"
	BackendSupermemory = "supermemory"
)

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		AppName:    "nim-memory",
		AppVersion: "0.1.0",
		Log:        Log{Level: "info"},
		Memory: Memory{
			Backend:     BackendChromem,
			Path:        "./data/memory",
			Collection:  "agent_memories",
			Supermemory: Supermemory{BaseURL: "https://api.supermemory.ai"},
			Embedder:    Embedder{Provider: "hash"},
		},
		HTTPAddr: ":8000",
	}
}

// Load resolves the configuration. path names an optional YAML file; when
// empty, MEMORY_CONFIG_FILE is consulted. A missing .env is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("MEMORY_CONFIG_FILE")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides c with the variables visible through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, set func(int64)) {
		if v, ok := lookup(key); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
				return
			}
			set(n)
		}
	}

	str("APP_NAME", &c.AppName)
	str("APP_VERSION", &c.AppVersion)
	boolean("DEBUG", &c.Debug)
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_JSON", &c.Log.JSON)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	if v, ok := lookup("WS_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	m := &c.Memory
	str("MEMORY_BACKEND", &m.Backend)
	str("MEMORY_DB_PATH", &m.Path)
	str("MEMORY_COLLECTION", &m.Collection)
	str("SUPERMEMORY_API_KEY", &m.Supermemory.APIKey)
	str("SUPERMEMORY_BASE_URL", &m.Supermemory.BaseURL)

	e := &m.Embedder
	str("EMBEDDER", &e.Provider)
	str("EMBEDDER_MODEL", &e.Model)
	str("EMBEDDER_BASE_URL", &e.BaseURL)
	str("OPENAI_API_KEY", &e.APIKey)
	integer("EMBEDDER_DIMENSIONS", func(n int64) { e.Dimensions = int(n) })
	integer("EMBEDDER_CACHE_SIZE", func(n int64) { e.CacheSize = n })
	str("ONNX_MODEL_PATH", &e.ONNX.ModelPath)
	str("ONNX_TOKENIZER_PATH", &e.ONNX.TokenizerPath)
	str("ONNX_LIBRARY_PATH", &e.ONNX.LibraryPath)

	m.Backend = strings.ToLower(strings.TrimSpace(m.Backend))
	e.Provider = strings.ToLower(strings.TrimSpace(e.Provider))

	return errors.Join(errs...)
}
