// Package config loads settings from defaults, an optional YAML file, a
// .env file and PID_SYMBOLS_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/refine"
)

// EnvPrefix is prepended to every environment override, e.g.
// PID_SYMBOLS_KB_PATH for kb.path.
const EnvPrefix = "PID_SYMBOLS"

// Backends
const (
	KBSQLite        = "sqlite"
	KBQdrant        = "qdrant"
	EmbeddingLocal  = "local"
	EmbeddingRemote = "remote"
	DetectorGemini  = "gemini"
	DetectorShapes  = "shapes"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Tiling    TilingConfig    `mapstructure:"tiling"`
	KB        KBConfig        `mapstructure:"kb"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Refine    refine.Config   `mapstructure:"refine"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TilingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type KBConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	QdrantAddress string `mapstructure:"qdrant_address"`
	Collection    string `mapstructure:"collection"`
}

type EmbeddingConfig struct {
	Backend   string        `mapstructure:"backend"`
	URL       string        `mapstructure:"url"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	Dimension int           `mapstructure:"dimension"`
	Grid      int           `mapstructure:"grid"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type DetectorConfig struct {
	Backend string        `mapstructure:"backend"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PipelineConfig struct {
	TilesDir string        `mapstructure:"tiles_dir"`
	Output   string        `mapstructure:"output"`
	Delay    time.Duration `mapstructure:"delay"`
}

// SetDefaults registers a default for every known key on v. Every key
// needs one so that AutomaticEnv can see it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("tiling.size", 1024)
	v.SetDefault("tiling.overlap", 100)

	v.SetDefault("kb.backend", KBSQLite)
	v.SetDefault("kb.path", "./symbols.db")
	v.SetDefault("kb.qdrant_address", "localhost:6334")
	v.SetDefault("kb.collection", "isa_standard_symbols")

	v.SetDefault("embedding.backend", EmbeddingLocal)
	v.SetDefault("embedding.url", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.grid", 16)
	v.SetDefault("embedding.cache_ttl", 10*time.Minute)

	v.SetDefault("detector.backend", DetectorGemini)
	v.SetDefault("detector.model", "gemini-2.0-flash")
	v.SetDefault("detector.api_key", "")
	v.SetDefault("detector.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("detector.timeout", 2*time.Minute)

	r := refine.DefaultConfig()
	v.SetDefault("refine.strong_threshold", r.StrongThreshold)
	v.SetDefault("refine.weak_threshold", r.WeakThreshold)
	v.SetDefault("refine.min_symbol_size", r.MinSymbolSize)
	v.SetDefault("refine.coarse_classes", r.CoarseClasses)

	v.SetDefault("pipeline.tiles_dir", "processed_tiles")
	v.SetDefault("pipeline.output", "final_output.json")
	v.SetDefault("pipeline.delay", time.Duration(0))
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration. configFile may be empty, in which case
// pid-symbols.yaml is looked up in the working directory and ignored when
// absent. envFile names a dotenv file; a missing one is not an error.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, perrors.NewInvalidConfigurationError("env_file", "cannot read %s: %v", envFile, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, perrors.NewInvalidConfigurationError("config", "cannot read %s: %v", configFile, err)
		}
	} else {
		v.SetConfigName("pid-symbols")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, perrors.NewInvalidConfigurationError("config", "cannot read pid-symbols.yaml: %v", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, perrors.NewInvalidConfigurationError("config", "cannot decode settings: %v", err)
	}
	if cfg.Detector.APIKey == "" {
		cfg.Detector.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
// The detector key is only required when the gemini backend is used,
// which callers check with RequireDetectorKey.
func (c *Config) Validate() error {
	switch {
	case c.Tiling.Size <= 0:
		return perrors.NewInvalidConfigurationError("tiling.size", "must be positive, got %d", c.Tiling.Size)
	case c.Tiling.Overlap < 0 || c.Tiling.Overlap >= c.Tiling.Size:
		return perrors.NewInvalidConfigurationError("tiling.overlap", "must be in [0, %d), got %d", c.Tiling.Size, c.Tiling.Overlap)
	}

	switch c.KB.Backend {
	case KBSQLite:
		if c.KB.Path == "" {
			return perrors.NewInvalidConfigurationError("kb.path", "required for the sqlite backend")
		}
	case KBQdrant:
		if c.KB.QdrantAddress == "" {
			return perrors.NewInvalidConfigurationError("kb.qdrant_address", "required for the qdrant backend")
		}
	default:
		return perrors.NewInvalidConfigurationError("kb.backend", "unknown backend %q", c.KB.Backend)
	}
	if c.KB.Collection == "" {
		return perrors.NewInvalidConfigurationError("kb.collection", "must not be empty")
	}

	switch c.Embedding.Backend {
	case EmbeddingLocal:
		if c.Embedding.Grid < 4 {
			return perrors.NewInvalidConfigurationError("embedding.grid", "must be at least 4, got %d", c.Embedding.Grid)
		}
	case EmbeddingRemote:
		if c.Embedding.URL == "" {
			return perrors.NewInvalidConfigurationError("embedding.url", "required for the remote backend")
		}
		if c.Embedding.Dimension <= 0 {
			return perrors.NewInvalidConfigurationError("embedding.dimension", "required for the remote backend")
		}
	default:
		return perrors.NewInvalidConfigurationError("embedding.backend", "unknown backend %q", c.Embedding.Backend)
	}
	if c.Embedding.CacheTTL < 0 {
		return perrors.NewInvalidConfigurationError("embedding.cache_ttl", "must not be negative")
	}

	switch c.Detector.Backend {
	case DetectorGemini, DetectorShapes:
	default:
		return perrors.NewInvalidConfigurationError("detector.backend", "unknown backend %q", c.Detector.Backend)
	}

	r := c.Refine
	switch {
	case r.StrongThreshold < 0:
		return perrors.NewInvalidConfigurationError("refine.strong_threshold", "must not be negative")
	case r.WeakThreshold != 0 && r.WeakThreshold < r.StrongThreshold:
		return perrors.NewInvalidConfigurationError("refine.weak_threshold", "must be 0 (disabled) or at least strong_threshold")
	case r.MinSymbolSize < 0:
		return perrors.NewInvalidConfigurationError("refine.min_symbol_size", "must not be negative")
	}

	if c.Pipeline.Delay < 0 {
		return perrors.NewInvalidConfigurationError("pipeline.delay", "must not be negative")
	}
	return nil
}

// RequireDetectorKey reports a configuration error when the gemini
// detector is selected without an API key.
func (c *Config) RequireDetectorKey() error {
	if c.Detector.Backend == DetectorGemini && c.Detector.APIKey == "" {
		return perrors.NewInvalidConfigurationError("detector.api_key",
			"set PID_SYMBOLS_DETECTOR_API_KEY or GOOGLE_API_KEY, or use --detector shapes")
	}
	return nil
}
