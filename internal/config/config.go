// Package config loads service configuration from an optional YAML file and
// UILOCATE_* environment variables.
//
// Every key has a default, so the service starts without a file. Nested
// keys map to environment variables by upper-casing and replacing dots with
// underscores: cache.redis.addr becomes UILOCATE_CACHE_REDIS_ADDR.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ironsheep/ui-locate-mcp/internal/cache"
	"github.com/ironsheep/ui-locate-mcp/internal/detection"
	"github.com/ironsheep/ui-locate-mcp/internal/imaging"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/match"
	"github.com/ironsheep/ui-locate-mcp/internal/ocr"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "UILOCATE"

// Detector modes.
const (
	DetectorRemote = "remote"
	DetectorLocal  = "local"
	DetectorHybrid = "hybrid"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheTiered = "tiered"
)

// Config is the complete service configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Perception PerceptionConfig `mapstructure:"perception"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Layout     layout.Config    `mapstructure:"layout"`
	Images     ImagesConfig     `mapstructure:"images"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Mode  string `mapstructure:"mode" validate:"oneof=development production"`
}

// PerceptionConfig points at the perception service. DetectorURL defaults
// to BaseURL; RateLimit is requests per second, zero for unlimited.
type PerceptionConfig struct {
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	DetectorURL string        `mapstructure:"detector_url" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxConns    int           `mapstructure:"max_conns" validate:"gte=1"`
	RateLimit   float64       `mapstructure:"rate_limit" validate:"gte=0"`
}

// DetectorConfig selects where detections come from. Remote uses the
// perception service, local the heuristic detector. Hybrid runs the remote
// detector as primary with OCR (when enabled) and the local detector as
// secondaries.
type DetectorConfig struct {
	Mode      string           `mapstructure:"mode" validate:"oneof=remote local hybrid"`
	OCR       bool             `mapstructure:"ocr"`
	Local     detection.Config `mapstructure:"local"`
	Tesseract ocr.Config       `mapstructure:"tesseract"`
}

// CacheConfig selects the artifact cache backend and its limits.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=memory redis tiered"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries" validate:"gte=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

// RedisConfig is used by the redis and tiered backends.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

// PipelineConfig tunes the match pipeline.
type PipelineConfig struct {
	BatchSize       int  `mapstructure:"batch_size" validate:"gte=1"`
	Concurrency     int  `mapstructure:"concurrency" validate:"gte=1"`
	EnrichNeighbors bool `mapstructure:"enrich_neighbors"`
	// ColorFallback names the dominant color locally when analysis omits it.
	ColorFallback bool `mapstructure:"color_fallback"`
	// Timeout bounds one locate request. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ImagesConfig limits screenshots read from disk.
type ImagesConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"gte=1"`
}

// Load reads configuration. An empty path skips the file and uses defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.mode", "production")

	v.SetDefault("perception.base_url", "http://localhost:8000")
	v.SetDefault("perception.detector_url", "")
	v.SetDefault("perception.timeout", perception.DefaultTimeout)
	v.SetDefault("perception.max_conns", perception.DefaultMaxConns)
	v.SetDefault("perception.rate_limit", 0.0)

	local := detection.DefaultConfig()
	tess := ocr.DefaultConfig()
	v.SetDefault("detector.mode", DetectorRemote)
	v.SetDefault("detector.ocr", false)
	v.SetDefault("detector.local.contrast", local.Contrast)
	v.SetDefault("detector.local.radii", local.Radii)
	v.SetDefault("detector.local.min_side", local.MinSide)
	v.SetDefault("detector.local.max_icon_side", local.MaxIconSide)
	v.SetDefault("detector.local.max_text_height", local.MaxTextHeight)
	v.SetDefault("detector.local.concurrency", local.Concurrency)
	v.SetDefault("detector.tesseract.language", tess.Language)
	v.SetDefault("detector.tesseract.min_confidence", tess.MinConfidence)
	v.SetDefault("detector.tesseract.scale", tess.Scale)
	v.SetDefault("detector.tesseract.tessdata_prefix", tess.TessdataPrefix)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.sweep_interval", 10*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", cache.DefaultKeyPrefix)

	v.SetDefault("pipeline.batch_size", match.DefaultBatchSize)
	v.SetDefault("pipeline.concurrency", match.DefaultConcurrency)
	v.SetDefault("pipeline.enrich_neighbors", false)
	v.SetDefault("pipeline.color_fallback", true)
	v.SetDefault("pipeline.timeout", 5*time.Minute)

	lc := layout.DefaultConfig()
	v.SetDefault("layout.iou_threshold", lc.IoUThreshold)
	v.SetDefault("layout.min_area", lc.MinArea)
	v.SetDefault("layout.max_area", lc.MaxArea)
	v.SetDefault("layout.menu_min_height", lc.MenuMinHeight)
	v.SetDefault("layout.menu_max_height", lc.MenuMaxHeight)
	v.SetDefault("layout.line_tolerance", lc.LineTolerance)
	v.SetDefault("layout.menu_item_max_gap", lc.MenuItemMaxGap)
	v.SetDefault("layout.paragraph_min_width", lc.ParagraphMinWidth)
	v.SetDefault("layout.paragraph_line_spacing", lc.ParagraphLineSpacing)
	v.SetDefault("layout.list_indent", lc.ListIndent)
	v.SetDefault("layout.list_item_spacing", lc.ListItemSpacing)
	v.SetDefault("layout.min_gap", lc.MinGap)
	v.SetDefault("layout.claim_fraction", lc.ClaimFraction)
	v.SetDefault("layout.scales", lc.Scales)

	v.SetDefault("images.max_file_size", imaging.DefaultMaxFileSize)
}

var validate = validator.New()

// Validate checks field ranges and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	if c.Perception.Timeout <= 0 {
		errs = append(errs, errors.New("perception.timeout must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Cache.SweepInterval < 0 {
		errs = append(errs, errors.New("cache.sweep_interval must not be negative"))
	}
	if c.Cache.Backend != CacheMemory && c.Cache.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("cache.redis.addr is required for backend %q", c.Cache.Backend))
	}
	if c.Pipeline.Timeout < 0 {
		errs = append(errs, errors.New("pipeline.timeout must not be negative"))
	}
	if c.Layout.IoUThreshold < 0 || c.Layout.IoUThreshold > 1 {
		errs = append(errs, errors.New("layout.iou_threshold must be within [0, 1]"))
	}
	if c.Layout.ClaimFraction <= 0 || c.Layout.ClaimFraction > 1 {
		errs = append(errs, errors.New("layout.claim_fraction must be within (0, 1]"))
	}
	if c.Layout.MinArea >= c.Layout.MaxArea {
		errs = append(errs, errors.New("layout.min_area must be below layout.max_area"))
	}
	if c.Detector.Mode != DetectorRemote && len(c.Detector.Local.Radii) == 0 {
		errs = append(errs, errors.New("detector.local.radii must not be empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
