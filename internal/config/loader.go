package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Default.
type Config struct {
	Addr           string        `json:"addr" yaml:"addr" toml:"addr"`
	WeightsDir     string        `json:"weights_dir" yaml:"weights_dir" toml:"weights_dir"`
	OnnxRuntimeLib string        `json:"onnxruntime_lib" yaml:"onnxruntime_lib" toml:"onnxruntime_lib"`
	Device         string        `json:"device" yaml:"device" toml:"device"`
	NumThreads     int           `json:"num_threads" yaml:"num_threads" toml:"num_threads"`
	DefaultModel   string        `json:"default_model" yaml:"default_model" toml:"default_model"`
	Models         []ModelConfig `json:"models" yaml:"models" toml:"models"`
	Preload        bool          `json:"preload" yaml:"preload" toml:"preload"`

	CacheSize int      `json:"cache_size" yaml:"cache_size" toml:"cache_size"`
	CacheTTL  Duration `json:"cache_ttl" yaml:"cache_ttl" toml:"cache_ttl"`

	MaxQueueDepth  int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait        Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	MaxBodyBytes   int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	RateLimitRPS   float64  `json:"rate_limit_rps" yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	RateLimitBurst int      `json:"rate_limit_burst" yaml:"rate_limit_burst" toml:"rate_limit_burst"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	S3 S3Config `json:"s3" yaml:"s3" toml:"s3"`
}

// ModelConfig declares one ONNX encoder/decoder pair.
type ModelConfig struct {
	ID      string `json:"id" yaml:"id" toml:"id"`
	Name    string `json:"name" yaml:"name" toml:"name"`
	Family  string `json:"family" yaml:"family" toml:"family"`
	Encoder string `json:"encoder" yaml:"encoder" toml:"encoder"`
	Decoder string `json:"decoder" yaml:"decoder" toml:"decoder"`
}

// S3Config enables s3://bucket/key image paths.
type S3Config struct {
	Endpoint     string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Region       string `json:"region" yaml:"region" toml:"region"`
	AccessKey    string `json:"access_key" yaml:"access_key" toml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key" toml:"secret_key"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style" toml:"use_path_style"`
}

// Enabled reports whether any S3 setting was provided.
func (s S3Config) Enabled() bool {
	return s.Endpoint != "" || s.Region != "" || s.AccessKey != ""
}

// Duration is a time.Duration that decodes from strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
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
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
