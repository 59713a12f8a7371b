package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"segd/internal/config"
	"segd/pkg/types"
)

// envPrefix namespaces environment overrides, e.g. SEGD_ADDR.
const envPrefix = "SEGD_"

func registerFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Config file (.yaml/.yml/.json/.toml); defaults to $SEGD_CONFIG")
	fs.String("addr", config.DefaultAddr, "HTTP listen address")
	fs.String("weights-dir", config.DefaultWeightsDir, "Directory scanned for <model>/{encoder,decoder}.onnx")
	fs.String("onnxruntime-lib", "", "Path to the onnxruntime shared library")
	fs.String("device", config.DefaultDevice, "Execution provider: auto|cpu|cuda|coreml")
	fs.Int("num-threads", 0, "Intra-op threads for ONNX Runtime (0=runtime default)")
	fs.String("default-model", "", "Model used when a request names none")
	fs.Int("cache-size", config.DefaultCacheSize, "Number of image embeddings kept in memory")
	fs.Duration("cache-ttl", 0, "Expire cached embeddings after this long (0=never)")
	fs.Int("max-queue-depth", config.DefaultMaxQueueDepth, "Requests allowed to wait per model")
	fs.Duration("max-wait", config.DefaultMaxWait, "How long a request may wait for a model before 429")
	fs.Int64("max-body-bytes", config.DefaultMaxBodyBytes, "Maximum JSON request body size")
	fs.Duration("request-timeout", 0, "Per-request timeout for segmentation routes (0=none)")
	fs.Float64("rate-limit-rps", 0, "Token bucket rate for segmentation routes (0=off)")
	fs.Int("rate-limit-burst", config.DefaultRateLimitBurst, "Token bucket burst")
	fs.Bool("cors-enabled", false, "Enable CORS")
	fs.String("cors-origins", "", "Comma-separated allowed origins")
	fs.String("log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error|off")
	fs.String("log-format", config.DefaultLogFormat, "Log format: console|json")
	fs.Bool("preload", false, "Load all models at startup")
}

// resolveConfig layers defaults < config file < SEGD_* env < explicit flags.
func resolveConfig(fs *pflag.FlagSet, getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	path, _ := fs.GetString("config")
	if path == "" {
		path = getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	if err := applyFlags(&cfg, fs); err != nil {
		return cfg, err
	}
	cfg = cfg.Default()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *config.Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	str("ADDR", &cfg.Addr)
	str("WEIGHTS_DIR", &cfg.WeightsDir)
	str("ONNXRUNTIME_LIB", &cfg.OnnxRuntimeLib)
	str("DEVICE", &cfg.Device)
	str("DEFAULT_MODEL", &cfg.DefaultModel)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)

	var errs []string
	num := func(name string, set func(string) error) {
		v := getenv(envPrefix + name)
		if v == "" {
			return
		}
		if err := set(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, name, err))
		}
	}
	num("NUM_THREADS", intSetter(&cfg.NumThreads))
	num("CACHE_SIZE", intSetter(&cfg.CacheSize))
	num("MAX_QUEUE_DEPTH", intSetter(&cfg.MaxQueueDepth))
	num("RATE_LIMIT_BURST", intSetter(&cfg.RateLimitBurst))
	num("CACHE_TTL", durationSetter(&cfg.CacheTTL))
	num("MAX_WAIT", durationSetter(&cfg.MaxWait))
	num("REQUEST_TIMEOUT", durationSetter(&cfg.RequestTimeout))
	num("MAX_BODY_BYTES", func(s string) (err error) {
		cfg.MaxBodyBytes, err = strconv.ParseInt(s, 10, 64)
		return err
	})
	num("RATE_LIMIT_RPS", func(s string) (err error) {
		cfg.RateLimitRPS, err = strconv.ParseFloat(s, 64)
		return err
	})
	num("CORS_ENABLED", boolSetter(&cfg.CORSEnabled))
	num("PRELOAD", boolSetter(&cfg.Preload))
	num("S3_USE_PATH_STYLE", boolSetter(&cfg.S3.UsePathStyle))
	if v := getenv(envPrefix + "CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if len(errs) > 0 {
		return fmt.Errorf("environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		*dst = n
		return err
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(s string) error {
		b, err := strconv.ParseBool(s)
		*dst = b
		return err
	}
}

func durationSetter(dst *config.Duration) func(string) error {
	return func(s string) error {
		return dst.UnmarshalText([]byte(s))
	}
}

// applyFlags copies only flags the user set explicitly.
func applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "addr":
			cfg.Addr = f.Value.String()
		case "weights-dir":
			cfg.WeightsDir = f.Value.String()
		case "onnxruntime-lib":
			cfg.OnnxRuntimeLib = f.Value.String()
		case "device":
			cfg.Device = f.Value.String()
		case "default-model":
			cfg.DefaultModel = f.Value.String()
		case "log-level":
			cfg.LogLevel = f.Value.String()
		case "log-format":
			cfg.LogFormat = f.Value.String()
		case "cors-origins":
			cfg.CORSOrigins = splitCSV(f.Value.String())
		case "num-threads":
			cfg.NumThreads, err = fs.GetInt(f.Name)
		case "cache-size":
			cfg.CacheSize, err = fs.GetInt(f.Name)
		case "max-queue-depth":
			cfg.MaxQueueDepth, err = fs.GetInt(f.Name)
		case "rate-limit-burst":
			cfg.RateLimitBurst, err = fs.GetInt(f.Name)
		case "max-body-bytes":
			cfg.MaxBodyBytes, err = fs.GetInt64(f.Name)
		case "rate-limit-rps":
			cfg.RateLimitRPS, err = fs.GetFloat64(f.Name)
		case "cache-ttl":
			cfg.CacheTTL.Duration, err = fs.GetDuration(f.Name)
		case "max-wait":
			cfg.MaxWait.Duration, err = fs.GetDuration(f.Name)
		case "request-timeout":
			cfg.RequestTimeout.Duration, err = fs.GetDuration(f.Name)
		case "cors-enabled":
			cfg.CORSEnabled, err = fs.GetBool(f.Name)
		case "preload":
			cfg.Preload, err = fs.GetBool(f.Name)
		}
	})
	return err
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empty items.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// explicitModels converts configured models to registry entries.
func explicitModels(cfg config.Config) []types.Model {
	out := make([]types.Model, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		out = append(out, types.Model{ID: m.ID, Name: m.Name, Family: m.Family, Encoder: m.Encoder, Decoder: m.Decoder})
	}
	return out
}
