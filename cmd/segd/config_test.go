package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segd/internal/config"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("segd", pflag.ContinueOnError)
	registerFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func envMap(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "segd.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := resolveConfig(newFlags(t), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultAddr, cfg.Addr)
	assert.Equal(t, config.DefaultCacheSize, cfg.CacheSize)
	assert.Equal(t, config.DefaultMaxWait, cfg.MaxWait.Duration)
	assert.Equal(t, "auto", cfg.Device)
}

func TestResolveConfig_Precedence(t *testing.T) {
	path := writeConfig(t, "addr: \":6000\"\ncache_size: 3\nmax_wait: 5s\nlog_level: debug\ndevice: cpu\n")
	env := envMap(map[string]string{
		"SEGD_CONFIG":     path,
		"SEGD_CACHE_SIZE": "4",
		"SEGD_LOG_LEVEL":  "warn",
	})
	fs := newFlags(t, "--log-level=error", "--cors-origins=http://a, http://b")

	cfg, err := resolveConfig(fs, env)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Addr, "file beats default")
	assert.Equal(t, 4, cfg.CacheSize, "env beats file")
	assert.Equal(t, "error", cfg.LogLevel, "flag beats env")
	assert.Equal(t, 5*time.Second, cfg.MaxWait.Duration)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
}

func TestResolveConfig_FlagDefaultsDoNotOverrideFile(t *testing.T) {
	path := writeConfig(t, "addr: \":7000\"\n")
	cfg, err := resolveConfig(newFlags(t, "--config", path), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
}

func TestResolveConfig_BadEnv(t *testing.T) {
	_, err := resolveConfig(newFlags(t), envMap(map[string]string{"SEGD_MAX_WAIT": "soon"}))
	assert.ErrorContains(t, err, "SEGD_MAX_WAIT")
}

func TestResolveConfig_InvalidDevice(t *testing.T) {
	_, err := resolveConfig(newFlags(t, "--device=tpu"), envMap(nil))
	assert.ErrorContains(t, err, "device")
}

func TestResolveConfig_MissingFile(t *testing.T) {
	_, err := resolveConfig(newFlags(t, "--config=/nope/segd.yaml"), envMap(nil))
	assert.Error(t, err)
}

func TestExplicitModels(t *testing.T) {
	cfg := config.Config{Models: []config.ModelConfig{{ID: "m", Family: "sam2", Encoder: "e.onnx", Decoder: "d.onnx"}}}
	got := explicitModels(cfg)
	require.Len(t, got, 1)
	assert.Equal(t, "e.onnx", got[0].Encoder)
}
