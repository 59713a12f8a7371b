package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Package defaults applied by Default.
const (
	DefaultAddr           = ":5703"
	DefaultWeightsDir     = "./weights"
	DefaultDevice         = "auto"
	DefaultCacheSize      = 1
	DefaultMaxQueueDepth  = 32
	DefaultMaxWait        = 30 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultRateLimitBurst = 1
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
)

var (
	validDevices  = []string{"auto", "cpu", "cuda", "coreml", "mps"}
	validFamilies = []string{"sam2", "micro_sam"}
)

// Default fills unspecified fields with package defaults.
func (c Config) Default() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.WeightsDir == "" {
		c.WeightsDir = DefaultWeightsDir
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWait.Duration <= 0 {
		c.MaxWait.Duration = DefaultMaxWait
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		c.RateLimitBurst = DefaultRateLimitBurst
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	for i := range c.Models {
		if c.Models[i].Family == "" {
			c.Models[i].Family = "sam2"
		}
		if c.Models[i].Name == "" {
			c.Models[i].Name = c.Models[i].ID
		}
	}
	return c
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if !slices.Contains(validDevices, strings.ToLower(c.Device)) {
		return fmt.Errorf("device %q: must be one of %s", c.Device, strings.Join(validDevices, "|"))
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num_threads must be >= 0")
	}
	if c.CacheSize < 0 || c.MaxQueueDepth < 0 || c.MaxBodyBytes < 0 {
		return fmt.Errorf("cache_size, max_queue_depth and max_body_bytes must be >= 0")
	}
	if c.CacheTTL.Duration < 0 || c.MaxWait.Duration < 0 || c.RequestTimeout.Duration < 0 {
		return fmt.Errorf("durations must be >= 0")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must be >= 0")
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("model id is required")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
		if m.Family != "" && !slices.Contains(validFamilies, m.Family) {
			return fmt.Errorf("model %q: family %q must be one of %s", m.ID, m.Family, strings.Join(validFamilies, "|"))
		}
		if m.Encoder == "" || m.Decoder == "" {
			return fmt.Errorf("model %q: encoder and decoder are required", m.ID)
		}
	}
	return nil
}
