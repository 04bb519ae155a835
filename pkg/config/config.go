// Package config loads edgestore's runtime configuration from environment
// variables, optionally overlaid by a YAML file, covering the HBase/retry
// tuning knobs plus the ambient logging/metrics/storage settings
// cmd/edgestored needs.
//
// LoadFromEnv populates a struct of typed sections via getEnv*/
// default-value helpers; Validate returns the first invalid field as an
// error. The YAML overlay is layered on top of the environment baseline,
// but an explicitly-set environment variable always wins over a
// conflicting file value.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything edgestore needs to run: the HBase-style tuning
// knobs plus the ambient storage/logging/metrics sections every deployment
// carries.
type Config struct {
	HBase   HBaseConfig
	Retry   RetryConfig
	Storage StorageConfig
	Logging LoggingConfig
	Metrics MetricsConfig
}

// HBaseConfig carries the buffered-RPC-connection flush interval.
type HBaseConfig struct {
	BufferedFlushInterval time.Duration
}

// RetryConfig carries the retry harness and deleteAll traversal tuning
// knobs: max retry count, max backoff, and the deleteAll fetch batch size.
type RetryConfig struct {
	MaxRetryNumber   int
	MaxBackOff       time.Duration
	DeleteAllFetchSz int
}

// StorageConfig is the ambient Badger data-directory setting.
type StorageConfig struct {
	DataDir    string
	SyncWrites bool
}

// LoggingConfig is the ambient logx setup.
type LoggingConfig struct {
	Level      string
	JSONOutput bool
}

// MetricsConfig controls the optional Prometheus HTTP listener.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// LoadFromEnv populates a Config from EDGESTORE_* environment variables,
// falling back to sensible defaults for anything unset.
func LoadFromEnv() *Config {
	c := &Config{}

	c.HBase.BufferedFlushInterval = getEnvDuration("EDGESTORE_BUFFERED_FLUSH_INTERVAL", 50*time.Millisecond)

	c.Retry.MaxRetryNumber = getEnvInt("EDGESTORE_MAX_RETRY_NUMBER", 5)
	c.Retry.MaxBackOff = getEnvDuration("EDGESTORE_MAX_BACK_OFF", 200*time.Millisecond)
	c.Retry.DeleteAllFetchSz = getEnvInt("EDGESTORE_DELETE_ALL_FETCH_SIZE", 1000)

	c.Storage.DataDir = getEnv("EDGESTORE_DATA_DIR", "")
	c.Storage.SyncWrites = getEnvBool("EDGESTORE_SYNC_WRITES", false)

	c.Logging.Level = getEnv("EDGESTORE_LOG_LEVEL", "info")
	c.Logging.JSONOutput = getEnvBool("EDGESTORE_LOG_JSON", false)

	c.Metrics.Enabled = getEnvBool("EDGESTORE_METRICS_ENABLED", false)
	c.Metrics.Addr = getEnv("EDGESTORE_METRICS_ADDR", ":9090")

	return c
}

// LoadFromFile reads a YAML file at path, overlays it onto the built-in
// defaults, then re-applies any explicitly-set environment variable on top
// — so precedence is defaults < file < environment: an operator's
// environment always wins over whatever the file says.
func LoadFromFile(path string) (*Config, error) {
	c := LoadFromEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	overlay.applyTo(c)

	// Re-apply any environment variable the operator set explicitly, so a
	// file value never silently overrides it.
	if v := os.Getenv("EDGESTORE_BUFFERED_FLUSH_INTERVAL"); v != "" {
		c.HBase.BufferedFlushInterval = getEnvDuration("EDGESTORE_BUFFERED_FLUSH_INTERVAL", c.HBase.BufferedFlushInterval)
	}
	if v := os.Getenv("EDGESTORE_MAX_RETRY_NUMBER"); v != "" {
		c.Retry.MaxRetryNumber = getEnvInt("EDGESTORE_MAX_RETRY_NUMBER", c.Retry.MaxRetryNumber)
	}
	if v := os.Getenv("EDGESTORE_MAX_BACK_OFF"); v != "" {
		c.Retry.MaxBackOff = getEnvDuration("EDGESTORE_MAX_BACK_OFF", c.Retry.MaxBackOff)
	}
	if v := os.Getenv("EDGESTORE_DELETE_ALL_FETCH_SIZE"); v != "" {
		c.Retry.DeleteAllFetchSz = getEnvInt("EDGESTORE_DELETE_ALL_FETCH_SIZE", c.Retry.DeleteAllFetchSz)
	}
	if v := os.Getenv("EDGESTORE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("EDGESTORE_SYNC_WRITES"); v != "" {
		c.Storage.SyncWrites = getEnvBool("EDGESTORE_SYNC_WRITES", c.Storage.SyncWrites)
	}
	if v := os.Getenv("EDGESTORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EDGESTORE_LOG_JSON"); v != "" {
		c.Logging.JSONOutput = getEnvBool("EDGESTORE_LOG_JSON", c.Logging.JSONOutput)
	}
	if v := os.Getenv("EDGESTORE_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = getEnvBool("EDGESTORE_METRICS_ENABLED", c.Metrics.Enabled)
	}
	if v := os.Getenv("EDGESTORE_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}

	return c, nil
}

// fileOverlay is the YAML shape. The tuning knobs nest under the paths
// `hbase.rpcs.buffered_flush_interval`, `max.retry.number`,
// `max.back_off`, and `delete.all.fetch_size`; the ambient settings live
// under `storage`, `logging`, and `metrics`.
type fileOverlay struct {
	HBase struct {
		Rpcs struct {
			BufferedFlushInterval *string `yaml:"buffered_flush_interval"`
		} `yaml:"rpcs"`
	} `yaml:"hbase"`
	Max struct {
		Retry struct {
			Number *int `yaml:"number"`
		} `yaml:"retry"`
		BackOff *string `yaml:"back_off"`
	} `yaml:"max"`
	Delete struct {
		All struct {
			FetchSize *int `yaml:"fetch_size"`
		} `yaml:"all"`
	} `yaml:"delete"`
	Storage struct {
		DataDir    *string `yaml:"data_dir"`
		SyncWrites *bool   `yaml:"sync_writes"`
	} `yaml:"storage"`
	Logging struct {
		Level      *string `yaml:"level"`
		JSONOutput *bool   `yaml:"json_output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled *bool   `yaml:"enabled"`
		Addr    *string `yaml:"addr"`
	} `yaml:"metrics"`
}

func (o fileOverlay) applyTo(c *Config) {
	if s := o.HBase.Rpcs.BufferedFlushInterval; s != nil {
		if d, err := time.ParseDuration(*s); err == nil {
			c.HBase.BufferedFlushInterval = d
		}
	}
	if n := o.Max.Retry.Number; n != nil {
		c.Retry.MaxRetryNumber = *n
	}
	if s := o.Max.BackOff; s != nil {
		if d, err := time.ParseDuration(*s); err == nil {
			c.Retry.MaxBackOff = d
		}
	}
	if n := o.Delete.All.FetchSize; n != nil {
		c.Retry.DeleteAllFetchSz = *n
	}
	if s := o.Storage.DataDir; s != nil {
		c.Storage.DataDir = *s
	}
	if b := o.Storage.SyncWrites; b != nil {
		c.Storage.SyncWrites = *b
	}
	if s := o.Logging.Level; s != nil {
		c.Logging.Level = *s
	}
	if b := o.Logging.JSONOutput; b != nil {
		c.Logging.JSONOutput = *b
	}
	if b := o.Metrics.Enabled; b != nil {
		c.Metrics.Enabled = *b
	}
	if s := o.Metrics.Addr; s != nil {
		c.Metrics.Addr = *s
	}
}

// Validate reports the first invalid field: a single pass, first error wins.
func (c *Config) Validate() error {
	if c.Retry.MaxRetryNumber <= 0 {
		return fmt.Errorf("config: max.retry.number must be positive, got %d", c.Retry.MaxRetryNumber)
	}
	if c.Retry.MaxBackOff <= 0 {
		return fmt.Errorf("config: max.back.off must be positive, got %s", c.Retry.MaxBackOff)
	}
	if c.Retry.DeleteAllFetchSz <= 0 {
		return fmt.Errorf("config: delete.all.fetch.size must be positive, got %d", c.Retry.DeleteAllFetchSz)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("config: metrics enabled but no listen address configured")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid logging level %q", c.Logging.Level)
	}
	return nil
}

// String returns a safe string representation of the Config, suitable for
// startup logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, MaxRetry: %d, MaxBackOff: %s, MetricsAddr: %s}",
		c.Storage.DataDir, c.Retry.MaxRetryNumber, c.Retry.MaxBackOff, c.Metrics.Addr,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
