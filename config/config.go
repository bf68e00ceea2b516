package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical/dynamo"
)

// Config is the configuration for the idstore tooling.
type Config struct {
	LogLevel          string `hcl:"log_level,optional"`
	LogFormat         string `hcl:"log_format,optional"`
	LogFile           string `hcl:"log_file,optional"`
	LogRotateMaxSize  int    `hcl:"log_rotate_megabytes,optional"`
	LogRotateMaxAge   int    `hcl:"log_rotate_max_age,optional"`
	LogRotateMaxFiles int    `hcl:"log_rotate_max_files,optional"`

	AWS     *AWSBlock     `hcl:"aws,block"`
	Storage *StorageBlock `hcl:"storage,block"`
}

// AWSBlock configures the DynamoDB connection. The endpoint override
// points the tooling at a local DynamoDB during development.
type AWSBlock struct {
	Region          string `hcl:"region,optional"`
	Endpoint        string `hcl:"endpoint,optional"`
	AccessKeyID     string `hcl:"access_key_id,optional"`
	SecretAccessKey string `hcl:"secret_access_key,optional"`
	SessionToken    string `hcl:"session_token,optional"`
}

// StorageBlock tunes the store client's retry and table-admin behavior.
type StorageBlock struct {
	RetryAttempts       int    `hcl:"retry_attempts,optional"`
	RetryIntervalMillis int    `hcl:"retry_interval_millis,optional"`
	PollIntervalSeconds int    `hcl:"poll_interval_seconds,optional"`
	PollTimeout         string `hcl:"poll_timeout,optional"`
}

func LoadConfig(configFile string) (*Config, error) {
	var config Config
	if err := hclsimple.DecodeFile(configFile, nil, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoggerConfig translates the log settings, applying defaults for
// anything unset. Unrecognized levels and formats fall back to the
// defaults.
func (c *Config) LoggerConfig() *log.Config {
	cfg := log.DefaultConfig()

	if c.LogLevel != "" {
		cfg.Level = log.ParseLogLevel(c.LogLevel)
	}
	if c.LogFormat != "" {
		cfg.Format = log.ParseOutputFormat(c.LogFormat)
	}
	if c.LogFile != "" {
		cfg.FileConfig = &log.FileConfig{
			Filename:   c.LogFile,
			MaxSize:    c.LogRotateMaxSize,
			MaxAge:     c.LogRotateMaxAge,
			MaxBackups: c.LogRotateMaxFiles,
		}
	}
	return cfg
}

// StorageConfig translates the storage block, applying the client
// defaults for anything unset.
func (c *Config) StorageConfig() (*dynamo.Config, error) {
	cfg := dynamo.DefaultConfig()
	if c.Storage == nil {
		return cfg, nil
	}

	if c.Storage.RetryAttempts > 0 {
		cfg.RetryAttempts = c.Storage.RetryAttempts
	}
	if c.Storage.RetryIntervalMillis > 0 {
		cfg.RetryInterval = time.Duration(c.Storage.RetryIntervalMillis) * time.Millisecond
	}
	if c.Storage.PollIntervalSeconds > 0 {
		cfg.PollInterval = time.Duration(c.Storage.PollIntervalSeconds) * time.Second
	}
	if c.Storage.PollTimeout != "" {
		timeout, err := time.ParseDuration(c.Storage.PollTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid poll_timeout: %w", err)
		}
		cfg.PollTimeout = timeout
	}
	return cfg, nil
}
