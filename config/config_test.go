package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	log "github.com/stephnangue/idstore/logger"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idstore.hcl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
log_level  = "debug"
log_format = "json"

aws {
  region   = "eu-west-1"
  endpoint = "http://localhost:8000"
}

storage {
  retry_attempts        = 5
  retry_interval_millis = 100
  poll_timeout          = "30s"
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.AWS)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "http://localhost:8000", cfg.AWS.Endpoint)

	logCfg := cfg.LoggerConfig()
	assert.Equal(t, log.DebugLevel, logCfg.Level)
	assert.Equal(t, log.JSONFormat, logCfg.Format)

	storeCfg, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, storeCfg.RetryAttempts)
	assert.Equal(t, 100*time.Millisecond, storeCfg.RetryInterval)
	assert.Equal(t, 30*time.Second, storeCfg.PollTimeout)
	// Unset knobs keep their defaults.
	assert.Equal(t, 2*time.Second, storeCfg.PollInterval)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, ``)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	logCfg := cfg.LoggerConfig()
	assert.Equal(t, log.DefaultConfig().Level, logCfg.Level)
	assert.Nil(t, logCfg.FileConfig)

	storeCfg, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, storeCfg.RetryAttempts)
}

func TestLoadConfig_FileLogging(t *testing.T) {
	path := writeConfig(t, `
log_file             = "logs/idstore.log"
log_rotate_megabytes = 50
log_rotate_max_files = 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	logCfg := cfg.LoggerConfig()
	require.NotNil(t, logCfg.FileConfig)
	assert.Equal(t, "logs/idstore.log", logCfg.FileConfig.Filename)
	assert.Equal(t, 50, logCfg.FileConfig.MaxSize)
	assert.Equal(t, 3, logCfg.FileConfig.MaxBackups)
}

func TestLoggerConfig_UnknownInputsFallBack(t *testing.T) {
	cfg := &Config{LogLevel: "verbose", LogFormat: "yaml"}

	logCfg := cfg.LoggerConfig()
	assert.Equal(t, log.InfoLevel, logCfg.Level)
	assert.Equal(t, log.DefaultFormat, logCfg.Format)
}

func TestStorageConfig_BadTimeout(t *testing.T) {
	cfg := &Config{Storage: &StorageBlock{PollTimeout: "soon"}}
	_, err := cfg.StorageConfig()
	require.Error(t, err)
}
