package logger

import (
	"io"
	"os"
)

// FileConfig holds the configuration for rotated file output
type FileConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

// Config holds the configuration for the logger
type Config struct {
	Level      LogLevel
	Format     OutputFormat
	Output     io.Writer
	Subsystem  string
	FileConfig *FileConfig
}

// DefaultConfig returns a default configuration suitable for
// development and tests: human-readable output on stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:  TraceLevel,
		Format: DefaultFormat,
		Output: os.Stdout,
	}
}

// ProductionConfig returns a JSON configuration with rotated file logging.
func ProductionConfig(appName string) *Config {
	return &Config{
		Level:  InfoLevel,
		Format: JSONFormat,
		Output: os.Stdout,
		FileConfig: &FileConfig{
			Filename:   "logs/" + appName + ".log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}
