// Package logx configures the global zerolog logger from the
// environment. Services call Setup once at startup and use the zerolog
// global `log` package everywhere else.
package logx

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction, via env or code.
type Config struct {
	Service        string // e.g. "serve", "cli"
	Level          string // debug|info|warn|error
	Format         string // json|console
	FilePath       string // "" disables file output
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
	FileCompress   bool
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

// FromEnv builds a Config from environment variables with sane defaults.
func FromEnv(service string) Config {
	return Config{
		Service:        service,
		Level:          strings.ToLower(getenv("LOG_LEVEL", "info")),
		Format:         strings.ToLower(getenv("LOG_FORMAT", "console")),
		FilePath:       getenv("LOG_FILE", ""),
		FileMaxSizeMB:  getenvInt("LOG_FILE_MAX_SIZE", 50),
		FileMaxBackups: getenvInt("LOG_FILE_MAX_BACKUPS", 3),
		FileMaxAgeDays: getenvInt("LOG_FILE_MAX_AGE", 7),
		FileCompress:   getenvBool("LOG_FILE_COMPRESS", true),
	}
}

// Setup configures the zerolog global logger and returns it.
func Setup(c Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if c.Format == "console" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		writers = append(writers, os.Stderr)
	}

	if c.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.FileMaxSizeMB,
			MaxBackups: c.FileMaxBackups,
			MaxAge:     c.FileMaxAgeDays,
			Compress:   c.FileCompress,
		})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("service", c.Service).
		Logger()

	log.Logger = logger
	return logger
}
