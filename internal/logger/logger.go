// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package logger configures the global zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/gamarr/internal/domain"
)

// ParseLevel maps config level names to zerolog levels, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup points the global logger at stderr, plus a rotated file when
// cfg.LogPath is set. It returns a closer for the file output.
func Setup(cfg *domain.Config) io.Closer {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(cfg.LogLevel))

	var console io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	}

	var file *lumberjack.Logger
	writers := []io.Writer{console}
	if path := strings.TrimSpace(cfg.LogPath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to create log directory, logging to stderr only")
		} else {
			file = newRotatingFile(path, cfg.LogMaxSize, cfg.LogMaxBackups)
			writers = append(writers, file)
		}
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	if file == nil {
		return nopCloser{}
	}
	return file
}

func newRotatingFile(path string, maxSize, maxBackups int) *lumberjack.Logger {
	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   false,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
