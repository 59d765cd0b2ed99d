package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanseplat/userhub/internal/config"
	"github.com/hanseplat/userhub/internal/db"
)

// newLogger builds the process logger from config. The verbose flag forces
// debug regardless of the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch cfg.LogLevel {
	case config.LogDebug:
		level = zapcore.DebugLevel
	case config.LogWarn:
		level = zapcore.WarnLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}

// openDatabase opens (creating if needed) the SQLite database under the
// configured data directory.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return db.Open(filepath.Join(cfg.DataDir, "userhub.db"))
}
