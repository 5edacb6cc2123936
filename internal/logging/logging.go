// Package logging sets up the zap logger. The terminal belongs to the TUI, so
// log output always goes to a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New opens path for appending and returns a JSON logger writing to it.
// The returned func flushes and closes the file.
func New(path string, debug bool) (*zap.SugaredLogger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level)
	logger := zap.New(core, zap.AddCaller()).Sugar()

	closeFn := func() {
		if serr := logger.Sync(); serr != nil {
			// Best-effort flush.
			_ = serr
		}
		if cerr := f.Close(); cerr != nil {
			_ = cerr
		}
	}
	return logger, closeFn, nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
