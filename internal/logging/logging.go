// Package logging builds the zap loggers shared by the CLI, worker and API.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"litreview/internal/config"
	"litreview/internal/util"
)

// New returns a JSON logger named name writing to stderr. Verbose lowers the
// level to debug. When cfg.LogsDir is set, entries also go to <LogsDir>/<name>.log,
// which rotates once it reaches cfg.LogMaxSizeMB.
func New(cfg config.Config, name string) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Verbose {
		level.SetLevel(zapcore.DebugLevel)
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stderr), level),
	}
	if cfg.LogsDir != "" {
		if err := util.EnsureDir(cfg.LogsDir); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(rotatingFile(cfg, name)), level))
	}
	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return log.Named(name), nil
}

func rotatingFile(cfg config.Config, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogsDir, name+".log"),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}
}
