package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// rotatingFiles tracks every lumberjack writer opened by this package so the
// host can close them on shutdown.
var (
	stderr = zapcore.Lock(os.Stderr)

	rotatingFiles   []*lumberjack.Logger
	rotatingFilesMu sync.Mutex
)

// newFileWriter opens a rotating file named after the level inside config.Dir.
func newFileWriter(config Config, level zapcore.Level) *lumberjack.Logger {
	_ = os.MkdirAll(config.Dir, 0o755)

	w := &lumberjack.Logger{
		Filename:   filepath.Join(config.Dir, level.String()+".log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
		LocalTime:  true,
	}

	rotatingFilesMu.Lock()
	rotatingFiles = append(rotatingFiles, w)
	rotatingFilesMu.Unlock()
	return w
}

// getWriteSyncer returns the sink for one level: stderr, a rotating file, or both.
func getWriteSyncer(config Config, level zapcore.Level) zapcore.WriteSyncer {
	var sinks []zapcore.WriteSyncer
	if config.LogInTerminal {
		sinks = append(sinks, stderr)
	}
	if config.Dir != "" {
		sinks = append(sinks, zapcore.AddSync(newFileWriter(config, level)))
	}
	if len(sinks) == 0 {
		return zapcore.AddSync(io.Discard)
	}
	return zapcore.NewMultiWriteSyncer(sinks...)
}

// CloseAllWriters closes every rotating file opened by NewLogger.
func CloseAllWriters() error {
	rotatingFilesMu.Lock()
	defer rotatingFilesMu.Unlock()

	var lastErr error
	for _, w := range rotatingFiles {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	rotatingFiles = nil
	return lastErr
}
