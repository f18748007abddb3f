package runtime

import (
	"go.uber.org/zap/zapcore"

	"github.com/leeforge/xrcore/logging"
	"github.com/leeforge/xrcore/recordlog"
)

const logStream = "log"

// forwardTo copies log entries into the record logger so warnings and
// errors end up next to plugin records.
func forwardTo(records recordlog.Logger) logging.Hook {
	return func(entry zapcore.Entry, fields []zapcore.Field) {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			f.AddTo(enc)
		}
		enc.Fields["level"] = entry.Level.String()
		enc.Fields["message"] = entry.Message
		if entry.LoggerName != "" {
			enc.Fields["logger"] = entry.LoggerName
		}

		rec := recordlog.New(logStream, enc.Fields)
		rec.Time = entry.Time
		records.Log(rec)
	}
}
