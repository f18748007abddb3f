package recordlog

import (
	"go.uber.org/zap"

	"github.com/leeforge/xrcore/logging"
)

// Console writes records to the process logger at info level.
type Console struct {
	logger logging.Logger
}

func NewConsole(logger logging.Logger) *Console {
	return &Console{logger: logger.Named("record")}
}

func (c *Console) Log(rec Record) {
	fields := make([]zap.Field, 0, len(rec.Fields)+1)
	fields = append(fields, zap.Time("record_time", rec.Time))
	for k, v := range rec.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	c.logger.Info(rec.Stream, fields...)
}

func (c *Console) LogMany(recs []Record) {
	for _, rec := range recs {
		c.Log(rec)
	}
}

func (c *Console) Close() error {
	return nil
}

var _ Logger = (*Console)(nil)
