// Package recordlog is the structured record sink plugins write metrics and
// measurements to. Implementations must not block the caller meaningfully.
package recordlog

import "time"

// Record is one row of a named record stream.
type Record struct {
	// Stream names the record type, e.g. "offload_stats".
	Stream string         `json:"stream"`
	Time   time.Time      `json:"time"`
	Fields map[string]any `json:"fields"`
}

// New builds a Record stamped with the current time.
func New(stream string, fields map[string]any) Record {
	return Record{Stream: stream, Time: time.Now(), Fields: fields}
}

// Logger accepts records.
type Logger interface {
	Log(rec Record)
	LogMany(recs []Record)
	// Close flushes pending records and releases the backend.
	Close() error
}

// Noop discards every record.
type Noop struct{}

func (Noop) Log(Record)       {}
func (Noop) LogMany([]Record) {}
func (Noop) Close() error     { return nil }

var _ Logger = Noop{}
