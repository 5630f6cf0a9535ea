package notify

import (
	"context"
	"log"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Sink surfaces user-facing messages. Fire-and-forget: callers never
// consume a return value, so implementations must not block the caller
// on delivery problems.
type Sink interface {
	Notify(ctx context.Context, kind Kind, message string)
}

// LogSink writes notifications to a logger. Used as the fallback when
// no message broker is configured.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, kind Kind, message string) {
	s.logger.Printf("notify [%s] %s", kind, message)
}
