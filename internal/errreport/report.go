// Package errreport is the fire-and-forget diagnostic channel. Reporters never
// return errors and never block callers on delivery.
package errreport

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reporter accepts diagnostics for out-of-band delivery.
type Reporter interface {
	Report(ctx context.Context, err error, fields map[string]string)
}

// Event is the payload delivered to remote channels.
type Event struct {
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	ReportedAt time.Time         `json:"reportedAt"`
}

func NewEvent(err error, fields map[string]string) Event {
	message := "<nil>"
	if err != nil {
		message = err.Error()
	}
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Event{Message: message, Fields: copied, ReportedAt: time.Now().UTC()}
}

type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(_ context.Context, err error, fields map[string]string) {
	zfields := make([]zap.Field, 0, len(fields)+1)
	zfields = append(zfields, zap.Error(err))
	for k, v := range fields {
		zfields = append(zfields, zap.String(k, v))
	}
	r.logger.Error("reported error", zfields...)
}

// Multi fans a report out to every reporter in order.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, err error, fields map[string]string) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, err, fields)
		}
	}
}

type Nop struct{}

func (Nop) Report(context.Context, error, map[string]string) {}
