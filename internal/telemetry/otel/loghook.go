package otel

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	otellog "go.opentelemetry.io/otel/log"
)

const instrumentationName = "pulsedeck"

// Emitter is the subset of otellog.Logger used by LogHook.
type Emitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// LogHook is a logrus hook that re-emits entries as OTel log records.
type LogHook struct {
	emitter Emitter
	levels  []logrus.Level
}

// NewLogHook returns a hook emitting through provider's "pulsedeck" logger for entries at level or
// more severe.
func NewLogHook(provider otellog.LoggerProvider, level logrus.Level) *LogHook {
	return NewLogHookWithEmitter(provider.Logger(instrumentationName), level)
}

// NewLogHookWithEmitter is NewLogHook with an explicit emitter.
func NewLogHookWithEmitter(e Emitter, level logrus.Level) *LogHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= level {
			levels = append(levels, l)
		}
	}
	return &LogHook{emitter: e, levels: levels}
}

// Levels implements logrus.Hook.
func (h *LogHook) Levels() []logrus.Level { return h.levels }

// Fire implements logrus.Hook.
func (h *LogHook) Fire(entry *logrus.Entry) error {
	var rec otellog.Record
	rec.SetTimestamp(entry.Time)
	rec.SetObservedTimestamp(entry.Time)
	rec.SetBody(otellog.StringValue(entry.Message))
	rec.SetSeverity(severity(entry.Level))
	rec.SetSeverityText(entry.Level.String())
	for k, v := range entry.Data {
		rec.AddAttributes(attribute(k, v))
	}
	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	h.emitter.Emit(ctx, rec)
	return nil
}

func attribute(k string, v interface{}) otellog.KeyValue {
	switch x := v.(type) {
	case string:
		return otellog.String(k, x)
	case bool:
		return otellog.Bool(k, x)
	case int:
		return otellog.Int(k, x)
	case int64:
		return otellog.Int64(k, x)
	case float64:
		return otellog.Float64(k, x)
	case error:
		return otellog.String(k, x.Error())
	default:
		return otellog.String(k, fmt.Sprint(x))
	}
}

func severity(l logrus.Level) otellog.Severity {
	switch l {
	case logrus.TraceLevel:
		return otellog.SeverityTrace
	case logrus.DebugLevel:
		return otellog.SeverityDebug
	case logrus.InfoLevel:
		return otellog.SeverityInfo
	case logrus.WarnLevel:
		return otellog.SeverityWarn
	case logrus.ErrorLevel:
		return otellog.SeverityError
	default:
		return otellog.SeverityFatal
	}
}
