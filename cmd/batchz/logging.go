package main

import (
	"context"
	"fmt"
	"io"

	"github.com/zoobzio/capitan"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoobzio/batchz"
)

// Log field names.
const (
	logFieldSignal = "signal"
	logFieldLine   = "line"
)

// newLogger builds the CLI logger writing to w: JSON for machine consumption,
// otherwise a console encoder for people.
func newLogger(w io.Writer, jsonOutput bool, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var encoder zapcore.Encoder
	if jsonOutput {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = ""
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)), nil
}

// bridgeSignals logs every batchz signal through logger. The returned
// function detaches the listeners.
func bridgeSignals(logger *zap.Logger) func() {
	processorInvalid := capitan.Hook(batchz.SignalProcessorInvalid, logSignal(logger, "processor.invalid", zapcore.WarnLevel))
	streamProcessed := capitan.Hook(batchz.SignalStreamProcessed, logSignal(logger, "stream.processed", zapcore.InfoLevel))
	streamAlert := capitan.Hook(batchz.SignalStreamAlert, logSignal(logger, "stream.alert", zapcore.WarnLevel))
	pipelineCompleted := capitan.Hook(batchz.SignalPipelineCompleted, logSignal(logger, "pipeline.completed", zapcore.InfoLevel))
	stageFailed := capitan.Hook(batchz.SignalPipelineStageFailed, logSignal(logger, "pipeline.stage-failed", zapcore.ErrorLevel))
	pipelineRejected := capitan.Hook(batchz.SignalPipelineRejected, logSignal(logger, "pipeline.rejected", zapcore.WarnLevel))
	dispatched := capitan.Hook(batchz.SignalDispatcherDispatched, logSignal(logger, "dispatcher.dispatched", zapcore.InfoLevel))
	ownerFailed := capitan.Hook(batchz.SignalDispatcherOwnerFailed, logSignal(logger, "dispatcher.owner-failed", zapcore.ErrorLevel))

	return func() {
		processorInvalid.Close()
		streamProcessed.Close()
		streamAlert.Close()
		pipelineCompleted.Close()
		stageFailed.Close()
		pipelineRejected.Close()
		dispatched.Close()
		ownerFailed.Close()
	}
}

func logSignal(logger *zap.Logger, name string, level zapcore.Level) func(context.Context, *capitan.Event) {
	return func(_ context.Context, e *capitan.Event) {
		fields := append([]zap.Field{zap.String(logFieldSignal, name)}, signalFields(e)...)
		if ce := logger.Check(level, name); ce != nil {
			ce.Write(fields...)
		}
	}
}

type eventKey[T any] interface {
	From(*capitan.Event) (T, bool)
}

func appendString[K eventKey[string]](fields []zap.Field, e *capitan.Event, key K, name string) []zap.Field {
	if v, ok := key.From(e); ok && v != "" {
		fields = append(fields, zap.String(name, v))
	}
	return fields
}

func appendInt[K eventKey[int]](fields []zap.Field, e *capitan.Event, key K, name string) []zap.Field {
	if v, ok := key.From(e); ok {
		fields = append(fields, zap.Int(name, v))
	}
	return fields
}

func appendFloat[K eventKey[float64]](fields []zap.Field, e *capitan.Event, key K, name string) []zap.Field {
	if v, ok := key.From(e); ok {
		fields = append(fields, zap.Float64(name, v))
	}
	return fields
}

// signalFields extracts the batchz fields present on e.
func signalFields(e *capitan.Event) []zap.Field {
	var fields []zap.Field
	fields = appendString(fields, e, batchz.FieldName, "name")
	fields = appendString(fields, e, batchz.FieldKind, "kind")
	fields = appendString(fields, e, batchz.FieldAdapter, "adapter")
	fields = appendString(fields, e, batchz.FieldStage, "stage")
	fields = appendString(fields, e, batchz.FieldOwner, "owner")
	fields = appendString(fields, e, batchz.FieldReason, "reason")
	fields = appendString(fields, e, batchz.FieldSummary, "summary")
	fields = appendString(fields, e, batchz.FieldResult, "result")
	fields = appendString(fields, e, batchz.FieldError, "error")
	fields = appendInt(fields, e, batchz.FieldCount, "count")
	fields = appendInt(fields, e, batchz.FieldOutOfRange, "out_of_range")
	fields = appendInt(fields, e, batchz.FieldStageNumber, "stage_number")
	fields = appendInt(fields, e, batchz.FieldStageCount, "stage_count")
	fields = appendFloat(fields, e, batchz.FieldDuration, "duration_s")
	return fields
}

// consoleSink writes dispatcher lines to w and records them at debug level.
func consoleSink(w io.Writer, logger *zap.Logger) batchz.Sink {
	out := batchz.WriterSink(w)
	return batchz.SinkFunc(func(ctx context.Context, line string) {
		out.Emit(ctx, line)
		logger.Debug("dispatcher line", zap.String(logFieldLine, line))
	})
}
