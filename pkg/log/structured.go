package log

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rentscope/market-planner/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger emits one record per operation step. Records are written through the
// global zap logger at call time so it follows zap.ReplaceGlobals.
type StructuredLogger struct {
	name  string
	level zapcore.Level
}

// NewDebugLogger returns a logger whose step and success records are emitted at debug level.
// Errors are always emitted at error level.
func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.DebugLevel}
}

// NewInfoLogger is like NewDebugLogger but emits success records at info level.
func NewInfoLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.InfoLevel}
}

type ContextLogger struct {
	parent *StructuredLogger
	fields []zap.Field
}

func (l *StructuredLogger) WithContext(ctx context.Context) *ContextLogger {
	cl := &ContextLogger{parent: l}
	if ctx != nil {
		reqID := requestid.FromContext(ctx)
		if reqID == "" {
			reqID = middleware.GetReqID(ctx)
		}
		if reqID != "" {
			cl.fields = append(cl.fields, zap.String("request_id", reqID))
		}
	}
	return cl
}

func (c *ContextLogger) Operation(name string) *OperationBuilder {
	fields := make([]zap.Field, 0, len(c.fields)+4)
	fields = append(fields, c.fields...)
	return &OperationBuilder{parent: c.parent, operation: name, fields: fields}
}

type OperationBuilder struct {
	parent    *StructuredLogger
	operation string
	fields    []zap.Field
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value))
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, zap.Int(key, value))
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, zap.Bool(key, value))
	return b
}

func (b *OperationBuilder) WithUUID(key string, value uuid.UUID) *OperationBuilder {
	b.fields = append(b.fields, zap.Stringer(key, value))
	return b
}

func (b *OperationBuilder) WithUUIDPtr(key string, value *uuid.UUID) *OperationBuilder {
	if value == nil {
		b.fields = append(b.fields, zap.Skip())
		return b
	}
	return b.WithUUID(key, *value)
}

func (b *OperationBuilder) WithDuration(key string, value time.Duration) *OperationBuilder {
	b.fields = append(b.fields, zap.Duration(key, value))
	return b
}

func (b *OperationBuilder) WithParam(key string, value any) *OperationBuilder {
	b.fields = append(b.fields, zap.Any(key, value))
	return b
}

func (b *OperationBuilder) Build() *OperationTracer {
	return &OperationTracer{
		parent:    b.parent,
		operation: b.operation,
		fields:    b.fields,
		started:   time.Now(),
	}
}

type OperationTracer struct {
	parent    *StructuredLogger
	operation string
	fields    []zap.Field
	started   time.Time
}

func (t *OperationTracer) Step(name string) *LogEntry {
	return t.entry(t.parent.level, "operation step", zap.String("step", name))
}

func (t *OperationTracer) Success() *LogEntry {
	return t.entry(t.parent.level, "operation succeeded")
}

func (t *OperationTracer) Warn(msg string) *LogEntry {
	return t.entry(zapcore.WarnLevel, msg)
}

func (t *OperationTracer) Error(err error) *LogEntry {
	return t.entry(zapcore.ErrorLevel, "operation failed", zap.Error(err))
}

func (t *OperationTracer) entry(level zapcore.Level, msg string, extra ...zap.Field) *LogEntry {
	fields := make([]zap.Field, 0, len(t.fields)+len(extra)+2)
	fields = append(fields, zap.String("operation", t.operation))
	fields = append(fields, t.fields...)
	fields = append(fields, extra...)
	return &LogEntry{tracer: t, level: level, msg: msg, fields: fields}
}

type LogEntry struct {
	tracer *OperationTracer
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

func (e *LogEntry) WithString(key, value string) *LogEntry {
	e.fields = append(e.fields, zap.String(key, value))
	return e
}

func (e *LogEntry) WithInt(key string, value int) *LogEntry {
	e.fields = append(e.fields, zap.Int(key, value))
	return e
}

func (e *LogEntry) WithBool(key string, value bool) *LogEntry {
	e.fields = append(e.fields, zap.Bool(key, value))
	return e
}

func (e *LogEntry) WithUUID(key string, value uuid.UUID) *LogEntry {
	e.fields = append(e.fields, zap.Stringer(key, value))
	return e
}

func (e *LogEntry) WithParam(key string, value any) *LogEntry {
	e.fields = append(e.fields, zap.Any(key, value))
	return e
}

func (e *LogEntry) Log() {
	e.fields = append(e.fields, zap.Int64("duration_ms", time.Since(e.tracer.started).Milliseconds()))
	logger := zap.L().Named(e.tracer.parent.name)
	if ce := logger.Check(e.level, e.msg); ce != nil {
		ce.Write(e.fields...)
	}
}
