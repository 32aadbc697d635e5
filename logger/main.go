// Package logger provides the trace-aware zap logger shared by every
// component. In production, log records ship through the OTLP exporter.
package logger

import (
	"context"

	"github.com/hyperdxio/opentelemetry-go/otelzap"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type LoggerConnectProps struct {
	Production     bool
	LoggerProvider *sdk.LoggerProvider
}

type LogMiddleware struct {
	logger *zap.Logger
}

func Connect(args LoggerConnectProps) *LogMiddleware {
	var logger *zap.Logger

	switch {
	case args.Production && args.LoggerProvider != nil:
		logger = zap.New(otelzap.NewOtelCore(args.LoggerProvider))
		zap.ReplaceGlobals(logger)
		logger.Info("[Logger] Starting logger with production config")
	case args.Production:
		logger, _ = zap.NewProduction()
		zap.ReplaceGlobals(logger)
	default:
		logger, _ = zap.NewDevelopment()
	}

	return &LogMiddleware{logger: logger}
}

// Logger returns the base logger enriched with the span identity carried by
// ctx, when one exists.
func (l *LogMiddleware) Logger(ctx context.Context) *zap.Logger {
	spanContext := trace.SpanContextFromContext(ctx)
	if !spanContext.IsValid() {
		return l.logger
	}

	return l.logger.With(
		zap.String("trace_id", spanContext.TraceID().String()),
		zap.String("span_id", spanContext.SpanID().String()),
	)
}
