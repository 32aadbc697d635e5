// Package csvfile is the lead log of last resort: an append-only CSV on
// local disk, used whenever the sheet cannot be reached.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"counselordev/leads"
	"counselordev/logger"
)

type CSVConnectProps struct {
	Logger *logger.LogMiddleware
	Path   string
}

type CSV struct {
	logger *logger.LogMiddleware
	path   string
	mu     sync.Mutex
}

func Connect(ctx context.Context, args CSVConnectProps) *CSV {
	tracer := otel.Tracer("csvfile/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	path := args.Path
	if path == "" {
		path = "leads.csv"
	}
	span.SetAttributes(attribute.String("csv.path", path))
	args.Logger.Logger(ctx).Info("[CSVFile] Fallback lead log ready", zap.String("path", path))

	return &CSV{logger: args.Logger, path: path}
}

// Append writes one lead row, creating the file with a header row first when
// it does not exist yet.
func (c *CSV) Append(ctx context.Context, lead leads.Lead) error {
	tracer := otel.Tracer("csvfile/Append")
	ctx, span := tracer.Start(ctx, "Append")
	defer span.End()

	span.SetAttributes(attribute.String("lead.session_id", lead.SessionID))

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		span.RecordError(err)
		c.logger.Logger(ctx).Error("[CSVFile] Could not open fallback file",
			zap.Error(err), zap.String("path", c.path))
		return fmt.Errorf("open fallback file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("stat fallback file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(leads.Headers); err != nil {
			span.RecordError(err)
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	if err := w.Write(lead.Row()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write csv row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		span.RecordError(err)
		c.logger.Logger(ctx).Error("[CSVFile] Could not flush fallback file", zap.Error(err))
		return fmt.Errorf("flush csv: %w", err)
	}

	c.logger.Logger(ctx).Info("[CSVFile] Lead appended to fallback file",
		zap.String("session_id", lead.SessionID))
	return nil
}
