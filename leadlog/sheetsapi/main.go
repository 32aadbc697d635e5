// Package sheetsapi is the primary lead store: one row per lead appended to
// a shared Google Sheet.
package sheetsapi

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"counselordev/leads"
	"counselordev/logger"
)

const headerRange = "A1:O1"

type SheetsConnectProps struct {
	Logger *logger.LogMiddleware
}

type Sheets struct {
	logger  *logger.LogMiddleware
	svc     *sheets.Service
	sheetID string
}

// Connect authenticates against the Sheets API with a service-account key
// file and verifies the header row. A connection error here is not fatal to
// the service; the caller runs with the CSV fallback only.
func Connect(ctx context.Context, args SheetsConnectProps) (*Sheets, error) {
	tracer := otel.Tracer("sheetsapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	log := args.Logger.Logger(ctx)

	sheetID := os.Getenv("SHEET_ID")
	if sheetID == "" {
		return nil, fmt.Errorf("SHEET_ID environment variable not set")
	}

	credsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE")
	if credsFile == "" {
		credsFile = "credentials.json"
	}
	span.SetAttributes(attribute.String("sheets.sheet_id", sheetID))

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		span.RecordError(err)
		log.Error("[SheetsAPI] Could not create Sheets client", zap.Error(err))
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	s := &Sheets{logger: args.Logger, svc: svc, sheetID: sheetID}
	if err := s.ensureHeaders(ctx); err != nil {
		span.RecordError(err)
		log.Error("[SheetsAPI] Could not verify sheet headers", zap.Error(err))
		return nil, err
	}

	log.Info("[SheetsAPI] Connected to lead sheet", zap.String("sheet_id", sheetID))
	return s, nil
}

// ensureHeaders writes the header row into an empty sheet. A mismatched
// existing header is logged, never overwritten.
func (s *Sheets) ensureHeaders(ctx context.Context) error {
	tracer := otel.Tracer("sheetsapi/ensureHeaders")
	ctx, span := tracer.Start(ctx, "ensureHeaders")
	defer span.End()

	resp, err := s.svc.Spreadsheets.Values.Get(s.sheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header row: %w", err)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(leads.Headers)}}
		_, err = s.svc.Spreadsheets.Values.Update(s.sheetID, headerRange, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header row: %w", err)
		}
		s.logger.Logger(ctx).Info("[SheetsAPI] Header row added to empty sheet")
		return nil
	}

	existing := resp.Values[0]
	for i, h := range leads.Headers {
		if i >= len(existing) || existing[i] != h {
			s.logger.Logger(ctx).Warn("[SheetsAPI] Sheet header mismatch, leaving sheet untouched",
				zap.Int("column", i+1),
				zap.String("expected", h))
			break
		}
	}
	return nil
}

// Append adds one lead row to the sheet. Any failure is reported to the
// caller uniformly; the router decides what happens next.
func (s *Sheets) Append(ctx context.Context, lead leads.Lead) error {
	tracer := otel.Tracer("sheetsapi/Append")
	ctx, span := tracer.Start(ctx, "Append")
	defer span.End()

	span.SetAttributes(attribute.String("lead.session_id", lead.SessionID))

	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(lead.Row())}}
	_, err := s.svc.Spreadsheets.Values.Append(s.sheetID, "A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		s.logger.Logger(ctx).Error("[SheetsAPI] Could not append lead row",
			zap.Error(err),
			zap.String("session_id", lead.SessionID))
		return fmt.Errorf("append lead row: %w", err)
	}

	s.logger.Logger(ctx).Info("[SheetsAPI] Lead row appended",
		zap.String("session_id", lead.SessionID))
	return nil
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
