// Package leadlog routes finalized leads to durable storage: the shared
// Google Sheet first, the local CSV file when the sheet is unreachable. The
// fallback is a single ordered hop, never a retry loop.
package leadlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"counselordev/leads"
	"counselordev/logger"
)

// Store is a backing store that accepts one lead row.
type Store interface {
	Append(ctx context.Context, lead leads.Lead) error
}

// Result records which store accepted a lead.
type Result int

const (
	PrimaryUsed Result = iota
	FallbackUsed
	TotalFailure
)

func (r Result) String() string {
	switch r {
	case PrimaryUsed:
		return "primary"
	case FallbackUsed:
		return "fallback"
	default:
		return "total_failure"
	}
}

var errPrimaryUnavailable = errors.New("primary store not configured")

// maxAuditEntries bounds the audit trail; the oldest entries fall off so a
// long-lived process cannot grow the slice without limit.
const maxAuditEntries = 512

// AuditEntry is one persistence outcome, kept for operator inspection. It
// never drives retries.
type AuditEntry struct {
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	Result       string    `json:"result"`
	PrimaryError string    `json:"primary_error,omitempty"`
	FallbackErr  string    `json:"fallback_error,omitempty"`
}

type RouterConnectProps struct {
	Logger   *logger.LogMiddleware
	Primary  Store
	Fallback Store
}

// Router is the two-step persistence pipeline. Primary may be nil when the
// sheet connection failed at startup; every persist then goes straight to
// the fallback.
type Router struct {
	logger   *logger.LogMiddleware
	primary  Store
	fallback Store

	mu    sync.Mutex
	audit []AuditEntry
}

func Connect(ctx context.Context, args RouterConnectProps) *Router {
	tracer := otel.Tracer("leadlog/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	span.SetAttributes(attribute.Bool("primary.configured", args.Primary != nil))
	args.Logger.Logger(ctx).Info("[LeadLog] Persistence router started",
		zap.Bool("primary_configured", args.Primary != nil))

	return &Router{logger: args.Logger, primary: args.Primary, fallback: args.Fallback}
}

// Persist writes the lead to the primary store, falling back to the local
// file on any primary failure. All primary errors are treated uniformly.
// TotalFailure is the only operator-visible failure in the system.
func (r *Router) Persist(ctx context.Context, lead leads.Lead) Result {
	tracer := otel.Tracer("leadlog/Persist")
	ctx, span := tracer.Start(ctx, "Persist")
	defer span.End()

	span.SetAttributes(attribute.String("lead.session_id", lead.SessionID))
	log := r.logger.Logger(ctx)

	entry := AuditEntry{SessionID: lead.SessionID, Timestamp: time.Now()}

	primaryErr := errPrimaryUnavailable
	if r.primary != nil {
		primaryErr = r.primary.Append(ctx, lead)
	}
	if primaryErr == nil {
		log.Info("[LeadLog] Lead written to primary store", zap.String("session_id", lead.SessionID))
		entry.Result = PrimaryUsed.String()
		r.record(entry)
		return PrimaryUsed
	}

	span.RecordError(primaryErr)
	log.Warn("[LeadLog] Primary store failed, writing to fallback",
		zap.Error(primaryErr),
		zap.String("session_id", lead.SessionID))
	entry.PrimaryError = primaryErr.Error()

	fallbackErr := r.fallback.Append(ctx, lead)
	if fallbackErr == nil {
		log.Info("[LeadLog] Lead written to fallback store", zap.String("session_id", lead.SessionID))
		entry.Result = FallbackUsed.String()
		r.record(entry)
		return FallbackUsed
	}

	span.RecordError(fallbackErr)
	log.Error("[LeadLog] Both stores failed, lead not durably stored",
		zap.Error(fallbackErr),
		zap.String("session_id", lead.SessionID))
	entry.Result = TotalFailure.String()
	entry.FallbackErr = fallbackErr.Error()
	r.record(entry)
	return TotalFailure
}

func (r *Router) record(entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, entry)
	if len(r.audit) > maxAuditEntries {
		r.audit = r.audit[len(r.audit)-maxAuditEntries:]
	}
}

// Audit returns the persistence outcomes recorded since startup.
func (r *Router) Audit() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AuditEntry, len(r.audit))
	copy(out, r.audit)
	return out
}
