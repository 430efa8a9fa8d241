package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/observability/requestid"
)

// Action tags recorded in the audit trail
const (
	ActionPropertyCreate   = "property.create"
	ActionPropertyUpdate   = "property.update"
	ActionPropertyDelete   = "property.delete"
	ActionPropertyStatus   = "property.status"
	ActionContractCreate   = "contract.create"
	ActionContractEnd      = "contract.terminate"
	ActionContractDocument = "contract.document"
	ActionPaymentCreate    = "payment.create"
	ActionPaymentProof     = "payment.proof"
	ActionPaymentUpdate    = "payment.update"
	ActionPaymentLate      = "payment.late"
	ActionTicketCreate     = "ticket.create"
	ActionTicketStatus     = "ticket.status"
	ActionTicketAssign     = "ticket.assign"
	ActionTenantUpdate     = "tenant.update"
	ActionUserRegister     = "user.register"
	ActionUserPassword     = "user.password"
)

// SystemActor identifies records produced by background workers
const SystemActor = "system"

// Entry is one append-only audit record
type Entry struct {
	ActorID     string            `json:"actorId"`
	ActorRole   string            `json:"actorRole"`
	Action      string            `json:"action"`
	Description string            `json:"description"`
	Details     map[string]string `json:"details,omitempty"`
	RequestID   string            `json:"requestId,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Emitter accepts audit records. Emit never blocks on delivery and never fails
// the caller.
type Emitter interface {
	Emit(ctx context.Context, e Entry)
}

// Sink is a destination for audit records
type Sink interface {
	Name() string
	Write(ctx context.Context, e Entry) error
}

// Discard is an Emitter that drops every record
type Discard struct{}

func (Discard) Emit(context.Context, Entry) {}

// Logger writes audit records as structured log lines
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (al *Logger) Name() string { return "log" }

func (al *Logger) Write(ctx context.Context, e Entry) error {
	requestID := e.RequestID
	if requestID == "" {
		requestID = requestid.From(ctx)
	}

	attrs := []any{
		slog.String("action", e.Action),
		slog.String("actor_id", e.ActorID),
		slog.String("actor_role", e.ActorRole),
		slog.String("description", e.Description),
		slog.String("request_id", requestID),
		slog.Time("timestamp", e.Timestamp),
	}
	if len(e.Details) > 0 {
		details := make([]any, 0, len(e.Details))
		for k, v := range e.Details {
			details = append(details, slog.String(k, v))
		}
		attrs = append(attrs, slog.Group("details", details...))
	}
	al.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}
