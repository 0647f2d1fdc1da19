// README: Best-effort audit trail; failures never fail the operation.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"relaxedrive/internal/types"
)

// Logger records who did what to which resource. Implementations must be
// best-effort: Log has no error return on purpose.
type Logger interface {
	Log(ctx context.Context, actorID types.ID, action, resource string, payload any)
}

// Slog writes audit entries to structured logs.
type Slog struct {
	logger *slog.Logger
}

func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

func (s *Slog) Log(ctx context.Context, actorID types.ID, action, resource string, payload any) {
	attrs := []any{
		slog.String("actor_id", string(actorID)),
		slog.String("action", action),
		slog.String("resource", resource),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			attrs = append(attrs, slog.String("payload", string(raw)))
		}
	}
	s.logger.InfoContext(ctx, "audit", attrs...)
}

// Nop discards audit entries, used in tests.
type Nop struct{}

func (Nop) Log(ctx context.Context, actorID types.ID, action, resource string, payload any) {}
