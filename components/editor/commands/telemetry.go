package commands

import (
	"context"

	"github.com/goliatone/go-report-builder/components/editor"
)

// Telemetry allows commands to emit structured events.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

// Actor identifies who issued a command. Commands attach it to the context
// before calling the service so telemetry and activity events carry it.
type Actor struct {
	ActorID  string `json:"actor_id"`
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// bind leaves ctx untouched when a is empty so identities set upstream survive.
func (a Actor) bind(ctx context.Context) context.Context {
	if a == (Actor{}) {
		return ctx
	}
	return editor.ContextWithActivity(ctx, editor.ActivityContext{
		ActorID:  a.ActorID,
		UserID:   a.UserID,
		TenantID: a.TenantID,
	})
}
