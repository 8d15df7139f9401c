package commands

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-report-builder/components/editor"
)

type layoutService interface {
	UpdateLayout(ctx context.Context, sessionID string, layout []editor.LayoutItem) error
}

// UpdateLayoutInput replaces the grid placement of every chart.
type UpdateLayoutInput struct {
	Actor
	SessionID string
	Layout    []editor.LayoutItem
}

// UpdateLayoutCommand persists layout edits coming from the grid.
type UpdateLayoutCommand struct {
	service   layoutService
	telemetry Telemetry
}

func NewUpdateLayoutCommand(service layoutService, telemetry Telemetry) *UpdateLayoutCommand {
	return &UpdateLayoutCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[UpdateLayoutInput] = (*UpdateLayoutCommand)(nil)

func (c *UpdateLayoutCommand) Execute(ctx context.Context, msg UpdateLayoutInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	if err := c.service.UpdateLayout(ctx, msg.SessionID, msg.Layout); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "editor.command.update_layout", map[string]any{
		"session_id": msg.SessionID,
		"items":      len(msg.Layout),
	})
	return nil
}
