package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-report-builder/components/editor"
)

var errMissingService = errors.New("commands: editor service is required")

type chartService interface {
	AddChart(ctx context.Context, sessionID string, t editor.ChartType) (editor.ChartConfig, error)
	RemoveChart(ctx context.Context, sessionID, chartID string) error
	DuplicateChart(ctx context.Context, sessionID, chartID string) (editor.ChartConfig, error)
	UpdateChart(ctx context.Context, sessionID, chartID string, patch editor.ChartPatch) (editor.ChartConfig, error)
	SelectChart(ctx context.Context, sessionID, chartID string) error
}

// AddChartInput adds a chart of Type to a session. Result receives the new
// chart when set.
type AddChartInput struct {
	Actor
	SessionID string
	Type      editor.ChartType
	Result    *editor.ChartConfig
}

// AddChartCommand appends default charts.
type AddChartCommand struct {
	service   chartService
	telemetry Telemetry
}

func NewAddChartCommand(service chartService, telemetry Telemetry) *AddChartCommand {
	return &AddChartCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[AddChartInput] = (*AddChartCommand)(nil)

func (c *AddChartCommand) Execute(ctx context.Context, msg AddChartInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	cfg, err := c.service.AddChart(ctx, msg.SessionID, msg.Type)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = cfg
	}
	c.telemetry.Record(ctx, "editor.command.add_chart", map[string]any{
		"session_id": msg.SessionID,
		"chart_id":   cfg.ID,
		"chart_type": string(msg.Type),
	})
	return nil
}

// RemoveChartInput identifies the chart to delete.
type RemoveChartInput struct {
	Actor
	SessionID string
	ChartID   string
}

// RemoveChartCommand deletes charts.
type RemoveChartCommand struct {
	service   chartService
	telemetry Telemetry
}

func NewRemoveChartCommand(service chartService, telemetry Telemetry) *RemoveChartCommand {
	return &RemoveChartCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RemoveChartInput] = (*RemoveChartCommand)(nil)

func (c *RemoveChartCommand) Execute(ctx context.Context, msg RemoveChartInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	if msg.ChartID == "" {
		return errors.New("commands: chart id is required")
	}
	if err := c.service.RemoveChart(ctx, msg.SessionID, msg.ChartID); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "editor.command.remove_chart", map[string]any{
		"session_id": msg.SessionID,
		"chart_id":   msg.ChartID,
	})
	return nil
}

// DuplicateChartInput identifies the chart to copy.
type DuplicateChartInput struct {
	Actor
	SessionID string
	ChartID   string
	Result    *editor.ChartConfig
}

// DuplicateChartCommand copies charts below their source.
type DuplicateChartCommand struct {
	service   chartService
	telemetry Telemetry
}

func NewDuplicateChartCommand(service chartService, telemetry Telemetry) *DuplicateChartCommand {
	return &DuplicateChartCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[DuplicateChartInput] = (*DuplicateChartCommand)(nil)

func (c *DuplicateChartCommand) Execute(ctx context.Context, msg DuplicateChartInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	cfg, err := c.service.DuplicateChart(ctx, msg.SessionID, msg.ChartID)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = cfg
	}
	c.telemetry.Record(ctx, "editor.command.duplicate_chart", map[string]any{
		"session_id": msg.SessionID,
		"source_id":  msg.ChartID,
		"chart_id":   cfg.ID,
	})
	return nil
}

// UpdateChartInput carries a typed partial update.
type UpdateChartInput struct {
	Actor
	SessionID string
	ChartID   string
	Patch     editor.ChartPatch
	Result    *editor.ChartConfig
}

// UpdateChartCommand patches chart configuration.
type UpdateChartCommand struct {
	service   chartService
	telemetry Telemetry
}

func NewUpdateChartCommand(service chartService, telemetry Telemetry) *UpdateChartCommand {
	return &UpdateChartCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[UpdateChartInput] = (*UpdateChartCommand)(nil)

func (c *UpdateChartCommand) Execute(ctx context.Context, msg UpdateChartInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	cfg, err := c.service.UpdateChart(ctx, msg.SessionID, msg.ChartID, msg.Patch)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = cfg
	}
	c.telemetry.Record(ctx, "editor.command.update_chart", map[string]any{
		"session_id": msg.SessionID,
		"chart_id":   msg.ChartID,
		"noop":       msg.Patch.IsZero(),
	})
	return nil
}

// SelectChartInput focuses a chart; an empty ChartID clears the selection.
type SelectChartInput struct {
	Actor
	SessionID string
	ChartID   string
}

// SelectChartCommand changes the focused chart.
type SelectChartCommand struct {
	service chartService
}

func NewSelectChartCommand(service chartService) *SelectChartCommand {
	return &SelectChartCommand{service: service}
}

var _ gocommand.Commander[SelectChartInput] = (*SelectChartCommand)(nil)

func (c *SelectChartCommand) Execute(ctx context.Context, msg SelectChartInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	return c.service.SelectChart(ctx, msg.SessionID, msg.ChartID)
}
