package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-report-builder/components/editor"
)

type templateService interface {
	Rename(ctx context.Context, sessionID, name string) error
	Describe(ctx context.Context, sessionID, description string) error
	Load(ctx context.Context, sessionID string, templateID int64) (*editor.State, error)
	Save(ctx context.Context, sessionID string) (int64, error)
	Reset(ctx context.Context, sessionID string) error
}

// UpdateMetadataInput changes template name and/or description. Nil fields
// are left untouched.
type UpdateMetadataInput struct {
	Actor
	SessionID   string
	Name        *string
	Description *string
}

// UpdateMetadataCommand edits template metadata.
type UpdateMetadataCommand struct {
	service templateService
}

func NewUpdateMetadataCommand(service templateService) *UpdateMetadataCommand {
	return &UpdateMetadataCommand{service: service}
}

var _ gocommand.Commander[UpdateMetadataInput] = (*UpdateMetadataCommand)(nil)

func (c *UpdateMetadataCommand) Execute(ctx context.Context, msg UpdateMetadataInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	if msg.Name == nil && msg.Description == nil {
		return errors.New("commands: name or description is required")
	}
	if msg.Name != nil {
		if err := c.service.Rename(ctx, msg.SessionID, *msg.Name); err != nil {
			return err
		}
	}
	if msg.Description != nil {
		if err := c.service.Describe(ctx, msg.SessionID, *msg.Description); err != nil {
			return err
		}
	}
	return nil
}

// LoadTemplateInput loads a persisted template into a session.
type LoadTemplateInput struct {
	Actor
	SessionID  string
	TemplateID int64
}

// LoadTemplateCommand hydrates sessions from the repository.
type LoadTemplateCommand struct {
	service   templateService
	telemetry Telemetry
}

func NewLoadTemplateCommand(service templateService, telemetry Telemetry) *LoadTemplateCommand {
	return &LoadTemplateCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LoadTemplateInput] = (*LoadTemplateCommand)(nil)

func (c *LoadTemplateCommand) Execute(ctx context.Context, msg LoadTemplateInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	if _, err := c.service.Load(ctx, msg.SessionID, msg.TemplateID); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "editor.command.load_template", map[string]any{
		"session_id":  msg.SessionID,
		"template_id": msg.TemplateID,
	})
	return nil
}

// SaveTemplateInput persists a session. Result receives the template id.
type SaveTemplateInput struct {
	Actor
	SessionID string
	Result    *int64
}

// SaveTemplateCommand validates and persists sessions.
type SaveTemplateCommand struct {
	service   templateService
	telemetry Telemetry
}

func NewSaveTemplateCommand(service templateService, telemetry Telemetry) *SaveTemplateCommand {
	return &SaveTemplateCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SaveTemplateInput] = (*SaveTemplateCommand)(nil)

func (c *SaveTemplateCommand) Execute(ctx context.Context, msg SaveTemplateInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	id, err := c.service.Save(ctx, msg.SessionID)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = id
	}
	c.telemetry.Record(ctx, "editor.command.save_template", map[string]any{
		"session_id":  msg.SessionID,
		"template_id": id,
	})
	return nil
}

// ResetEditorInput clears a session.
type ResetEditorInput struct {
	Actor
	SessionID string
}

// ResetEditorCommand starts a session over with an empty template.
type ResetEditorCommand struct {
	service templateService
}

func NewResetEditorCommand(service templateService) *ResetEditorCommand {
	return &ResetEditorCommand{service: service}
}

var _ gocommand.Commander[ResetEditorInput] = (*ResetEditorCommand)(nil)

func (c *ResetEditorCommand) Execute(ctx context.Context, msg ResetEditorInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	return c.service.Reset(ctx, msg.SessionID)
}
