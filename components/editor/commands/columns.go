package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-report-builder/components/editor"
)

type columnService interface {
	Columns(ctx context.Context, sessionID, table string) ([]editor.ColumnInfo, error)
	CacheColumns(ctx context.Context, sessionID, table string, cols []editor.ColumnInfo) error
	RefreshDataSources(ctx context.Context, sessionID string) ([]editor.DataSource, error)
}

// CacheColumnsInput warms the column cache of a session. When Columns is
// nil they are fetched from the data source directory.
type CacheColumnsInput struct {
	Actor
	SessionID string
	TableName string
	Columns   []editor.ColumnInfo
}

// CacheColumnsCommand fills the per-session column cache.
type CacheColumnsCommand struct {
	service   columnService
	telemetry Telemetry
}

func NewCacheColumnsCommand(service columnService, telemetry Telemetry) *CacheColumnsCommand {
	return &CacheColumnsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[CacheColumnsInput] = (*CacheColumnsCommand)(nil)

func (c *CacheColumnsCommand) Execute(ctx context.Context, msg CacheColumnsInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	if msg.TableName == "" {
		return errors.New("commands: table name is required")
	}
	count := len(msg.Columns)
	if msg.Columns != nil {
		if err := c.service.CacheColumns(ctx, msg.SessionID, msg.TableName, msg.Columns); err != nil {
			return err
		}
	} else {
		cols, err := c.service.Columns(ctx, msg.SessionID, msg.TableName)
		if err != nil {
			return err
		}
		count = len(cols)
	}
	c.telemetry.Record(ctx, "editor.command.cache_columns", map[string]any{
		"session_id": msg.SessionID,
		"table":      msg.TableName,
		"columns":    count,
	})
	return nil
}

// RefreshDataSourcesInput reloads the data source list of a session.
type RefreshDataSourcesInput struct {
	Actor
	SessionID string
}

// RefreshDataSourcesCommand reloads the data source directory.
type RefreshDataSourcesCommand struct {
	service columnService
}

func NewRefreshDataSourcesCommand(service columnService) *RefreshDataSourcesCommand {
	return &RefreshDataSourcesCommand{service: service}
}

var _ gocommand.Commander[RefreshDataSourcesInput] = (*RefreshDataSourcesCommand)(nil)

func (c *RefreshDataSourcesCommand) Execute(ctx context.Context, msg RefreshDataSourcesInput) error {
	if c.service == nil {
		return errMissingService
	}
	ctx = msg.bind(ctx)
	_, err := c.service.RefreshDataSources(ctx, msg.SessionID)
	return err
}
