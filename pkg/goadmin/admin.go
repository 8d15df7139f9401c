package goadmin

import (
	"context"
	"errors"

	activitypkg "github.com/goliatone/go-report-builder/pkg/activity"
	editorpkg "github.com/goliatone/go-report-builder/pkg/editor"
)

// MenuBuilder ensures report builder entries exist within the admin navigation.
type MenuBuilder interface {
	EnsureMenuItem(ctx context.Context, menuCode string, item MenuItem) error
}

// MenuItem captures report builder link metadata.
type MenuItem struct {
	Label    string
	Route    string
	Icon     string
	Position int
}

// Config wires the report editor service and feature flags into an admin shell.
type Config struct {
	EnableReports   bool
	MenuCode        string
	MenuBuilder     MenuBuilder
	Service         *editorpkg.Service
	DefaultMenuItem MenuItem
	ActivityHooks   activitypkg.Hooks
	ActivityConfig  activitypkg.Config
}

// Admin exposes helpers for go-admin style applications.
type Admin struct {
	cfg      Config
	activity *activitypkg.Emitter
}

// New creates an Admin helper that can seed the report builder menu.
func New(cfg Config) (*Admin, error) {
	if cfg.EnableReports && cfg.Service == nil {
		return nil, errors.New("goadmin: report editor service is required when enabled")
	}
	if cfg.MenuCode == "" {
		cfg.MenuCode = "admin.main"
	}
	if cfg.DefaultMenuItem.Label == "" {
		cfg.DefaultMenuItem.Label = "Reports"
	}
	if cfg.DefaultMenuItem.Route == "" {
		cfg.DefaultMenuItem.Route = "admin.reports.editor"
	}
	if cfg.DefaultMenuItem.Icon == "" {
		cfg.DefaultMenuItem.Icon = "chart-bar"
	}
	return &Admin{
		cfg:      cfg,
		activity: activitypkg.NewEmitter(cfg.ActivityHooks, cfg.ActivityConfig),
	}, nil
}

// Reports exposes the configured editor service when enabled.
func (a *Admin) Reports() *editorpkg.Service {
	if !a.cfg.EnableReports {
		return nil
	}
	return a.cfg.Service
}

// Bootstrap seeds the menu entry when report support is enabled and records
// an activity event for it.
func (a *Admin) Bootstrap(ctx context.Context) error {
	if !a.cfg.EnableReports || a.cfg.MenuBuilder == nil {
		return nil
	}
	item := a.cfg.DefaultMenuItem
	if err := a.cfg.MenuBuilder.EnsureMenuItem(ctx, a.cfg.MenuCode, item); err != nil {
		return err
	}
	return a.activity.Emit(ctx, activitypkg.Event{
		Verb:       "reports.menu.ensure",
		ObjectType: "menu_item",
		ObjectID:   item.Route,
		Metadata: map[string]any{
			"menu_code": a.cfg.MenuCode,
			"label":     item.Label,
		},
	})
}
