package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-report-builder/components/editor"
	"github.com/goliatone/go-report-builder/components/editor/gorouter"
	"github.com/goliatone/go-report-builder/components/editor/httpapi"
	"github.com/goliatone/go-report-builder/components/report"
)

type serveCmd struct {
	Addr     string `default:":9876" help:"Listen address."`
	BasePath string `name:"base-path" default:"/api/editor" help:"Mount point of the editor API."`
	Rows     string `type:"existingfile" help:"Serve tables from a rows file with an in-memory template store."`
}

func (cmd *serveCmd) Run(ctx context.Context, g *Globals) error {
	logger := g.logger(os.Stderr)
	telemetry := editor.NewSlogTelemetry(logger, slog.LevelInfo)

	b, err := cmd.backend(ctx, g)
	if err != nil {
		return err
	}
	defer b.Close()

	hook := editor.NewBroadcastHook()
	service := editor.NewService(editor.Options{
		Templates:  b.Templates,
		Sources:    b.Sources,
		Telemetry:  telemetry,
		ChangeHook: hook,
	})

	page, err := report.NewPageRenderer(nil)
	if err != nil {
		return err
	}
	previewer := &report.Previewer{
		Builder: report.NewBuilder(report.BuilderOptions{
			Rows:      b.Rows,
			Renderer:  g.chartRenderer(),
			Telemetry: telemetry,
		}),
		Page: page,
	}

	server := router.NewFiberAdapter()
	if err := gorouter.Register(gorouter.Config[*fiber.App]{
		Router:    server.Router(),
		API:       httpapi.NewCommandExecutor(service, telemetry),
		Broadcast: hook,
		Preview:   previewer,
		BasePath:  cmd.BasePath,
	}); err != nil {
		return err
	}

	logger.Info("report editor ready",
		"addr", cmd.Addr,
		"api", cmd.BasePath+"/sessions",
		"websocket", cmd.BasePath+"/ws",
	)
	return server.Serve(cmd.Addr)
}

func (cmd *serveCmd) backend(ctx context.Context, g *Globals) (*backend, error) {
	if cmd.Rows == "" {
		return openBackend(ctx, g)
	}
	rows, err := readRowsFile(cmd.Rows)
	if err != nil {
		return nil, err
	}
	return &backend{
		Templates: editor.NewInMemoryTemplateStore(),
		Sources:   rows,
		Rows:      rows,
	}, nil
}
