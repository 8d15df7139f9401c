package gorouter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-report-builder/components/editor"
	"github.com/goliatone/go-report-builder/components/editor/commands"
	"github.com/goliatone/go-report-builder/components/editor/httpapi"
	"github.com/goliatone/go-report-builder/components/editor/queries"
)

// PageRenderer renders the HTML preview of a session's template.
type PageRenderer interface {
	RenderTemplate(ctx context.Context, tpl editor.Template) ([]byte, error)
}

// Config wires go-router with the report editor API, preview and change feed.
type Config[T any] struct {
	Router    router.Router[T]
	API       httpapi.Executor
	Broadcast *editor.BroadcastHook
	Preview   PageRenderer
	BasePath  string
	Routes    RouteConfig
}

// RouteConfig customizes the relative paths of the editor endpoints.
type RouteConfig struct {
	Sessions  string
	Session   string
	Templates string
	Charts    string
	Chart     string
	Duplicate string
	Select    string
	Layout    string
	Metadata  string
	Load      string
	Save      string
	Reset     string
	Validate  string
	Sources   string
	Columns   string
	Preview   string
	WebSocket string
}

// Register mounts the editor routes (REST, preview, WebSocket) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.API == nil {
		return errors.New("gorouter: editor API is required")
	}
	base := cfg.BasePath
	if base == "" {
		base = "/api/editor"
	}
	group := cfg.Router.Group(base)
	mount(group, handlers{api: cfg.API, preview: cfg.Preview}, cfg.Broadcast, defaultRouteConfig(cfg.Routes))
	return nil
}

// routeRegistrar is the subset of router.Router used to mount routes.
type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	WebSocket(path string, cfg router.WebSocketConfig, handler func(router.WebSocketContext) error) router.RouteInfo
}

// requestContext is the subset of router.Context the handlers read and write.
type requestContext interface {
	Context() context.Context
	Param(name string, defaultValue ...string) string
	Body() []byte
	JSON(code int, v any) error
	Send(body []byte) error
	SetHeader(key, value string) router.Context
	Locals(key any, value ...any) any
}

func wrap(fn func(requestContext) error) router.HandlerFunc {
	return router.WrapHandler(func(ctx router.Context) error {
		return fn(ctx)
	})
}

func mount(r routeRegistrar, h handlers, hook *editor.BroadcastHook, routes RouteConfig) {
	r.Post(routes.Sessions, wrap(h.openSession))
	r.Get(routes.Templates, wrap(h.listTemplates))
	r.Get(routes.Session, wrap(h.state))
	r.Delete(routes.Session, wrap(h.closeSession))
	r.Post(routes.Reset, wrap(h.reset))
	r.Put(routes.Metadata, wrap(h.metadata))
	r.Post(routes.Load, wrap(h.load))
	r.Post(routes.Save, wrap(h.save))
	r.Get(routes.Validate, wrap(h.validate))
	r.Put(routes.Layout, wrap(h.layout))
	r.Post(routes.Select, wrap(h.selectChart))
	r.Post(routes.Sources, wrap(h.refreshSources))
	r.Get(routes.Columns, wrap(h.columns))
	r.Post(routes.Charts, wrap(h.addChart))
	r.Put(routes.Chart, wrap(h.updateChart))
	r.Delete(routes.Chart, wrap(h.removeChart))
	r.Post(routes.Duplicate, wrap(h.duplicateChart))
	if h.preview != nil {
		r.Get(routes.Preview, wrap(h.renderPreview))
	}
	if hook != nil {
		registerWebSocket(r, hook, routes.WebSocket)
	}
}

type handlers struct {
	api     httpapi.Executor
	preview PageRenderer
}

func (h handlers) openSession(ctx requestContext) error {
	id, err := h.api.OpenSession(ctx.Context())
	if err != nil {
		return respondError(ctx, err)
	}
	view, err := h.api.State(ctx.Context(), queries.SessionInput{SessionID: id})
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, view)
}

func (h handlers) listTemplates(ctx requestContext) error {
	list, err := h.api.Templates(ctx.Context())
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, list)
}

func (h handlers) state(ctx requestContext) error {
	return h.respondState(ctx, http.StatusOK)
}

func (h handlers) closeSession(ctx requestContext) error {
	if err := h.api.CloseSession(ctx.Context(), sessionID(ctx)); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "closed"})
}

func (h handlers) reset(ctx requestContext) error {
	if err := h.api.ResetEditor(ctx.Context(), commands.ResetEditorInput{Actor: actorFrom(ctx), SessionID: sessionID(ctx)}); err != nil {
		return respondError(ctx, err)
	}
	return h.respondState(ctx, http.StatusOK)
}

func (h handlers) metadata(ctx requestContext) error {
	var payload httpapi.MetadataRequest
	if err := httpapi.Decode(ctx.Body(), &payload); err != nil {
		return respondError(ctx, err)
	}
	if err := h.api.UpdateMetadata(ctx.Context(), commands.UpdateMetadataInput{
		Actor:       actorFrom(ctx),
		SessionID:   sessionID(ctx),
		Name:        payload.Name,
		Description: payload.Description,
	}); err != nil {
		return respondError(ctx, err)
	}
	return h.respondState(ctx, http.StatusOK)
}

func (h handlers) load(ctx requestContext) error {
	var payload httpapi.LoadRequest
	if err := httpapi.Decode(ctx.Body(), &payload); err != nil {
		return respondError(ctx, err)
	}
	if err := h.api.LoadTemplate(ctx.Context(), commands.LoadTemplateInput{
		Actor:      actorFrom(ctx),
		SessionID:  sessionID(ctx),
		TemplateID: payload.TemplateID,
	}); err != nil {
		return respondError(ctx, err)
	}
	return h.respondState(ctx, http.StatusOK)
}

func (h handlers) save(ctx requestContext) error {
	var id int64
	if err := h.api.SaveTemplate(ctx.Context(), commands.SaveTemplateInput{Actor: actorFrom(ctx), SessionID: sessionID(ctx), Result: &id}); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"template_id": id})
}

func (h handlers) validate(ctx requestContext) error {
	result, err := h.api.Validate(ctx.Context(), queries.SessionInput{SessionID: sessionID(ctx)})
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, result)
}

func (h handlers) layout(ctx requestContext) error {
	var payload httpapi.LayoutRequest
	if err := httpapi.Decode(ctx.Body(), &payload); err != nil {
		return respondError(ctx, err)
	}
	if err := h.api.UpdateLayout(ctx.Context(), commands.UpdateLayoutInput{
		Actor:     actorFrom(ctx),
		SessionID: sessionID(ctx),
		Layout:    payload.Layout,
	}); err != nil {
		return respondError(ctx, err)
	}
	return h.respondState(ctx, http.StatusOK)
}

func (h handlers) selectChart(ctx requestContext) error {
	var payload httpapi.SelectChartRequest
	if err := httpapi.Decode(ctx.Body(), &payload); err != nil {
		return respondError(ctx, err)
	}
	if err := h.api.SelectChart(ctx.Context(), commands.SelectChartInput{
		Actor:     actorFrom(ctx),
		SessionID: sessionID(ctx),
		ChartID:   payload.ChartID,
	}); err != nil {
		return respondError(ctx, err)
	}
	return h.respondState(ctx, http.StatusOK)
}

func (h handlers) refreshSources(ctx requestContext) error {
	if err := h.api.RefreshDataSources(ctx.Context(), commands.RefreshDataSourcesInput{Actor: actorFrom(ctx), SessionID: sessionID(ctx)}); err != nil {
		return respondError(ctx, err)
	}
	view, err := h.api.State(ctx.Context(), queries.SessionInput{SessionID: sessionID(ctx)})
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, view.DataSources)
}

func (h handlers) columns(ctx requestContext) error {
	cols, err := h.api.Columns(ctx.Context(), queries.ColumnsInput{
		SessionID: sessionID(ctx),
		TableName: ctx.Param("table"),
	})
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, cols)
}

func (h handlers) addChart(ctx requestContext) error {
	var payload httpapi.AddChartRequest
	if err := httpapi.Decode(ctx.Body(), &payload); err != nil {
		return respondError(ctx, err)
	}
	var cfg editor.ChartConfig
	if err := h.api.AddChart(ctx.Context(), commands.AddChartInput{
		Actor:     actorFrom(ctx),
		SessionID: sessionID(ctx),
		Type:      payload.Type,
		Result:    &cfg,
	}); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, cfg)
}

func (h handlers) updateChart(ctx requestContext) error {
	var patch editor.ChartPatch
	if err := httpapi.Decode(ctx.Body(), &patch); err != nil {
		return respondError(ctx, err)
	}
	var cfg editor.ChartConfig
	if err := h.api.UpdateChart(ctx.Context(), commands.UpdateChartInput{
		Actor:     actorFrom(ctx),
		SessionID: sessionID(ctx),
		ChartID:   ctx.Param("chart"),
		Patch:     patch,
		Result:    &cfg,
	}); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (h handlers) removeChart(ctx requestContext) error {
	if err := h.api.RemoveChart(ctx.Context(), commands.RemoveChartInput{
		Actor:     actorFrom(ctx),
		SessionID: sessionID(ctx),
		ChartID:   ctx.Param("chart"),
	}); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "removed"})
}

func (h handlers) duplicateChart(ctx requestContext) error {
	var cfg editor.ChartConfig
	if err := h.api.DuplicateChart(ctx.Context(), commands.DuplicateChartInput{
		Actor:     actorFrom(ctx),
		SessionID: sessionID(ctx),
		ChartID:   ctx.Param("chart"),
		Result:    &cfg,
	}); err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, cfg)
}

func (h handlers) renderPreview(ctx requestContext) error {
	view, err := h.api.State(ctx.Context(), queries.SessionInput{SessionID: sessionID(ctx)})
	if err != nil {
		return respondError(ctx, err)
	}
	page, err := h.preview.RenderTemplate(ctx.Context(), editor.Template{
		ID:          view.TemplateID,
		Name:        view.TemplateName,
		Description: view.Description,
		Layout:      view.Layout,
		Charts:      view.Charts,
	})
	if err != nil {
		return respondError(ctx, err)
	}
	ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
	return ctx.Send(page)
}

func (h handlers) respondState(ctx requestContext, status int) error {
	view, err := h.api.State(ctx.Context(), queries.SessionInput{SessionID: sessionID(ctx)})
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(status, view)
}

func registerWebSocket(r routeRegistrar, hook *editor.BroadcastHook, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		events, cancel := hook.Subscribe()
		defer cancel()
		return streamEvents(ws, events)
	})
}

// eventWriter is the subset of router.WebSocketContext used by the feed.
type eventWriter interface {
	Context() context.Context
	WriteJSON(v any) error
	Close() error
}

// streamEvents forwards change events until the feed closes or the peer
// goes away. Clients filter by session_id.
func streamEvents(ws eventWriter, events <-chan editor.ChangeEvent) error {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(event); err != nil {
				return err
			}
		case <-ws.Context().Done():
			return ws.Close()
		}
	}
}

func sessionID(ctx requestContext) string {
	return strings.TrimSpace(ctx.Param("session"))
}

// actorFrom reads the acting identity that auth middleware stored in the
// actor_id, user_id and tenant_id locals. The actor falls back to the user.
func actorFrom(ctx requestContext) commands.Actor {
	actor := commands.Actor{
		ActorID:  localString(ctx, "actor_id"),
		UserID:   localString(ctx, "user_id"),
		TenantID: localString(ctx, "tenant_id"),
	}
	if actor.ActorID == "" {
		actor.ActorID = actor.UserID
	}
	return actor
}

func localString(ctx requestContext, key string) string {
	if v, ok := ctx.Locals(key).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func respondError(ctx requestContext, err error) error {
	return ctx.JSON(httpapi.StatusFor(err), httpapi.ErrorBody(err))
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.Sessions == "" {
		routes.Sessions = "/sessions"
	}
	if routes.Session == "" {
		routes.Session = "/sessions/:session"
	}
	if routes.Templates == "" {
		routes.Templates = "/templates"
	}
	if routes.Charts == "" {
		routes.Charts = "/sessions/:session/charts"
	}
	if routes.Chart == "" {
		routes.Chart = "/sessions/:session/charts/:chart"
	}
	if routes.Duplicate == "" {
		routes.Duplicate = "/sessions/:session/charts/:chart/duplicate"
	}
	if routes.Select == "" {
		routes.Select = "/sessions/:session/select"
	}
	if routes.Layout == "" {
		routes.Layout = "/sessions/:session/layout"
	}
	if routes.Metadata == "" {
		routes.Metadata = "/sessions/:session/metadata"
	}
	if routes.Load == "" {
		routes.Load = "/sessions/:session/load"
	}
	if routes.Save == "" {
		routes.Save = "/sessions/:session/save"
	}
	if routes.Reset == "" {
		routes.Reset = "/sessions/:session/reset"
	}
	if routes.Validate == "" {
		routes.Validate = "/sessions/:session/validate"
	}
	if routes.Sources == "" {
		routes.Sources = "/sessions/:session/sources/refresh"
	}
	if routes.Columns == "" {
		routes.Columns = "/sessions/:session/columns/:table"
	}
	if routes.Preview == "" {
		routes.Preview = "/sessions/:session/preview"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/ws"
	}
	return routes
}
