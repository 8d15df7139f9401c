package gorouter

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	router "github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-report-builder/components/editor"
	"github.com/goliatone/go-report-builder/components/editor/httpapi"
	"github.com/goliatone/go-report-builder/pkg/activity"
)

func TestRegisterValidatesConfig(t *testing.T) {
	if err := Register(Config[struct{}]{}); err == nil {
		t.Fatalf("expected error when router/api missing")
	}
}

func TestMountRegistersRoutes(t *testing.T) {
	mock := newMockRegistrar()
	mount(mock, handlers{api: &httpapi.CommandExecutor{}}, editor.NewBroadcastHook(), defaultRouteConfig(RouteConfig{}))

	for _, key := range []string{
		"POST:/sessions",
		"GET:/sessions/:session",
		"DELETE:/sessions/:session",
		"GET:/templates",
		"POST:/sessions/:session/charts",
		"PUT:/sessions/:session/charts/:chart",
		"DELETE:/sessions/:session/charts/:chart",
		"POST:/sessions/:session/charts/:chart/duplicate",
		"PUT:/sessions/:session/layout",
		"POST:/sessions/:session/save",
		"GET:/sessions/:session/columns/:table",
	} {
		if _, ok := mock.routes[key]; !ok {
			t.Fatalf("expected route %s to be registered", key)
		}
	}
	if _, ok := mock.routes["GET:/sessions/:session/preview"]; ok {
		t.Fatalf("preview route registered without a renderer")
	}
	if _, ok := mock.ws["/ws"]; !ok {
		t.Fatalf("expected websocket feed")
	}
}

func TestHandlersDriveSession(t *testing.T) {
	h, service := newTestHandlers(t)
	preview := &stubPreview{}
	h.preview = preview

	ctx := newMockContext()
	require.NoError(t, h.openSession(ctx))
	require.Equal(t, http.StatusCreated, ctx.status)
	var opened map[string]any
	require.NoError(t, json.Unmarshal(ctx.out, &opened))
	session, _ := opened["session_id"].(string)
	require.NotEmpty(t, session)

	ctx = newMockContext()
	ctx.params["session"] = session
	ctx.body = []byte(`{"type":"bar"}`)
	require.NoError(t, h.addChart(ctx))
	assert.Equal(t, http.StatusCreated, ctx.status)

	ctx = newMockContext()
	ctx.params["session"] = session
	ctx.params["chart"] = "c1"
	ctx.body = []byte(`{"title":"Revenue","dataBinding":{"dataSource":"sales","xAxis":"month","yAxis":["revenue"]}}`)
	require.NoError(t, h.updateChart(ctx))
	assert.Equal(t, http.StatusOK, ctx.status)

	state, err := service.State(session)
	require.NoError(t, err)
	cfg, ok := state.Chart("c1")
	require.True(t, ok)
	assert.Equal(t, "Revenue", cfg.Title)
	assert.Equal(t, []string{"revenue"}, cfg.DataBinding.YAxis)

	ctx = newMockContext()
	ctx.params["session"] = session
	require.NoError(t, h.renderPreview(ctx))
	assert.Equal(t, "text/html; charset=utf-8", ctx.headers["Content-Type"])
	require.Len(t, preview.templates, 1)
	assert.Len(t, preview.templates[0].Charts, 1)

	ctx = newMockContext()
	ctx.params["session"] = session
	ctx.params["chart"] = "missing"
	require.NoError(t, h.removeChart(ctx))
	assert.Equal(t, http.StatusNotFound, ctx.status)
}

func TestHandlersSaveRecordsActorFromLocals(t *testing.T) {
	capture := &activity.CaptureHook{}
	service := editor.NewService(editor.Options{
		Templates:      editor.NewInMemoryTemplateStore(),
		ActivityHooks:  activity.Hooks{capture},
		ActivityConfig: activity.Config{Enabled: true},
	})
	h := handlers{api: httpapi.NewCommandExecutor(service, nil)}
	session, _ := service.NewSession()

	ctx := newMockContext()
	ctx.params["session"] = session
	ctx.Locals("user_id", "user-3")
	ctx.Locals("tenant_id", "tenant-3")
	require.NoError(t, h.save(ctx))
	require.Equal(t, http.StatusOK, ctx.status)

	require.Len(t, capture.Events, 1)
	assert.Equal(t, "user-3", capture.Events[0].ActorID)
	assert.Equal(t, "user-3", capture.Events[0].UserID)
	assert.Equal(t, "tenant-3", capture.Events[0].TenantID)
}

func TestActorFromPrefersExplicitActor(t *testing.T) {
	ctx := newMockContext()
	ctx.Locals("actor_id", "admin")
	ctx.Locals("user_id", "user-1")
	actor := actorFrom(ctx)
	assert.Equal(t, "admin", actor.ActorID)
	assert.Equal(t, "user-1", actor.UserID)
	assert.Empty(t, actorFrom(newMockContext()).ActorID)
}

func TestHandlersReportErrors(t *testing.T) {
	h, _ := newTestHandlers(t)

	ctx := newMockContext()
	ctx.params["session"] = "unknown"
	require.NoError(t, h.state(ctx))
	assert.Equal(t, http.StatusNotFound, ctx.status)

	ctx = newMockContext()
	ctx.params["session"] = "unknown"
	ctx.body = []byte(`{`)
	require.NoError(t, h.layout(ctx))
	assert.Equal(t, http.StatusBadRequest, ctx.status)
}

func TestStreamEventsForwardsUntilClosed(t *testing.T) {
	events := make(chan editor.ChangeEvent, 2)
	events <- editor.ChangeEvent{SessionID: "s1", Kind: "chart.add"}
	events <- editor.ChangeEvent{SessionID: "s1", Kind: "chart.select"}
	close(events)

	ws := &mockSocket{ctx: context.Background()}
	require.NoError(t, streamEvents(ws, events))
	require.Len(t, ws.written, 2)
	assert.Equal(t, "chart.select", ws.written[1].(editor.ChangeEvent).Kind)
}

func TestStreamEventsClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ws := &mockSocket{ctx: ctx}
	require.NoError(t, streamEvents(ws, make(chan editor.ChangeEvent)))
	assert.True(t, ws.closed)
}

// --- Test helpers ---

func newTestHandlers(t *testing.T) (handlers, *editor.Service) {
	t.Helper()
	service := editor.NewService(editor.Options{
		Templates: editor.NewInMemoryTemplateStore(),
		Sources: editor.StaticDataSourceDirectory{
			Sources: []editor.DataSource{{ID: 1, Name: "Sales", TableName: "sales"}},
		},
		Engine: editor.NewEngine(editor.EngineOptions{IDs: editor.SequenceGenerator("c1", "c2")}),
	})
	return handlers{api: httpapi.NewCommandExecutor(service, nil)}, service
}

type mockRegistrar struct {
	routes map[string]router.HandlerFunc
	ws     map[string]func(router.WebSocketContext) error
}

func newMockRegistrar() *mockRegistrar {
	return &mockRegistrar{
		routes: map[string]router.HandlerFunc{},
		ws:     map[string]func(router.WebSocketContext) error{},
	}
}

func (m *mockRegistrar) record(method, path string, handler router.HandlerFunc) router.RouteInfo {
	m.routes[method+":"+path] = handler
	return nil
}

func (m *mockRegistrar) Get(path string, handler router.HandlerFunc, _ ...router.MiddlewareFunc) router.RouteInfo {
	return m.record("GET", path, handler)
}

func (m *mockRegistrar) Post(path string, handler router.HandlerFunc, _ ...router.MiddlewareFunc) router.RouteInfo {
	return m.record("POST", path, handler)
}

func (m *mockRegistrar) Put(path string, handler router.HandlerFunc, _ ...router.MiddlewareFunc) router.RouteInfo {
	return m.record("PUT", path, handler)
}

func (m *mockRegistrar) Delete(path string, handler router.HandlerFunc, _ ...router.MiddlewareFunc) router.RouteInfo {
	return m.record("DELETE", path, handler)
}

func (m *mockRegistrar) WebSocket(path string, _ router.WebSocketConfig, handler func(router.WebSocketContext) error) router.RouteInfo {
	m.ws[path] = handler
	return nil
}

type mockContext struct {
	ctx     context.Context
	locals  map[any]any
	headers map[string]string
	params  map[string]string
	body    []byte
	out     []byte
	status  int
}

func newMockContext() *mockContext {
	return &mockContext{
		ctx:     context.Background(),
		locals:  map[any]any{},
		headers: map[string]string{},
		params:  map[string]string{},
	}
}

func (m *mockContext) Context() context.Context { return m.ctx }

func (m *mockContext) Param(name string, defaultValue ...string) string {
	if v, ok := m.params[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *mockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.locals[key] = value[0]
		return value[0]
	}
	return m.locals[key]
}

func (m *mockContext) Body() []byte { return m.body }

func (m *mockContext) JSON(code int, v any) error {
	m.status = code
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.out = data
	return nil
}

func (m *mockContext) Send(b []byte) error {
	m.status = http.StatusOK
	m.out = append([]byte{}, b...)
	return nil
}

func (m *mockContext) SetHeader(k, v string) router.Context {
	m.headers[k] = v
	return nil
}

type mockSocket struct {
	ctx     context.Context
	written []any
	closed  bool
}

func (m *mockSocket) Context() context.Context { return m.ctx }

func (m *mockSocket) WriteJSON(v any) error {
	m.written = append(m.written, v)
	return nil
}

func (m *mockSocket) Close() error {
	m.closed = true
	return nil
}

type stubPreview struct {
	templates []editor.Template
}

func (s *stubPreview) RenderTemplate(_ context.Context, tpl editor.Template) ([]byte, error) {
	s.templates = append(s.templates, tpl)
	return []byte("<html></html>"), nil
}
