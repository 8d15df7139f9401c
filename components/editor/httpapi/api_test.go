package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-report-builder/components/editor"
	"github.com/goliatone/go-report-builder/components/editor/commands"
	"github.com/goliatone/go-report-builder/pkg/activity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *editor.Service) {
	t.Helper()
	service := editor.NewService(editor.Options{
		Templates: editor.NewInMemoryTemplateStore(),
		Sources: editor.StaticDataSourceDirectory{
			Sources: []editor.DataSource{{ID: 1, Name: "Sales", TableName: "sales"}},
			Columns: map[string][]editor.ColumnInfo{
				"sales": {{Name: "month", Type: editor.ColumnString}, {Name: "revenue", Type: editor.ColumnNumber}},
			},
		},
		Engine: editor.NewEngine(editor.EngineOptions{IDs: editor.SequenceGenerator("c1", "c2", "c3")}),
	})
	mux := http.NewServeMux()
	handlers := &Handlers{API: NewCommandExecutor(service, nil)}
	handlers.Register(mux, "/api/editor")
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, service
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func openSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, srv, http.MethodPost, "/api/editor/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("expected session id in %v", body)
	}
	return id
}

func TestHandlersEditAndSaveTemplate(t *testing.T) {
	srv, _ := newTestServer(t)
	session := openSession(t, srv)
	base := "/api/editor/sessions/" + session

	resp, chart := doJSON(t, srv, http.MethodPost, base+"/charts", AddChartRequest{Type: editor.ChartBar})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "c1", chart["id"])

	resp, body := doJSON(t, srv, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errs, _ := body["errors"].([]any)
	assert.NotEmpty(t, errs)

	title := "Revenue"
	resp, chart = doJSON(t, srv, http.MethodPut, base+"/charts/c1", editor.ChartPatch{
		Title: &title,
		DataBinding: &editor.DataBinding{
			DataSource: "sales",
			XAxis:      "month",
			YAxis:      []string{"revenue"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Revenue", chart["title"])

	resp, _ = doJSON(t, srv, http.MethodPost, base+"/sources/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	name := "Monthly revenue"
	resp, view := doJSON(t, srv, http.MethodPut, base+"/metadata", MetadataRequest{Name: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Monthly revenue", view["template_name"])
	assert.Equal(t, true, view["is_dirty"])

	resp, body = doJSON(t, srv, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["template_id"])

	resp, view = doJSON(t, srv, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, view["is_dirty"])
	assert.EqualValues(t, 1, view["template_id"])

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/editor/templates", nil)
	require.NoError(t, err)
	listResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	var list []editor.TemplateSummary
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Monthly revenue", list[0].Name)
	assert.Equal(t, 1, list[0].ChartCount)
}

func TestHandlersLoadIntoNewSession(t *testing.T) {
	srv, service := newTestServer(t)
	sessionA := openSession(t, srv)
	_, err := service.AddChart(t.Context(), sessionA, editor.ChartPie)
	require.NoError(t, err)
	title := "Share"
	_, err = service.UpdateChart(t.Context(), sessionA, "c1", editor.ChartPatch{
		Title:       &title,
		DataBinding: &editor.DataBinding{DataSource: "sales", YAxis: []string{"revenue"}},
	})
	require.NoError(t, err)
	_, err = service.RefreshDataSources(t.Context(), sessionA)
	require.NoError(t, err)
	require.NoError(t, service.Rename(t.Context(), sessionA, "Share report"))
	id, err := service.Save(t.Context(), sessionA)
	require.NoError(t, err)

	sessionB := openSession(t, srv)
	resp, view := doJSON(t, srv, http.MethodPost, "/api/editor/sessions/"+sessionB+"/load", LoadRequest{TemplateID: id})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Share report", view["template_name"])
	charts, _ := view["charts"].([]any)
	assert.Len(t, charts, 1)

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/editor/sessions/"+sessionB+"/load", LoadRequest{TemplateID: 99})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlersChartLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	session := openSession(t, srv)
	base := "/api/editor/sessions/" + session

	doJSON(t, srv, http.MethodPost, base+"/charts", AddChartRequest{Type: editor.ChartLine})

	resp, dup := doJSON(t, srv, http.MethodPost, base+"/charts/c1/duplicate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "c2", dup["id"])

	resp, view := doJSON(t, srv, http.MethodPost, base+"/select", SelectChartRequest{ChartID: "c1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "c1", view["selected_chart_id"])

	resp, _ = doJSON(t, srv, http.MethodDelete, base+"/charts/c1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, view = doJSON(t, srv, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", view["selected_chart_id"])
	layout, _ := view["layout"].([]any)
	assert.Len(t, layout, 1)

	resp, _ = doJSON(t, srv, http.MethodDelete, base+"/charts/c1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPut, base+"/layout", LayoutRequest{Layout: []editor.LayoutItem{{I: "ghost", W: 4, H: 4}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, view = doJSON(t, srv, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	charts, _ := view["charts"].([]any)
	assert.Empty(t, charts)
}

func TestHandlersColumns(t *testing.T) {
	srv, _ := newTestServer(t)
	session := openSession(t, srv)
	base := "/api/editor/sessions/" + session

	req, err := http.NewRequest(http.MethodGet, srv.URL+base+"/columns/sales", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cols []editor.ColumnInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cols))
	assert.Len(t, cols, 2)

	put, _ := doJSON(t, srv, http.MethodPut, base+"/columns/custom", ColumnsRequest{
		Columns: []editor.ColumnInfo{{Name: "x", Type: editor.ColumnNumber}},
	})
	assert.Equal(t, http.StatusNoContent, put.StatusCode)

	_, view := doJSON(t, srv, http.MethodGet, base, nil)
	cache, _ := view["column_cache"].(map[string]any)
	assert.Contains(t, cache, "custom")
	assert.Contains(t, cache, "sales")
}

func TestHandlersRejectBadInput(t *testing.T) {
	srv, _ := newTestServer(t)
	session := openSession(t, srv)
	base := "/api/editor/sessions/" + session

	resp, body := doJSON(t, srv, http.MethodPost, base+"/charts", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "malformed request")

	resp, _ = doJSON(t, srv, http.MethodPost, base+"/charts", AddChartRequest{Type: "radar"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/editor/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlersRejectOversizedBody(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", int(MaxBodyBytes)) + `"}`
	req := httptest.NewRequest(http.MethodPut, "/api/editor/sessions/s1/metadata", strings.NewReader(body))
	rec := httptest.NewRecorder()

	var payload MetadataRequest
	err := decodeBody(rec, req, &payload)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusFor(err))

	small := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"name":"Weekly"}`))
	require.NoError(t, decodeBody(httptest.NewRecorder(), small, &payload))
	assert.Equal(t, "Weekly", *payload.Name)
}

func TestHandlersAttachActorFromHeaders(t *testing.T) {
	capture := &activity.CaptureHook{}
	service := editor.NewService(editor.Options{
		Templates:      editor.NewInMemoryTemplateStore(),
		ActivityHooks:  activity.Hooks{capture},
		ActivityConfig: activity.Config{Enabled: true},
	})
	mux := http.NewServeMux()
	(&Handlers{API: NewCommandExecutor(service, nil)}).Register(mux, "/api/editor")
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	session := openSession(t, srv)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/editor/sessions/"+session+"/save", nil)
	require.NoError(t, err)
	req.Header.Set(HeaderUserID, "user-9")
	req.Header.Set(HeaderTenantID, "tenant-9")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, capture.Events, 1)
	event := capture.Events[0]
	assert.Equal(t, "user-9", event.ActorID)
	assert.Equal(t, "user-9", event.UserID)
	assert.Equal(t, "tenant-9", event.TenantID)
}

func TestHandlersCustomActorResolver(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	h := &Handlers{Actor: func(*http.Request) commands.Actor { return commands.Actor{ActorID: "svc"} }}
	assert.Equal(t, "svc", h.actor(req).ActorID)
	assert.Equal(t, commands.Actor{}, (&Handlers{}).actor(req))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", editor.ErrSessionNotFound), http.StatusNotFound},
		{editor.ErrChartNotFound, http.StatusNotFound},
		{editor.ErrTemplateNotFound, http.StatusNotFound},
		{editor.ErrSaveInProgress, http.StatusConflict},
		{editor.ErrLoadInProgress, http.StatusConflict},
		{editor.ErrTemplateNameTaken, http.StatusConflict},
		{editor.ErrLayoutMismatch, http.StatusBadRequest},
		{&editor.ValidationFailure{}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestExecutorWithoutCommands(t *testing.T) {
	exec := &CommandExecutor{}
	_, err := exec.OpenSession(t.Context())
	assert.ErrorIs(t, err, errNotConfigured)
	assert.ErrorIs(t, exec.SaveTemplate(t.Context(), commands.SaveTemplateInput{SessionID: "s"}), errNotConfigured)
}
