package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-report-builder/components/editor"
	"github.com/goliatone/go-report-builder/components/editor/commands"
	"github.com/goliatone/go-report-builder/components/editor/queries"
)

// Request payloads shared by the net/http and go-router transports.
type (
	AddChartRequest struct {
		Type editor.ChartType `json:"type"`
	}
	SelectChartRequest struct {
		ChartID string `json:"chart_id"`
	}
	LayoutRequest struct {
		Layout []editor.LayoutItem `json:"layout"`
	}
	MetadataRequest struct {
		Name        *string `json:"name,omitempty"`
		Description *string `json:"description,omitempty"`
	}
	LoadRequest struct {
		TemplateID int64 `json:"template_id"`
	}
	ColumnsRequest struct {
		Columns []editor.ColumnInfo `json:"columns"`
	}
)

// ErrBadRequest marks payload decoding failures.
var ErrBadRequest = errors.New("httpapi: malformed request")

// ErrPayloadTooLarge marks bodies over MaxBodyBytes.
var ErrPayloadTooLarge = errors.New("httpapi: request body too large")

// StatusFor maps editor errors onto HTTP status codes.
func StatusFor(err error) int {
	var failure *editor.ValidationFailure
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBadRequest), errors.Is(err, editor.ErrInvalidChartType),
		errors.Is(err, editor.ErrInvalidTemplate), errors.Is(err, editor.ErrLayoutMismatch):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrSessionNotFound), errors.Is(err, editor.ErrChartNotFound),
		errors.Is(err, editor.ErrTemplateNotFound), errors.Is(err, editor.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrLoadInProgress), errors.Is(err, editor.ErrSaveInProgress),
		errors.Is(err, editor.ErrTemplateNameTaken):
		return http.StatusConflict
	case errors.As(err, &failure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON error envelope. Validation failures carry their
// field errors.
func ErrorBody(err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	var failure *editor.ValidationFailure
	if errors.As(err, &failure) {
		body["errors"] = failure.Result.Errors
	}
	return body
}

// Decode unmarshals a JSON payload, wrapping failures in ErrBadRequest.
func Decode(data []byte, v any) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return fmt.Errorf("%w: empty body", ErrBadRequest)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// MaxBodyBytes caps request payloads read by the net/http handlers.
const MaxBodyBytes int64 = 1 << 20

// Actor headers read by ActorFromHeaders.
const (
	HeaderActorID  = "X-Actor-ID"
	HeaderUserID   = "X-User-ID"
	HeaderTenantID = "X-Tenant-ID"
)

// Handlers exposes the editor over net/http. Actor resolves the acting
// identity per request and defaults to ActorFromHeaders.
type Handlers struct {
	API   Executor
	Actor func(*http.Request) commands.Actor
}

// ActorFromHeaders reads the acting identity from the X-Actor-ID, X-User-ID
// and X-Tenant-ID headers. The actor falls back to the user.
func ActorFromHeaders(r *http.Request) commands.Actor {
	actor := commands.Actor{
		ActorID:  strings.TrimSpace(r.Header.Get(HeaderActorID)),
		UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
		TenantID: strings.TrimSpace(r.Header.Get(HeaderTenantID)),
	}
	if actor.ActorID == "" {
		actor.ActorID = actor.UserID
	}
	return actor
}

func (h *Handlers) actor(r *http.Request) commands.Actor {
	if h.Actor != nil {
		return h.Actor(r)
	}
	return ActorFromHeaders(r)
}

// Register mounts the handlers on mux under base using method patterns.
func (h *Handlers) Register(mux *http.ServeMux, base string) {
	base = strings.TrimRight(base, "/")
	session := base + "/sessions/{session}"
	mux.HandleFunc("POST "+base+"/sessions", h.HandleOpenSession)
	mux.HandleFunc("GET "+base+"/templates", h.HandleTemplates)
	mux.HandleFunc("GET "+session, h.withSession(h.HandleState))
	mux.HandleFunc("DELETE "+session, h.withSession(h.HandleCloseSession))
	mux.HandleFunc("POST "+session+"/reset", h.withSession(h.HandleReset))
	mux.HandleFunc("PUT "+session+"/metadata", h.withSession(h.HandleMetadata))
	mux.HandleFunc("POST "+session+"/load", h.withSession(h.HandleLoad))
	mux.HandleFunc("POST "+session+"/save", h.withSession(h.HandleSave))
	mux.HandleFunc("GET "+session+"/validate", h.withSession(h.HandleValidate))
	mux.HandleFunc("PUT "+session+"/layout", h.withSession(h.HandleLayout))
	mux.HandleFunc("POST "+session+"/select", h.withSession(h.HandleSelect))
	mux.HandleFunc("POST "+session+"/sources/refresh", h.withSession(h.HandleRefreshSources))
	mux.HandleFunc("POST "+session+"/charts", h.withSession(h.HandleAddChart))
	mux.HandleFunc("GET "+session+"/columns/{table}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleColumns(w, r, r.PathValue("session"), r.PathValue("table"))
	})
	mux.HandleFunc("PUT "+session+"/columns/{table}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleCacheColumns(w, r, r.PathValue("session"), r.PathValue("table"))
	})
	mux.HandleFunc("PUT "+session+"/charts/{chart}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleUpdateChart(w, r, r.PathValue("session"), r.PathValue("chart"))
	})
	mux.HandleFunc("DELETE "+session+"/charts/{chart}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleRemoveChart(w, r, r.PathValue("session"), r.PathValue("chart"))
	})
	mux.HandleFunc("POST "+session+"/charts/{chart}/duplicate", func(w http.ResponseWriter, r *http.Request) {
		h.HandleDuplicateChart(w, r, r.PathValue("session"), r.PathValue("chart"))
	})
}

func (h *Handlers) withSession(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, r.PathValue("session"))
	}
}

func (h *Handlers) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.API.OpenSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.API.State(r.Context(), queries.SessionInput{SessionID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) HandleCloseSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.API.CloseSession(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.API.Templates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request, sessionID string) {
	h.respondState(w, r, http.StatusOK, sessionID)
}

func (h *Handlers) HandleValidate(w http.ResponseWriter, r *http.Request, sessionID string) {
	result, err := h.API.Validate(r.Context(), queries.SessionInput{SessionID: sessionID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.API.ResetEditor(r.Context(), commands.ResetEditorInput{Actor: h.actor(r), SessionID: sessionID}); err != nil {
		writeError(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK, sessionID)
}

func (h *Handlers) HandleMetadata(w http.ResponseWriter, r *http.Request, sessionID string) {
	var payload MetadataRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := h.API.UpdateMetadata(r.Context(), commands.UpdateMetadataInput{
		Actor:       h.actor(r),
		SessionID:   sessionID,
		Name:        payload.Name,
		Description: payload.Description,
	}); err != nil {
		writeError(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK, sessionID)
}

func (h *Handlers) HandleLoad(w http.ResponseWriter, r *http.Request, sessionID string) {
	var payload LoadRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := h.API.LoadTemplate(r.Context(), commands.LoadTemplateInput{
		Actor:      h.actor(r),
		SessionID:  sessionID,
		TemplateID: payload.TemplateID,
	}); err != nil {
		writeError(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK, sessionID)
}

func (h *Handlers) HandleSave(w http.ResponseWriter, r *http.Request, sessionID string) {
	var id int64
	if err := h.API.SaveTemplate(r.Context(), commands.SaveTemplateInput{Actor: h.actor(r), SessionID: sessionID, Result: &id}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"template_id": id})
}

func (h *Handlers) HandleLayout(w http.ResponseWriter, r *http.Request, sessionID string) {
	var payload LayoutRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := h.API.UpdateLayout(r.Context(), commands.UpdateLayoutInput{
		Actor:     h.actor(r),
		SessionID: sessionID,
		Layout:    payload.Layout,
	}); err != nil {
		writeError(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK, sessionID)
}

func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request, sessionID string) {
	var payload SelectChartRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := h.API.SelectChart(r.Context(), commands.SelectChartInput{
		Actor:     h.actor(r),
		SessionID: sessionID,
		ChartID:   payload.ChartID,
	}); err != nil {
		writeError(w, err)
		return
	}
	h.respondState(w, r, http.StatusOK, sessionID)
}

func (h *Handlers) HandleRefreshSources(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.API.RefreshDataSources(r.Context(), commands.RefreshDataSourcesInput{Actor: h.actor(r), SessionID: sessionID}); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.API.State(r.Context(), queries.SessionInput{SessionID: sessionID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view.DataSources)
}

func (h *Handlers) HandleColumns(w http.ResponseWriter, r *http.Request, sessionID, table string) {
	cols, err := h.API.Columns(r.Context(), queries.ColumnsInput{SessionID: sessionID, TableName: table})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *Handlers) HandleCacheColumns(w http.ResponseWriter, r *http.Request, sessionID, table string) {
	var payload ColumnsRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.Columns == nil {
		payload.Columns = []editor.ColumnInfo{}
	}
	if err := h.API.CacheColumns(r.Context(), commands.CacheColumnsInput{
		Actor:     h.actor(r),
		SessionID: sessionID,
		TableName: table,
		Columns:   payload.Columns,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleAddChart(w http.ResponseWriter, r *http.Request, sessionID string) {
	var payload AddChartRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}
	var cfg editor.ChartConfig
	if err := h.API.AddChart(r.Context(), commands.AddChartInput{
		Actor:     h.actor(r),
		SessionID: sessionID,
		Type:      payload.Type,
		Result:    &cfg,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (h *Handlers) HandleUpdateChart(w http.ResponseWriter, r *http.Request, sessionID, chartID string) {
	var patch editor.ChartPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	var cfg editor.ChartConfig
	if err := h.API.UpdateChart(r.Context(), commands.UpdateChartInput{
		Actor:     h.actor(r),
		SessionID: sessionID,
		ChartID:   chartID,
		Patch:     patch,
		Result:    &cfg,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) HandleRemoveChart(w http.ResponseWriter, r *http.Request, sessionID, chartID string) {
	if err := h.API.RemoveChart(r.Context(), commands.RemoveChartInput{
		Actor:     h.actor(r),
		SessionID: sessionID,
		ChartID:   chartID,
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleDuplicateChart(w http.ResponseWriter, r *http.Request, sessionID, chartID string) {
	var cfg editor.ChartConfig
	if err := h.API.DuplicateChart(r.Context(), commands.DuplicateChartInput{
		Actor:     h.actor(r),
		SessionID: sessionID,
		ChartID:   chartID,
		Result:    &cfg,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (h *Handlers) respondState(w http.ResponseWriter, r *http.Request, status int, sessionID string) {
	view, err := h.API.State(r.Context(), queries.SessionInput{SessionID: sessionID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, view)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return Decode(data, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), ErrorBody(err))
}
