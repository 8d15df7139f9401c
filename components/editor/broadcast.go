package editor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ChangeEvent summarizes a session transition for transports.
type ChangeEvent struct {
	SessionID       string `json:"session_id"`
	Kind            string `json:"kind"`
	TemplateID      int64  `json:"template_id"`
	TemplateName    string `json:"template_name"`
	ChartID         string `json:"chart_id,omitempty"`
	ChartCount      int    `json:"chart_count"`
	SelectedChartID string `json:"selected_chart_id,omitempty"`
	IsDirty         bool   `json:"is_dirty"`
	Error           string `json:"error,omitempty"`
}

// ChangeHook notifies transports (REST/WebSocket) about session changes.
type ChangeHook interface {
	StateChanged(ctx context.Context, event ChangeEvent) error
}

type noopChangeHook struct{}

func (noopChangeHook) StateChanged(context.Context, ChangeEvent) error { return nil }

func newChangeEvent(sessionID string, change Change) ChangeEvent {
	state := change.Current
	event := ChangeEvent{
		SessionID:       sessionID,
		Kind:            change.Action.Kind(),
		TemplateID:      state.TemplateID,
		TemplateName:    state.TemplateName,
		ChartCount:      len(state.Charts),
		SelectedChartID: state.SelectedChartID,
		IsDirty:         state.IsDirty,
		Error:           state.Error,
	}
	switch a := change.Action.(type) {
	case AddChart:
		event.ChartID = state.SelectedChartID
	case RemoveChart:
		event.ChartID = a.ID
	case DuplicateChart:
		event.ChartID = state.SelectedChartID
	case UpdateChart:
		event.ChartID = a.ID
	case SelectChart:
		event.ChartID = a.ID
	}
	return event
}

// BroadcastHook fans out change events to in-process subscribers.
type BroadcastHook struct {
	mu   sync.RWMutex
	subs map[int]chan ChangeEvent
	next int
}

// NewBroadcastHook creates a broadcast hook.
func NewBroadcastHook() *BroadcastHook {
	return &BroadcastHook{subs: make(map[int]chan ChangeEvent)}
}

// StateChanged broadcasts event. Slow subscribers miss events rather than
// blocking the editor.
func (h *BroadcastHook) StateChanged(_ context.Context, event ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of change events and a cancel func.
func (h *BroadcastHook) Subscribe() (<-chan ChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan ChangeEvent, 16)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// SubscribeSession is Subscribe filtered to one session.
func (h *BroadcastHook) SubscribeSession(sessionID string) (<-chan ChangeEvent, func()) {
	events, cancel := h.Subscribe()
	if sessionID == "" {
		return events, cancel
	}
	out := make(chan ChangeEvent, 16)
	go func() {
		defer close(out)
		for event := range events {
			if event.SessionID != sessionID {
				continue
			}
			select {
			case out <- event:
			default:
			}
		}
	}()
	return out, cancel
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and streams change events as JSON.
// The optional "session" query parameter filters the stream.
func (h *BroadcastHook) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.SubscribeSession(r.URL.Query().Get("session"))
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// ServeSSE streams change events as Server-Sent Events.
func (h *BroadcastHook) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	events, cancel := h.SubscribeSession(r.URL.Query().Get("session"))
	defer cancel()

	encoder := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := encoder.Encode(event); err != nil {
				return
			}
			_, _ = w.Write([]byte("\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
