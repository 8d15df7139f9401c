package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrTemplateNotFound is returned by repositories for unknown ids.
	ErrTemplateNotFound = errors.New("editor: template not found")
	// ErrTemplateNameTaken is returned when a template name is already used.
	ErrTemplateNameTaken = errors.New("editor: template name already exists")
	// ErrTableNotFound is returned by directories for unknown tables.
	ErrTableNotFound = errors.New("editor: data source table not found")
)

// InMemoryTemplateStore is a concurrency-safe TemplateRepository for tests,
// demos and the CLI.
type InMemoryTemplateStore struct {
	mu     sync.RWMutex
	data   map[int64]Template
	nextID int64
	now    func() time.Time
}

// NewInMemoryTemplateStore creates a store seeded with templates. Seeded
// templates without an id are assigned one.
func NewInMemoryTemplateStore(seed ...Template) *InMemoryTemplateStore {
	s := &InMemoryTemplateStore{
		data: make(map[int64]Template),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, tpl := range seed {
		if tpl.ID == 0 {
			s.nextID++
			tpl.ID = s.nextID
		} else if tpl.ID > s.nextID {
			s.nextID = tpl.ID
		}
		s.data[tpl.ID] = cloneTemplate(tpl)
	}
	return s
}

func (s *InMemoryTemplateStore) List(context.Context) ([]TemplateSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TemplateSummary, 0, len(s.data))
	for _, tpl := range s.data {
		out = append(out, Summarize(tpl))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryTemplateStore) Load(_ context.Context, id int64) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.data[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %d", ErrTemplateNotFound, id)
	}
	return cloneTemplate(tpl), nil
}

func (s *InMemoryTemplateStore) Create(_ context.Context, tpl Template) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkName(0, tpl.Name); err != nil {
		return 0, err
	}
	s.nextID++
	now := s.now()
	tpl.ID = s.nextID
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	s.data[tpl.ID] = cloneTemplate(tpl)
	return tpl.ID, nil
}

func (s *InMemoryTemplateStore) Update(_ context.Context, id int64, tpl Template) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrTemplateNotFound, id)
	}
	if err := s.checkName(id, tpl.Name); err != nil {
		return 0, err
	}
	tpl.ID = id
	tpl.CreatedAt = existing.CreatedAt
	tpl.UpdatedAt = s.now()
	s.data[id] = cloneTemplate(tpl)
	return id, nil
}

func (s *InMemoryTemplateStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("%w: %d", ErrTemplateNotFound, id)
	}
	delete(s.data, id)
	return nil
}

func (s *InMemoryTemplateStore) checkName(id int64, name string) error {
	for otherID, tpl := range s.data {
		if otherID != id && strings.EqualFold(tpl.Name, name) {
			return fmt.Errorf("%w: %q", ErrTemplateNameTaken, name)
		}
	}
	return nil
}

// Summarize builds the list view of tpl.
func Summarize(tpl Template) TemplateSummary {
	return TemplateSummary{
		ID:          tpl.ID,
		Name:        tpl.Name,
		Description: tpl.Description,
		ChartCount:  len(tpl.Charts),
		IsActive:    tpl.IsActive,
		UpdatedAt:   tpl.UpdatedAt,
	}
}

func cloneTemplate(tpl Template) Template {
	out := tpl
	out.Layout = slices.Clone(tpl.Layout)
	out.Charts = make([]ChartConfig, len(tpl.Charts))
	for i, cfg := range tpl.Charts {
		out.Charts[i] = cfg.Clone()
	}
	return out
}

// StaticDataSourceDirectory serves a fixed set of tables.
type StaticDataSourceDirectory struct {
	Sources []DataSource
	Columns map[string][]ColumnInfo
}

func (d StaticDataSourceDirectory) ListSources(context.Context) ([]DataSource, error) {
	return slices.Clone(d.Sources), nil
}

func (d StaticDataSourceDirectory) ListColumns(_ context.Context, tableName string) ([]ColumnInfo, error) {
	cols, ok := d.Columns[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	return slices.Clone(cols), nil
}

// SessionStore keeps one Editor per editing session.
type SessionStore interface {
	Get(id string) (*Editor, bool)
	// GetOrCreate returns the editor stored under id, storing create() first
	// when there is none. The lookup and the insert are atomic.
	GetOrCreate(id string, create func() *Editor) *Editor
	Put(id string, ed *Editor)
	Delete(id string)
}

// InMemorySessionStore is the default SessionStore.
type InMemorySessionStore struct {
	mu   sync.RWMutex
	data map[string]*Editor
}

// NewInMemorySessionStore creates an empty session store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{data: make(map[string]*Editor)}
}

func (s *InMemorySessionStore) Get(id string) (*Editor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ed, ok := s.data[id]
	return ed, ok
}

func (s *InMemorySessionStore) GetOrCreate(id string, create func() *Editor) *Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ed, ok := s.data[id]; ok {
		return ed
	}
	ed := create()
	s.data[id] = ed
	return ed
}

func (s *InMemorySessionStore) Put(id string, ed *Editor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = ed
}

func (s *InMemorySessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
}
