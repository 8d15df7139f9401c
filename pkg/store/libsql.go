package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/goliatone/go-report-builder/components/editor"
)

// LibSQLTemplateStore persists report templates in a libSQL (embedded SQLite)
// database. It implements editor.TemplateRepository.
type LibSQLTemplateStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewLibSQLTemplateStore opens the database at dbPath, a file URI such as
// "file:/var/lib/reports.db".
func NewLibSQLTemplateStore(dbPath string) (*LibSQLTemplateStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows, so they go through QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLTemplateStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// DB returns the underlying handle, shared with LibSQLDataSources.
func (s *LibSQLTemplateStore) DB() *sql.DB { return s.db }

func (s *LibSQLTemplateStore) Close() error { return s.db.Close() }

// Migrate applies pending schema migrations.
func (s *LibSQLTemplateStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

func (s *LibSQLTemplateStore) List(ctx context.Context) ([]editor.TemplateSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, charts, is_active, updated_at FROM report_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	defer rows.Close()

	out := []editor.TemplateSummary{}
	for rows.Next() {
		var (
			summary editor.TemplateSummary
			charts  string
		)
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.Description, &charts, &summary.IsActive, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan template: %w", err)
		}
		var decoded []json.RawMessage
		if err := json.Unmarshal([]byte(charts), &decoded); err != nil {
			return nil, fmt.Errorf("store: decode charts of template %d: %w", summary.ID, err)
		}
		summary.ChartCount = len(decoded)
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *LibSQLTemplateStore) Load(ctx context.Context, id int64) (editor.Template, error) {
	var (
		tpl            editor.Template
		layout, charts string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, layout, charts, is_active, created_at, updated_at
		 FROM report_templates WHERE id = ?`, id,
	).Scan(&tpl.ID, &tpl.Name, &tpl.Description, &layout, &charts, &tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return editor.Template{}, fmt.Errorf("%w: %d", editor.ErrTemplateNotFound, id)
	}
	if err != nil {
		return editor.Template{}, fmt.Errorf("store: load template %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(layout), &tpl.Layout); err != nil {
		return editor.Template{}, fmt.Errorf("store: decode layout of template %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(charts), &tpl.Charts); err != nil {
		return editor.Template{}, fmt.Errorf("store: decode charts of template %d: %w", id, err)
	}
	if tpl.Layout == nil {
		tpl.Layout = []editor.LayoutItem{}
	}
	if tpl.Charts == nil {
		tpl.Charts = []editor.ChartConfig{}
	}
	return tpl, nil
}

func (s *LibSQLTemplateStore) Create(ctx context.Context, tpl editor.Template) (int64, error) {
	layout, charts, err := encodeTemplate(tpl)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkName(ctx, tx, 0, tpl.Name); err != nil {
		return 0, err
	}
	now := s.now()
	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO report_templates (name, description, layout, charts, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		tpl.Name, tpl.Description, layout, charts, tpl.IsActive, timeOr(tpl.CreatedAt, now), now,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(tpl.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit create: %w", err)
	}
	return id, nil
}

func (s *LibSQLTemplateStore) Update(ctx context.Context, id int64, tpl editor.Template) (int64, error) {
	layout, charts, err := encodeTemplate(tpl)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkName(ctx, tx, id, tpl.Name); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE report_templates
		 SET name = ?, description = ?, layout = ?, charts = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		tpl.Name, tpl.Description, layout, charts, tpl.IsActive, s.now(), id,
	)
	if err != nil {
		return 0, mapWriteError(tpl.Name, err)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit update: %w", err)
	}
	return id, nil
}

func (s *LibSQLTemplateStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM report_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete template %d: %w", id, err)
	}
	return checkRowsAffected(res, id)
}

func encodeTemplate(tpl editor.Template) (string, string, error) {
	if tpl.Layout == nil {
		tpl.Layout = []editor.LayoutItem{}
	}
	if tpl.Charts == nil {
		tpl.Charts = []editor.ChartConfig{}
	}
	layout, err := json.Marshal(tpl.Layout)
	if err != nil {
		return "", "", fmt.Errorf("store: marshal layout: %w", err)
	}
	charts, err := json.Marshal(tpl.Charts)
	if err != nil {
		return "", "", fmt.Errorf("store: marshal charts: %w", err)
	}
	return string(layout), string(charts), nil
}

// checkName reports ErrTemplateNameTaken when another template already uses
// name, compared case-insensitively.
func checkName(ctx context.Context, tx *sql.Tx, id int64, name string) error {
	var other int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM report_templates WHERE name = ? COLLATE NOCASE AND id != ? LIMIT 1`, name, id,
	).Scan(&other)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("store: check template name: %w", err)
	default:
		return fmt.Errorf("%w: %q", editor.ErrTemplateNameTaken, name)
	}
}

func mapWriteError(name string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %q", editor.ErrTemplateNameTaken, name)
	}
	return fmt.Errorf("store: write template: %w", err)
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", editor.ErrTemplateNotFound, id)
	}
	return nil
}

func timeOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
