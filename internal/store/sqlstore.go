package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"nodeflow/internal/logging"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"

	_ "modernc.org/sqlite"
)

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersion1

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .nodeflow) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db, log: logging.New("store")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		// Interrupted install: the table exists but was never stamped.
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch v {
	case currentSchemaVersion:
		return nil
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	s.log.Debug("created schema", "version", currentSchemaVersion)
	return nil
}

// Close closes the database.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

func (s *SqlStore) SaveWorkflow(g *workflow.Graph) error {
	rec, err := newWorkflowRecord(g, nowUTC())
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO workflows(id, name, node_count, edge_count, document, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		string(rec.ID), nilIfEmpty(rec.Name), rec.Nodes, rec.Edges, string(rec.Document),
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workflow %s: %w", g.ID, err)
	}
	return nil
}

const workflowColumns = "id, name, node_count, edge_count, document, created_at, updated_at"

func (s *SqlStore) GetWorkflow(id workflow.WorkflowID) (*WorkflowRecord, error) {
	row := s.db.QueryRow("SELECT "+workflowColumns+" FROM workflows WHERE id = ?", string(id))
	w, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}
	return w, nil
}

func (s *SqlStore) ListWorkflows() ([]*WorkflowRecord, error) {
	rows, err := s.db.Query("SELECT " + workflowColumns + " FROM workflows ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()
	var out []*WorkflowRecord
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SqlStore) SaveRun(res *execute.Result) error {
	rec, err := newRunRecord(res)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO runs(id, workflow_id, success, error, output, logs, started_at, finished_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.WorkflowID), boolToInt(rec.Success), nilIfEmpty(rec.Error),
		nilIfEmpty(string(rec.Output)), string(rec.Logs), rec.StartedAt, rec.FinishedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, rec.ID)
		}
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

const runColumns = "id, workflow_id, success, error, output, logs, started_at, finished_at"

func (s *SqlStore) GetRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

func (s *SqlStore) ListRuns(workflowID workflow.WorkflowID) ([]*RunRecord, error) {
	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if workflowID != "" {
		query += " WHERE workflow_id = ?"
		args = append(args, string(workflowID))
	}
	query += " ORDER BY started_at DESC, id"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(sc scanner) (*WorkflowRecord, error) {
	var w WorkflowRecord
	var id, doc string
	var name sql.NullString
	if err := sc.Scan(&id, &name, &w.Nodes, &w.Edges, &doc, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.ID = workflow.WorkflowID(id)
	w.Name = nullStr(name)
	w.Document = []byte(doc)
	return &w, nil
}

func scanRun(sc scanner) (*RunRecord, error) {
	var r RunRecord
	var wf, logs string
	var success int
	var errText, output sql.NullString
	if err := sc.Scan(&r.ID, &wf, &success, &errText, &output, &logs, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	r.WorkflowID = workflow.WorkflowID(wf)
	r.Success = success != 0
	r.Error = nullStr(errText)
	if output.Valid {
		r.Output = []byte(output.String)
	}
	r.Logs = []byte(logs)
	return &r, nil
}
