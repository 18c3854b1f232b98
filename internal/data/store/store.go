// Package store persists analysis runs in SQLite so later runs can be
// compared with earlier ones.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/engine/callgraph"
	"reachgraph/internal/engine/facts"
	"reachgraph/internal/shared/util"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName         = "sqlite"
	maxAttempts        = 5
	defaultBusyTimeout = 2 * time.Second

	// Fixed width so timestamps sort lexically in SQL.
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Run is the summary row of one stored analysis.
type Run struct {
	ID            string    `json:"id"`
	ProjectKey    string    `json:"project_key"`
	Timestamp     time.Time `json:"timestamp"`
	Operation     string    `json:"operation"`
	PackageRoot   string    `json:"package_root"`
	Iterations    int       `json:"iterations"`
	Converged     bool      `json:"converged"`
	ModuleCount   int       `json:"module_count"`
	FunctionCount int       `json:"function_count"`
	EdgeCount     int       `json:"edge_count"`
	KeyErrorCount int       `json:"key_error_count"`
}

type Edge struct {
	Src       string
	Dst       string
	Line      int
	Module    string
	ExtModule string
}

type Module struct {
	Name     string
	Filename string
	Internal bool
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates the database file if needed and migrates it to the current
// schema. A zero busyTimeout selects the default.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	db, err := openDB(cleanPath, busyTimeout)
	if err != nil && IsCorruptError(err) {
		backup, moveErr := quarantine(cleanPath)
		if moveErr != nil {
			return nil, fmt.Errorf("move aside corrupt store %q: %w", cleanPath, moveErr)
		}
		slog.Warn("run store is corrupt, starting a fresh database", "path", cleanPath, "backup", backup, "error", err)
		db, err = openDB(cleanPath, busyTimeout)
	}
	if err != nil {
		return nil, err
	}
	return &Store{path: cleanPath, db: db}, nil
}

func openDB(path string, busyTimeout time.Duration) (*sql.DB, error) {
	// WAL keeps readers off the writer's back while watch mode saves runs.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", path, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", path, err)
	}
	return db, nil
}

// quarantine renames a corrupt database and drops its WAL side files. It
// returns the backup path.
func quarantine(path string) (string, error) {
	backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UTC().Unix())
	if err := os.Rename(path, backup); err != nil {
		return "", err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return "", err
		}
	}
	return backup, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeProjectKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "default"
	}
	return key
}

// SaveRun writes res and all of its rows in one transaction and returns the
// stored summary.
func (s *Store) SaveRun(projectKey, packageRoot string, ts time.Time, res *analysis.Result) (Run, error) {
	if res == nil {
		return Run{}, fmt.Errorf("save run: nil result")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ts.IsZero() {
		ts = time.Now()
	}
	run := Run{
		ID:            uuid.NewString(),
		ProjectKey:    normalizeProjectKey(projectKey),
		Timestamp:     ts.UTC(),
		Operation:     string(res.Operation),
		PackageRoot:   packageRoot,
		Iterations:    res.Iterations,
		Converged:     res.Converged,
		ModuleCount:   len(res.Modules.Internal) + len(res.Modules.External),
		FunctionCount: len(res.Functions),
		EdgeCount:     len(res.Edges),
		KeyErrorCount: len(res.KeyErrors),
	}

	err := s.withRetry("save run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if err := insertRun(tx, run, res); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func insertRun(tx *sql.Tx, run Run, res *analysis.Result) error {
	if _, err := tx.Exec(`
INSERT INTO runs (
  id, project_key, ts_utc, operation, package_root, iterations, converged,
  module_count, function_count, edge_count, key_error_count
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ProjectKey, run.Timestamp.Format(tsLayout), run.Operation, run.PackageRoot,
		run.Iterations, boolToInt(run.Converged),
		run.ModuleCount, run.FunctionCount, run.EdgeCount, run.KeyErrorCount,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	modStmt, err := tx.Prepare(`INSERT INTO run_modules (run_id, name, filename, internal) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare module insert: %w", err)
	}
	defer modStmt.Close()
	for _, name := range util.SortedStringKeys(res.Modules.Internal) {
		if _, err := modStmt.Exec(run.ID, name, res.Modules.Internal[name].Filename, 1); err != nil {
			return fmt.Errorf("insert module %q: %w", name, err)
		}
	}
	for _, name := range util.SortedStringKeys(res.Modules.External) {
		if _, ok := res.Modules.Internal[name]; ok {
			continue
		}
		if _, err := modStmt.Exec(run.ID, name, res.Modules.External[name].Filename, 0); err != nil {
			return fmt.Errorf("insert module %q: %w", name, err)
		}
	}

	fnStmt, err := tx.Prepare(`INSERT OR IGNORE INTO run_functions (run_id, name) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare function insert: %w", err)
	}
	defer fnStmt.Close()
	for _, name := range res.Functions {
		if _, err := fnStmt.Exec(run.ID, name); err != nil {
			return fmt.Errorf("insert function %q: %w", name, err)
		}
	}

	edgeStmt, err := tx.Prepare(`
INSERT INTO run_edges (run_id, src, dst, lineno, module, ext_module) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, pair := range res.Edges {
		rec := firstRecord(res.Extended[pair[0]], pair[1])
		if _, err := edgeStmt.Exec(run.ID, pair[0], pair[1], rec.Line, rec.Module, rec.ExtModule); err != nil {
			return fmt.Errorf("insert edge %s -> %s: %w", pair[0], pair[1], err)
		}
	}

	keyStmt, err := tx.Prepare(`
INSERT INTO run_key_errors (run_id, seq, filename, lineno, namespace, key) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare key error insert: %w", err)
	}
	defer keyStmt.Close()
	for i, ke := range res.KeyErrors {
		if _, err := keyStmt.Exec(run.ID, i, ke.Filename, ke.Line, ke.Namespace, ke.Key); err != nil {
			return fmt.Errorf("insert key error: %w", err)
		}
	}
	return nil
}

// firstRecord picks the earliest provenance record of src -> dst.
func firstRecord(node callgraph.ExtendedNode, dst string) callgraph.EdgeRecord {
	for _, rec := range node.Dsts {
		if rec.Dst == dst {
			return rec
		}
	}
	return callgraph.EdgeRecord{Dst: dst, Line: callgraph.UnknownLine}
}

// LoadRuns returns the project's runs oldest first. A zero since loads all
// of them.
func (s *Store) LoadRuns(projectKey string, since time.Time) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, project_key, ts_utc, operation, package_root, iterations, converged,
  module_count, function_count, edge_count, key_error_count
FROM runs WHERE project_key = ?`
	args := []any{normalizeProjectKey(projectKey)}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(tsLayout))
	}
	query += " ORDER BY ts_utc ASC, id ASC"

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// LatestRun reports false when the project has no runs yet.
func (s *Store) LatestRun(projectKey string) (Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var run Run
	err := s.withRetry("load latest run", func() error {
		row := s.db.QueryRow(`
SELECT id, project_key, ts_utc, operation, package_root, iterations, converged,
  module_count, function_count, edge_count, key_error_count
FROM runs WHERE project_key = ? ORDER BY ts_utc DESC, created_at_utc DESC LIMIT 1`, normalizeProjectKey(projectKey))
		var scanErr error
		run, scanErr = scanRun(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		tsRaw     string
		converged int
	)
	if err := row.Scan(
		&run.ID,
		&run.ProjectKey,
		&tsRaw,
		&run.Operation,
		&run.PackageRoot,
		&run.Iterations,
		&converged,
		&run.ModuleCount,
		&run.FunctionCount,
		&run.EdgeCount,
		&run.KeyErrorCount,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run row: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
	}
	run.Timestamp = ts.UTC()
	run.Converged = converged != 0
	return run, nil
}

func (s *Store) LoadEdges(runID string) ([]Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load edges", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT src, dst, lineno, module, ext_module FROM run_edges WHERE run_id = ? ORDER BY src, dst`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]Edge, 0)
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Src, &e.Dst, &e.Line, &e.Module, &e.ExtModule); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edge rows: %w", err)
	}
	return edges, nil
}

func (s *Store) LoadModules(runID string) ([]Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load modules", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT name, filename, internal FROM run_modules WHERE run_id = ? ORDER BY name`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mods := make([]Module, 0)
	for rows.Next() {
		var (
			m        Module
			internal int
		)
		if err := rows.Scan(&m.Name, &m.Filename, &internal); err != nil {
			return nil, fmt.Errorf("scan module row: %w", err)
		}
		m.Internal = internal != 0
		mods = append(mods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate module rows: %w", err)
	}
	return mods, nil
}

func (s *Store) LoadKeyErrors(runID string) ([]facts.KeyError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load key errors", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT filename, lineno, namespace, key FROM run_key_errors WHERE run_id = ? ORDER BY seq`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]facts.KeyError, 0)
	for rows.Next() {
		var ke facts.KeyError
		if err := rows.Scan(&ke.Filename, &ke.Line, &ke.Namespace, &ke.Key); err != nil {
			return nil, fmt.Errorf("scan key error row: %w", err)
		}
		out = append(out, ke)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate key error rows: %w", err)
	}
	return out, nil
}

// Prune keeps the newest keep runs of the project and deletes the rest along
// with their rows.
func (s *Store) Prune(projectKey string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	err := s.withRetry("prune runs", func() error {
		res, err := s.db.Exec(`
DELETE FROM runs WHERE project_key = ? AND id NOT IN (
  SELECT id FROM runs WHERE project_key = ? ORDER BY ts_utc DESC, created_at_utc DESC LIMIT ?
)`, normalizeProjectKey(projectKey), normalizeProjectKey(projectKey), keep)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	if errors.Is(lastErr, sql.ErrNoRows) {
		return lastErr
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database")
}
