package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/google/uuid"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/hitmatch/packages/assertions"
	"github.com/abdul-hamid-achik/hitmatch/packages/core/runner"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	environment TEXT NOT NULL DEFAULT '',
	files       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	errored     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	p50_us      INTEGER NOT NULL,
	p95_us      INTEGER NOT NULL,
	p99_us      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cases (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	position    INTEGER NOT NULL,
	file        TEXT NOT NULL,
	suite       TEXT NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	skip_reason TEXT NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL,
	status_code INTEGER NOT NULL,
	mismatches  INTEGER NOT NULL,
	report      TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// DefaultPath is where the CLI keeps history when none is configured.
const DefaultPath = ".hitmatch/history.db"

type Config struct {
	Logger micrologger.Logger
	// Path is a file path, optionally prefixed with sqlite:// or sqlite:.
	Path string
}

type Store struct {
	logger micrologger.Logger
	db     *sql.DB
}

// Open opens or creates the database and its schema.
func Open(ctx context.Context, config Config) (*Store, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}
	if config.Path == "" {
		return nil, microerror.Maskf(invalidConfigError, "%T.Path must not be empty", config)
	}

	path := dataSource(config.Path)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, microerror.Maskf(storeError, "creating directory for %s: %s", path, err.Error())
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, microerror.Maskf(storeError, "opening %s: %s", path, err.Error())
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, microerror.Maskf(storeError, "connecting to %s: %s", path, err.Error())
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		config.Logger.Log("level", "error", "message", "creating history schema failed", "path", path, "error", err.Error())
		return nil, microerror.Maskf(storeError, "creating schema: %s", err.Error())
	}

	s := &Store{
		logger: config.Logger,
		db:     db,
	}

	return s, nil
}

// dataSource strips the sqlite:// and sqlite: prefixes.
func dataSource(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "sqlite://") {
		return strings.TrimPrefix(path, "sqlite://")
	}
	return strings.TrimPrefix(path, "sqlite:")
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run is one recorded invocation.
type Run struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Environment string
	Files       int
	Passed      int
	Failed      int
	Errored     int
	Skipped     int
	P50         time.Duration
	P95         time.Duration
	P99         time.Duration
}

// NewRun builds a Run with a fresh ID from a run summary.
func NewRun(environment string, startedAt time.Time, summary *runner.Summary) *Run {
	return &Run{
		ID:          uuid.NewString(),
		StartedAt:   startedAt,
		Duration:    summary.Duration,
		Environment: environment,
		Files:       summary.Files,
		Passed:      summary.Passed,
		Failed:      summary.Failed,
		Errored:     summary.Errored,
		Skipped:     summary.Skipped,
		P50:         summary.Latency.P50,
		P95:         summary.Latency.P95,
		P99:         summary.Latency.P99,
	}
}

func (r *Run) Success() bool {
	return r.Failed == 0 && r.Errored == 0
}

func (r *Run) Total() int {
	return r.Passed + r.Failed + r.Errored + r.Skipped
}

// Case is one recorded case result.
type Case struct {
	File       string
	Suite      string
	Name       string
	Status     string
	SkipReason string
	Duration   time.Duration
	StatusCode int
	Mismatches int
	// Report is nil unless the case failed.
	Report *assertions.Report
	Error  string
}

// Record stores run together with every case of results in one
// transaction.
func (s *Store) Record(ctx context.Context, run *Run, results []*runner.RunResult) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return microerror.Maskf(storeError, "beginning transaction: %s", err.Error())
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_us, environment, files, passed, failed, errored, skipped, p50_us, p95_us, p99_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), run.Duration.Microseconds(), run.Environment,
		run.Files, run.Passed, run.Failed, run.Errored, run.Skipped,
		run.P50.Microseconds(), run.P95.Microseconds(), run.P99.Microseconds(),
	)
	if err != nil {
		s.logger.Log("level", "error", "message", "recording run failed", "run", run.ID, "error", err.Error())
		return microerror.Maskf(storeError, "inserting run %s: %s", run.ID, err.Error())
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cases (run_id, position, file, suite, name, status, skip_reason, duration_us, status_code, mismatches, report, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return microerror.Maskf(storeError, "preparing case insert: %s", err.Error())
	}
	defer stmt.Close()

	position := 0
	for _, result := range results {
		for _, c := range result.Results {
			row, err := caseRow(result, c)
			if err != nil {
				return microerror.Mask(err)
			}

			_, err = stmt.ExecContext(ctx, run.ID, position, row.File, row.Suite, row.Name, row.Status, row.SkipReason,
				row.Duration.Microseconds(), row.StatusCode, row.Mismatches, row.report, row.Error)
			if err != nil {
				s.logger.Log("level", "error", "message", "recording case failed", "run", run.ID, "case", c.Name, "error", err.Error())
				return microerror.Maskf(storeError, "inserting case %q: %s", c.Name, err.Error())
			}
			position++
		}
	}

	if err := tx.Commit(); err != nil {
		return microerror.Maskf(storeError, "committing run %s: %s", run.ID, err.Error())
	}

	s.logger.Log("level", "debug", "message", "run recorded", "run", run.ID, "cases", position)

	return nil
}

type caseRecord struct {
	Case
	report string
}

func caseRow(result *runner.RunResult, c *runner.CaseResult) (caseRecord, error) {
	row := caseRecord{
		Case: Case{
			File:       result.File,
			Suite:      result.Suite,
			Name:       c.Name,
			Status:     c.Status().String(),
			SkipReason: c.SkipReason,
			Duration:   c.Duration,
		},
	}
	if c.Response != nil {
		row.StatusCode = c.Response.StatusCode
	}
	if c.Error != nil {
		row.Error = c.Error.Error()
	}
	if c.Report != nil && c.Report.Failed() {
		data, err := json.Marshal(c.Report)
		if err != nil {
			return caseRecord{}, microerror.Maskf(storeError, "encoding report of %q: %s", c.Name, err.Error())
		}
		row.Mismatches = c.Report.Count()
		row.report = string(data)
	}
	return row, nil
}

const runColumns = `id, started_at, duration_us, environment, files, passed, failed, errored, skipped, p50_us, p95_us, p99_us`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                   Run
		startedAt, duration int64
		p50, p95, p99       int64
	)
	err := row.Scan(&r.ID, &startedAt, &duration, &r.Environment, &r.Files, &r.Passed, &r.Failed, &r.Errored, &r.Skipped, &p50, &p95, &p99)
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, startedAt)
	r.Duration = time.Duration(duration) * time.Microsecond
	r.P50 = time.Duration(p50) * time.Microsecond
	r.P95 = time.Duration(p95) * time.Microsecond
	r.P99 = time.Duration(p99) * time.Microsecond
	return &r, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, microerror.Maskf(storeError, "listing runs: %s", err.Error())
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, microerror.Maskf(storeError, "reading run: %s", err.Error())
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, microerror.Maskf(storeError, "listing runs: %s", err.Error())
	}

	return runs, nil
}

// Get returns the run whose ID is or starts with id, and its cases in the
// order they ran.
func (s *Store) Get(ctx context.Context, id string) (*Run, []Case, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil, microerror.Maskf(notFoundError, "empty run ID")
	}

	run, err := s.lookup(ctx, id)
	if err != nil {
		return nil, nil, microerror.Mask(err)
	}

	cases, err := s.cases(ctx, run.ID)
	if err != nil {
		return nil, nil, microerror.Mask(err)
	}

	return run, cases, nil
}

// lookup prefers an exact ID and falls back to a unique prefix.
func (s *Store) lookup(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, microerror.Maskf(storeError, "looking up run %s: %s", id, err.Error())
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(id)+"%")
	if err != nil {
		return nil, microerror.Maskf(storeError, "looking up run %s: %s", id, err.Error())
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, microerror.Maskf(storeError, "reading run: %s", err.Error())
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, microerror.Maskf(storeError, "looking up run %s: %s", id, err.Error())
	}

	switch len(matches) {
	case 0:
		return nil, microerror.Maskf(notFoundError, "run %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, microerror.Maskf(ambiguousIDError, "%s", id)
	}
}

func (s *Store) cases(ctx context.Context, runID string) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file, suite, name, status, skip_reason, duration_us, status_code, mismatches, report, error
		 FROM cases WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, microerror.Maskf(storeError, "listing cases of %s: %s", runID, err.Error())
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var (
			c        Case
			duration int64
			report   string
		)
		if err := rows.Scan(&c.File, &c.Suite, &c.Name, &c.Status, &c.SkipReason, &duration, &c.StatusCode, &c.Mismatches, &report, &c.Error); err != nil {
			return nil, microerror.Maskf(storeError, "reading case: %s", err.Error())
		}
		c.Duration = time.Duration(duration) * time.Microsecond
		if report != "" {
			c.Report = &assertions.Report{}
			if err := json.Unmarshal([]byte(report), c.Report); err != nil {
				s.logger.Log("level", "warning", "message", "stored report is unreadable", "run", runID, "case", c.Name, "error", err.Error())
				c.Report = nil
			}
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, microerror.Maskf(storeError, "listing cases of %s: %s", runID, err.Error())
	}

	return cases, nil
}

// Prune deletes all but the keep newest runs and returns how many were
// deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, microerror.Maskf(storeError, "beginning transaction: %s", err.Error())
	}
	defer func() { _ = tx.Rollback() }()

	const stale = `SELECT id FROM runs ORDER BY started_at DESC LIMIT -1 OFFSET ?`

	if _, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, microerror.Maskf(storeError, "pruning cases: %s", err.Error())
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, microerror.Maskf(storeError, "pruning runs: %s", err.Error())
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, microerror.Maskf(storeError, "committing prune: %s", err.Error())
	}

	return n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
