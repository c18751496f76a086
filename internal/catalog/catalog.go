// Package catalog records scan runs, parsed classes and failures in a
// SQLite database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"jclass/internal/scan"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id       TEXT PRIMARY KEY,
	started  TEXT NOT NULL,
	finished TEXT,
	roots    TEXT NOT NULL,
	files    INTEGER NOT NULL DEFAULT 0,
	parsed   INTEGER NOT NULL DEFAULT 0,
	failed   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS classes (
	run     TEXT NOT NULL REFERENCES runs(id),
	path    TEXT NOT NULL,
	sha256  TEXT NOT NULL,
	name    TEXT NOT NULL,
	super   TEXT NOT NULL,
	major   INTEGER NOT NULL,
	minor   INTEGER NOT NULL,
	access  INTEGER NOT NULL,
	fields  INTEGER NOT NULL,
	methods INTEGER NOT NULL,
	PRIMARY KEY (run, path)
);
CREATE INDEX IF NOT EXISTS classes_name ON classes(name);
CREATE TABLE IF NOT EXISTS failures (
	run     TEXT NOT NULL REFERENCES runs(id),
	path    TEXT NOT NULL,
	kind    TEXT NOT NULL,
	message TEXT NOT NULL,
	PRIMARY KEY (run, path)
);
`

// Catalog is an open catalog database. Consume records into the run
// started by the latest BeginRun.
type Catalog struct {
	db  *sql.DB
	run string
}

// Run is one row of the runs table.
type Run struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Roots    []string  `json:"roots"`
	Files    int       `json:"files"`
	Parsed   int       `json:"parsed"`
	Failed   int       `json:"failed"`
}

// Failure is one row of the failures table.
type Failure struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: create schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// BeginRun starts a run over roots and returns its ID.
func (c *Catalog) BeginRun(ctx context.Context, roots []string) (string, error) {
	id := uuid.New().String()
	_, err := c.db.ExecContext(ctx, "INSERT INTO runs (id, started, roots) VALUES (?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339Nano), strings.Join(roots, "\n"))
	if err != nil {
		return "", fmt.Errorf("catalog: begin run: %w", err)
	}
	c.run = id
	return id, nil
}

// Consume implements scan.Consumer.
func (c *Catalog) Consume(ctx context.Context, r *scan.Result) error {
	if c.run == "" {
		return fmt.Errorf("catalog: no run started")
	}
	var err error
	if r.Err != nil {
		_, err = c.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO failures (run, path, kind, message) VALUES (?, ?, ?, ?)",
			c.run, r.Path, r.Kind(), r.Err.Error())
	} else {
		cl := r.Class
		_, err = c.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO classes (run, path, sha256, name, super, major, minor, access, fields, methods)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.run, r.Path, r.SHA256, cl.Name, cl.SuperName, cl.MajorVersion, cl.MinorVersion,
			uint16(cl.AccessFlags), len(cl.Fields), len(cl.Methods))
	}
	if err != nil {
		return fmt.Errorf("catalog: record %s: %w", r.Path, err)
	}
	return nil
}

// FinishRun stores the final counts of the current run.
func (c *Catalog) FinishRun(ctx context.Context, stats *scan.Stats) error {
	_, err := c.db.ExecContext(ctx, "UPDATE runs SET finished = ?, files = ?, parsed = ?, failed = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), stats.Files, stats.Parsed, stats.Failed, c.run)
	if err != nil {
		return fmt.Errorf("catalog: finish run: %w", err)
	}
	return nil
}

// Runs lists runs, newest first.
func (c *Catalog) Runs(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, started, COALESCE(finished, ''), roots, files, parsed, failed FROM runs ORDER BY started DESC")
	if err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                      Run
			started, finished, rts string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &rts, &r.Files, &r.Parsed, &r.Failed); err != nil {
			return nil, fmt.Errorf("catalog: scan run: %w", err)
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		if finished != "" {
			r.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		}
		r.Roots = strings.Split(rts, "\n")
		out = append(out, r)
	}
	return out, rows.Err()
}

// Failures lists the failures of run ordered by path.
func (c *Catalog) Failures(ctx context.Context, run string) ([]Failure, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT path, kind, message FROM failures WHERE run = ? ORDER BY path", run)
	if err != nil {
		return nil, fmt.Errorf("catalog: list failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Path, &f.Kind, &f.Message); err != nil {
			return nil, fmt.Errorf("catalog: scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FindClass returns the paths at which class name was recorded in run.
func (c *Catalog) FindClass(ctx context.Context, run, name string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT path FROM classes WHERE run = ? AND name = ? ORDER BY path", run, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: find class: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("catalog: scan path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
