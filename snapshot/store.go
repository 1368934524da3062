// Package snapshot persists the whole graph to a local SQLite file, so
// editing survives backend outages and a full reload has a fallback
// source.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mindflow-ai/mindgraph/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
`

// Store is a SQLite-backed snapshot of the full graph. Each Save
// replaces the previous snapshot atomically; Load restores the graph
// exactly as last saved, edges rebuilt from parent references.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the snapshot database at the given path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Ensure the directory for the database file exists
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dbDir, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous pragma: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify snapshot database connection: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	logger.Debug("snapshot database opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Save replaces the snapshot with the current content of the graph
// store, all nodes in one transaction.
func (s *Store) Save(ctx context.Context, g *graph.Store) error {
	nodes := g.Nodes()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
		return fmt.Errorf("failed to clear previous snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO nodes (id, doc) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		doc, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal node %s: %w", n.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, n.ID, string(doc)); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved", "nodes", len(nodes))
	return nil
}

// Load replaces the graph store content with the last saved snapshot and
// returns the number of restored nodes. An empty snapshot leaves the
// store untouched.
func (s *Store) Load(ctx context.Context, g *graph.Store) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT doc FROM nodes")
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot: %w", err)
	}
	defer rows.Close()

	var nodes []*graph.Node
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return 0, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		var n graph.Node
		if err := json.Unmarshal([]byte(doc), &n); err != nil {
			return 0, fmt.Errorf("failed to unmarshal snapshot node: %w", err)
		}
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate snapshot rows: %w", err)
	}

	if len(nodes) == 0 {
		return 0, nil
	}

	if err := g.Replace(nodes); err != nil {
		return 0, fmt.Errorf("failed to restore snapshot into store: %w", err)
	}

	s.logger.Debug("snapshot restored", "nodes", len(nodes))
	return len(nodes), nil
}

// Close closes the snapshot database.
func (s *Store) Close() error {
	return s.db.Close()
}
