// Package store persists analysis runs in SQLite. Cluster generations
// are append-only: each run writes a new generation and flips the
// bill's latest pointer in the same transaction, so prior generations
// stay readable for auditing how sentiment shifted.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
)

// ErrNotFound marks lookups for bills or generations never stored.
var ErrNotFound = errors.New("not found")

// Store handles SQLite persistence. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Run bundles the artifacts of one completed pipeline run.
type Run struct {
	BillID     string
	Generation int64
	Arguments  []*model.Argument
	Clusters   []*model.Cluster
	Coalitions []model.Coalition
	Brief      *model.LegislativeBrief
}

// GenerationInfo describes one stored clustering generation.
type GenerationInfo struct {
	Generation int64     `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
	Arguments  int       `json:"arguments"`
	Clusters   int       `json:"clusters"`
}

// Open creates a Store at the given database path, creating tables as
// needed. ":memory:" gives an in-memory database for tests.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	} else if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// WAL improves concurrent read behavior for file-based databases
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// migrate creates the required tables and indexes if they don't exist
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bills (
		bill_id TEXT PRIMARY KEY,
		latest_generation INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS generations (
		bill_id TEXT NOT NULL,
		generation INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		argument_count INTEGER NOT NULL,
		cluster_count INTEGER NOT NULL,
		PRIMARY KEY (bill_id, generation)
	);

	CREATE TABLE IF NOT EXISTS arguments (
		bill_id TEXT NOT NULL,
		generation INTEGER NOT NULL,
		id TEXT NOT NULL,
		position TEXT NOT NULL,
		strength REAL NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (bill_id, generation, id)
	);

	CREATE TABLE IF NOT EXISTS clusters (
		bill_id TEXT NOT NULL,
		generation INTEGER NOT NULL,
		id TEXT NOT NULL,
		position TEXT NOT NULL,
		cohesion REAL NOT NULL,
		size INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (bill_id, generation, id)
	);

	CREATE TABLE IF NOT EXISTS coalitions (
		bill_id TEXT NOT NULL,
		generation INTEGER NOT NULL,
		ord INTEGER NOT NULL,
		relationship_type TEXT NOT NULL,
		strength REAL NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (bill_id, generation, ord)
	);

	CREATE TABLE IF NOT EXISTS briefs (
		bill_id TEXT NOT NULL,
		generation INTEGER NOT NULL,
		generated_at DATETIME NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (bill_id, generation)
	);

	CREATE INDEX IF NOT EXISTS idx_generations_bill ON generations(bill_id, generation DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveRun persists one pipeline run in a single transaction. The run's
// generation must be newer than the bill's latest; the latest pointer
// flips only when the transaction commits, so readers of a prior
// generation never see a half-written run.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	if run.BillID == "" {
		return fmt.Errorf("store: run has no bill ID: %w", model.ErrInvalidInput)
	}
	if run.Generation <= 0 {
		return fmt.Errorf("store: generation must be positive: %w", model.ErrInvalidInput)
	}
	if run.Brief == nil {
		return fmt.Errorf("store: run has no brief: %w", model.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var latest int64
	err = tx.QueryRowContext(ctx, "SELECT latest_generation FROM bills WHERE bill_id = ?", run.BillID).Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read latest generation: %w", err)
	}
	if run.Generation <= latest {
		return fmt.Errorf("store: generation %d is not newer than latest %d for bill %s", run.Generation, latest, run.BillID)
	}

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO generations (bill_id, generation, created_at, argument_count, cluster_count) VALUES (?, ?, ?, ?, ?)",
		run.BillID, run.Generation, now, len(run.Arguments), len(run.Clusters),
	); err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}

	if err := insertArguments(ctx, tx, run); err != nil {
		return err
	}
	if err := insertClusters(ctx, tx, run); err != nil {
		return err
	}
	if err := insertCoalitions(ctx, tx, run); err != nil {
		return err
	}

	briefPayload, err := json.Marshal(run.Brief)
	if err != nil {
		return fmt.Errorf("marshal brief: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO briefs (bill_id, generation, generated_at, payload) VALUES (?, ?, ?, ?)",
		run.BillID, run.Generation, run.Brief.GeneratedAt.UTC(), string(briefPayload),
	); err != nil {
		return fmt.Errorf("insert brief: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bills (bill_id, latest_generation, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(bill_id) DO UPDATE SET latest_generation = excluded.latest_generation, updated_at = excluded.updated_at`,
		run.BillID, run.Generation, now,
	); err != nil {
		return fmt.Errorf("update latest pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}

	logging.Debug("Saved analysis run",
		"bill", run.BillID,
		"generation", run.Generation,
		"arguments", len(run.Arguments),
		"clusters", len(run.Clusters))

	return nil
}

func insertArguments(ctx context.Context, tx *sql.Tx, run Run) error {
	if len(run.Arguments) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO arguments (bill_id, generation, id, position, strength, payload) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare arguments: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, arg := range run.Arguments {
		payload, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("marshal argument %s: %w", arg.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			run.BillID, run.Generation, arg.ID, string(arg.Position), arg.Strength, string(payload),
		); err != nil {
			return fmt.Errorf("insert argument %s: %w", arg.ID, err)
		}
	}
	return nil
}

func insertClusters(ctx context.Context, tx *sql.Tx, run Run) error {
	if len(run.Clusters) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO clusters (bill_id, generation, id, position, cohesion, size, payload) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare clusters: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range run.Clusters {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal cluster %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			run.BillID, run.Generation, c.ID, string(c.Position), c.Cohesion, c.Size, string(payload),
		); err != nil {
			return fmt.Errorf("insert cluster %s: %w", c.ID, err)
		}
	}
	return nil
}

func insertCoalitions(ctx context.Context, tx *sql.Tx, run Run) error {
	if len(run.Coalitions) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO coalitions (bill_id, generation, ord, relationship_type, strength, payload) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare coalitions: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, co := range run.Coalitions {
		payload, err := json.Marshal(co)
		if err != nil {
			return fmt.Errorf("marshal coalition %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			run.BillID, run.Generation, i, string(co.RelationshipType), co.Strength, string(payload),
		); err != nil {
			return fmt.Errorf("insert coalition %d: %w", i, err)
		}
	}
	return nil
}

// NextGeneration returns the generation number the bill's next run
// should use: latest + 1, so 1 for a bill never stored
func (s *Store) NextGeneration(ctx context.Context, billID string) (int64, error) {
	latest, err := s.LatestGeneration(ctx, billID)
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}

// LatestGeneration returns the bill's latest stored generation, 0 when
// the bill has none
func (s *Store) LatestGeneration(ctx context.Context, billID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	err := s.db.QueryRowContext(ctx, "SELECT latest_generation FROM bills WHERE bill_id = ?", billID).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read latest generation: %w", err)
	}
	return latest, nil
}

// Generations lists a bill's stored generations, newest first
func (s *Store) Generations(ctx context.Context, billID string) ([]GenerationInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT generation, created_at, argument_count, cluster_count
		FROM generations WHERE bill_id = ? ORDER BY generation DESC`, billID)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []GenerationInfo
	for rows.Next() {
		var info GenerationInfo
		if err := rows.Scan(&info.Generation, &info.CreatedAt, &info.Arguments, &info.Clusters); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return infos, nil
}

// Clusters returns one generation's clusters in insertion order.
// Generation 0 resolves to the bill's latest.
func (s *Store) Clusters(ctx context.Context, billID string, generation int64) ([]*model.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generation, err := s.resolveGeneration(ctx, billID, generation)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM clusters WHERE bill_id = ? AND generation = ? ORDER BY rowid", billID, generation)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clusters []*model.Cluster
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		var c model.Cluster
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, fmt.Errorf("unmarshal cluster: %w", err)
		}
		clusters = append(clusters, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return clusters, nil
}

// Arguments returns one generation's arguments in insertion order.
// Generation 0 resolves to the bill's latest.
func (s *Store) Arguments(ctx context.Context, billID string, generation int64) ([]*model.Argument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generation, err := s.resolveGeneration(ctx, billID, generation)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM arguments WHERE bill_id = ? AND generation = ? ORDER BY rowid", billID, generation)
	if err != nil {
		return nil, fmt.Errorf("query arguments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var args []*model.Argument
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan argument: %w", err)
		}
		var a model.Argument
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("unmarshal argument: %w", err)
		}
		args = append(args, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return args, nil
}

// Coalitions returns one generation's coalitions in ranked order.
// Generation 0 resolves to the bill's latest.
func (s *Store) Coalitions(ctx context.Context, billID string, generation int64) ([]model.Coalition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generation, err := s.resolveGeneration(ctx, billID, generation)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM coalitions WHERE bill_id = ? AND generation = ? ORDER BY ord", billID, generation)
	if err != nil {
		return nil, fmt.Errorf("query coalitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var coalitions []model.Coalition
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan coalition: %w", err)
		}
		var co model.Coalition
		if err := json.Unmarshal([]byte(payload), &co); err != nil {
			return nil, fmt.Errorf("unmarshal coalition: %w", err)
		}
		coalitions = append(coalitions, co)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return coalitions, nil
}

// Brief returns one generation's stored brief. Generation 0 resolves to
// the bill's latest.
func (s *Store) Brief(ctx context.Context, billID string, generation int64) (*model.LegislativeBrief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generation, err := s.resolveGeneration(ctx, billID, generation)
	if err != nil {
		return nil, err
	}

	var payload string
	err = s.db.QueryRowContext(ctx,
		"SELECT payload FROM briefs WHERE bill_id = ? AND generation = ?", billID, generation).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("brief for bill %s generation %d: %w", billID, generation, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query brief: %w", err)
	}

	var brief model.LegislativeBrief
	if err := json.Unmarshal([]byte(payload), &brief); err != nil {
		return nil, fmt.Errorf("unmarshal brief: %w", err)
	}

	return &brief, nil
}

// resolveGeneration maps 0 to the bill's latest generation. Caller must
// hold s.mu.
func (s *Store) resolveGeneration(ctx context.Context, billID string, generation int64) (int64, error) {
	if generation > 0 {
		return generation, nil
	}

	var latest int64
	err := s.db.QueryRowContext(ctx, "SELECT latest_generation FROM bills WHERE bill_id = ?", billID).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read latest generation: %w", err)
	}
	if latest == 0 {
		return 0, fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}

	return latest, nil
}
