// Package persistence provides SQLite-based storage for the build-phase
// game snapshot. Simulation-session state (population, interferon, history)
// is deliberately never persisted: only the building phase survives a
// restart.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/virus-sandbox/internal/economy"
	"github.com/talgya/virus-sandbox/internal/progress"
)

// DB wraps a SQLite connection for game state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS game_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS deck_genes (
		position      INTEGER PRIMARY KEY,
		gene_id       TEXT NOT NULL,
		installed     INTEGER NOT NULL DEFAULT 0,
		install_order INTEGER
	);
	CREATE TABLE IF NOT EXISTS milestones (
		id       TEXT PRIMARY KEY,
		state    TEXT NOT NULL,
		progress INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS outcomes (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		round           INTEGER NOT NULL,
		outcome         TEXT NOT NULL,
		turns           INTEGER NOT NULL,
		peak_population INTEGER NOT NULL,
		created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair in game metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO game_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM game_meta WHERE key = ?", key)
	return value, err
}

// HasSave reports whether a saved game snapshot exists.
func (db *DB) HasSave() bool {
	_, err := db.GetMeta("ep")
	return err == nil
}

// SaveState writes the full building-phase snapshot: EP, round, starter
// selection, deck, installed set, and milestone progress.
func (db *DB) SaveState(state *progress.State) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		"ep":            strconv.Itoa(state.Ledger.Balance()),
		"round":         strconv.Itoa(state.Round),
		"starter":       state.Starter,
		"starter_count": strconv.Itoa(state.StarterCount),
	}
	for key, value := range meta {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO game_meta (key, value) VALUES (?, ?)", key, value,
		); err != nil {
			return fmt.Errorf("save meta %s: %w", key, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM deck_genes"); err != nil {
		return err
	}
	installOrder := make(map[string]int, len(state.Installed))
	for i, id := range state.Installed {
		installOrder[id] = i
	}
	for pos, id := range state.Deck {
		var order any
		installed := 0
		if i, ok := installOrder[id]; ok {
			installed = 1
			order = i
		}
		if _, err := tx.Exec(
			"INSERT INTO deck_genes (position, gene_id, installed, install_order) VALUES (?, ?, ?, ?)",
			pos, id, installed, order,
		); err != nil {
			return fmt.Errorf("save deck gene %s: %w", id, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM milestones"); err != nil {
		return err
	}
	for _, m := range state.Milestones {
		if _, err := tx.Exec(
			"INSERT INTO milestones (id, state, progress) VALUES (?, ?, ?)",
			m.ID, m.State.String(), m.Progress,
		); err != nil {
			return fmt.Errorf("save milestone %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	slog.Info("game state saved",
		"ep", state.Ledger.Balance(), "round", state.Round,
		"deck", len(state.Deck), "installed", len(state.Installed))
	return nil
}

// LoadState restores the building-phase snapshot. Milestone definitions come
// from the default table; only state and progress are stored, so stored
// rows for unknown milestone IDs are dropped.
func (db *DB) LoadState() (*progress.State, error) {
	ep, err := db.getIntMeta("ep")
	if err != nil {
		return nil, fmt.Errorf("load ep: %w", err)
	}
	round, err := db.getIntMeta("round")
	if err != nil {
		return nil, fmt.Errorf("load round: %w", err)
	}
	starterCount, err := db.getIntMeta("starter_count")
	if err != nil {
		return nil, fmt.Errorf("load starter count: %w", err)
	}
	starter, err := db.GetMeta("starter")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load starter: %w", err)
	}

	type deckRow struct {
		GeneID       string        `db:"gene_id"`
		Installed    int           `db:"installed"`
		InstallOrder sql.NullInt64 `db:"install_order"`
	}
	var rows []deckRow
	if err := db.conn.Select(&rows,
		"SELECT gene_id, installed, install_order FROM deck_genes ORDER BY position",
	); err != nil {
		return nil, fmt.Errorf("load deck: %w", err)
	}

	state := &progress.State{
		Ledger:       economy.NewLedger(ep),
		Round:        round,
		Starter:      starter,
		StarterCount: starterCount,
		Milestones:   progress.DefaultMilestones(),
	}

	type installedGene struct {
		id    string
		order int64
	}
	var installed []installedGene
	for _, row := range rows {
		state.Deck = append(state.Deck, row.GeneID)
		if row.Installed != 0 && row.InstallOrder.Valid {
			installed = append(installed, installedGene{id: row.GeneID, order: row.InstallOrder.Int64})
		}
	}
	for order := 0; order < len(installed); order++ {
		for _, g := range installed {
			if g.order == int64(order) {
				state.Installed = append(state.Installed, g.id)
			}
		}
	}

	type milestoneRow struct {
		ID       string `db:"id"`
		State    string `db:"state"`
		Progress int    `db:"progress"`
	}
	var stored []milestoneRow
	if err := db.conn.Select(&stored, "SELECT id, state, progress FROM milestones"); err != nil {
		return nil, fmt.Errorf("load milestones: %w", err)
	}
	for _, row := range stored {
		for i := range state.Milestones {
			if state.Milestones[i].ID != row.ID {
				continue
			}
			state.Milestones[i].Progress = row.Progress
			switch row.State {
			case progress.StateLocked.String():
				state.Milestones[i].State = progress.StateLocked
			case progress.StateInProgress.String():
				state.Milestones[i].State = progress.StateInProgress
			case progress.StateCompleted.String():
				state.Milestones[i].State = progress.StateCompleted
			}
		}
	}

	slog.Info("game state restored",
		"ep", ep, "round", round, "deck", len(state.Deck), "installed", len(state.Installed))
	return state, nil
}

func (db *DB) getIntMeta(key string) (int, error) {
	value, err := db.GetMeta(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// OutcomeRecord is one finished simulation run.
type OutcomeRecord struct {
	ID             int64  `db:"id" json:"id"`
	Round          int    `db:"round" json:"round"`
	Outcome        string `db:"outcome" json:"outcome"`
	Turns          int    `db:"turns" json:"turns"`
	PeakPopulation int    `db:"peak_population" json:"peak_population"`
	CreatedAt      string `db:"created_at" json:"created_at"`
}

// RecordOutcome appends a finished run to the outcome log.
func (db *DB) RecordOutcome(round int, outcome string, turns, peak int) error {
	_, err := db.conn.Exec(
		"INSERT INTO outcomes (round, outcome, turns, peak_population) VALUES (?, ?, ?, ?)",
		round, outcome, turns, peak,
	)
	return err
}

// RecentOutcomes returns the most recent finished runs, newest first.
func (db *DB) RecentOutcomes(limit int) ([]OutcomeRecord, error) {
	var out []OutcomeRecord
	err := db.conn.Select(&out,
		"SELECT id, round, outcome, turns, peak_population, created_at FROM outcomes ORDER BY id DESC LIMIT ?",
		limit,
	)
	return out, err
}
