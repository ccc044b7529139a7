// Package persistence provides the SQLite event archive and the compressed
// conversation transcript. Both are write-mostly audit trails: a world is
// never restored from them.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/blob-world/internal/agents"
	"github.com/talgya/blob-world/internal/events"
	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/world"
)

// Archive wraps a SQLite connection holding every world's event history.
type Archive struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite archive at the given path.
func Open(path string) (*Archive, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps SQLite from reporting SQLITE_BUSY under the async image jobs.
	conn.SetMaxOpenConns(1)

	a := &Archive{conn: conn}
	if err := a.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.conn.Close()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS worlds (
		id TEXT PRIMARY KEY,
		num_blobs INTEGER NOT NULL,
		num_societies INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		year INTEGER NOT NULL,
		headline TEXT NOT NULL,
		details TEXT NOT NULL,
		metrics_headline TEXT NOT NULL,
		impacts_json TEXT NOT NULL,
		relations_json TEXT NOT NULL,
		metrics_json TEXT NOT NULL,
		image_url TEXT,
		recorded_at TEXT NOT NULL,
		UNIQUE(world_id, idx)
	);

	CREATE TABLE IF NOT EXISTS metric_samples (
		world_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		metric TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (world_id, idx, metric)
	);

	CREATE TABLE IF NOT EXISTS blobs (
		world_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		name TEXT NOT NULL,
		society_id INTEGER,
		personality TEXT NOT NULL,
		traits_json TEXT NOT NULL,
		properties_json TEXT NOT NULL,
		relationships_json TEXT NOT NULL,
		history_len INTEGER NOT NULL,
		PRIMARY KEY (world_id, id)
	);

	CREATE TABLE IF NOT EXISTS societies (
		world_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		ideology TEXT NOT NULL,
		values_json TEXT NOT NULL,
		members_json TEXT NOT NULL,
		relations_json TEXT NOT NULL,
		PRIMARY KEY (world_id, id)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		world_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (world_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_events_world ON events(world_id, idx);
	`
	_, err := a.conn.Exec(schema)
	return err
}

// RecordWorld registers a freshly initialized world.
func (a *Archive) RecordWorld(worldID string, numBlobs, numSocieties int) error {
	_, err := a.conn.Exec(
		"INSERT OR REPLACE INTO worlds (id, num_blobs, num_societies, created_at) VALUES (?, ?, ?, ?)",
		worldID, numBlobs, numSocieties, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RecordEvent appends an event and the metric values it left behind.
func (a *Archive) RecordEvent(worldID string, index int, ev *events.WorldEvent, metrics []world.MetricValue) error {
	impacts, err := json.Marshal(ev.Impacts)
	if err != nil {
		return fmt.Errorf("marshal impacts: %w", err)
	}
	relations, err := json.Marshal(ev.SocietyRelations)
	if err != nil {
		return fmt.Errorf("marshal relations: %w", err)
	}
	changes, err := json.Marshal(ev.WorldMetrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	tx, err := a.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO events
		(world_id, idx, year, headline, details, metrics_headline,
		 impacts_json, relations_json, metrics_json, image_url, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		worldID, index, ev.Year, ev.Headline, ev.Details, ev.MetricsHeadline,
		string(impacts), string(relations), string(changes), nullable(ev.ImageURL),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", index, err)
	}

	stmt, err := tx.Preparex("INSERT INTO metric_samples (world_id, idx, metric, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, m := range metrics {
		if _, err := stmt.Exec(worldID, index, m.Name, m.Value); err != nil {
			return fmt.Errorf("insert metric %s: %w", m.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if err := a.SaveMeta(worldID, "last_year", strconv.Itoa(ev.Year)); err != nil {
		return fmt.Errorf("save last_year: %w", err)
	}
	return a.SaveMeta(worldID, "last_index", strconv.Itoa(index))
}

// RecordImage fills in an archived event's illustration.
func (a *Archive) RecordImage(worldID string, index int, url string) error {
	res, err := a.conn.Exec("UPDATE events SET image_url = ? WHERE world_id = ? AND idx = ?", url, worldID, index)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no archived event %d for world %s", index, worldID)
	}
	return nil
}

// SaveState writes the blob and society tables of a world (full replace).
func (a *Archive) SaveState(worldID string, blobs []*agents.Blob, societies []*social.Society) error {
	tx, err := a.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM blobs WHERE world_id = ?", worldID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM societies WHERE world_id = ?", worldID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO blobs
		(world_id, id, name, society_id, personality, traits_json, properties_json, relationships_json, history_len)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range blobs {
		traitsJSON, _ := json.Marshal(b.Traits)
		propsJSON, _ := json.Marshal(b.Properties)
		relJSON, _ := json.Marshal(b.Relationships)

		_, err := stmt.Exec(worldID, b.ID, b.Name, b.SocietyID, b.Personality,
			string(traitsJSON), string(propsJSON), string(relJSON), len(b.History))
		if err != nil {
			return fmt.Errorf("insert blob %d: %w", b.ID, err)
		}
	}

	for _, s := range societies {
		valuesJSON, _ := json.Marshal(s.Values)
		membersJSON, _ := json.Marshal(s.Members)
		relJSON, _ := json.Marshal(s.Relations)
		_, err := tx.Exec(`INSERT INTO societies
			(world_id, id, ideology, values_json, members_json, relations_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			worldID, s.ID, s.Ideology, string(valuesJSON), string(membersJSON), string(relJSON),
		)
		if err != nil {
			return fmt.Errorf("insert society %d: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("world state archived", "world", worldID, "blobs", len(blobs), "societies", len(societies))
	return nil
}

// SaveMeta stores a key-value pair for a world.
func (a *Archive) SaveMeta(worldID, key, value string) error {
	_, err := a.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (world_id, key, value) VALUES (?, ?, ?)",
		worldID, key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns "" and no error.
func (a *Archive) GetMeta(worldID, key string) (string, error) {
	var value string
	err := a.conn.Get(&value, "SELECT value FROM world_meta WHERE world_id = ? AND key = ?", worldID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// ArchivedEvent is one row of the event archive.
type ArchivedEvent struct {
	WorldID         string         `db:"world_id" json:"world_id"`
	Index           int            `db:"idx" json:"index"`
	Year            int            `db:"year" json:"year"`
	Headline        string         `db:"headline" json:"headline"`
	Details         string         `db:"details" json:"details"`
	MetricsHeadline string         `db:"metrics_headline" json:"metrics_headline"`
	ImageURL        sql.NullString `db:"image_url" json:"-"`
	RecordedAt      string         `db:"recorded_at" json:"recorded_at"`

	Image string `db:"-" json:"image_url,omitempty"`
}

// RecentEvents returns the most recent events, newest first. An empty
// worldID spans every world.
func (a *Archive) RecentEvents(worldID string, limit int) ([]ArchivedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT world_id, idx, year, headline, details, metrics_headline, image_url, recorded_at
		FROM events`
	args := []any{}
	if worldID != "" {
		query += " WHERE world_id = ?"
		args = append(args, worldID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	var out []ArchivedEvent
	if err := a.conn.Select(&out, query, args...); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Image = out[i].ImageURL.String
	}
	return out, nil
}

// MetricTrail returns a metric's archived values for a world, oldest first.
func (a *Archive) MetricTrail(worldID, metric string) ([]float64, error) {
	var values []float64
	err := a.conn.Select(&values,
		"SELECT value FROM metric_samples WHERE world_id = ? AND metric = ? ORDER BY idx",
		worldID, metric,
	)
	return values, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
