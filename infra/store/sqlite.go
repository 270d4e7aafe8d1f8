package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/askelund/spotheat/core/model"
)

// SQLiteStore backs the settings, state and history repositories with a
// single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		user_id TEXT PRIMARY KEY,
		comfort_hours INTEGER,
		turnoff_percentile REAL,
		max_gap_hours INTEGER,
		auto_apply INTEGER,
		zone TEXT
	);
	CREATE TABLE IF NOT EXISTS flexible_state (
		user_id TEXT PRIMARY KEY,
		last_comfort_run INTEGER,
		last_eco_run INTEGER,
		next_scheduled_comfort INTEGER
	);
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		ts INTEGER,
		decision TEXT
	);
	CREATE INDEX IF NOT EXISTS history_user_ts ON history(user_id, ts);
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// UserScheduleSettings implements storage.SettingsRepository. Unknown users
// get the defaults for an empty zone; the engine clamps from there.
func (s *SQLiteStore) UserScheduleSettings(ctx context.Context, userID string) (model.ScheduleSettings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT comfort_hours, turnoff_percentile, max_gap_hours, auto_apply, zone
		FROM settings WHERE user_id = ?`, userID)
	var out model.ScheduleSettings
	var autoApply int
	err := row.Scan(&out.ComfortHours, &out.TurnOffPercentile, &out.MaxComfortGapHours, &autoApply, &out.Zone)
	if err == sql.ErrNoRows {
		return model.DefaultSettings(""), nil
	}
	if err != nil {
		return model.ScheduleSettings{}, err
	}
	out.AutoApply = autoApply != 0
	return out, nil
}

// SaveSettings upserts a user's tuning. Used by the import adapter and the
// surrounding application, not by the engine.
func (s *SQLiteStore) SaveSettings(ctx context.Context, userID string, settings model.ScheduleSettings) error {
	autoApply := 0
	if settings.AutoApply {
		autoApply = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (user_id, comfort_hours, turnoff_percentile, max_gap_hours, auto_apply, zone)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			comfort_hours = excluded.comfort_hours,
			turnoff_percentile = excluded.turnoff_percentile,
			max_gap_hours = excluded.max_gap_hours,
			auto_apply = excluded.auto_apply,
			zone = excluded.zone`,
		userID, settings.ComfortHours, settings.TurnOffPercentile, settings.MaxComfortGapHours, autoApply, settings.Zone)
	return err
}

// Load implements storage.StateRepository.
func (s *SQLiteStore) Load(ctx context.Context, userID string) (model.FlexibleState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT last_comfort_run, last_eco_run, next_scheduled_comfort
		FROM flexible_state WHERE user_id = ?`, userID)
	var last, eco, next sql.NullInt64
	err := row.Scan(&last, &eco, &next)
	if err == sql.ErrNoRows {
		return model.FlexibleState{}, nil
	}
	if err != nil {
		return model.FlexibleState{}, err
	}
	return model.FlexibleState{
		LastComfortRun:       unixPtr(last),
		LastEcoRun:           unixPtr(eco),
		NextScheduledComfort: unixPtr(next),
	}, nil
}

// Save implements storage.StateRepository with last-writer-wins semantics.
func (s *SQLiteStore) Save(ctx context.Context, userID string, state model.FlexibleState) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO flexible_state (user_id, last_comfort_run, last_eco_run, next_scheduled_comfort)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_comfort_run = excluded.last_comfort_run,
			last_eco_run = excluded.last_eco_run,
			next_scheduled_comfort = excluded.next_scheduled_comfort`,
		userID, ptrUnix(state.LastComfortRun), ptrUnix(state.LastEcoRun), ptrUnix(state.NextScheduledComfort))
	return err
}

// Append implements storage.HistoryRepository.
func (s *SQLiteStore) Append(ctx context.Context, entry model.HistoryEntry) error {
	decision, err := json.Marshal(entry.Decision)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO history (id, user_id, ts, decision) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Timestamp.Unix(), decision)
	return err
}

// Latest implements storage.HistoryRepository.
func (s *SQLiteStore) Latest(ctx context.Context, userID string) (model.HistoryEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, ts, decision FROM history
		WHERE user_id = ? ORDER BY ts DESC LIMIT 1`, userID)
	var entry model.HistoryEntry
	var ts int64
	var decision []byte
	err := row.Scan(&entry.ID, &ts, &decision)
	if err == sql.ErrNoRows {
		return model.HistoryEntry{}, false, nil
	}
	if err != nil {
		return model.HistoryEntry{}, false, err
	}
	entry.UserID = userID
	entry.Timestamp = time.Unix(ts, 0).UTC()
	if err := json.Unmarshal(decision, &entry.Decision); err != nil {
		return model.HistoryEntry{}, false, fmt.Errorf("decode decision: %w", err)
	}
	return entry, true, nil
}

// AutoApplyUsers implements storage.UserDirectory.
func (s *SQLiteStore) AutoApplyUsers(ctx context.Context) ([]string, error) {
	return s.userIDs(ctx, `SELECT user_id FROM settings WHERE auto_apply = 1 ORDER BY user_id`)
}

// AllUsers implements storage.UserDirectory.
func (s *SQLiteStore) AllUsers(ctx context.Context) ([]string, error) {
	return s.userIDs(ctx, `SELECT user_id FROM settings ORDER BY user_id`)
}

func (s *SQLiteStore) userIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) metaValue(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key)
	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func ptrUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
