package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements SessionStore using SQLite.
// It uses the pure Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite session store.
// The database file is created if it doesn't exist.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_data (
		owner_id   TEXT NOT NULL,
		data_key   TEXT NOT NULL,
		value      BLOB NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (owner_id, data_key)
	);

	CREATE TABLE IF NOT EXISTS reports (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		view_name      TEXT NOT NULL,
		filter_params  TEXT NOT NULL,
		visibility     TEXT NOT NULL,
		created_by     TEXT NOT NULL,
		allowed_groups TEXT NOT NULL DEFAULT '[]',
		is_active      INTEGER NOT NULL DEFAULT 1,
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_view
		ON reports (view_name, is_active, name);

	CREATE TABLE IF NOT EXISTS report_favorites (
		user_id    TEXT NOT NULL,
		report_id  INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, report_id)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: failed to create schema: %w", err)
	}
	return nil
}

// Get returns the value for key, or nil if missing.
func (s *SQLiteStore) Get(ctx context.Context, ownerID, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM session_data WHERE owner_id = ? AND data_key = ?",
		ownerID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get key: %w", err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, ownerID, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO session_data (owner_id, data_key, value, updated_at) VALUES (?, ?, ?, ?)",
		ownerID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to set key: %w", err)
	}
	return nil
}

// Delete removes key for the owner.
func (s *SQLiteStore) Delete(ctx context.Context, ownerID, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM session_data WHERE owner_id = ? AND data_key = ?",
		ownerID, key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete key: %w", err)
	}
	return nil
}

// Keys returns the owner's keys starting with prefix.
// The comparison is done on bytes so prefixes containing % or _ match literally.
func (s *SQLiteStore) Keys(ctx context.Context, ownerID, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data_key FROM session_data
		 WHERE owner_id = ? AND substr(CAST(data_key AS BLOB), 1, ?) = CAST(? AS BLOB)
		 ORDER BY data_key`,
		ownerID, len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query keys: %w", err)
	}
	defer rows.Close()

	keys, err := scanKeys(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return keys, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateReport inserts report and sets its ID.
func (s *SQLiteStore) CreateReport(ctx context.Context, report *Report) error {
	params, groups, err := encodeReport(report)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
	INSERT INTO reports (
		name, description, view_name, filter_params, visibility,
		created_by, allowed_groups, is_active, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Name,
		report.Description,
		report.ViewName,
		string(params),
		report.Visibility,
		report.CreatedBy,
		string(groups),
		report.Active,
		report.CreatedAt.UTC(),
		report.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read report id: %w", err)
	}
	report.ID = id
	return nil
}

// UpdateReport overwrites the stored report with the same ID.
func (s *SQLiteStore) UpdateReport(ctx context.Context, report *Report) error {
	params, groups, err := encodeReport(report)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
	UPDATE reports SET
		name = ?, description = ?, view_name = ?, filter_params = ?, visibility = ?,
		allowed_groups = ?, is_active = ?, updated_at = ?
	WHERE id = ?`,
		report.Name,
		report.Description,
		report.ViewName,
		string(params),
		report.Visibility,
		string(groups),
		report.Active,
		report.UpdatedAt.UTC(),
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update report: %w", err)
	}
	return nil
}

// GetReport returns the report with id, or nil if missing.
func (s *SQLiteStore) GetReport(ctx context.Context, id int64) (*Report, error) {
	report, err := scanReport(s.db.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get report: %w", err)
	}
	return report, nil
}

// ListReports returns the active reports for a view.
func (s *SQLiteStore) ListReports(ctx context.Context, viewName string) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE view_name = ? AND is_active = 1 ORDER BY name, id",
		viewName,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query reports: %w", err)
	}
	defer rows.Close()

	reports, err := scanReports(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return reports, nil
}

// ToggleFavorite removes the favorite if present, otherwise adds it.
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, userID string, reportID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM report_favorites WHERE user_id = ? AND report_id = ?",
		userID, reportID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to remove favorite: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to remove favorite: %w", err)
	}

	added := removed == 0
	if added {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO report_favorites (user_id, report_id, created_at) VALUES (?, ?, ?)",
			userID, reportID, time.Now().UTC(),
		)
		if err != nil {
			return false, fmt.Errorf("sqlite: failed to add favorite: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: failed to commit favorite: %w", err)
	}
	return added, nil
}

// FavoriteReportIDs returns the user's favorite report IDs in ascending order.
func (s *SQLiteStore) FavoriteReportIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT report_id FROM report_favorites WHERE user_id = ? ORDER BY report_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query favorites: %w", err)
	}
	defer rows.Close()

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return ids, nil
}

// scanKeys collects a single string column from rows.
func scanKeys(rows *sql.Rows) ([]string, error) {
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}
	return keys, nil
}
