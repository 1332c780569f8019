package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore implements SessionStore using MySQL.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQL creates a new MySQL session store from an open database handle.
// Report timestamps require the handle to be opened with parseTime=true.
func NewMySQL(db *sql.DB) (*MySQLStore, error) {
	if err := createMySQLSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

// NewMySQLFromDSN creates a new MySQL session store from a DSN.
// The DSN format is: user:password@tcp(host:port)/database[?params]
func NewMySQLFromDSN(dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: invalid DSN: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	return NewMySQL(db)
}

func createMySQLSchema(db *sql.DB) error {
	// data_key uses a binary collation: keys are case sensitive and
	// sort in byte order like the other backends.
	// The driver runs one statement per Exec unless multiStatements is set.
	schema := []string{`
	CREATE TABLE IF NOT EXISTS session_data (
		owner_id   VARCHAR(255) NOT NULL,
		data_key   VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
		value      MEDIUMBLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,

		PRIMARY KEY (owner_id, data_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
	CREATE TABLE IF NOT EXISTS reports (
		id             BIGINT NOT NULL AUTO_INCREMENT,
		name           VARCHAR(200) NOT NULL,
		description    TEXT NOT NULL,
		view_name      VARCHAR(100) NOT NULL,
		filter_params  JSON NOT NULL,
		visibility     VARCHAR(10) NOT NULL,
		created_by     VARCHAR(255) NOT NULL,
		allowed_groups JSON NOT NULL,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     DATETIME(6) NOT NULL,
		updated_at     DATETIME(6) NOT NULL,

		PRIMARY KEY (id),
		INDEX idx_reports_view (view_name, is_active, name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
	CREATE TABLE IF NOT EXISTS report_favorites (
		user_id    VARCHAR(255) NOT NULL,
		report_id  BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

		PRIMARY KEY (user_id, report_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("mysql: failed to create schema: %w", err)
		}
	}
	return nil
}

// Get returns the value for key, or nil if missing.
func (s *MySQLStore) Get(ctx context.Context, ownerID, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM session_data WHERE owner_id = ? AND data_key = ?",
		ownerID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to get key: %w", err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *MySQLStore) Set(ctx context.Context, ownerID, key string, value []byte) error {
	query := `
	INSERT INTO session_data (owner_id, data_key, value)
	VALUES (?, ?, ?)
	ON DUPLICATE KEY UPDATE
		value = VALUES(value)
	`

	if _, err := s.db.ExecContext(ctx, query, ownerID, key, value); err != nil {
		return fmt.Errorf("mysql: failed to set key: %w", err)
	}
	return nil
}

// Delete removes key for the owner.
func (s *MySQLStore) Delete(ctx context.Context, ownerID, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM session_data WHERE owner_id = ? AND data_key = ?",
		ownerID, key,
	)
	if err != nil {
		return fmt.Errorf("mysql: failed to delete key: %w", err)
	}
	return nil
}

// Keys returns the owner's keys starting with prefix.
func (s *MySQLStore) Keys(ctx context.Context, ownerID, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data_key FROM session_data WHERE owner_id = ? AND LEFT(data_key, ?) = ? ORDER BY data_key",
		ownerID, utf8.RuneCountInString(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query keys: %w", err)
	}
	defer rows.Close()

	keys, err := scanKeys(rows)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return keys, nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// CreateReport inserts report and sets its ID.
func (s *MySQLStore) CreateReport(ctx context.Context, report *Report) error {
	params, groups, err := encodeReport(report)
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}

	query := `
	INSERT INTO reports (
		name, description, view_name, filter_params, visibility,
		created_by, allowed_groups, is_active, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
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
		return fmt.Errorf("mysql: failed to create report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("mysql: failed to read report id: %w", err)
	}
	report.ID = id
	return nil
}

// UpdateReport overwrites the stored report with the same ID.
func (s *MySQLStore) UpdateReport(ctx context.Context, report *Report) error {
	params, groups, err := encodeReport(report)
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}

	query := `
	UPDATE reports SET
		name = ?, description = ?, view_name = ?, filter_params = ?, visibility = ?,
		allowed_groups = ?, is_active = ?, updated_at = ?
	WHERE id = ?
	`

	_, err = s.db.ExecContext(ctx, query,
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
		return fmt.Errorf("mysql: failed to update report: %w", err)
	}
	return nil
}

// GetReport returns the report with id, or nil if missing.
func (s *MySQLStore) GetReport(ctx context.Context, id int64) (*Report, error) {
	report, err := scanReport(s.db.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to get report: %w", err)
	}
	return report, nil
}

// ListReports returns the active reports for a view.
func (s *MySQLStore) ListReports(ctx context.Context, viewName string) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE view_name = ? AND is_active = TRUE ORDER BY name, id",
		viewName,
	)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query reports: %w", err)
	}
	defer rows.Close()

	reports, err := scanReports(rows)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return reports, nil
}

// ToggleFavorite removes the favorite if present, otherwise adds it.
func (s *MySQLStore) ToggleFavorite(ctx context.Context, userID string, reportID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("mysql: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM report_favorites WHERE user_id = ? AND report_id = ?",
		userID, reportID,
	)
	if err != nil {
		return false, fmt.Errorf("mysql: failed to remove favorite: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mysql: failed to remove favorite: %w", err)
	}

	added := removed == 0
	if added {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO report_favorites (user_id, report_id) VALUES (?, ?)",
			userID, reportID,
		)
		if err != nil {
			return false, fmt.Errorf("mysql: failed to add favorite: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("mysql: failed to commit favorite: %w", err)
	}
	return added, nil
}

// FavoriteReportIDs returns the user's favorite report IDs in ascending order.
func (s *MySQLStore) FavoriteReportIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT report_id FROM report_favorites WHERE user_id = ? ORDER BY report_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query favorites: %w", err)
	}
	defer rows.Close()

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return ids, nil
}
