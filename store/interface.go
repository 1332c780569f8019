package store

import (
	"context"
	"time"
)

// SessionStore defines the interface for per-owner session storage backends.
// An owner is the session or user scope that data belongs to; keys are
// namespaced per owner, so two owners never see each other's values.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Get returns the value stored under key for the owner.
	// Returns (nil, nil) if the key does not exist.
	Get(ctx context.Context, ownerID, key string) ([]byte, error)

	// Set stores value under key for the owner, overwriting any previous value.
	Set(ctx context.Context, ownerID, key string, value []byte) error

	// Delete removes key for the owner. Deleting a missing key is not an error.
	Delete(ctx context.Context, ownerID, key string) error

	// Keys returns the owner's keys that start with prefix, sorted ascending.
	Keys(ctx context.Context, ownerID, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Report is a saved set of listing filters.
type Report struct {
	ID            int64
	Name          string
	Description   string
	ViewName      string
	FilterParams  map[string]string
	Visibility    string
	CreatedBy     string
	AllowedGroups []string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReportStore defines the interface for saved report storage.
// Access rules are applied by the caller; stores only persist reports and
// per-user favorites.
type ReportStore interface {
	// CreateReport inserts a new report and sets its ID.
	CreateReport(ctx context.Context, report *Report) error

	// UpdateReport overwrites the report with the same ID.
	// Updating a missing report is not an error.
	UpdateReport(ctx context.Context, report *Report) error

	// GetReport returns the report with the given ID.
	// Returns (nil, nil) if it does not exist.
	GetReport(ctx context.Context, id int64) (*Report, error)

	// ListReports returns the active reports saved for a view,
	// ordered by name, then ID.
	ListReports(ctx context.Context, viewName string) ([]*Report, error)

	// ToggleFavorite adds the report to the user's favorites, or removes it
	// if already present. Returns true when the favorite was added.
	ToggleFavorite(ctx context.Context, userID string, reportID int64) (bool, error)

	// FavoriteReportIDs returns the IDs of the user's favorite reports.
	FavoriteReportIDs(ctx context.Context, userID string) ([]int64, error)
}
