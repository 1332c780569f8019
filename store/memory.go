package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryOptions configures a MemoryStore.
type MemoryOptions struct {
	// MaxOwners caps how many owners are kept. The least recently used
	// owner is dropped when the cap is reached.
	// Default: 10000.
	MaxOwners int

	// OwnerTTL is how long an owner's data survives without being written.
	// Default: 24 hours.
	OwnerTTL time.Duration
}

// MemoryStore implements SessionStore using an in-memory LRU of owners.
// This is useful for testing and single-process deployments; data is lost
// on restart.
type MemoryStore struct {
	mu     sync.Mutex
	owners *expirable.LRU[string, map[string][]byte] // ownerID -> key -> value

	// Reports are not bounded by the owner LRU.
	reports      map[int64]*Report
	lastReportID int64
	favorites    map[string]map[int64]bool // userID -> reportID
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.MaxOwners <= 0 {
		opts.MaxOwners = 10000
	}
	if opts.OwnerTTL <= 0 {
		opts.OwnerTTL = 24 * time.Hour
	}

	return &MemoryStore{
		owners:    expirable.NewLRU[string, map[string][]byte](opts.MaxOwners, nil, opts.OwnerTTL),
		reports:   make(map[int64]*Report),
		favorites: make(map[string]map[int64]bool),
	}
}

// Get returns the value for key, or nil if missing.
func (s *MemoryStore) Get(_ context.Context, ownerID, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.owners.Get(ownerID)
	if !ok {
		return nil, nil
	}
	value, ok := values[key]
	if !ok {
		return nil, nil
	}
	return cloneBytes(value), nil
}

// Set stores a copy of value under key.
// Writing re-adds the owner, so its idle TTL starts over.
func (s *MemoryStore) Set(_ context.Context, ownerID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.owners.Get(ownerID)
	if !ok {
		values = make(map[string][]byte)
	}
	values[key] = cloneBytes(value)
	s.owners.Add(ownerID, values)
	return nil
}

// Delete removes key for the owner.
func (s *MemoryStore) Delete(_ context.Context, ownerID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.owners.Peek(ownerID)
	if !ok {
		return nil
	}
	delete(values, key)
	if len(values) == 0 {
		s.owners.Remove(ownerID)
	}
	return nil
}

// Keys returns the owner's keys with the given prefix.
func (s *MemoryStore) Keys(_ context.Context, ownerID, prefix string) ([]string, error) {
	s.mu.Lock()
	values, ok := s.owners.Peek(ownerID)
	var keys []string
	if ok {
		for key := range values {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	s.mu.Unlock()

	sort.Strings(keys)
	return keys, nil
}

// Owners returns the number of owners currently held.
func (s *MemoryStore) Owners() int {
	return s.owners.Len()
}

// Close drops all data.
func (s *MemoryStore) Close() error {
	s.owners.Purge()

	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.reports)
	clear(s.favorites)
	return nil
}

// CreateReport stores a copy of report under a new ID.
func (s *MemoryStore) CreateReport(_ context.Context, report *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastReportID++
	report.ID = s.lastReportID
	s.reports[report.ID] = cloneReport(report)
	return nil
}

// UpdateReport replaces the stored copy of report.
func (s *MemoryStore) UpdateReport(_ context.Context, report *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[report.ID]; ok {
		s.reports[report.ID] = cloneReport(report)
	}
	return nil
}

// GetReport returns a copy of the report, or nil if missing.
func (s *MemoryStore) GetReport(_ context.Context, id int64) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	return cloneReport(report), nil
}

// ListReports returns copies of the active reports for a view.
func (s *MemoryStore) ListReports(_ context.Context, viewName string) ([]*Report, error) {
	s.mu.Lock()
	var reports []*Report
	for _, report := range s.reports {
		if report.Active && report.ViewName == viewName {
			reports = append(reports, cloneReport(report))
		}
	}
	s.mu.Unlock()

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Name != reports[j].Name {
			return reports[i].Name < reports[j].Name
		}
		return reports[i].ID < reports[j].ID
	})
	return reports, nil
}

// ToggleFavorite flips the user's favorite flag for a report.
func (s *MemoryStore) ToggleFavorite(_ context.Context, userID string, reportID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs, ok := s.favorites[userID]
	if !ok {
		favs = make(map[int64]bool)
		s.favorites[userID] = favs
	}
	if favs[reportID] {
		delete(favs, reportID)
		if len(favs) == 0 {
			delete(s.favorites, userID)
		}
		return false, nil
	}
	favs[reportID] = true
	return true, nil
}

// FavoriteReportIDs returns the user's favorite report IDs in ascending order.
func (s *MemoryStore) FavoriteReportIDs(_ context.Context, userID string) ([]int64, error) {
	s.mu.Lock()
	var ids []int64
	for id := range s.favorites[userID] {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
