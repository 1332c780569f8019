package tablenav

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/aadithya-v/tablenav/store"
)

// Visibility controls who can use a saved report.
type Visibility string

const (
	// VisibilityPersonal reports are visible to their creator only.
	VisibilityPersonal Visibility = "personal"
	// VisibilityGroup reports are visible to members of AllowedGroups.
	VisibilityGroup Visibility = "group"
	// VisibilityGlobal reports are visible to everyone.
	VisibilityGlobal Visibility = "global"
)

const (
	maxReportNameLength = 200
	maxViewNameLength   = 100
)

// Report is a named, saved set of listing filters.
type Report struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// ViewName identifies the listing the report belongs to.
	ViewName string `json:"view_name"`

	// FilterParams are the query parameters that reproduce the listing.
	FilterParams map[string]string `json:"filter_params"`

	Visibility    Visibility `json:"visibility"`
	CreatedBy     string     `json:"created_by"`
	AllowedGroups []string   `json:"allowed_groups,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Favorite is set per user by Reports.Available.
	Favorite bool `json:"favorite"`
}

// User identifies who is asking for reports.
type User struct {
	ID     string
	Groups []string
}

// CanAccess reports whether user may see the report.
func (r *Report) CanAccess(user User) bool {
	switch r.Visibility {
	case VisibilityPersonal:
		return user.ID != "" && r.CreatedBy == user.ID
	case VisibilityGlobal:
		return true
	case VisibilityGroup:
		for _, group := range user.Groups {
			if slices.Contains(r.AllowedGroups, group) {
				return true
			}
		}
	}
	return false
}

// URL returns basePath with the report's filters as the query string.
func (r *Report) URL(basePath string) string {
	if len(r.FilterParams) == 0 {
		return basePath
	}
	values := url.Values{}
	for key, value := range r.FilterParams {
		values.Set(key, value)
	}
	return basePath + "?" + values.Encode()
}

// Reports saves and lists filter presets.
type Reports struct {
	store store.ReportStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewReports creates a report service on top of s.
func NewReports(s store.ReportStore) *Reports {
	return &Reports{store: s, now: time.Now, log: zerolog.Nop()}
}

// Reports returns a report service sharing the navigator's backend.
// Returns ErrReportsUnsupported if the backend cannot store reports.
func (n *Navigator) Reports() (*Reports, error) {
	s, ok := n.sessions.(store.ReportStore)
	if !ok {
		return nil, ErrReportsUnsupported
	}
	return &Reports{store: s, now: n.config.Now, log: n.log}, nil
}

// Save validates and stores a new report created by user.
// Empty filter values are dropped and AllowedGroups is only kept for
// group reports. An empty Visibility means personal.
func (r *Reports) Save(ctx context.Context, user User, report Report) (*Report, error) {
	if user.ID == "" {
		return nil, ErrOwnerRequired
	}
	if err := normalizeReport(&report); err != nil {
		return nil, err
	}

	now := r.now()
	report.ID = 0
	report.CreatedBy = user.ID
	report.Active = true
	report.Favorite = false
	report.CreatedAt = now
	report.UpdatedAt = now

	record := reportToStore(&report)
	if err := r.store.CreateReport(ctx, record); err != nil {
		return nil, fmt.Errorf("tablenav: failed to save report: %w", err)
	}
	report.ID = record.ID

	r.log.Debug().
		Int64("report", report.ID).
		Str("view", report.ViewName).
		Str("visibility", string(report.Visibility)).
		Msg("report saved")

	return &report, nil
}

// Get returns an active report the user can access.
func (r *Reports) Get(ctx context.Context, user User, id int64) (*Report, error) {
	record, err := r.store.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("tablenav: failed to load report: %w", err)
	}
	if record == nil || !record.Active {
		return nil, ErrReportNotFound
	}

	report := storeToReport(record)
	if !report.CanAccess(user) {
		return nil, ErrReportForbidden
	}
	return report, nil
}

// Available returns the reports of a view the user can access, ordered by
// name, with Favorite set from the user's favorites.
func (r *Reports) Available(ctx context.Context, viewName string, user User) ([]*Report, error) {
	records, err := r.store.ListReports(ctx, viewName)
	if err != nil {
		return nil, fmt.Errorf("tablenav: failed to list reports: %w", err)
	}

	favorites := map[int64]bool{}
	if user.ID != "" {
		ids, err := r.store.FavoriteReportIDs(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("tablenav: failed to load favorites: %w", err)
		}
		for _, id := range ids {
			favorites[id] = true
		}
	}

	reports := make([]*Report, 0, len(records))
	for _, record := range records {
		report := storeToReport(record)
		if !report.CanAccess(user) {
			continue
		}
		report.Favorite = favorites[report.ID]
		reports = append(reports, report)
	}
	return reports, nil
}

// ToggleFavorite adds or removes a report from the user's favorites.
// Returns true when the report is now a favorite.
func (r *Reports) ToggleFavorite(ctx context.Context, user User, id int64) (bool, error) {
	if user.ID == "" {
		return false, ErrOwnerRequired
	}
	if _, err := r.Get(ctx, user, id); err != nil {
		return false, err
	}

	added, err := r.store.ToggleFavorite(ctx, user.ID, id)
	if err != nil {
		return false, fmt.Errorf("tablenav: failed to toggle favorite: %w", err)
	}
	return added, nil
}

// Deactivate hides a report from every listing. Only its creator may do so.
func (r *Reports) Deactivate(ctx context.Context, user User, id int64) error {
	record, err := r.store.GetReport(ctx, id)
	if err != nil {
		return fmt.Errorf("tablenav: failed to load report: %w", err)
	}
	if record == nil || !record.Active {
		return ErrReportNotFound
	}
	if user.ID == "" || record.CreatedBy != user.ID {
		return ErrReportForbidden
	}

	record.Active = false
	record.UpdatedAt = r.now()
	if err := r.store.UpdateReport(ctx, record); err != nil {
		return fmt.Errorf("tablenav: failed to deactivate report: %w", err)
	}
	return nil
}

func normalizeReport(report *Report) error {
	report.Name = strings.TrimSpace(report.Name)
	switch {
	case report.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidReport)
	case utf8.RuneCountInString(report.Name) > maxReportNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidReport, maxReportNameLength)
	case report.ViewName == "":
		return fmt.Errorf("%w: view name is required", ErrInvalidReport)
	case utf8.RuneCountInString(report.ViewName) > maxViewNameLength:
		return fmt.Errorf("%w: view name exceeds %d characters", ErrInvalidReport, maxViewNameLength)
	}

	switch report.Visibility {
	case "":
		report.Visibility = VisibilityPersonal
	case VisibilityPersonal, VisibilityGroup, VisibilityGlobal:
	default:
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidReport, report.Visibility)
	}

	params := make(map[string]string, len(report.FilterParams))
	for key, value := range report.FilterParams {
		if key != "" && value != "" {
			params[key] = value
		}
	}
	report.FilterParams = params

	if report.Visibility != VisibilityGroup {
		report.AllowedGroups = nil
	} else {
		var groups []string
		for _, group := range report.AllowedGroups {
			if group != "" && !slices.Contains(groups, group) {
				groups = append(groups, group)
			}
		}
		report.AllowedGroups = groups
	}
	return nil
}

func reportToStore(r *Report) *store.Report {
	return &store.Report{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		ViewName:      r.ViewName,
		FilterParams:  r.FilterParams,
		Visibility:    string(r.Visibility),
		CreatedBy:     r.CreatedBy,
		AllowedGroups: r.AllowedGroups,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func storeToReport(s *store.Report) *Report {
	return &Report{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		ViewName:      s.ViewName,
		FilterParams:  s.FilterParams,
		Visibility:    Visibility(s.Visibility),
		CreatedBy:     s.CreatedBy,
		AllowedGroups: s.AllowedGroups,
		Active:        s.Active,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}
