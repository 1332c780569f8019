package tablenav

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aadithya-v/tablenav/store"
)

// DefaultPerPageOptions are the page sizes offered when none are configured.
var DefaultPerPageOptions = []int{10, 25, 50, 100, 500, 1000}

const (
	defaultPerPage           = 25
	defaultPerPageSessionKey = "table_per_page"
)

// PerPageOptions configures page size selection for one listing.
type PerPageOptions struct {
	// Options are the accepted page sizes.
	// Default: DefaultPerPageOptions.
	Options []int

	// Default is used when nothing valid was requested or remembered.
	Default int

	// PaginateBy is the listing's fixed page size, used when Default is zero.
	PaginateBy int

	// SessionKey is where the owner's choice is remembered. Listings that
	// should remember their own size use distinct keys.
	// Default: "table_per_page".
	SessionKey string
}

func (o PerPageOptions) withDefaults() PerPageOptions {
	if len(o.Options) == 0 {
		o.Options = DefaultPerPageOptions
	}
	if o.SessionKey == "" {
		o.SessionKey = defaultPerPageSessionKey
	}
	return o
}

// fallback returns the page size used when nothing valid is requested or stored.
func (o PerPageOptions) fallback() int {
	switch {
	case o.Default > 0:
		return o.Default
	case o.PaginateBy > 0:
		return o.PaginateBy
	default:
		return defaultPerPage
	}
}

// Preferences remembers per-owner listing preferences in a session store.
type Preferences struct {
	sessions store.SessionStore
}

// NewPreferences creates a preference store on top of sessions.
func NewPreferences(sessions store.SessionStore) *Preferences {
	return &Preferences{sessions: sessions}
}

// PerPage resolves the page size for a listing request.
//
// A requested value that is numeric and one of opts.Options wins and is
// remembered for the owner. Otherwise a remembered valid value is used,
// then opts.Default, then opts.PaginateBy, then 25. Invalid requests are
// ignored rather than reported.
func (p *Preferences) PerPage(ctx context.Context, ownerID, requested string, opts PerPageOptions) (int, error) {
	opts = opts.withDefaults()

	if size, ok := parsePerPage(requested, opts.Options); ok {
		if ownerID != "" {
			value := []byte(strconv.Itoa(size))
			if err := p.sessions.Set(ctx, ownerID, opts.SessionKey, value); err != nil {
				return 0, fmt.Errorf("tablenav: failed to save per-page preference: %w", err)
			}
		}
		return size, nil
	}

	if ownerID != "" {
		stored, err := p.sessions.Get(ctx, ownerID, opts.SessionKey)
		if err != nil {
			return 0, fmt.Errorf("tablenav: failed to load per-page preference: %w", err)
		}
		if size, ok := parsePerPage(string(stored), opts.Options); ok {
			return size, nil
		}
	}

	return opts.fallback(), nil
}

func parsePerPage(raw string, options []int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	size, err := strconv.Atoi(raw)
	if err != nil || !slices.Contains(options, size) {
		return 0, false
	}
	return size, true
}
