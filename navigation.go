package tablenav

import (
	"strconv"
	"time"
)

// NavigationContext is a stored snapshot of a filtered, sorted listing.
type NavigationContext struct {
	// Token addresses the context within its owner's session.
	Token string `json:"-"`

	// OrderedIDs is the listing's record identifiers in display order,
	// possibly truncated to a window around the record being viewed.
	OrderedIDs []string `json:"pks"`

	// CreatedAt is when the listing was rendered.
	CreatedAt time.Time `json:"created_at"`

	// TotalCount is the size of the full listing, which may exceed len(OrderedIDs).
	TotalCount int `json:"total_count"`

	// OriginReference is informational, typically the listing URL.
	OriginReference string `json:"origin,omitempty"`
}

// ExpiresAt returns the time when this context expires.
func (c *NavigationContext) ExpiresAt(timeout time.Duration) time.Time {
	return c.CreatedAt.Add(timeout)
}

// IsExpired returns true once the context is at least timeout old.
func (c *NavigationContext) IsExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(c.CreatedAt) >= timeout
}

// IndexOf returns the position of id in OrderedIDs, or -1.
func (c *NavigationContext) IndexOf(id string) int {
	return indexOf(c.OrderedIDs, id)
}

// Listing describes a rendered listing page to create a context from.
type Listing struct {
	// IDs is every record identifier of the filtered, sorted listing.
	IDs []string

	// TotalCount is the size of the full listing. Zero means len(IDs).
	TotalCount int

	// OriginReference is an optional informational string such as the listing URL.
	OriginReference string

	// CurrentID centres the stored window when IDs must be truncated.
	CurrentID string
}

// Neighbors is the result of a neighbor lookup.
// Empty IDs and zero counts mean absent.
type Neighbors struct {
	PreviousID string `json:"previous_id,omitempty"`
	NextID     string `json:"next_id,omitempty"`
	Position   int    `json:"position,omitempty"` // 1-indexed
	Total      int    `json:"total,omitempty"`
}

// Found reports whether the current record was located in a live context.
func (n Neighbors) Found() bool {
	return n.Position > 0
}

// HasPrevious reports whether there is a record before the current one.
func (n Neighbors) HasPrevious() bool {
	return n.PreviousID != ""
}

// HasNext reports whether there is a record after the current one.
func (n Neighbors) HasNext() bool {
	return n.NextID != ""
}

// IDsFromInts converts integer primary keys to identifiers.
func IDsFromInts(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
