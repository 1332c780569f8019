package tablenav

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aadithya-v/tablenav/store"
)

// Navigator stores navigation contexts for table listings and answers
// previous/next lookups for editing views.
//
// Operations for one owner are expected to be serialized by the caller,
// typically by the web framework's session locking. Concurrent writes for
// the same owner may lose an eviction decision; different owners are
// fully independent.
type Navigator struct {
	config   Config
	sessions store.SessionStore
	log      zerolog.Logger
}

// New creates a new Navigator with the given configuration.
// If SessionStore is not provided, a SQLite store at DatabasePath is used.
func New(cfg Config) (*Navigator, error) {
	cfg.applyDefaults()

	n := &Navigator{
		config: cfg,
		log:    cfg.Logger.With().Str("component", "tablenav").Logger(),
	}

	// Initialize session store (default: SQLite)
	if cfg.SessionStore != nil {
		n.sessions = cfg.SessionStore
	} else {
		sqliteStore, err := store.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("tablenav: failed to initialize SQLite store: %w", err)
		}
		n.sessions = sqliteStore
	}

	return n, nil
}

// Close releases the session store.
// Should be called when the application shuts down.
func (n *Navigator) Close() error {
	if n.sessions == nil {
		return nil
	}
	if err := n.sessions.Close(); err != nil {
		return fmt.Errorf("tablenav: error during close: %w", err)
	}
	return nil
}

// Config returns the effective configuration.
func (n *Navigator) Config() Config {
	return n.config
}

// Preferences returns a preference store sharing the navigator's backend.
func (n *Navigator) Preferences() *Preferences {
	return NewPreferences(n.sessions)
}

func (n *Navigator) key(token string) string {
	return n.config.SessionKeyPrefix + token
}

// CreateContext stores a navigation context for a rendered listing and
// returns its token.
//
// Listings longer than MaxPKCount are truncated to a window around
// listing.CurrentID (or to the first MaxPKCount identifiers). When the owner
// already holds MaxContexts contexts, expired ones are dropped and then the
// oldest are evicted until there is room for the new one.
func (n *Navigator) CreateContext(ctx context.Context, ownerID string, listing Listing) (string, error) {
	if ownerID == "" {
		return "", ErrOwnerRequired
	}

	keys, err := n.sessions.Keys(ctx, ownerID, n.config.SessionKeyPrefix)
	if err != nil {
		return "", fmt.Errorf("tablenav: failed to list contexts: %w", err)
	}

	taken := make(map[string]bool, len(keys))
	for _, key := range keys {
		taken[strings.TrimPrefix(key, n.config.SessionKeyPrefix)] = true
	}
	token, err := newToken(taken)
	if err != nil {
		return "", err
	}

	if n.config.MaxContexts > 0 && len(keys) >= n.config.MaxContexts {
		if err := n.evict(ctx, ownerID, keys); err != nil {
			return "", err
		}
	}

	total := listing.TotalCount
	if total == 0 {
		total = len(listing.IDs)
	}
	navCtx := &NavigationContext{
		Token:           token,
		OrderedIDs:      limitIDs(listing.IDs, listing.CurrentID, n.config.MaxPKCount, n.config.ContextWindow),
		CreatedAt:       n.config.Now(),
		TotalCount:      total,
		OriginReference: listing.OriginReference,
	}

	data, err := json.Marshal(navCtx)
	if err != nil {
		return "", fmt.Errorf("tablenav: failed to encode context: %w", err)
	}
	if err := n.sessions.Set(ctx, ownerID, n.key(token), data); err != nil {
		return "", fmt.Errorf("tablenav: failed to save context: %w", err)
	}

	n.log.Debug().
		Str("owner", ownerID).
		Str("token", token).
		Int("stored", len(navCtx.OrderedIDs)).
		Int("total", total).
		Msg("navigation context created")

	return token, nil
}

// GetContext returns the live context for token.
// Returns (nil, nil) if the context does not exist or has expired.
// An expired context found here is removed.
func (n *Navigator) GetContext(ctx context.Context, ownerID, token string) (*NavigationContext, error) {
	if ownerID == "" || token == "" {
		return nil, nil
	}

	navCtx, err := n.load(ctx, ownerID, n.key(token))
	if err != nil {
		return nil, err
	}
	if navCtx == nil {
		return nil, nil
	}

	if navCtx.IsExpired(n.config.Now(), n.config.SessionTimeout) {
		n.removeQuietly(ctx, ownerID, n.key(token), "expired")
		return nil, nil
	}
	return navCtx, nil
}

// GetNeighbors locates currentID in the context addressed by token.
// The result is empty when the context is absent or currentID falls
// outside the stored window; callers then hide navigation controls.
func (n *Navigator) GetNeighbors(ctx context.Context, ownerID, token, currentID string) (Neighbors, error) {
	navCtx, err := n.GetContext(ctx, ownerID, token)
	if err != nil || navCtx == nil {
		return Neighbors{}, err
	}

	i := navCtx.IndexOf(currentID)
	if i < 0 {
		return Neighbors{}, nil
	}

	result := Neighbors{
		Position: i + 1,
		Total:    navCtx.TotalCount,
	}
	if i > 0 {
		result.PreviousID = navCtx.OrderedIDs[i-1]
	}
	if i < len(navCtx.OrderedIDs)-1 {
		result.NextID = navCtx.OrderedIDs[i+1]
	}
	return result, nil
}

// DeleteContext removes a navigation context, e.g. after a bulk delete made
// its listing stale. Deleting an unknown token is not an error.
func (n *Navigator) DeleteContext(ctx context.Context, ownerID, token string) error {
	if ownerID == "" || token == "" {
		return nil
	}
	if err := n.sessions.Delete(ctx, ownerID, n.key(token)); err != nil {
		return fmt.Errorf("tablenav: failed to delete context: %w", err)
	}
	return nil
}

// ListContexts returns all live contexts for an owner.
// Contexts are ordered by creation time, newest first.
func (n *Navigator) ListContexts(ctx context.Context, ownerID string) ([]*NavigationContext, error) {
	if ownerID == "" {
		return nil, nil
	}

	contexts, err := n.loadAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := n.config.Now()
	live := contexts[:0]
	for _, c := range contexts {
		if !c.IsExpired(now, n.config.SessionTimeout) {
			live = append(live, c)
		}
	}

	slices.SortStableFunc(live, func(a, b *NavigationContext) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return live, nil
}

// evict makes room for one more context: every expired or unreadable
// context is removed, then the oldest live ones until the owner holds
// fewer than MaxContexts.
func (n *Navigator) evict(ctx context.Context, ownerID string, keys []string) error {
	now := n.config.Now()
	var live []*NavigationContext

	for _, key := range keys {
		navCtx, err := n.load(ctx, ownerID, key)
		if err != nil {
			return err
		}
		if navCtx != nil && !navCtx.IsExpired(now, n.config.SessionTimeout) {
			live = append(live, navCtx)
			continue
		}
		if err := n.sessions.Delete(ctx, ownerID, key); err != nil {
			return fmt.Errorf("tablenav: failed to remove expired context: %w", err)
		}
	}

	// keys are sorted, so ties on CreatedAt resolve in a stable order.
	slices.SortStableFunc(live, func(a, b *NavigationContext) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	expired := len(keys) - len(live)
	evicted := 0
	for len(live) >= n.config.MaxContexts {
		oldest := live[0]
		if err := n.sessions.Delete(ctx, ownerID, n.key(oldest.Token)); err != nil {
			return fmt.Errorf("tablenav: failed to evict context: %w", err)
		}
		live = live[1:]
		evicted++
	}

	n.log.Debug().
		Str("owner", ownerID).
		Int("expired", expired).
		Int("evicted", evicted).
		Int("remaining", len(live)).
		Msg("navigation contexts cleaned up")

	return nil
}

// load reads and decodes one context. Returns (nil, nil) if missing.
// A record that cannot be decoded is removed and reported as missing.
func (n *Navigator) load(ctx context.Context, ownerID, key string) (*NavigationContext, error) {
	data, err := n.sessions.Get(ctx, ownerID, key)
	if err != nil {
		return nil, fmt.Errorf("tablenav: failed to load context: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var navCtx NavigationContext
	if err := json.Unmarshal(data, &navCtx); err != nil {
		n.log.Warn().Err(err).Str("owner", ownerID).Str("key", key).Msg("discarding unreadable navigation context")
		n.removeQuietly(ctx, ownerID, key, "unreadable")
		return nil, nil
	}
	navCtx.Token = strings.TrimPrefix(key, n.config.SessionKeyPrefix)
	return &navCtx, nil
}

// loadAll reads every context stored for an owner, skipping unreadable ones.
func (n *Navigator) loadAll(ctx context.Context, ownerID string) ([]*NavigationContext, error) {
	keys, err := n.sessions.Keys(ctx, ownerID, n.config.SessionKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("tablenav: failed to list contexts: %w", err)
	}

	contexts := make([]*NavigationContext, 0, len(keys))
	for _, key := range keys {
		navCtx, err := n.load(ctx, ownerID, key)
		if err != nil {
			return nil, err
		}
		if navCtx != nil {
			contexts = append(contexts, navCtx)
		}
	}
	return contexts, nil
}

// removeQuietly deletes a key during lazy cleanup. Failures are logged only;
// the caller already treats the context as absent.
func (n *Navigator) removeQuietly(ctx context.Context, ownerID, key, reason string) {
	if err := n.sessions.Delete(ctx, ownerID, key); err != nil {
		n.log.Warn().Err(err).
			Str("owner", ownerID).
			Str("key", key).
			Str("reason", reason).
			Msg("failed to remove navigation context")
	}
}
