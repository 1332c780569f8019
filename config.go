package tablenav

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/aadithya-v/tablenav/store"
)

// Unlimited disables the MaxPKCount or MaxContexts cap.
// Not recommended for large listings or long-lived sessions.
const Unlimited = -1

// Config contains configuration options for the Navigator.
type Config struct {
	// MaxPKCount is the maximum number of record identifiers stored per
	// navigation context. Longer listings are truncated to a window.
	// Set to Unlimited to store every identifier.
	// Default: 500.
	MaxPKCount int

	// SessionTimeout is the age after which a navigation context expires.
	// Default: 1 hour.
	SessionTimeout time.Duration

	// ContextWindow is the number of identifiers kept before the current
	// record when a listing is truncated. The remainder of the window
	// follows the current record. A negative value keeps none before it.
	// Default: 50.
	ContextWindow int

	// MaxContexts is the maximum number of navigation contexts kept per owner.
	// The oldest context is evicted when the cap is reached.
	// Set to Unlimited to keep every context until it expires.
	// Default: 20.
	MaxContexts int

	// SessionKeyPrefix namespaces navigation keys within an owner's session.
	// Default: "bdt_nav_".
	SessionKeyPrefix string

	// SessionStore is the storage backend for owner sessions.
	// Default: SQLite store (creates tablenav.db in current directory).
	SessionStore store.SessionStore

	// DatabasePath is the path for the default SQLite database.
	// Only used if SessionStore is nil.
	// Default: "tablenav.db".
	DatabasePath string

	// Logger receives debug and warning events.
	// Default: a disabled logger.
	Logger *zerolog.Logger

	// Now returns the current time.
	// Default: time.Now.
	Now func() time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxPKCount:       500,
		SessionTimeout:   time.Hour,
		ContextWindow:    50,
		MaxContexts:      20,
		SessionKeyPrefix: "bdt_nav_",
		DatabasePath:     "tablenav.db",
	}
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.MaxPKCount == 0 {
		c.MaxPKCount = defaults.MaxPKCount
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = defaults.SessionTimeout
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = defaults.ContextWindow
	} else if c.ContextWindow < 0 {
		c.ContextWindow = 0
	}
	if c.MaxContexts == 0 {
		c.MaxContexts = defaults.MaxContexts
	}
	if c.SessionKeyPrefix == "" {
		c.SessionKeyPrefix = defaults.SessionKeyPrefix
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaults.DatabasePath
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// LoadConfig reads navigation settings from an optional YAML file and from
// TABLENAV_* environment variables, e.g. TABLENAV_NAVIGATION_MAX_PK_COUNT.
// Environment variables override the file. An empty path skips the file.
// Store, logger and clock are left for the caller to set.
//
// navigation.session_timeout accepts a bare integer number of seconds
// (3600) or a Go duration string ("1h", "90m").
func LoadConfig(path string) (Config, error) {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("TABLENAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("navigation.max_pk_count", defaults.MaxPKCount)
	v.SetDefault("navigation.session_timeout", defaults.SessionTimeout.String())
	v.SetDefault("navigation.context_window", defaults.ContextWindow)
	v.SetDefault("navigation.max_contexts", defaults.MaxContexts)
	v.SetDefault("navigation.session_key_prefix", defaults.SessionKeyPrefix)
	v.SetDefault("database.path", defaults.DatabasePath)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("tablenav: failed to read config %s: %w", path, err)
		}
	}

	timeout, err := parseSessionTimeout(v.GetString("navigation.session_timeout"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		MaxPKCount:       v.GetInt("navigation.max_pk_count"),
		SessionTimeout:   timeout,
		ContextWindow:    v.GetInt("navigation.context_window"),
		MaxContexts:      v.GetInt("navigation.max_contexts"),
		SessionKeyPrefix: v.GetString("navigation.session_key_prefix"),
		DatabasePath:     v.GetString("database.path"),
	}, nil
}

// parseSessionTimeout reads whole seconds or a duration string.
func parseSessionTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("tablenav: invalid navigation.session_timeout %q: %w", raw, err)
	}
	return d, nil
}
