// Package navhttp connects tablenav to net/http listing and editing handlers.
package navhttp

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/mssola/useragent"
)

// Form and query parameter names.
const (
	TokenParam    = "nav"
	PerPageParam  = "per_page"
	NextParam     = "next"
	SelectedParam = "selected_items"
	SaveNextParam = "_save_next"
	SavePrevParam = "_save_prev"
)

// IsBot reports whether the request comes from a crawler.
// Listing handlers skip creating navigation contexts for bots so that
// crawling cannot fill an owner's context store.
func IsBot(r *http.Request) bool {
	ua := r.UserAgent()
	if ua == "" {
		return false
	}
	return useragent.New(ua).Bot()
}

// Token returns the navigation token from the form or query string.
func Token(r *http.Request) string {
	return param(r, TokenParam)
}

// PerPage returns the requested page size, as sent. POST bodies are
// checked as well so HTMX requests can change it.
func PerPage(r *http.Request) string {
	return param(r, PerPageParam)
}

// SelectedItems returns the identifiers checked for a bulk action.
// Empty values and duplicates are dropped; order is preserved.
func SelectedItems(r *http.Request) []string {
	if err := r.ParseForm(); err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, raw := range r.PostForm[SelectedParam] {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// NextURL returns the "next" parameter when it is a local path, else fallback.
func NextURL(r *http.Request, fallback string) string {
	if next := param(r, NextParam); isLocalURL(next) {
		return next
	}
	return fallback
}

// param reads a value from the POST body first, then the query string.
func param(r *http.Request, name string) string {
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		if err := r.ParseForm(); err == nil {
			if v := strings.TrimSpace(r.PostForm.Get(name)); v != "" {
				return v
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(name))
}

// isLocalURL accepts only same-site paths, rejecting scheme-relative URLs
// like //evil.example and backslash variants browsers normalise to them.
func isLocalURL(raw string) bool {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return false
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
