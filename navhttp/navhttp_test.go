package navhttp

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadithya-v/tablenav"
)

func postForm(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestIsBot(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want bool
	}{
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true},
		{"bingbot", "Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", true},
		{"desktop chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/products/", nil)
			r.Header.Set("User-Agent", tt.ua)
			assert.Equal(t, tt.want, IsBot(r))
		})
	}
}

func TestTokenFromQueryAndForm(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/products/5/?nav=abc123", nil)
	assert.Equal(t, "abc123", Token(r))

	r = postForm("/products/5/?nav=fromquery", url.Values{"nav": {"fromform"}})
	assert.Equal(t, "fromform", Token(r))

	r = postForm("/products/5/?nav=fromquery", url.Values{"name": {"x"}})
	assert.Equal(t, "fromquery", Token(r))
}

func TestPerPageParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/products/?per_page=50", nil)
	assert.Equal(t, "50", PerPage(r))

	r = postForm("/products/", url.Values{"per_page": {"100"}})
	assert.Equal(t, "100", PerPage(r))
}

func TestSelectedItems(t *testing.T) {
	r := postForm("/products/bulk-delete/", url.Values{
		"selected_items": {"3", "", "7", "3", " 9 "},
	})
	assert.Equal(t, []string{"3", "7", "9"}, SelectedItems(r))

	r = postForm("/products/bulk-delete/", url.Values{})
	assert.Empty(t, SelectedItems(r))

	// Query string values are not a selection.
	r = httptest.NewRequest(http.MethodGet, "/products/?selected_items=1", nil)
	assert.Empty(t, SelectedItems(r))
}

func TestNextURL(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{"local path", "/products/?page=2", "/products/?page=2"},
		{"absolute url rejected", "https://evil.example/", "/fallback/"},
		{"scheme relative rejected", "//evil.example/", "/fallback/"},
		{"backslash rejected", "/\\evil.example", "/fallback/"},
		{"relative path rejected", "products/", "/fallback/"},
		{"empty", "", "/fallback/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/products/5/?next="+url.QueryEscape(tt.next), nil)
			assert.Equal(t, tt.want, NextURL(r, "/fallback/"))
		})
	}
}

func TestWithToken(t *testing.T) {
	assert.Equal(t, "/products/8/?nav=tok", WithToken("/products/8/", "tok"))
	assert.Equal(t, "/products/8/?nav=tok&tab=notes", WithToken("/products/8/?tab=notes", "tok"))
	assert.Equal(t, "/products/8/", WithToken("/products/8/", ""))
}

func TestSaveAndNextURL(t *testing.T) {
	recordURL := func(id string) string { return "/products/" + id + "/" }
	nb := tablenav.Neighbors{PreviousID: "8", NextID: "19", Position: 3, Total: 4}

	tests := []struct {
		name string
		form url.Values
		nb   tablenav.Neighbors
		want string
	}{
		{"save and next", url.Values{"_save_next": {"1"}}, nb, "/products/19/?nav=tok"},
		{"save and previous", url.Values{"_save_prev": {"1"}}, nb, "/products/8/?nav=tok"},
		{"plain save uses next param", url.Values{"next": {"/products/?page=2"}}, nb, "/products/?page=2"},
		{"plain save without next", url.Values{}, nb, "/products/"},
		{"no next record", url.Values{"_save_next": {"1"}}, tablenav.Neighbors{PreviousID: "12", Position: 4, Total: 4}, "/products/"},
		{"navigation unavailable", url.Values{"_save_next": {"1"}}, tablenav.Neighbors{}, "/products/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := postForm("/products/12/", tt.form)
			assert.Equal(t, tt.want, SaveAndNextURL(r, tt.nb, "tok", recordURL, "/products/"))
		})
	}
}

func TestMiddlewareIssuesOwnerCookie(t *testing.T) {
	var seen string
	handler := Middleware(OwnerConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OwnerID(r)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tablenav_owner", cookies[0].Name)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// The cookie is reused on the next request.
	r := httptest.NewRequest(http.MethodGet, "/products/", nil)
	r.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	var again string
	Middleware(OwnerConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		again = OwnerID(r)
	})).ServeHTTP(rec, r)

	assert.Equal(t, seen, again)
	assert.Empty(t, rec.Result().Cookies())
}

func TestMiddlewareReplacesMalformedCookie(t *testing.T) {
	var seen string
	handler := Middleware(OwnerConfig{CookieName: "owner"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OwnerID(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "owner", Value: "not-a-uuid"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.NotEqual(t, "not-a-uuid", seen)
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestMiddlewareResolver(t *testing.T) {
	var seen string
	handler := Middleware(OwnerConfig{
		Resolve: func(r *http.Request) string { return r.Header.Get("X-User") },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OwnerID(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-User", "user-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, "user-42", seen)
	assert.Empty(t, rec.Result().Cookies())
}

func TestOwnerIDWithoutMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", OwnerID(r))

	r = r.WithContext(WithOwnerID(r.Context(), "o"))
	assert.Equal(t, "o", OwnerID(r))
}
