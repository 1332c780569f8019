package navhttp

import (
	"net/http"
	"net/url"

	"github.com/aadithya-v/tablenav"
)

// WithToken appends the navigation token to a record URL.
func WithToken(recordURL, token string) string {
	if token == "" {
		return recordURL
	}
	u, err := url.Parse(recordURL)
	if err != nil {
		return recordURL
	}
	q := u.Query()
	q.Set(TokenParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}

// SaveAndNextURL picks where to go after an editing form is saved.
//
// A "_save_next" or "_save_prev" submit button leads to the neighboring
// record, keeping the token so navigation continues. Without a button, or
// when there is no neighbor in that direction, the "next" parameter or
// fallback is used, so saving never depends on navigation state.
func SaveAndNextURL(r *http.Request, nb tablenav.Neighbors, token string, recordURL func(id string) string, fallback string) string {
	switch {
	case param(r, SaveNextParam) != "" && nb.HasNext():
		return WithToken(recordURL(nb.NextID), token)
	case param(r, SavePrevParam) != "" && nb.HasPrevious():
		return WithToken(recordURL(nb.PreviousID), token)
	}
	return NextURL(r, fallback)
}
