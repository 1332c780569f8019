package navhttp

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SearchParam is the free text search parameter.
const SearchParam = "search"

// Range filters are sent as <name>_min and <name>_max.
const (
	rangeMinSuffix = "_min"
	rangeMaxSuffix = "_max"
)

// nonFilterParams are query parameters that never describe a filter.
var nonFilterParams = []string{"page", PerPageParam, "export", "csrfmiddlewaretoken", TokenParam}

// FilterField describes one filter of a listing.
type FilterField struct {
	Name string

	// Label is shown to users. Defaults to Name in title case.
	Label string

	// Range filters read Name_min and Name_max instead of Name.
	Range bool
}

func (f FilterField) label() string {
	if f.Label != "" {
		return f.Label
	}
	// A Caser keeps state, so one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(f.Name, "_", " "))
}

// ActiveFilter is a filter currently applied to a listing.
type ActiveFilter struct {
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Value        string   `json:"value"`
	DisplayValue string   `json:"display_value"`
	ClearParams  []string `json:"clear_params"`
	ClearURL     string   `json:"clear_url"`
}

// CurrentFilterParams returns the non-empty query parameters that describe
// the listing's filters, leaving out pagination, export, CSRF and
// navigation parameters. Suitable for saving as a report.
func CurrentFilterParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if slices.Contains(nonFilterParams, key) || len(values) == 0 {
			continue
		}
		if value := values[len(values)-1]; value != "" {
			params[key] = value
		}
	}
	return params
}

// ClearFilterURL returns the request path with the given query parameters
// removed. The page parameter is dropped too, since the result set changes.
func ClearFilterURL(r *http.Request, params ...string) string {
	query := r.URL.Query()
	for _, key := range params {
		query.Del(key)
	}
	query.Del("page")

	if encoded := query.Encode(); encoded != "" {
		return r.URL.Path + "?" + encoded
	}
	return r.URL.Path
}

// ActiveFilters lists the fields with a value in the query string, in field
// order, followed by the search term if any. Each entry carries the URL
// that clears it.
func ActiveFilters(r *http.Request, fields ...FilterField) []ActiveFilter {
	query := r.URL.Query()
	var active []ActiveFilter

	for _, field := range fields {
		if field.Name == SearchParam {
			continue
		}

		if field.Range {
			if filter, ok := rangeFilter(r, field, query.Get(field.Name+rangeMinSuffix), query.Get(field.Name+rangeMaxSuffix)); ok {
				active = append(active, filter)
			}
			continue
		}

		value := strings.TrimSpace(query.Get(field.Name))
		if value == "" {
			continue
		}
		active = append(active, ActiveFilter{
			Name:         field.Name,
			Label:        field.label(),
			Value:        value,
			DisplayValue: value,
			ClearParams:  []string{field.Name},
			ClearURL:     ClearFilterURL(r, field.Name),
		})
	}

	if search := strings.TrimSpace(query.Get(SearchParam)); search != "" {
		active = append(active, ActiveFilter{
			Name:         SearchParam,
			Label:        "Search",
			Value:        search,
			DisplayValue: fmt.Sprintf("%q", search),
			ClearParams:  []string{SearchParam},
			ClearURL:     ClearFilterURL(r, SearchParam),
		})
	}
	return active
}

func rangeFilter(r *http.Request, field FilterField, start, end string) (ActiveFilter, bool) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)

	var display string
	switch {
	case start != "" && end != "":
		display = fmt.Sprintf("%s to %s", formatFilterValue(start), formatFilterValue(end))
	case start != "":
		display = "From " + formatFilterValue(start)
	case end != "":
		display = "Until " + formatFilterValue(end)
	default:
		return ActiveFilter{}, false
	}

	var params []string
	if start != "" {
		params = append(params, field.Name+rangeMinSuffix)
	}
	if end != "" {
		params = append(params, field.Name+rangeMaxSuffix)
	}

	return ActiveFilter{
		Name:         field.Name,
		Label:        field.label(),
		Value:        start + "," + end,
		DisplayValue: display,
		ClearParams:  params,
		ClearURL:     ClearFilterURL(r, params...),
	}, true
}

// formatFilterValue shows timestamps as dates and anything else as sent.
func formatFilterValue(v string) string {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.Format(time.DateOnly)
	}
	return v
}
