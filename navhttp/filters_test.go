package navhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentFilterParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/products/?status=open&search=chair&page=3&per_page=50&export=csv&csrfmiddlewaretoken=x&nav=tok&empty=&tag=a&tag=b", nil)

	assert.Equal(t, map[string]string{
		"status": "open",
		"search": "chair",
		"tag":    "b",
	}, CurrentFilterParams(r))

	r = httptest.NewRequest(http.MethodGet, "/products/", nil)
	assert.Empty(t, CurrentFilterParams(r))
}

func TestClearFilterURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/products/?status=open&search=chair&page=2", nil)

	assert.Equal(t, "/products/?search=chair", ClearFilterURL(r, "status"))
	assert.Equal(t, "/products/", ClearFilterURL(r, "status", "search"))
	assert.Equal(t, "/products/?search=chair&status=open", ClearFilterURL(r))
	assert.Equal(t, "/products/?search=chair&status=open", ClearFilterURL(r, "unknown"))
}

func TestActiveFilters(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/products/?status=open&price_min=5&price_max=20&search=red+chair&sort=name", nil)

	filters := ActiveFilters(r,
		FilterField{Name: "status"},
		FilterField{Name: "price", Range: true},
		FilterField{Name: "created", Range: true},
		FilterField{Name: "category_name"},
		FilterField{Name: SearchParam},
	)
	require.Len(t, filters, 3)

	assert.Equal(t, ActiveFilter{
		Name:         "status",
		Label:        "Status",
		Value:        "open",
		DisplayValue: "open",
		ClearParams:  []string{"status"},
		ClearURL:     "/products/?price_max=20&price_min=5&search=red+chair&sort=name",
	}, filters[0])

	assert.Equal(t, "price", filters[1].Name)
	assert.Equal(t, "Price", filters[1].Label)
	assert.Equal(t, "5 to 20", filters[1].DisplayValue)
	assert.Equal(t, []string{"price_min", "price_max"}, filters[1].ClearParams)
	assert.Equal(t, "/products/?search=red+chair&sort=name&status=open", filters[1].ClearURL)

	assert.Equal(t, "search", filters[2].Name)
	assert.Equal(t, "Search", filters[2].Label)
	assert.Equal(t, `"red chair"`, filters[2].DisplayValue)
	assert.Equal(t, "/products/?price_max=20&price_min=5&sort=name&status=open", filters[2].ClearURL)
}

func TestActiveFiltersOpenRanges(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		display string
		clear   []string
	}{
		{"from only", "created_min=2025-01-02T10:00:00Z", "From 2025-01-02", []string{"created_min"}},
		{"until only", "created_max=2025-02-01", "Until 2025-02-01", []string{"created_max"}},
		{"both dates", "created_min=2025-01-02T10:00:00Z&created_max=2025-02-01T00:00:00Z", "2025-01-02 to 2025-02-01", []string{"created_min", "created_max"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/orders/?"+tt.query, nil)

			filters := ActiveFilters(r, FilterField{Name: "created", Range: true})
			require.Len(t, filters, 1)
			assert.Equal(t, tt.display, filters[0].DisplayValue)
			assert.Equal(t, tt.clear, filters[0].ClearParams)
			assert.Equal(t, "/orders/", filters[0].ClearURL)
		})
	}
}

func TestActiveFiltersLabels(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/products/?category_name=tools&owner=me", nil)

	filters := ActiveFilters(r,
		FilterField{Name: "category_name"},
		FilterField{Name: "owner", Label: "Assigned to"},
	)
	require.Len(t, filters, 2)
	assert.Equal(t, "Category Name", filters[0].Label)
	assert.Equal(t, "Assigned to", filters[1].Label)
}

func TestActiveFiltersNone(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/products/?page=2", nil)
	assert.Empty(t, ActiveFilters(r, FilterField{Name: "status"}, FilterField{Name: "price", Range: true}))
}
