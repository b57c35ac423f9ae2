package common

import (
	"net/http"
	"strconv"
	"strings"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// MaxPage caps ?page= so the row offset cannot overflow.
const MaxPage = 1_000_000

// ParsePagination extracts page and per-page parameters from query values.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = min(p, MaxPage)
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	return
}

// SortSpec whitelists the columns a list endpoint may be ordered by. Keys are
// the public names accepted in ?sort=, values the SQL expressions they map to.
type SortSpec struct {
	Columns     map[string]string
	Default     string
	DefaultDesc bool
}

// ListParams is the normalised paging and ordering for a list query.
type ListParams struct {
	Page   int
	Limit  int
	Column string
	Desc   bool
}

// Offset returns the row offset for the current page.
func (p ListParams) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// OrderBy renders the ORDER BY expression. The column always comes from the
// SortSpec whitelist so it is safe to interpolate.
func (p ListParams) OrderBy() string {
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	return p.Column + " " + dir
}

// Pagination converts the params plus a total into response metadata.
func (p ListParams) Pagination(total int64) Pagination {
	return Pagination{Page: p.Page, PerPage: p.Limit, TotalItems: int(total)}
}

// ParseListParams reads page, limit, sort and order from the query string.
// Unknown sort names fall back to the default column and limit is clamped.
func ParseListParams(r *http.Request, defaultLimit, maxLimit int, sorting SortSpec) ListParams {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	page, limit := ParsePagination(r, defaultLimit)
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	params := ListParams{Page: page, Limit: limit, Desc: sorting.DefaultDesc}

	q := r.URL.Query()
	sortKey := strings.ToLower(strings.TrimSpace(q.Get("sort")))
	column, ok := sorting.Columns[sortKey]
	if !ok {
		column = sorting.Columns[sorting.Default]
	}
	params.Column = column

	switch strings.ToLower(strings.TrimSpace(q.Get("order"))) {
	case "asc":
		params.Desc = false
	case "desc":
		params.Desc = true
	}
	return params
}
