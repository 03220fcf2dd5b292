package domain

// PaginationParams carries page/limit values from the HTTP layer to the repo
// layer. Page is 1-indexed.
type PaginationParams struct {
	Page  int
	Limit int
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// NewPaginationParams builds a PaginationParams from optional query params.
// Nil pointers fall back to page=1, limit=50; the limit is capped at 500
// (a little over two months of four-times-daily doses).
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: defaultPageLimit}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, maxPageLimit)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata returned alongside a page of results.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Meta describes the page p of a result set holding total rows.
func (p PaginationParams) Meta(total int64) Pagination {
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total}
}
