package pagination

const (
	// DefaultPerPage is the page size used when none is requested.
	DefaultPerPage = 10
	// MaxPerPage caps how many rows a single page may return.
	MaxPerPage = 100
)

// Params are page-number pagination inputs, 1-based.
type Params struct {
	Page    int
	PerPage int
}

// Normalize clamps page to >= 1 and per-page into [1, MaxPerPage].
func Normalize(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage}
}

// Offset is the number of rows to skip for p.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Pages returns the page count for total rows.
func (p Params) Pages(total int) int {
	if total <= 0 || p.PerPage <= 0 {
		return 0
	}
	return (total + p.PerPage - 1) / p.PerPage
}
