// Package pagination normalizes page/per_page inputs and builds the list
// metadata returned next to each page.
package pagination

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type Params struct {
	Page    int
	PerPage int
}

// Meta describes one page of a result set.
type Meta struct {
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
	HasNext  bool  `json:"has_next"`
}

// Normalize clamps page to at least 1 and per_page into [1, MaxPerPage],
// substituting DefaultPerPage when unset.
func (p Params) Normalize() Params {
	p.Page = max(p.Page, 1)
	switch {
	case p.PerPage <= 0:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
	return p
}

func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

func (p Params) Limit() int {
	return p.Normalize().PerPage
}

// Meta reports where this page sits in a result set of total rows. An empty
// set still has one (empty) page.
func (p Params) Meta(total int64) Meta {
	n := p.Normalize()
	perPage := int64(n.PerPage)
	lastPage := max(int((total+perPage-1)/perPage), 1)
	return Meta{
		Page:     n.Page,
		PerPage:  n.PerPage,
		Total:    total,
		LastPage: lastPage,
		HasNext:  n.Page < lastPage,
	}
}
