package pagination

const (
	// DefaultPage is used when the caller omits or mangles the page number.
	DefaultPage = 1
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows any listing query can request.
	MaxLimit = 100
)

// Params holds page/limit pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Meta describes a paginated result set for response envelopes.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// Normalize enforces the configured defaults and maximum limits.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// BuildMeta computes the response metadata for a total row count.
func BuildMeta(params Params, total int64) Meta {
	n := params.Normalize()
	totalPages := int(total) / n.Limit
	if int(total)%n.Limit != 0 {
		totalPages++
	}
	return Meta{
		Total:      total,
		Page:       n.Page,
		Limit:      n.Limit,
		TotalPages: totalPages,
	}
}
