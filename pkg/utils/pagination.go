package utils

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PaginationParams holds pagination request parameters
type PaginationParams struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PaginationMeta holds pagination response metadata
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// Normalize clamps page to >= 1 and limit into [1, MaxPageLimit]
func (p PaginationParams) Normalize() PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the SQL offset
func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// CalculateMeta builds the page envelope for a listing of totalCount rows
func CalculateMeta(totalCount int64, p PaginationParams) PaginationMeta {
	meta := PaginationMeta{Page: p.Page, Limit: p.Limit, TotalCount: totalCount}
	if p.Limit <= 0 {
		return meta
	}
	limit := int64(p.Limit)
	meta.TotalPages = int((totalCount + limit - 1) / limit)
	meta.HasMore = p.Page < meta.TotalPages
	return meta
}
