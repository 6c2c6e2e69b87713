package models

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type PageInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	HasNextPage bool  `json:"has_next_page"`
}

// NormalizePage clamps page/limit to sane bounds.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func newPageInfo(page, limit int, total int64) PageInfo {
	return PageInfo{
		Page:        page,
		Limit:       limit,
		Total:       total,
		HasNextPage: int64(page*limit) < total,
	}
}
