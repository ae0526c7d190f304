package web

// ListMeta is the pagination block attached to every list response.
type ListMeta struct {
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

func newListMeta(total, page, limit int) ListMeta {
	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = 1
	}

	pages := (total + limit - 1) / limit

	return ListMeta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1 && total > 0,
	}
}
