package records

import "strconv"

const maxVisiblePages = 5

type PageItem struct {
	Label    string
	Page     int
	Active   bool
	Ellipsis bool
}

// Pager is the pagination bar of the records view. Pages are zero-based,
// labels one-based.
type Pager struct {
	Page         int
	TotalPages   int
	Items        []PageItem
	PrevDisabled bool
	NextDisabled bool
}

func (p Pager) First() int { return 0 }

func (p Pager) Prev() int {
	if p.Page > 0 {
		return p.Page - 1
	}
	return 0
}

func (p Pager) Next() int {
	if p.Page < p.TotalPages-1 {
		return p.Page + 1
	}
	return p.Page
}

func (p Pager) Last() int {
	if p.TotalPages > 0 {
		return p.TotalPages - 1
	}
	return 0
}

// Window shows at most five consecutive pages around the current one, plus
// the first and last pages when they fall outside it.
func Window(page, totalPages int) Pager {
	pager := Pager{
		Page:         page,
		TotalPages:   totalPages,
		PrevDisabled: page <= 0,
		NextDisabled: page >= totalPages-1,
	}
	if totalPages <= 0 {
		return pager
	}

	start := page - 2
	if over := totalPages - maxVisiblePages; start > over {
		start = over
	}
	if start < 0 {
		start = 0
	}
	end := start + maxVisiblePages
	if end > totalPages {
		end = totalPages
	}

	if start > 0 {
		pager.Items = append(pager.Items, pageItem(0, page))
		if start > 1 {
			pager.Items = append(pager.Items, PageItem{Label: "…", Ellipsis: true})
		}
	}
	for n := start; n < end; n++ {
		pager.Items = append(pager.Items, pageItem(n, page))
	}
	if end < totalPages {
		if end < totalPages-1 {
			pager.Items = append(pager.Items, PageItem{Label: "…", Ellipsis: true})
		}
		pager.Items = append(pager.Items, pageItem(totalPages-1, page))
	}
	return pager
}

func pageItem(n, current int) PageItem {
	return PageItem{Label: strconv.Itoa(n + 1), Page: n, Active: n == current}
}
