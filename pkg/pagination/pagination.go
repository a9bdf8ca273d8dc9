package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultCount = 10
	MaxCount     = 100
)

// Params holds the page window requested by the dashboard.
type Params struct {
	Page  int
	Count int
}

// FromContext extracts page/count query parameters from the echo context,
// applying defaults and the count cap.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	count, _ := strconv.Atoi(c.QueryParam("count"))
	if count <= 0 {
		count = DefaultCount
	}
	if count > MaxCount {
		count = MaxCount
	}

	return Params{Page: page, Count: count}
}

// PageInfo describes a page's position within a remote collection. HasNext
// and HasPrev mirror the presence of the remote's navigation links for that
// page — they are never computed from counts, because the remote does not
// guarantee stable totals across pages.
type PageInfo struct {
	CurrentPage int  `json:"currentPage"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// NewPageInfo builds PageInfo from the requested page and the remote's
// link relations.
func NewPageInfo(page int, hasNext, hasPrev bool) PageInfo {
	return PageInfo{CurrentPage: page, HasNext: hasNext, HasPrev: hasPrev}
}
