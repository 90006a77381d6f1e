// Package paging holds page/size parameters and the paginated payload shape.
package paging

import (
	"net/url"
	"strconv"
)

const (
	DefaultSize = 10
	MaxSize     = 100
)

type Params struct {
	Page int
	Size int
}

func (p Params) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

func (p Params) Limit() int { return p.Size }

// Parse reads page and size from query values, falling back to defaults.
func Parse(q url.Values) Params {
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), DefaultSize)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return Params{Page: page, Size: size}
}

// Page is the paginated payload returned inside the envelope's data field.
type Page[T any] struct {
	Data       []T `json:"data"`
	PageCount  int `json:"pageCount"`
	TotalCount int `json:"totalCount"`
}

// New builds a Page; a nil slice is rendered as an empty list.
func New[T any](items []T, total int, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return Page[T]{Data: items, PageCount: pages, TotalCount: total}
}

func parseInt(val string, fallback int) int {
	if val == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(val); err == nil {
		return parsed
	}
	return fallback
}
