package db

import "github.com/markdave123-py/flowdesk/internal/core"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pageBounds(p core.Page) (limit, offset int) {
	limit, offset = p.Limit, p.Offset
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
