package shared

import (
	"net/url"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Page holds limit/offset parameters for listings.
type Page struct {
	Limit  int
	Offset int
}

// PageFromQuery parses limit/offset from query values with sane bounds.
func PageFromQuery(q url.Values) Page {
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return NewPage(limit, offset)
}

// NewPage normalises limit and offset.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
