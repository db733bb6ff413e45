package db

import (
	"fmt"
	"strings"
)

// Filter accumulates positional WHERE clauses for dynamic list queries.
type Filter struct {
	clauses []string
	args    []any
}

// Add appends cond, whose single %d verb is replaced by the next placeholder index.
func (f *Filter) Add(cond string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(cond, len(f.args)))
}

// AddRaw appends a condition without arguments.
func (f *Filter) AddRaw(cond string) {
	f.clauses = append(f.clauses, cond)
}

// Where renders " WHERE a AND b" or an empty string.
func (f *Filter) Where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// Limit renders LIMIT/OFFSET placeholders and records their arguments.
func (f *Filter) Limit(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	f.args = append(f.args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(f.args)-1, len(f.args))
}

// Args returns the accumulated arguments.
func (f *Filter) Args() []any {
	return f.args
}
