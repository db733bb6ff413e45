package reports

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type seededEntry struct {
	categoryType string
	entryType    string
	amount       decimal.Decimal
	date         time.Time
}

type memoryRepo struct {
	mu         sync.Mutex
	entries    []seededEntry
	reports    map[int64]Report
	summaries  map[int64]Summary
	aggregates int
	gets       int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{reports: map[int64]Report{}, summaries: map[int64]Summary{}}
}

func (r *memoryRepo) seed(categoryType, entryType, amount string, date time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, seededEntry{categoryType, entryType, decimal.RequireFromString(amount), date})
}

func (r *memoryRepo) Aggregate(_ context.Context, start, end time.Time) ([]Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregates++
	sums := map[[2]string]decimal.Decimal{}
	for _, e := range r.entries {
		if e.date.Before(start) || e.date.After(end) {
			continue
		}
		k := [2]string{e.categoryType, e.entryType}
		sums[k] = sums[k].Add(e.amount)
	}
	out := make([]Aggregate, 0, len(sums))
	for k, v := range sums {
		out = append(out, Aggregate{CategoryType: k[0], EntryType: k[1], Total: v})
	}
	return out, nil
}

func (r *memoryRepo) Insert(_ context.Context, rep Report, sum Summary) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep.ID = int64(len(r.reports) + 1)
	r.reports[rep.ID] = rep
	r.summaries[rep.ID] = sum
	return rep, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	rep, ok := r.reports[id]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	return rep, nil
}

func (r *memoryRepo) List(_ context.Context, f Filter) ([]Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Report
	for _, rep := range r.reports {
		if f.Type != "" && rep.Type != f.Type {
			continue
		}
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) getCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}
