package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ams/internal/ledger"
)

type fakeChart struct {
	nextID     int64
	categories map[string]ledger.Category
	ledgers    map[string]ledger.Ledger
	entries    []ledger.EntryInput
}

func newFakeChart() *fakeChart {
	return &fakeChart{categories: map[string]ledger.Category{}, ledgers: map[string]ledger.Ledger{}}
}

func (f *fakeChart) CreateCategory(_ context.Context, in ledger.CategoryInput) (ledger.Category, error) {
	if _, ok := f.categories[in.Code]; ok {
		return ledger.Category{}, ledger.ErrDuplicateCode
	}
	f.nextID++
	c := ledger.Category{ID: f.nextID, Code: in.Code, Name: in.Name, Type: in.Type}
	f.categories[in.Code] = c
	return c, nil
}

func (f *fakeChart) ListCategories(_ context.Context, filter ledger.CategoryFilter) ([]ledger.Category, error) {
	var out []ledger.Category
	for code, c := range f.categories {
		if strings.Contains(code, filter.Search) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChart) CreateLedger(_ context.Context, in ledger.LedgerInput) (ledger.Ledger, error) {
	if _, ok := f.ledgers[in.Code]; ok {
		return ledger.Ledger{}, ledger.ErrDuplicateCode
	}
	f.nextID++
	l := ledger.Ledger{ID: f.nextID, Code: in.Code, Name: in.Name, CategoryID: in.CategoryID, IsActive: in.IsActive}
	f.ledgers[in.Code] = l
	return l, nil
}

func (f *fakeChart) ListLedgers(_ context.Context, filter ledger.LedgerFilter) ([]ledger.Ledger, error) {
	var out []ledger.Ledger
	for code, l := range f.ledgers {
		if strings.Contains(code, filter.Search) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeChart) CreateEntry(_ context.Context, in ledger.EntryInput) (ledger.Entry, ledger.Balance, error) {
	f.entries = append(f.entries, in)
	return ledger.Entry{LedgerID: in.LedgerID}, ledger.Balance{LedgerID: in.LedgerID}, nil
}

func TestParseEmbeddedChart(t *testing.T) {
	rows, err := parseChart(strings.NewReader(chartCSV))
	require.NoError(t, err)
	require.Len(t, rows, 7)
	require.Equal(t, ledger.CategoryIncome, rows[4].CategoryType)
}

func TestParseChartRejectsBadRows(t *testing.T) {
	header := "category_code,category_name,category_type,ledger_code,ledger_name\n"
	_, err := parseChart(strings.NewReader(header))
	require.ErrorContains(t, err, "empty")

	_, err = parseChart(strings.NewReader(header + "1000,Assets,equity,1010,Cash\n"))
	require.ErrorContains(t, err, "unknown category type")

	_, err = parseChart(strings.NewReader(header + "1000,Assets,asset\n"))
	require.Error(t, err)
}

func TestSeedChartIsRerunnable(t *testing.T) {
	rows, err := parseChart(strings.NewReader(chartCSV))
	require.NoError(t, err)
	fake := newFakeChart()
	ctx := context.Background()

	first, err := seedChart(ctx, fake, rows)
	require.NoError(t, err)
	require.Len(t, fake.categories, 4)
	require.Len(t, first, 7)

	second, err := seedChart(ctx, fake, rows)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, fake.categories["1000"].ID, fake.ledgers["1020"].CategoryID)

	require.NoError(t, seedOpeningBalances(ctx, fake, first))
	require.Len(t, fake.entries, 4)
	require.Equal(t, "Opening balance", fake.entries[0].Description)
}
