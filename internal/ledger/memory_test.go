package ledger

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ams/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	categories map[int64]Category
	ledgers    map[int64]Ledger
	entries    map[int64]Entry
	balances   map[int64]Balance

	failUpsert error
	dropLedger bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		categories: map[int64]Category{},
		ledgers:    map[int64]Ledger{},
		entries:    map[int64]Entry{},
		balances:   map[int64]Balance{},
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := maps.Clone(r.entries)
	balances := maps.Clone(r.balances)
	ledgers := maps.Clone(r.ledgers)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.entries, r.balances, r.ledgers = entries, balances, ledgers
		return err
	}
	return nil
}

func (r *memoryRepo) seedLedger(active bool, typ CategoryType) Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()
	cat := Category{ID: r.id(), Code: "C" + string(typ), Name: string(typ), Type: typ}
	r.categories[cat.ID] = cat
	l := Ledger{ID: r.id(), Code: "L", Name: "Cash", CategoryID: cat.ID, IsActive: active}
	r.ledgers[l.ID] = l
	return l
}

func (r *memoryRepo) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *memoryRepo) CreateCategory(_ context.Context, in CategoryInput) (Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if c.Code == in.Code || c.Name == in.Name {
			return Category{}, ErrDuplicateCode
		}
	}
	c := Category{ID: r.id(), Code: in.Code, Name: in.Name, Type: in.Type, Description: in.Description, CreatedAt: time.Now()}
	r.categories[c.ID] = c
	return c, nil
}

func (r *memoryRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return Category{}, ErrCategoryNotFound
	}
	return c, nil
}

func (r *memoryRepo) ListCategories(_ context.Context, f CategoryFilter) ([]Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Category
	for _, c := range r.categories {
		if f.Search != "" && !strings.Contains(c.Name, f.Search) && !strings.Contains(c.Code, f.Search) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepo) CreateLedger(_ context.Context, in LedgerInput) (Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := Ledger{ID: r.id(), Code: in.Code, Name: in.Name, CategoryID: in.CategoryID, OwnerID: in.OwnerID, IsActive: in.IsActive}
	r.ledgers[l.ID] = l
	return l, nil
}

func (r *memoryRepo) GetLedger(_ context.Context, id int64) (Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[id]
	if !ok {
		return Ledger{}, ErrLedgerNotFound
	}
	if b, ok := r.balances[id]; ok {
		l.Balance = &b
	}
	return l, nil
}

func (r *memoryRepo) ListLedgers(_ context.Context, _ LedgerFilter) ([]Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Ledger
	for _, l := range r.ledgers {
		out = append(out, l)
	}
	return out, nil
}

func (r *memoryRepo) GetEntry(_ context.Context, id int64) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *memoryRepo) ListEntries(_ context.Context, f EntryFilter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if f.LedgerID > 0 && e.LedgerID != f.LedgerID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) GetBalance(_ context.Context, ledgerID int64) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[ledgerID]
	if !ok {
		return Balance{}, ErrBalanceNotFound
	}
	return b, nil
}

func (r *memoryRepo) ListBalances(_ context.Context, _ shared.Page) ([]Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Balance
	for _, b := range r.balances {
		out = append(out, b)
	}
	return out, nil
}

// memoryTx runs with memoryRepo.mu already held by WithTx.
type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetLedgerForUpdate(_ context.Context, id int64) (Ledger, error) {
	l, ok := t.repo.ledgers[id]
	if !ok {
		return Ledger{}, ErrLedgerNotFound
	}
	return l, nil
}

func (t *memoryTx) GetEntry(_ context.Context, id int64) (Entry, error) {
	e, ok := t.repo.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (t *memoryTx) InsertEntry(_ context.Context, in EntryInput) (Entry, error) {
	e := Entry{
		ID: t.repo.id(), LedgerID: in.LedgerID, Type: in.Type, Amount: in.Amount, PaymentMethod: in.PaymentMethod,
		Description: in.Description, Reference: in.Reference, EntryDate: in.EntryDate, CreatedBy: in.CreatedBy, CreatedAt: time.Now(),
	}
	t.repo.entries[e.ID] = e
	if t.repo.dropLedger {
		delete(t.repo.ledgers, in.LedgerID)
	}
	return e, nil
}

func (t *memoryTx) DeleteEntry(_ context.Context, id int64) error {
	if _, ok := t.repo.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(t.repo.entries, id)
	return nil
}

func (t *memoryTx) SumEntries(_ context.Context, ledgerID int64) (Sums, error) {
	s := Sums{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, e := range t.repo.entries {
		if e.LedgerID != ledgerID {
			continue
		}
		if e.Type == EntryDebit {
			s.Debit = s.Debit.Add(e.Amount)
		} else {
			s.Credit = s.Credit.Add(e.Amount)
		}
	}
	return s, nil
}

func (t *memoryTx) UpsertBalance(_ context.Context, b Balance) error {
	if t.repo.failUpsert != nil {
		return t.repo.failUpsert
	}
	t.repo.balances[b.LedgerID] = b
	return nil
}

func (t *memoryTx) StoredBalance(_ context.Context, ledgerID int64) (*decimal.Decimal, error) {
	b, ok := t.repo.balances[ledgerID]
	if !ok {
		return nil, nil
	}
	return &b.Balance, nil
}

type captureAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *captureAudit) Record(_ context.Context, l shared.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, l)
}

var errBoom = errors.New("boom")
