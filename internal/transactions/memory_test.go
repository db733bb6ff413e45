package transactions

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/ams/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]Transaction
	ledgers map[int64]bool
}

func newMemoryRepo(ledgers ...int64) *memoryRepo {
	r := &memoryRepo{items: map[int64]Transaction{}, ledgers: map[int64]bool{}}
	for _, id := range ledgers {
		r.ledgers[id] = true
	}
	return r
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := maps.Clone(r.items)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.items = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) Create(_ context.Context, in Input) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ledgers[in.LedgerID] {
		return Transaction{}, errLedgerMissing
	}
	r.nextID++
	t := Transaction{
		ID: r.nextID, LedgerID: in.LedgerID, Type: in.Type, PaymentMethod: in.PaymentMethod, Amount: in.Amount,
		Currency: in.Currency, Description: in.Description, Reference: in.Reference, Date: in.Date,
		Status: StatusPending, CreatedBy: in.CreatedBy, CreatedAt: time.Now(),
	}
	r.items[t.ID] = t
	return t, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (r *memoryRepo) List(_ context.Context, f Filter) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for _, t := range r.items {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// memoryTx runs with memoryRepo.mu already held by WithTx.
type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (Transaction, error) {
	tr, ok := t.repo.items[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tr, nil
}

func (t *memoryTx) SetStatus(_ context.Context, id int64, d Decision) (Transaction, error) {
	tr, ok := t.repo.items[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	tr.Status, tr.ApprovedBy, tr.ApprovedAt = d.Status, d.ApprovedBy, d.ApprovedAt
	t.repo.items[id] = tr
	return tr, nil
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
