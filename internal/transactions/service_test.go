package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ams/internal/shared"
)

const testLedger = int64(40)

var testNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *captureAudit) {
	t.Helper()
	audit := &captureAudit{}
	svc := NewService(newMemoryRepo(testLedger), audit, nil)
	svc.WithNow(func() time.Time { return testNow })
	return svc, audit
}

func asUser(id int64, role string) context.Context {
	return shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: id, Role: role})
}

func validInput() Input {
	return Input{
		LedgerID: testLedger, Type: TypeIncoming, PaymentMethod: shared.PaymentBank,
		Amount: decimal.RequireFromString("250.50"),
	}
}

func TestCreateIsPendingAndOwned(t *testing.T) {
	svc, audit := newTestService(t)
	tr, err := svc.Create(asUser(5, "accountant"), validInput())
	require.NoError(t, err)
	require.Equal(t, StatusPending, tr.Status)
	require.Equal(t, int64(5), tr.CreatedBy)
	require.Equal(t, "USD", tr.Currency)
	require.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), tr.Date)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "transaction", audit.logs[0].EntityType)
}

func TestCreateRequiresPrincipal(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), validInput())
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asUser(5, "admin")
	bad := []func(*Input){
		func(in *Input) { in.Type = "sideways" },
		func(in *Input) { in.PaymentMethod = "barter" },
		func(in *Input) { in.Amount = decimal.Zero },
		func(in *Input) { in.Amount = decimal.RequireFromString("1.001") },
		func(in *Input) { in.Currency = "ELEVENCHARS" },
		func(in *Input) { in.LedgerID = 999 },
	}
	for _, mutate := range bad {
		in := validInput()
		mutate(&in)
		_, err := svc.Create(ctx, in)
		require.ErrorIs(t, err, shared.ErrValidation)
	}
}

func TestApprovalTransitions(t *testing.T) {
	svc, audit := newTestService(t)
	tr, err := svc.Create(asUser(5, "accountant"), validInput())
	require.NoError(t, err)

	approved, err := svc.Approve(asUser(9, "manager"), tr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, int64(9), *approved.ApprovedBy)
	require.Equal(t, testNow, *approved.ApprovedAt)

	_, err = svc.Approve(asUser(9, "manager"), tr.ID)
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.Reject(asUser(9, "manager"), tr.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	other, err := svc.Create(asUser(5, "accountant"), validInput())
	require.NoError(t, err)
	rejected, err := svc.Reject(asUser(9, "manager"), other.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Nil(t, rejected.ApprovedBy)

	_, err = svc.Approve(asUser(9, "manager"), 12345)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, audit.logs, 4)
}
