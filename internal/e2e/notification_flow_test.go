package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ams/internal/app"
	"github.com/odyssey-erp/ams/internal/auth"
	jobmetrics "github.com/odyssey-erp/ams/internal/jobs"
	"github.com/odyssey-erp/ams/internal/notifications"
	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/shared"
	"github.com/odyssey-erp/ams/jobs"
	_ "github.com/odyssey-erp/ams/testing"
)

// queue collects enqueued tasks so the test can drain them through the worker mux.
type queue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *queue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (q *queue) drain(t *testing.T, mux *asynq.ServeMux) {
	t.Helper()
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		require.NoError(t, mux.ProcessTask(context.Background(), task))
	}
}

type memoryNotifications struct {
	mu    sync.Mutex
	items []notifications.Notification
}

func (m *memoryNotifications) Insert(_ context.Context, n shared.Notification) (notifications.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := notifications.Notification{ID: int64(len(m.items) + 1), UserID: n.UserID, Message: n.Message, Level: n.Level, CreatedAt: time.Now()}
	m.items = append(m.items, out)
	return out, nil
}

func (m *memoryNotifications) visible(s notifications.Scope, n notifications.Notification) bool {
	return s.All || (n.UserID != nil && *n.UserID == s.UserID)
}

func (m *memoryNotifications) List(_ context.Context, f notifications.Filter) ([]notifications.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notifications.Notification
	for _, n := range m.items {
		if m.visible(f.Scope, n) && (!f.Unread || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryNotifications) MarkAllRead(_ context.Context, s notifications.Scope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.items {
		if m.visible(s, m.items[i]) && !m.items[i].IsRead {
			m.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *memoryNotifications) Get(_ context.Context, id int64) (notifications.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			return n, nil
		}
	}
	return notifications.Notification{}, notifications.ErrNotificationNotFound
}

func (m *memoryNotifications) SetRead(_ context.Context, id int64, read bool) (notifications.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].IsRead = read
			return m.items[i], nil
		}
	}
	return notifications.Notification{}, notifications.ErrNotificationNotFound
}

func (m *memoryNotifications) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return notifications.ErrNotificationNotFound
}

func TestNotificationFlowFromNotifierToAPI(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := &queue{}
	store := &memoryNotifications{}
	service := notifications.NewService(store, logger)
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)

	mux := jobs.NewServeMux([]jobs.TaskHandler{
		{Type: jobs.TaskNotificationDeliver, Handler: (&jobs.NotificationJob{Store: service, Logger: logger, Metrics: metrics}).Handle},
	})

	tokens := auth.NewTokenService("e2e-secret", "ams", time.Hour)
	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               &app.Config{RateLimitPerMinute: 1000},
		Verifier:             tokens,
		RBAC:                 rbac.Middleware{Logger: logger},
		NotificationsHandler: notifications.NewHandler(logger, service, rbac.Middleware{Logger: logger}),
	})

	customer := int64(42)
	notifier := jobs.NewNotifier(q, logger)
	notifier.Notify(context.Background(), shared.Notification{UserID: &customer, Message: "  Invoice INV-1 is due on 2024-05-24 ", Level: shared.NotifyWarning})
	notifier.Notify(context.Background(), shared.Notification{Message: "Bill B-7 is overdue", Level: shared.NotifyCritical})
	q.drain(t, mux)

	list := func(userID int64, role rbac.Role) []notifications.Notification {
		t.Helper()
		token, _, err := tokens.Issue(userID, role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/notifications?unread=true", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Count   int                          `json:"count"`
			Results []notifications.Notification `json:"results"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, len(body.Results), body.Count)
		return body.Results
	}

	mine := list(customer, rbac.RoleCustomer)
	require.Len(t, mine, 1)
	require.Equal(t, "Invoice INV-1 is due on 2024-05-24", mine[0].Message)

	require.Len(t, list(1, rbac.RoleManager), 2)
	require.Empty(t, list(7, rbac.RoleAccountant))

	token, _, err := tokens.Issue(customer, rbac.RoleCustomer)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/mark-all-read", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"updated":1}`, rec.Body.String())
	require.Empty(t, list(customer, rbac.RoleCustomer))
	require.Len(t, list(1, rbac.RoleAdmin), 1, "broadcast still unread")

	count, err := testutil.GatherAndCount(registry, "ams_jobs_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() == "ams_jobs_total" {
			require.Equal(t, 2.0, fam.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
