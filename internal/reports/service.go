package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/ams/internal/observability"
	"github.com/odyssey-erp/ams/internal/shared"
)

// RepositoryPort abstracts report persistence and ledger aggregation.
type RepositoryPort interface {
	Aggregate(ctx context.Context, start, end time.Time) ([]Aggregate, error)
	Insert(ctx context.Context, rep Report, sum Summary) (Report, error)
	Get(ctx context.Context, id int64) (Report, error)
	List(ctx context.Context, f Filter) ([]Report, error)
}

// Service generates and serves reports.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	audit   shared.AuditSink
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs the report service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, audit shared.AuditSink, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches domain counters.
func (s *Service) WithMetrics(m *observability.Metrics) {
	s.metrics = m
}

func (s *Service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Generate validates the request, aggregates the period and stores the result.
func (s *Service) Generate(ctx context.Context, in Input) (Report, error) {
	if err := in.Validate(s.today()); err != nil {
		return Report{}, err
	}
	rows, err := s.repo.Aggregate(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return Report{}, fmt.Errorf("aggregate entries: %w", err)
	}
	data, summary := Build(in.Type, Sum(rows))
	rep := Report{
		Type:        in.Type,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		GeneratedAt: s.now(),
		Format:      in.Format,
		Data:        data,
		Filters:     in.Filters,
		Status:      statusGenerated,
	}
	if actor := shared.ActorID(ctx); actor > 0 {
		rep.RequestedBy = &actor
	}
	rep, err = s.repo.Insert(ctx, rep, summary)
	if err != nil {
		return Report{}, err
	}
	s.metrics.ReportGenerated(string(rep.Type))
	s.logger.Info("report generated", slog.Int64("id", rep.ID), slog.String("type", string(rep.Type)))
	s.audit.Record(ctx, shared.AuditLog{
		ActorID:    shared.ActorID(ctx),
		Action:     shared.AuditActionCreate,
		EntityType: "report",
		EntityID:   strconv.FormatInt(rep.ID, 10),
		Metadata:   map[string]any{"report_type": string(rep.Type)},
		At:         rep.GeneratedAt,
	})
	return rep, nil
}

// Get returns a report.
func (s *Service) Get(ctx context.Context, id int64) (Report, error) {
	return s.repo.Get(ctx, id)
}

// List returns reports matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Report, error) {
	return s.repo.List(ctx, f)
}

// Export returns the downloadable payload of a report through the cache.
func (s *Service) Export(ctx context.Context, id int64) (Export, error) {
	var out Export
	err := s.cache.FetchJSON(ctx, exportKey(id), &out, func(ctx context.Context) (any, error) {
		rep, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return Export{
			Format:      rep.Format,
			Data:        rep.Data,
			DownloadURL: fmt.Sprintf("/api/reports/%d/export/%s", rep.ID, rep.Format),
		}, nil
	})
	return out, err
}
