package advisor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hedge_advisor/internal/core"
	"hedge_advisor/internal/hedge"
	"hedge_advisor/internal/journal"
	"hedge_advisor/pkg/cli"
	"hedge_advisor/pkg/concurrency"
	apperrors "hedge_advisor/pkg/errors"
	"hedge_advisor/pkg/telemetry"
	"hedge_advisor/pkg/tradingutils"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
)

// Options configures a Service
type Options struct {
	Registry      *hedge.Registry
	Journal       journal.Store
	Metrics       *telemetry.MetricsHolder
	SweepWorkers  int
	SweepMaxSteps int
}

// Service is the recommendation boundary used by the CLI and the server
type Service struct {
	registry *hedge.Registry
	journal  journal.Store
	metrics  *telemetry.MetricsHolder
	logger   core.ILogger
	pool     *concurrency.WorkerPool
	maxSteps int

	journalPipeline failsafe.Executor[any]

	mu         sync.RWMutex
	publishers []Publisher

	now func() time.Time
}

// NewService creates a service. A nil registry uses the process-wide default
// registry, nil metrics use the global holder and a nil journal records into a
// small in-memory ring.
func NewService(opts Options, logger core.ILogger) *Service {
	if opts.Registry == nil {
		opts.Registry = hedge.DefaultRegistry()
	}
	if opts.Journal == nil {
		opts.Journal = journal.NewMemoryStore(100)
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.GetGlobalMetrics()
	}
	if opts.SweepWorkers <= 0 {
		opts.SweepWorkers = 4
	}
	if opts.SweepMaxSteps <= 0 {
		opts.SweepMaxSteps = 1000
	}

	logger = logger.WithField("component", "advisor")

	retry := retrypolicy.NewBuilder[any]().
		AbortOnErrors(apperrors.ErrStoreClosed, context.Canceled, context.DeadlineExceeded).
		WithBackoff(20*time.Millisecond, 200*time.Millisecond).
		WithMaxRetries(2).
		Build()
	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(30 * time.Second).
		Build()

	return &Service{
		registry: opts.Registry,
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		logger:   logger,
		pool: concurrency.NewWorkerPool(concurrency.PoolConfig{
			Name:        "sweep",
			MaxWorkers:  opts.SweepWorkers,
			MaxCapacity: opts.SweepMaxSteps,
		}, logger),
		maxSteps:        opts.SweepMaxSteps,
		journalPipeline: failsafe.With[any](retry, breaker),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers p to receive every served recommendation
func (s *Service) Subscribe(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishers = append(s.publishers, p)
}

// Profiles lists the registered profile names
func (s *Service) Profiles() []string {
	return s.registry.Profiles()
}

// Recommend validates req, computes the recommendation and journals it.
// Journal failures are logged and never fail the call.
func (s *Service) Recommend(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}

	start := time.Now()
	profile, strategy := s.registry.Resolve(req.Profile)
	rec := strategy(req.Input)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000

	res := Result{
		ID:              uuid.NewString(),
		Profile:         profile,
		Recommendation:  rec,
		LongActionable:  hedge.IsActionable(rec.LongDelta),
		ShortActionable: hedge.IsActionable(rec.ShortDelta),
		LongMarginNow:   hedge.SafetyMargin(req.Long, req.SimPrice, false),
		ShortMarginNow:  hedge.SafetyMargin(req.Short, req.SimPrice, true),
		CreatedAt:       s.now(),
	}
	if req.Symbol != "" {
		res.Symbol, _ = cli.NormalizeSymbol(req.Symbol)
	}

	s.record(ctx, res, latencyMs)
	s.save(ctx, req, res)
	s.publish(res)

	s.logger.Debug("Recommendation served",
		"id", res.ID,
		"profile", res.Profile,
		"long_delta", tradingutils.Round2(rec.LongDelta),
		"short_delta", tradingutils.Round2(rec.ShortDelta))
	return res, nil
}

func (s *Service) record(ctx context.Context, res Result, latencyMs float64) {
	s.metrics.RecordRecommendation(ctx, res.Profile, latencyMs)
	s.metrics.SetLastDelta("long", res.LongDelta)
	s.metrics.SetLastDelta("short", res.ShortDelta)
	if !res.LongActionable {
		s.metrics.RecordDegenerate(ctx, "long")
	}
	if !res.ShortActionable {
		s.metrics.RecordDegenerate(ctx, "short")
	}
}

func (s *Service) save(ctx context.Context, req Request, res Result) {
	entry := journal.Entry{
		ID:             res.ID,
		Profile:        res.Profile,
		Symbol:         res.Symbol,
		Input:          req.Input,
		Recommendation: res.Recommendation,
		CreatedAt:      res.CreatedAt,
	}
	err := s.journalPipeline.WithContext(ctx).Run(func() error {
		return s.journal.Save(ctx, entry)
	})
	if err != nil {
		s.metrics.RecordJournalFailure(ctx)
		s.logger.Warn("Failed to journal recommendation", "id", res.ID, "error", err)
	}
}

func (s *Service) publish(res Result) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.publishers {
		p.PublishRecommendation(res)
	}
}

// History returns up to limit recent journal entries, newest first
func (s *Service) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	entries, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// Sweep evaluates req at steps evenly spaced simulated prices between from and
// to. Points are returned in ascending price order. Sweeps are not journaled.
func (s *Service) Sweep(ctx context.Context, req Request, from, to float64, steps int) ([]SweepPoint, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := validateSweep(from, to, steps, s.maxSteps); err != nil {
		return nil, err
	}

	_, strategy := s.registry.Resolve(req.Profile)
	prices := tradingutils.CalculatePriceLevels(from, to, steps)
	points := make([]SweepPoint, len(prices))

	tasks := make([]func(context.Context) error, len(prices))
	for i, price := range prices {
		i, price := i, price
		tasks[i] = func(ctx context.Context) error {
			in := req.Input
			in.SimPrice = price
			rec := strategy(in)
			points[i] = SweepPoint{
				SimPrice:        price,
				Recommendation:  rec,
				LongActionable:  hedge.IsActionable(rec.LongDelta),
				ShortActionable: hedge.IsActionable(rec.ShortDelta),
			}
			return nil
		}
	}
	if err := s.pool.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("sweep aborted: %w", err)
	}

	sort.SliceStable(points, func(a, b int) bool { return points[a].SimPrice < points[b].SimPrice })
	s.metrics.RecordSweep(ctx, len(points))
	s.logger.Debug("Sweep served",
		"profile", strings.TrimSpace(req.Profile),
		"points", len(points),
		"pool", s.pool.Stats())
	return points, nil
}

// PoolStats reports the sweep worker pool
func (s *Service) PoolStats() map[string]interface{} {
	return s.pool.Stats()
}

// Close stops the sweep pool and closes the journal
func (s *Service) Close() error {
	s.pool.Stop()
	return s.journal.Close()
}
