package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"funnelboard/internal/analytics"
	"funnelboard/internal/cache"
	"funnelboard/internal/chatwoot"
	"funnelboard/internal/metrics"
	"funnelboard/internal/realtime"
	"funnelboard/internal/store"
)

// Source is the record-source contract one refresh cycle consumes.
type Source interface {
	ListAllConversations(ctx context.Context) ([]chatwoot.Conversation, error)
	ListInboxes(ctx context.Context) ([]chatwoot.Inbox, error)
}

// Params selects the time window of the next computations. A nil Month means
// "all time"; Week is the 1-based week-of-month for the weekly trend.
type Params struct {
	Month *analytics.MonthSelection
	Week  int
}

// Period renders the selection for logs and the snapshot archive.
func (p Params) Period() string {
	if p.Month == nil {
		return "all_time"
	}
	return fmt.Sprintf("%04d-%02d", p.Month.Year, int(p.Month.Month))
}

// Refresher owns the current snapshot and re-runs the aggregation pipeline on
// parameter changes and on a fixed timer. Cycles are serialized: a new cycle
// starts only after the prior one's result (or error) has been delivered. A
// cycle superseded by a parameter change has its result discarded rather than
// applied.
type Refresher struct {
	logger    *zap.Logger
	source    Source
	cache     *cache.SnapshotCache
	archive   *store.Archive
	hub       *realtime.Hub
	collector *metrics.Collector
	cron      *cron.Cron
	interval  time.Duration
	loc       *time.Location

	// runMu serializes whole cycles; mu guards the published state.
	runMu sync.Mutex
	mu    sync.Mutex

	params     Params
	generation uint64
	snapshot   *analytics.MetricsSnapshot
	loading    bool
	lastError  string
}

// Options carries the optional collaborators of a Refresher.
type Options struct {
	Cache     *cache.SnapshotCache
	Archive   *store.Archive
	Hub       *realtime.Hub
	Collector *metrics.Collector
}

// New creates a refresher polling at the given interval.
func New(source Source, interval time.Duration, loc *time.Location, defaultWeek int, logger *zap.Logger, opts Options) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	if defaultWeek < 1 || defaultWeek > 5 {
		defaultWeek = 1
	}

	return &Refresher{
		logger:    logger,
		source:    source,
		cache:     opts.Cache,
		archive:   opts.Archive,
		hub:       opts.Hub,
		collector: opts.Collector,
		cron:      cron.New(cron.WithLocation(loc)),
		interval:  interval,
		loc:       loc,
		params:    Params{Week: defaultWeek},
		loading:   true,
	}
}

// Start warms the snapshot from cache, schedules the periodic recompute, and
// kicks an immediate first cycle.
func (r *Refresher) Start(ctx context.Context) error {
	if r.cache != nil {
		if snap, err := r.cache.Get(ctx); err == nil {
			r.mu.Lock()
			r.snapshot = snap
			r.mu.Unlock()
			r.logger.Info("Warmed snapshot from cache",
				zap.Time("computed_at", snap.ComputedAt))
		}
	}

	spec := fmt.Sprintf("@every %ds", int(r.interval.Seconds()))
	if _, err := r.cron.AddFunc(spec, func() { r.runCycle(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	r.cron.Start()

	go r.runCycle(ctx)

	r.logger.Info("Refresher started", zap.Duration("interval", r.interval))
	return nil
}

// Stop halts the periodic schedule and waits for a running cycle to settle.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.runMu.Lock()
	r.runMu.Unlock()
}

// SetParams applies a new month/week selection and triggers a recompute. The
// generation bump marks any in-flight cycle as stale.
func (r *Refresher) SetParams(ctx context.Context, p Params) {
	if p.Week < 1 || p.Week > 5 {
		p.Week = 1
	}

	r.mu.Lock()
	r.params = p
	r.generation++
	r.loading = true
	r.mu.Unlock()

	r.logger.Info("Dashboard filters changed",
		zap.String("period", p.Period()),
		zap.Int("week", p.Week))

	// The cycle outlives the caller: an HTTP request context is cancelled as
	// soon as the 202 is written, which would abort the in-flight fetches.
	go r.runCycle(context.WithoutCancel(ctx))
}

// Refresh triggers an immediate recompute with the current parameters.
func (r *Refresher) Refresh(ctx context.Context) {
	go r.runCycle(context.WithoutCancel(ctx))
}

// Params returns the current selection.
func (r *Refresher) Params() Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// State returns the current snapshot along with the loading flag and the last
// cycle error, if any. The snapshot may be nil before the first successful
// cycle.
func (r *Refresher) State() (*analytics.MetricsSnapshot, bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot, r.loading, r.lastError
}

// runCycle performs one fetch-then-aggregate pass and publishes the result
// unless it went stale while computing.
func (r *Refresher) runCycle(ctx context.Context) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.mu.Lock()
	gen := r.generation
	p := r.params
	r.loading = true
	r.mu.Unlock()

	start := time.Now()
	snapshot, fetched, err := r.compute(ctx, p)
	elapsed := time.Since(start)

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		if r.collector != nil {
			r.collector.ObserveStaleResult()
		}
		r.logger.Debug("Discarding stale cycle result", zap.String("period", p.Period()))
		return
	}

	r.loading = false
	if err != nil {
		r.lastError = "failed to fetch dashboard data"
		r.mu.Unlock()
		r.logger.Error("Refresh cycle failed",
			zap.String("period", p.Period()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		if r.collector != nil {
			r.collector.ObserveCycle("error", elapsed)
		}
		return
	}

	r.snapshot = snapshot
	r.lastError = ""
	r.mu.Unlock()

	r.logger.Info("Snapshot refreshed",
		zap.String("period", p.Period()),
		zap.Int("week", p.Week),
		zap.Int("conversations", fetched),
		zap.Int("total_leads", snapshot.KPIs.TotalLeads),
		zap.Duration("elapsed", elapsed))

	if r.collector != nil {
		r.collector.ObserveCycle("success", elapsed)
		r.collector.ObserveSnapshot(fetched, snapshot.KPIs.TotalLeads)
	}

	r.publish(ctx, p, snapshot)
}

// compute runs one full fetch-and-aggregate pass. Any fetch failure aborts the
// whole cycle; no partial snapshot is produced.
func (r *Refresher) compute(ctx context.Context, p Params) (*analytics.MetricsSnapshot, int, error) {
	conversations, err := r.source.ListAllConversations(ctx)
	if err != nil {
		return nil, 0, err
	}

	inboxes, err := r.source.ListInboxes(ctx)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now().In(r.loc)
	global, trend := analytics.ResolveWindows(p.Month, now, r.loc)

	snapshot := analytics.Compute(analytics.ComputeInput{
		Conversations: conversations,
		Inboxes:       inboxes,
		Global:        global,
		Trend:         trend,
		TargetWeek:    p.Week,
		Location:      r.loc,
	})
	return snapshot, len(conversations), nil
}

// publish fans the fresh snapshot out to the cache, the archive, and the
// WebSocket hub. Failures here are logged, never fatal to the cycle.
func (r *Refresher) publish(ctx context.Context, p Params, snapshot *analytics.MetricsSnapshot) {
	if r.cache != nil {
		if err := r.cache.Set(ctx, snapshot); err != nil {
			r.logger.Warn("Failed to cache snapshot", zap.Error(err))
		}
	}
	if r.archive != nil {
		if err := r.archive.Save(ctx, p.Period(), p.Week, snapshot); err != nil {
			r.logger.Warn("Failed to archive snapshot", zap.Error(err))
		}
	}
	if r.hub != nil {
		r.hub.BroadcastSnapshot(snapshot)
	}
}
