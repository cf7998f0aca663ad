// Package migrationservice resolves which lifelogs to migrate, fetches them
// and hands them to the worker pool.
package migrationservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lifelog-migrate/pkg/config"
	"lifelog-migrate/pkg/discovery"
	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/metrics"
	"lifelog-migrate/pkg/ratelimit"
	"lifelog-migrate/pkg/report"
	"lifelog-migrate/pkg/stats"
	"lifelog-migrate/pkg/worker"
)

// DayDelay is the pause between per-day fetches.
const DayDelay = 200 * time.Millisecond

var (
	// ErrNothingToImport is returned when the resolved window holds no lifelogs.
	ErrNothingToImport = errors.New("no lifelogs found to import")
)

// Source is the read side of the source API.
type Source interface {
	discovery.Source
	FetchAll(ctx context.Context, date, timezone string) ([]domain.Lifelog, error)
	Recent(ctx context.Context, limit int, timezone string) ([]domain.Lifelog, error)
}

// Config wires a Service.
type Config struct {
	Settings *config.Config
	Source   Source
	Uploader worker.Uploader
	// Sink is optional; a failed save is logged and ignored.
	Sink    report.Sink
	Metrics *metrics.Metrics
	// Limiter overrides the upload limiter derived from Settings.RPM.
	Limiter *ratelimit.Limiter
	// DayDelay and ProbeDelay: zero uses the default, negative disables.
	DayDelay   time.Duration
	ProbeDelay time.Duration
	Logger     *slog.Logger
}

// Service runs one migration.
type Service struct {
	settings   *config.Config
	source     Source
	uploader   worker.Uploader
	sink       report.Sink
	metrics    *metrics.Metrics
	limiter    *ratelimit.Limiter
	dayDelay   time.Duration
	probeDelay time.Duration
	logger     *slog.Logger
}

// Window is the resolved selection of lifelogs.
type Window struct {
	Mode config.Mode
	// From and To are inclusive YYYY-MM-DD bounds; empty in recent mode.
	From  string
	To    string
	Limit int
	// Range is set when discovery ran.
	Range *discovery.Range
}

func (w Window) String() string {
	if w.Mode == config.ModeRecent {
		return fmt.Sprintf("latest %d", w.Limit)
	}
	if w.From == w.To {
		return w.From
	}
	return w.From + ".." + w.To
}

// Days lists every date in the window, oldest first.
func (w Window) Days() ([]string, error) {
	if w.From == "" || w.To == "" {
		return nil, nil
	}
	from, err := time.Parse(discovery.DateLayout, w.From)
	if err != nil {
		return nil, fmt.Errorf("parse from date: %w", err)
	}
	to, err := time.Parse(discovery.DateLayout, w.To)
	if err != nil {
		return nil, fmt.Errorf("parse to date: %w", err)
	}

	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(discovery.DateLayout))
	}
	return days, nil
}

// Plan is everything known before the first upload.
type Plan struct {
	Window   Window
	Lifelogs []domain.Lifelog
	Stats    stats.Stats
	Workers  int
	RPM      int
	Estimate time.Duration
	// FetchErrors counts days whose fetch failed or stopped early.
	FetchErrors int
}

// Result describes a finished import.
type Result struct {
	Summary worker.Summary
	Report  *domain.RunReport
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("lifelog source is required")
	}
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("conversation uploader is required")
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.PerMinute(cfg.Settings.RPM)
	}
	dayDelay := cfg.DayDelay
	switch {
	case dayDelay == 0:
		dayDelay = DayDelay
	case dayDelay < 0:
		dayDelay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		settings:   cfg.Settings,
		source:     cfg.Source,
		uploader:   cfg.Uploader,
		sink:       cfg.Sink,
		metrics:    cfg.Metrics,
		limiter:    limiter,
		dayDelay:   dayDelay,
		probeDelay: cfg.ProbeDelay,
		logger:     logger.With("component", "migration"),
	}, nil
}

// Plan resolves the window, fetches its lifelogs and analyzes them.
func (s *Service) Plan(ctx context.Context) (*Plan, error) {
	window, err := s.resolveWindow(ctx)
	if err != nil {
		return nil, err
	}

	lifelogs, fetchErrors, err := s.fetch(ctx, window)
	if err != nil {
		return nil, err
	}
	if len(lifelogs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNothingToImport, window)
	}

	st := stats.Analyze(lifelogs, s.settings.MaxSegments)
	plan := &Plan{
		Window:      window,
		Lifelogs:    lifelogs,
		Stats:       st,
		Workers:     s.settings.Workers,
		RPM:         s.settings.RPM,
		Estimate:    stats.Estimate(st, s.settings.Workers, s.settings.RPM),
		FetchErrors: fetchErrors,
	}
	s.logger.Info("plan ready",
		"window", window.String(), "lifelogs", st.TotalLifelogs,
		"importable", st.Importable, "conversations", st.TotalConversations)
	return plan, nil
}

func (s *Service) resolveWindow(ctx context.Context) (Window, error) {
	cfg := s.settings
	w := Window{Mode: cfg.Mode(), Limit: cfg.Limit}

	switch w.Mode {
	case config.ModeRecent:
		return w, nil
	case config.ModeDate:
		w.From, w.To = cfg.Date, cfg.Date
		return w, nil
	case config.ModeRange:
		w.From, w.To = cfg.FromDate, cfg.ToDate
		return w, nil
	}

	r, err := s.discover(ctx)
	if err != nil {
		return w, err
	}
	w.Range = &r
	w.To = r.LatestDate()
	if w.Mode == config.ModeAll {
		w.From = r.EarliestDate()
	} else {
		w.From = cfg.FromDate
	}
	if w.From > w.To {
		return w, fmt.Errorf("%w: from-date %s is after latest lifelog %s", ErrNothingToImport, w.From, w.To)
	}
	return w, nil
}

func (s *Service) discover(ctx context.Context) (discovery.Range, error) {
	d, err := discovery.New(discovery.Config{
		Source:     s.source,
		Timezone:   s.settings.Timezone,
		ProbeDelay: s.probeDelay,
		Logger:     s.logger,
	})
	if err != nil {
		return discovery.Range{}, err
	}

	r, err := d.Discover(ctx)
	switch {
	case errors.Is(err, discovery.ErrNoData):
		return r, fmt.Errorf("%w: %w", ErrNothingToImport, err)
	case errors.Is(err, discovery.ErrProbeFailed) && !r.Latest.IsZero() && s.settings.AllowPartialRange:
		s.logger.Warn("continuing with partial date range",
			"earliest", r.EarliestDate(), "latest", r.LatestDate(), "error", err)
	case err != nil:
		return r, fmt.Errorf("discover date range: %w", err)
	}
	if r.CeilingReached {
		s.logger.Warn("exponential search reached lookback ceiling; range found by day-by-day walk",
			"earliest", r.EarliestDate())
	}
	return r, nil
}

// fetch gathers the window's lifelogs. A failing day is logged and counted,
// and whatever it returned before failing is kept.
func (s *Service) fetch(ctx context.Context, w Window) ([]domain.Lifelog, int, error) {
	tz := s.settings.Timezone
	if w.Mode == config.ModeRecent {
		lifelogs, err := s.source.Recent(ctx, w.Limit, tz)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch recent lifelogs: %w", err)
		}
		return lifelogs, 0, nil
	}

	days, err := w.Days()
	if err != nil {
		return nil, 0, err
	}

	pacer := ratelimit.New(s.dayDelay)
	var (
		all      []domain.Lifelog
		failures int
	)
	for _, day := range days {
		if err := pacer.Acquire(ctx); err != nil {
			return all, failures, err
		}
		lifelogs, err := s.source.FetchAll(ctx, day, tz)
		if err != nil {
			if ctx.Err() != nil {
				return all, failures, ctx.Err()
			}
			failures++
			s.logger.Warn("fetch failed, continuing", "date", day, "kept", len(lifelogs), "error", err)
		}
		if len(lifelogs) > 0 {
			s.logger.Info("fetched lifelogs", "date", day, "count", len(lifelogs))
		}
		all = append(all, lifelogs...)
	}
	return all, failures, nil
}

// Import uploads the planned lifelogs and saves a run report when a sink is
// configured. onOutcome may be nil.
func (s *Service) Import(ctx context.Context, plan *Plan, onOutcome func(domain.Outcome)) (*Result, error) {
	manager, err := worker.NewManager(worker.Config{
		Workers:     s.settings.Workers,
		Uploader:    s.uploader,
		Limiter:     s.limiter,
		MaxSegments: s.settings.MaxSegments,
		Metrics:     s.metrics,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, err
	}

	builder := report.NewBuilder(plan.Window.String(), false, time.Now())
	summary, runErr := manager.Run(ctx, plan.Lifelogs, func(o domain.Outcome) {
		builder.Add(o)
		if onOutcome != nil {
			onOutcome(o)
		}
	})

	res := &Result{Summary: summary, Report: builder.Finish(time.Now())}
	s.saveReport(res.Report)
	return res, runErr
}

func (s *Service) saveReport(r *domain.RunReport) {
	if s.sink == nil {
		return
	}
	// The run context may already be cancelled; the archive is still wanted.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.sink.Save(ctx, r); err != nil {
		s.logger.Error("save run report failed", "run_id", r.ID, "error", err)
	}
}
