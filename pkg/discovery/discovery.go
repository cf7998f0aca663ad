// Package discovery finds the span of dates for which lifelogs exist
// without scanning every day.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/ratelimit"
)

const (
	// DateLayout is the calendar date format used by the source API.
	DateLayout = "2006-01-02"

	// MaxLookbackDays bounds how far before the latest date we probe.
	MaxLookbackDays = 365

	// ProbeDelay is the minimum spacing between discovery probes.
	ProbeDelay = 200 * time.Millisecond
)

var (
	// ErrNoData means the source has no lifelogs at all.
	ErrNoData = errors.New("no lifelogs found")

	// ErrProbeFailed means a probe could not be answered (transport or
	// auth error), so the range could not be fully determined.
	ErrProbeFailed = errors.New("discovery probe failed")
)

// Source is the subset of the Limitless client discovery needs.
type Source interface {
	Latest(ctx context.Context, timezone string) (*domain.Lifelog, error)
	HasData(ctx context.Context, date, timezone string) (bool, error)
}

// Range is the discovered span of dates, inclusive.
type Range struct {
	Earliest time.Time
	Latest   time.Time

	// Complete is false when discovery stopped early on a failed probe
	// (Earliest is then the earliest date confirmed so far) or when the
	// exponential search ran into the ceiling.
	Complete bool

	// CeilingReached is true when every exponential step up to the lookback
	// ceiling found data. The linear walk still continues past the ceiling.
	CeilingReached bool

	// Probes counts the network probes issued (cache hits excluded).
	Probes int
}

// EarliestDate returns Earliest formatted as YYYY-MM-DD.
func (r Range) EarliestDate() string { return r.Earliest.Format(DateLayout) }

// LatestDate returns Latest formatted as YYYY-MM-DD.
func (r Range) LatestDate() string { return r.Latest.Format(DateLayout) }

// Config wires a Discoverer.
type Config struct {
	Source   Source
	Timezone string
	// ProbeDelay overrides the spacing between probes; zero uses ProbeDelay,
	// negative disables pacing.
	ProbeDelay time.Duration
	// MaxLookbackDays overrides the ceiling; zero uses MaxLookbackDays.
	MaxLookbackDays int
	Logger          *slog.Logger
}

// Discoverer locates the earliest and latest dates with lifelogs.
type Discoverer struct {
	source   Source
	timezone string
	pacer    *ratelimit.Limiter
	ceiling  int
	probes   *cache.Cache
	logger   *slog.Logger
}

// New creates a Discoverer.
func New(cfg Config) (*Discoverer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("discovery source is required")
	}
	delay := cfg.ProbeDelay
	switch {
	case delay == 0:
		delay = ProbeDelay
	case delay < 0:
		delay = 0
	}
	ceiling := cfg.MaxLookbackDays
	if ceiling <= 0 {
		ceiling = MaxLookbackDays
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Discoverer{
		source:   cfg.Source,
		timezone: cfg.Timezone,
		pacer:    ratelimit.New(delay),
		ceiling:  ceiling,
		// No janitor: entries live for the lifetime of the Discoverer.
		probes: cache.New(cache.NoExpiration, 0),
		logger: logger.With("component", "discovery"),
	}, nil
}

// Discover finds the date range with data.
//
// It first looks at the most recent lifelog, then probes exponentially
// further back (1, 2, 4, ... days) until a day has no data or the ceiling
// is reached, then walks back one day at a time from the last day that had
// data until a day has no data, pinning the exact earliest date.
func (d *Discoverer) Discover(ctx context.Context) (Range, error) {
	latestLog, err := d.source.Latest(ctx, d.timezone)
	if err != nil {
		return Range{}, fmt.Errorf("%w: fetch latest lifelog: %w", ErrProbeFailed, err)
	}
	if latestLog == nil {
		return Range{}, ErrNoData
	}

	latest, err := time.Parse(DateLayout, latestLog.Date())
	if err != nil {
		return Range{}, fmt.Errorf("parse latest lifelog date %q: %w", latestLog.StartTime, err)
	}

	r := Range{Earliest: latest, Latest: latest, Probes: 1}
	d.logger.Info("latest lifelog found", "date", r.LatestDate())

	// Exponential phase. Offsets are measured from latest and bounded by
	// the ceiling.
	exhausted := true
	for offset := 1; offset < d.ceiling; offset *= 2 {
		candidate := latest.AddDate(0, 0, -offset)
		ok, err := d.probe(ctx, candidate, &r)
		if err != nil {
			return r, err
		}
		if !ok {
			exhausted = false
			break
		}
		r.Earliest = candidate
	}
	if exhausted {
		r.CeilingReached = true
		d.logger.Warn("exponential search reached lookback ceiling, range not fully determined",
			"earliest", r.EarliestDate(), "ceiling_days", d.ceiling)
	}

	// Linear phase: the exponential jumps may have skipped over days with
	// data, so walk back day by day from the last confirmed date. There is
	// no floor here; the walk ends on the first empty day.
	for {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		candidate := r.Earliest.AddDate(0, 0, -1)
		ok, err := d.probe(ctx, candidate, &r)
		if err != nil {
			return r, err
		}
		if !ok {
			break
		}
		r.Earliest = candidate
	}

	r.Complete = !r.CeilingReached
	d.logger.Info("date range discovered",
		"earliest", r.EarliestDate(), "latest", r.LatestDate(), "probes", r.Probes)
	return r, nil
}

// probe reports whether date has data, memoizing answers per date.
func (d *Discoverer) probe(ctx context.Context, date time.Time, r *Range) (bool, error) {
	key := date.Format(DateLayout)
	if v, found := d.probes.Get(key); found {
		return v.(bool), nil
	}

	if err := d.pacer.Acquire(ctx); err != nil {
		return false, err
	}
	r.Probes++

	ok, err := d.source.HasData(ctx, key, d.timezone)
	if err != nil {
		d.logger.Warn("probe failed, range is partial", "date", key, "error", err)
		return false, fmt.Errorf("%w on %s: %w", ErrProbeFailed, key, err)
	}
	d.probes.SetDefault(key, ok)
	d.logger.Debug("probe", "date", key, "has_data", ok)
	return ok, nil
}
