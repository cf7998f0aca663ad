// Package worker imports lifelogs concurrently with a bounded pool of
// workers sharing one rate limiter.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/metrics"
	"lifelog-migrate/pkg/ratelimit"
	"lifelog-migrate/pkg/transform"
)

// DefaultWorkers is the default pool size.
const DefaultWorkers = 3

// Config holds configuration for Manager
type Config struct {
	Workers     int
	Uploader    Uploader
	Limiter     *ratelimit.Limiter
	MaxSegments int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Manager manages workers and distributes lifelogs to them
type Manager struct {
	workerCount int
	uploader    Uploader
	limiter     *ratelimit.Limiter
	maxSegments int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Total     int
	Processed int
	Success   int
	Partial   int
	Failed    int
	Skipped   int
	// Interrupted counts lifelogs cut short by cancellation.
	Interrupted int
	// Conversations is the number of conversations created.
	Conversations int
	Elapsed       time.Duration
}

// AvgPerConversation returns the mean wall time per created conversation.
func (s Summary) AvgPerConversation() time.Duration {
	if s.Conversations == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Conversations)
}

func (s *Summary) add(o domain.Outcome) {
	s.Processed++
	switch o.Status {
	case domain.StatusSuccess:
		s.Success++
		s.Conversations += o.Parts
	case domain.StatusPartial:
		s.Partial++
		s.Conversations += o.Parts
	case domain.StatusFailed:
		s.Failed++
	case domain.StatusInterrupted:
		s.Interrupted++
		s.Conversations += o.Parts
	default:
		s.Skipped++
	}
}

// NewManager creates a new manager
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	maxSegments := cfg.MaxSegments
	if maxSegments <= 0 {
		maxSegments = transform.MaxSegments
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		workerCount: workers,
		uploader:    cfg.Uploader,
		limiter:     cfg.Limiter,
		maxSegments: maxSegments,
		metrics:     cfg.Metrics,
		logger:      logger.With("component", "worker"),
	}, nil
}

// Run imports lifelogs concurrently and returns the aggregated summary.
//
// onOutcome, when non-nil, is called once per lifelog in completion order
// from the calling goroutine. If ctx is cancelled, workers stop picking up
// new lifelogs and Run returns ctx.Err() with the partial summary.
func (m *Manager) Run(ctx context.Context, lifelogs []domain.Lifelog, onOutcome func(domain.Outcome)) (Summary, error) {
	start := time.Now()
	summary := Summary{Total: len(lifelogs)}

	// Create job channel
	jobChan := make(chan int, len(lifelogs))
	for i := range lifelogs {
		jobChan <- i
	}
	close(jobChan)

	// Workers only send results; the loop below is the single writer of summary.
	resultsChan := make(chan domain.Outcome, m.workerCount)

	var wg sync.WaitGroup
	for i := 0; i < m.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			w := NewWorker(m.uploader, m.limiter, m.maxSegments, m.metrics, m.logger.With("worker", workerID))

			for index := range jobChan {
				if ctx.Err() != nil {
					return
				}
				outcome := w.ProcessLifelog(ctx, index, &lifelogs[index])

				resultsChan <- outcome
			}
		}(i)
	}

	// Close results channel when all workers finish
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for outcome := range resultsChan {
		summary.add(outcome)
		m.metrics.RecordLifelog(string(outcome.Status))
		if onOutcome != nil {
			onOutcome(outcome)
		}
		if summary.Processed%100 == 0 {
			m.logger.Info("progress",
				"processed", summary.Processed, "total", summary.Total,
				"success", summary.Success, "failed", summary.Failed)
		}
	}

	summary.Elapsed = time.Since(start)
	m.logger.Info("completed",
		"success", summary.Success, "partial", summary.Partial, "failed", summary.Failed,
		"skipped", summary.Skipped, "interrupted", summary.Interrupted, "conversations", summary.Conversations, "elapsed", summary.Elapsed)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("import interrupted after %d of %d lifelogs: %w", summary.Processed, summary.Total, err)
	}
	return summary, nil
}
