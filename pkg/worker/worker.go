package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/httpclient"
	"lifelog-migrate/pkg/metrics"
	"lifelog-migrate/pkg/omi"
	"lifelog-migrate/pkg/ratelimit"
	"lifelog-migrate/pkg/transform"
)

// TitleWidth is how many runes of a lifelog title are kept for reporting.
const TitleWidth = 30

// Uploader creates conversations at the destination.
type Uploader interface {
	CreateConversation(ctx context.Context, conv domain.Conversation) (*omi.CreatedConversation, error)
}

// Worker imports single lifelogs
type Worker struct {
	uploader    Uploader
	limiter     *ratelimit.Limiter
	maxSegments int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewWorker creates a new worker. All workers of a run share limiter.
func NewWorker(uploader Uploader, limiter *ratelimit.Limiter, maxSegments int, m *metrics.Metrics, logger *slog.Logger) *Worker {
	return &Worker{
		uploader:    uploader,
		limiter:     limiter,
		maxSegments: maxSegments,
		metrics:     m,
		logger:      logger,
	}
}

// ProcessLifelog transforms, splits and uploads one lifelog.
//
// Payloads are uploaded one after another in chunk order, each behind its
// own rate-limiter permit. Failed uploads are not retried; their errors
// are kept on the outcome. Cancelling ctx stops the remaining chunks and
// marks the outcome interrupted rather than failed.
func (w *Worker) ProcessLifelog(ctx context.Context, index int, l *domain.Lifelog) domain.Outcome {
	outcome := domain.Outcome{
		Index:     index,
		LifelogID: l.ID,
		Title:     l.DisplayTitle(TitleWidth),
	}

	payloads := transform.Payloads(l, w.maxSegments)
	if len(payloads) == 0 {
		outcome.Status = domain.StatusSkipped
		return outcome
	}
	outcome.Total = len(payloads)

	for i, payload := range payloads {
		if ctx.Err() != nil {
			w.logger.Info("upload interrupted",
				"lifelog", l.ID, "uploaded", outcome.Parts, "chunks", len(payloads))
			outcome.Status = domain.StatusInterrupted
			return outcome
		}
		if err := w.upload(ctx, payload); err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-upload; the check above ends the loop.
				continue
			}
			w.logger.Warn("upload failed",
				"lifelog", l.ID, "chunk", i+1, "chunks", len(payloads), "error", err)
			outcome.Errors = append(outcome.Errors, fmt.Errorf("chunk %d/%d: %w", i+1, len(payloads), err))
			continue
		}
		outcome.Parts++
	}

	switch {
	case outcome.Parts == len(payloads):
		outcome.Status = domain.StatusSuccess
	case ctx.Err() != nil:
		outcome.Status = domain.StatusInterrupted
	case outcome.Parts > 0:
		outcome.Status = domain.StatusPartial
	default:
		outcome.Status = domain.StatusFailed
	}
	return outcome
}

func (w *Worker) upload(ctx context.Context, payload domain.Conversation) error {
	waitStart := time.Now()
	if err := w.limiter.Acquire(ctx); err != nil {
		return err
	}
	w.metrics.RecordLimiterWait(time.Since(waitStart))

	start := time.Now()
	_, err := w.uploader.CreateConversation(ctx, payload)
	if err != nil && ctx.Err() != nil {
		return err
	}
	w.metrics.RecordUpload(uploadResult(err), time.Since(start))
	return err
}

func uploadResult(err error) string {
	if err == nil {
		return metrics.UploadSuccess
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return metrics.UploadRejected
	}
	return metrics.UploadError
}
