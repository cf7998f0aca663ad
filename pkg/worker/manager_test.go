package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/httpclient"
	"lifelog-migrate/pkg/metrics"
	"lifelog-migrate/pkg/omi"
	"lifelog-migrate/pkg/ratelimit"
	"lifelog-migrate/pkg/stats"
	"lifelog-migrate/pkg/transform"
)

// TestMain provides goleak verification to detect goroutine leaks
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeUploader records uploads and fails the ones selected by fail.
type fakeUploader struct {
	mu       sync.Mutex
	uploads  map[string][]string // StartedAt -> first segment text per chunk
	fail     func(conv domain.Conversation) error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[string][]string)}
}

func (u *fakeUploader) CreateConversation(ctx context.Context, conv domain.Conversation) (*omi.CreatedConversation, error) {
	n := u.inFlight.Add(1)
	defer u.inFlight.Add(-1)
	for {
		seen := u.maxSeen.Load()
		if n <= seen || u.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if u.delay > 0 {
		time.Sleep(u.delay)
	}

	u.mu.Lock()
	u.uploads[conv.StartedAt] = append(u.uploads[conv.StartedAt], conv.TranscriptSegments[0].Text)
	u.mu.Unlock()

	if u.fail != nil {
		if err := u.fail(conv); err != nil {
			return nil, err
		}
	}
	return &omi.CreatedConversation{ID: "c-" + conv.StartedAt}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lifelogWithSegments(key string, n int) domain.Lifelog {
	l := domain.Lifelog{ID: key, Title: "Lifelog " + key, StartTime: key, EndTime: key + "-end"}
	for i := 0; i < n; i++ {
		l.Contents = append(l.Contents, domain.ContentBlock{
			Type:    domain.BlockTypeBlockquote,
			Content: fmt.Sprintf("line %d", i),
		})
	}
	return l
}

func newTestManager(t *testing.T, u Uploader, workers int, interval time.Duration, m *metrics.Metrics) *Manager {
	t.Helper()
	mgr, err := NewManager(Config{
		Workers:     workers,
		Uploader:    u,
		Limiter:     ratelimit.New(interval),
		MaxSegments: transform.MaxSegments,
		Metrics:     m,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	return mgr
}

func TestManager_PartialWhenSomeChunksFail(t *testing.T) {
	u := newFakeUploader()
	u.fail = func(conv domain.Conversation) error {
		if conv.TranscriptSegments[0].Text == "line 500" {
			return &httpclient.StatusError{Method: http.MethodPost, StatusCode: http.StatusBadGateway}
		}
		return nil
	}
	mgr := newTestManager(t, u, 3, 0, nil)

	var outcomes []domain.Outcome
	summary, err := mgr.Run(context.Background(), []domain.Lifelog{lifelogWithSegments("big", 1200)},
		func(o domain.Outcome) { outcomes = append(outcomes, o) })
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.Equal(t, domain.StatusPartial, o.Status)
	assert.Equal(t, 2, o.Parts)
	assert.Equal(t, 3, o.Total)
	require.Len(t, o.Errors, 1)
	assert.Contains(t, o.Errors[0].Error(), "chunk 2/3")

	var statusErr *httpclient.StatusError
	assert.True(t, errors.As(o.Errors[0], &statusErr))

	assert.Equal(t, 1, summary.Partial)
	assert.Equal(t, 2, summary.Conversations)
}

func TestManager_ClassifiesOutcomes(t *testing.T) {
	summaryOnly := domain.Lifelog{ID: "summary", StartTime: "summary", Contents: []domain.ContentBlock{
		{Type: "paragraph", Content: "A long AI summary that is not transcript"},
		{Type: "heading1", Content: "Topic"},
	}}
	lifelogs := []domain.Lifelog{
		lifelogWithSegments("ok", 3),
		lifelogWithSegments("bad", 2),
		summaryOnly,
		lifelogWithSegments("big", 1001),
	}

	u := newFakeUploader()
	u.fail = func(conv domain.Conversation) error {
		if conv.StartedAt == "bad" {
			return errors.New("connection reset")
		}
		return nil
	}
	mgr := newTestManager(t, u, 2, 0, nil)

	byID := make(map[string]domain.Outcome)
	summary, err := mgr.Run(context.Background(), lifelogs, func(o domain.Outcome) { byID[o.LifelogID] = o })
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, byID["ok"].Status)
	assert.Equal(t, 1, byID["ok"].Parts)
	assert.Equal(t, domain.StatusFailed, byID["bad"].Status)
	assert.Zero(t, byID["bad"].Parts)
	assert.Equal(t, domain.StatusSkipped, byID["summary"].Status)
	assert.Equal(t, domain.StatusSuccess, byID["big"].Status)
	assert.Equal(t, 3, byID["big"].Parts)

	assert.Equal(t, Summary{
		Total: 4, Processed: 4, Success: 2, Failed: 1, Skipped: 1, Conversations: 4, Elapsed: summary.Elapsed,
	}, summary)
	assert.NotContains(t, u.uploads, "summary", "skipped lifelogs are never uploaded")
}

func TestManager_ChunksUploadedInOrder(t *testing.T) {
	u := newFakeUploader()
	mgr := newTestManager(t, u, 4, 0, nil)

	var lifelogs []domain.Lifelog
	for i := 0; i < 6; i++ {
		lifelogs = append(lifelogs, lifelogWithSegments(fmt.Sprintf("log-%d", i), 1700))
	}

	_, err := mgr.Run(context.Background(), lifelogs, nil)
	require.NoError(t, err)

	for key, firsts := range u.uploads {
		assert.Equal(t, []string{"line 0", "line 500", "line 1000", "line 1500"}, firsts, key)
	}
	assert.Len(t, u.uploads, 6)
}

func TestManager_BoundedConcurrency(t *testing.T) {
	u := newFakeUploader()
	u.delay = 5 * time.Millisecond
	mgr := newTestManager(t, u, 3, 0, nil)

	var lifelogs []domain.Lifelog
	for i := 0; i < 20; i++ {
		lifelogs = append(lifelogs, lifelogWithSegments(fmt.Sprintf("log-%d", i), 1))
	}

	summary, err := mgr.Run(context.Background(), lifelogs, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Success)
	assert.LessOrEqual(t, u.maxSeen.Load(), int32(3))
}

func TestManager_SharedLimiterSpacesAllUploads(t *testing.T) {
	const interval = 20 * time.Millisecond
	u := newFakeUploader()
	mgr := newTestManager(t, u, 3, interval, nil)

	lifelogs := []domain.Lifelog{
		lifelogWithSegments("a", 1),
		lifelogWithSegments("b", 1),
		lifelogWithSegments("c", 1001), // three chunks, three permits
	}

	start := time.Now()
	summary, err := mgr.Run(context.Background(), lifelogs, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Conversations)
	assert.GreaterOrEqual(t, time.Since(start), 4*interval-5*time.Millisecond)
}

func TestManager_MatchesStatsProjection(t *testing.T) {
	var lifelogs []domain.Lifelog
	for i, n := range []int{0, 12, 500, 501, 1200, 2001} {
		lifelogs = append(lifelogs, lifelogWithSegments(fmt.Sprintf("log-%d", i), n))
	}
	s := stats.Analyze(lifelogs, transform.MaxSegments)

	u := newFakeUploader()
	mgr := newTestManager(t, u, 3, 0, nil)
	summary, err := mgr.Run(context.Background(), lifelogs, nil)
	require.NoError(t, err)

	assert.Equal(t, s.TotalConversations, summary.Conversations)
	assert.Equal(t, s.EmptyCount, summary.Skipped)

	oversized := 0
	for _, firsts := range u.uploads {
		if len(firsts) > 1 {
			oversized++
		}
	}
	assert.Equal(t, s.OversizedCount, oversized)
}

func TestManager_Cancellation(t *testing.T) {
	u := newFakeUploader()
	mgr := newTestManager(t, u, 2, time.Hour, nil)

	var lifelogs []domain.Lifelog
	for i := 0; i < 10; i++ {
		lifelogs = append(lifelogs, lifelogWithSegments(fmt.Sprintf("log-%d", i), 1))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	summary, err := mgr.Run(ctx, lifelogs, func(o domain.Outcome) {
		if o.Status == domain.StatusSuccess {
			cancel()
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Success)
	assert.Less(t, summary.Processed, summary.Total)
}

func TestManager_CancelMidLifelogIsInterrupted(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := newFakeUploader()
	u.fail = func(conv domain.Conversation) error {
		cancel()
		return nil
	}
	mgr := newTestManager(t, u, 1, time.Hour, m)

	var outcomes []domain.Outcome
	summary, err := mgr.Run(ctx, []domain.Lifelog{lifelogWithSegments("big", 1200)},
		func(o domain.Outcome) { outcomes = append(outcomes, o) })
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.Equal(t, domain.StatusInterrupted, o.Status)
	assert.Equal(t, 1, o.Parts)
	assert.Equal(t, 3, o.Total)
	assert.Empty(t, o.Errors)

	assert.Equal(t, 1, summary.Interrupted)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Partial)
	assert.Equal(t, 1, summary.Conversations)

	assert.InDelta(t, 1, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(metrics.UploadSuccess)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(metrics.UploadError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LifelogsTotal.WithLabelValues(string(domain.StatusInterrupted))), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.LifelogsTotal.WithLabelValues(string(domain.StatusFailed))), 0)
}

func TestWorker_UploadCancelledInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := newFakeUploader()
	u.fail = func(conv domain.Conversation) error {
		cancel()
		return ctx.Err()
	}
	w := NewWorker(u, ratelimit.New(0), transform.MaxSegments, nil, testLogger())

	l := lifelogWithSegments("one", 1)
	o := w.ProcessLifelog(ctx, 0, &l)
	assert.Equal(t, domain.StatusInterrupted, o.Status)
	assert.Zero(t, o.Parts)
	assert.Empty(t, o.Errors)
}

func TestManager_RecordsMetrics(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	u := newFakeUploader()
	u.fail = func(conv domain.Conversation) error {
		if conv.StartedAt == "rejected" {
			return &httpclient.StatusError{StatusCode: http.StatusUnprocessableEntity}
		}
		return nil
	}
	mgr := newTestManager(t, u, 2, 0, m)

	_, err = mgr.Run(context.Background(), []domain.Lifelog{
		lifelogWithSegments("ok", 1),
		lifelogWithSegments("rejected", 1),
		lifelogWithSegments("empty", 0),
	}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(metrics.UploadSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(metrics.UploadRejected)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LifelogsTotal.WithLabelValues(string(domain.StatusSkipped))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LifelogsTotal.WithLabelValues(string(domain.StatusFailed))), 0)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Config{Limiter: ratelimit.New(0)})
	assert.Error(t, err)

	_, err = NewManager(Config{Uploader: newFakeUploader()})
	assert.Error(t, err)
}

func TestSummary_AvgPerConversation(t *testing.T) {
	assert.Zero(t, Summary{}.AvgPerConversation())
	assert.Equal(t, 2*time.Second, Summary{Conversations: 5, Elapsed: 10 * time.Second}.AvgPerConversation())
}
