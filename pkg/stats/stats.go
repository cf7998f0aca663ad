// Package stats computes pre-flight statistics for an import run.
//
// The counting rules are shared with the transform package, so a dry run
// predicts exactly what a real run will upload.
package stats

import (
	"sort"
	"time"

	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/transform"
)

// Stats summarizes a set of fetched lifelogs.
type Stats struct {
	TotalLifelogs int
	// TotalSegments counts transcript segments that survive the transform.
	TotalSegments int
	// EmptyCount is the number of lifelogs that will be skipped.
	EmptyCount int
	Importable int
	// OversizedCount is the number of lifelogs that will be split.
	OversizedCount int
	// ExtraConversations is how many additional conversations splitting adds.
	ExtraConversations int
	// TotalConversations is Importable + ExtraConversations.
	TotalConversations int
	// Dates maps YYYY-MM-DD to the number of lifelogs starting that day.
	Dates map[string]int
}

// Analyze computes Stats for lifelogs with the given per-conversation
// segment limit.
func Analyze(lifelogs []domain.Lifelog, maxSegments int) Stats {
	s := Stats{
		TotalLifelogs: len(lifelogs),
		Dates:         make(map[string]int),
	}

	for i := range lifelogs {
		l := &lifelogs[i]
		n := transform.SegmentCount(l)
		s.TotalSegments += n

		switch chunks := transform.Chunks(n, maxSegments); {
		case chunks == 0:
			s.EmptyCount++
		case chunks > 1:
			s.OversizedCount++
			s.ExtraConversations += chunks - 1
		}

		if date := l.Date(); date != "" {
			s.Dates[date]++
		}
	}

	s.Importable = s.TotalLifelogs - s.EmptyCount
	s.TotalConversations = s.Importable + s.ExtraConversations
	return s
}

// SortedDates returns the histogram keys in ascending order.
func (s Stats) SortedDates() []string {
	dates := make([]string, 0, len(s.Dates))
	for d := range s.Dates {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Estimate predicts how long uploading s.TotalConversations will take.
//
// Each worker could issue one request per rate-limit interval, but the
// limiter is shared, so the effective rate never exceeds rpm.
func Estimate(s Stats, workers, rpm int) time.Duration {
	if rpm <= 0 || s.TotalConversations == 0 {
		return 0
	}
	if workers < 1 {
		workers = 1
	}
	effective := workers * rpm
	if effective > rpm {
		effective = rpm
	}
	return time.Duration(s.TotalConversations) * time.Minute / time.Duration(effective)
}
