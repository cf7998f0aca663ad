// Package report archives the outcome of an import run to a database.
// Reports are write-only: the importer never reads them back.
package report

import (
	"context"
	"sort"
	"time"

	"lifelog-migrate/pkg/domain"

	"github.com/google/uuid"
)

// Sink stores a finished run report.
type Sink interface {
	Save(ctx context.Context, report *domain.RunReport) error
}

// Builder accumulates outcomes into a RunReport. It is not safe for
// concurrent use; feed it from the single goroutine that aggregates outcomes.
type Builder struct {
	report domain.RunReport
}

// NewBuilder starts a report for a run over window.
func NewBuilder(window string, dryRun bool, startedAt time.Time) *Builder {
	return &Builder{report: domain.RunReport{
		ID:        uuid.NewString(),
		StartedAt: startedAt.UTC(),
		DryRun:    dryRun,
		Window:    window,
	}}
}

// RunID returns the generated run identifier.
func (b *Builder) RunID() string {
	return b.report.ID
}

// Add records one outcome.
func (b *Builder) Add(o domain.Outcome) {
	r := &b.report
	r.Total++
	switch o.Status {
	case domain.StatusSuccess:
		r.Success++
	case domain.StatusPartial:
		r.Partial++
	case domain.StatusFailed:
		r.Failed++
	case domain.StatusSkipped:
		r.Skipped++
	case domain.StatusInterrupted:
		r.Interrupted++
	}
	r.Created += o.Parts
	r.Outcomes = append(r.Outcomes, o.Row(r.ID))
}

// Finish stamps the end time and returns the report with outcomes in
// submission order.
func (b *Builder) Finish(finishedAt time.Time) *domain.RunReport {
	out := b.report
	out.FinishedAt = finishedAt.UTC()
	out.Outcomes = append([]domain.OutcomeRow(nil), b.report.Outcomes...)
	sort.Slice(out.Outcomes, func(i, j int) bool {
		return out.Outcomes[i].Index < out.Outcomes[j].Index
	})
	return &out
}
