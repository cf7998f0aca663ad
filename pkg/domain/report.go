package domain

import "time"

// RunReport is the archived record of one import run. It is written once
// at the end of a run and never read back by the importer.
type RunReport struct {
	ID         string    `bson:"run_id" json:"run_id"`
	StartedAt  time.Time `bson:"started_at" json:"started_at"`
	FinishedAt time.Time `bson:"finished_at" json:"finished_at"`
	DryRun     bool      `bson:"dry_run" json:"dry_run"`
	Window     string    `bson:"window" json:"date_window"`
	Total      int       `bson:"total" json:"total"`
	Success    int       `bson:"success" json:"success"`
	Partial    int       `bson:"partial" json:"partial"`
	Failed     int       `bson:"failed" json:"failed"`
	Skipped    int       `bson:"skipped" json:"skipped"`
	// Interrupted counts lifelogs cut short by cancellation.
	Interrupted int          `bson:"interrupted" json:"interrupted"`
	Created     int          `bson:"conversations" json:"conversations"`
	Outcomes    []OutcomeRow `bson:"outcomes" json:"-"`
}

// OutcomeRow is the storable form of an Outcome.
type OutcomeRow struct {
	RunID     string   `bson:"-" json:"run_id"`
	Index     int      `bson:"index" json:"position"`
	LifelogID string   `bson:"lifelog_id" json:"lifelog_id"`
	Title     string   `bson:"title" json:"title"`
	Status    string   `bson:"status" json:"status"`
	Parts     int      `bson:"parts" json:"parts"`
	Total     int      `bson:"total" json:"total_parts"`
	Errors    []string `bson:"errors,omitempty" json:"errors,omitempty"`
}

// Row converts an Outcome into its storable form.
func (o *Outcome) Row(runID string) OutcomeRow {
	return OutcomeRow{
		RunID:     runID,
		Index:     o.Index,
		LifelogID: o.LifelogID,
		Title:     o.Title,
		Status:    string(o.Status),
		Parts:     o.Parts,
		Total:     o.Total,
		Errors:    o.ErrorMessages(),
	}
}
