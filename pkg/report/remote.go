package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lifelog-migrate/pkg/db"
	"lifelog-migrate/pkg/domain"
)

// MongoSink stores each report as one document with embedded outcomes.
type MongoSink struct {
	client *db.Client
}

// NewMongoSink wraps a connected Mongo client.
func NewMongoSink(client *db.Client) *MongoSink {
	return &MongoSink{client: client}
}

// Save upserts the report by run id.
func (s *MongoSink) Save(ctx context.Context, report *domain.RunReport) error {
	return s.client.SaveRunReport(ctx, report)
}

// RowInserter inserts JSON-encodable rows into a named table.
type RowInserter interface {
	InsertRows(table string, rows interface{}) error
}

// RESTSink writes reports through a table API such as Supabase's PostgREST.
// The tables must already exist with the columns created by SQLSink.
type RESTSink struct {
	inserter RowInserter
}

// NewRESTSink wraps inserter.
func NewRESTSink(inserter RowInserter) *RESTSink {
	return &RESTSink{inserter: inserter}
}

type outcomeRecord struct {
	RunID     string `json:"run_id"`
	Index     int    `json:"position"`
	LifelogID string `json:"lifelog_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Parts     int    `json:"parts"`
	Total     int    `json:"total_parts"`
	Errors    string `json:"errors"`
}

// Save inserts the run row, then all outcome rows in one request.
func (s *RESTSink) Save(_ context.Context, report *domain.RunReport) error {
	if err := s.inserter.InsertRows(runTable, []*domain.RunReport{report}); err != nil {
		return fmt.Errorf("save run %s: %w", report.ID, err)
	}
	if len(report.Outcomes) == 0 {
		return nil
	}

	records := make([]outcomeRecord, 0, len(report.Outcomes))
	for _, r := range report.Outcomes {
		records = append(records, outcomeRecord{
			RunID:     r.RunID,
			Index:     r.Index,
			LifelogID: r.LifelogID,
			Title:     r.Title,
			Status:    r.Status,
			Parts:     r.Parts,
			Total:     r.Total,
			Errors:    strings.Join(r.Errors, "\n"),
		})
	}
	if err := s.inserter.InsertRows(outcomeTable, records); err != nil {
		return fmt.Errorf("save outcomes for run %s: %w", report.ID, err)
	}
	return nil
}

// NewSupabaseSink prefers a direct database connection and falls back to
// REST inserts.
func NewSupabaseSink(client *db.SupabaseClient, logger *slog.Logger) (Sink, error) {
	if client.HasDirectDB() {
		return NewSQLSink(client, logger)
	}
	return NewRESTSink(client), nil
}
