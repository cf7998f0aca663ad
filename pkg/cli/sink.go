package cli

import (
	"context"
	"fmt"
	"log/slog"

	"lifelog-migrate/pkg/config"
	"lifelog-migrate/pkg/db"
	"lifelog-migrate/pkg/report"
)

const reportCollection = "import_runs"

// openSink connects the configured report destination. It returns a nil
// sink when none is configured. The close func is always safe to call.
func openSink(ctx context.Context, cfg config.Report, logger *slog.Logger) (report.Sink, func(), error) {
	noop := func() {}

	switch {
	case cfg.MongoURI != "":
		client := db.NewClient(cfg.MongoURI, cfg.MongoDatabase, reportCollection)
		if err := client.Connect(ctx); err != nil {
			return nil, noop, fmt.Errorf("connect to mongo: %w", err)
		}
		return report.NewMongoSink(client), func() { _ = client.Close(context.Background()) }, nil

	case cfg.PostgresDSN != "":
		client := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.PostgresDSN, MaxOpenConns: 2})
		if err := client.Connect(ctx); err != nil {
			return nil, noop, err
		}
		sink, err := report.NewSQLSink(client, logger)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return sink, func() { _ = client.Close() }, nil

	case cfg.SupabaseURL != "":
		client := db.NewSupabaseClient(db.SupabaseConfig{
			SupabaseURL: cfg.SupabaseURL,
			SupabaseKey: cfg.SupabaseKey,
			Password:    cfg.SupabasePassword,
		})
		if err := client.Connect(ctx); err != nil {
			return nil, noop, err
		}
		sink, err := report.NewSupabaseSink(client, logger)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return sink, func() { _ = client.Close() }, nil

	case cfg.SQLitePath != "":
		client := db.NewSQLiteClient(cfg.SQLitePath)
		if err := client.Connect(ctx); err != nil {
			return nil, noop, err
		}
		sink, err := report.NewSQLSink(client, logger)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return sink, func() { _ = client.Close() }, nil
	}

	return nil, noop, nil
}
