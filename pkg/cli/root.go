// Package cli wires configuration, clients and the migration service behind
// the lifelog-migrate command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lifelog-migrate/pkg/config"
	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/limitless"
	"lifelog-migrate/pkg/metrics"
	"lifelog-migrate/pkg/migrationservice"
	"lifelog-migrate/pkg/omi"
	"lifelog-migrate/pkg/output"
)

// Version is overridden at build time.
var Version = "dev"

// NewRootCmd builds the lifelog-migrate command.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Migrate Limitless lifelogs into Omi conversations",
		Long: `Fetches lifelogs from the Limitless API, converts their transcripts into
Omi conversations (splitting long ones) and uploads them with a shared rate limit.

Without date flags the most recent lifelogs are imported (see --limit).
API keys are read from LIFELOG_MIGRATE_LIMITLESS_API_KEY and
LIFELOG_MIGRATE_OMI_API_KEY, a config file, or flags.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadConfigFile(v); err != nil {
				return err
			}
			cfg := config.Load(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	setupFlags(cmd, v)
	return cmd
}

func setupFlags(cmd *cobra.Command, v *viper.Viper) {
	pf := cmd.PersistentFlags()
	pf.String(config.KeyConfig, "", "Config file (default $XDG_CONFIG_HOME/lifelog-migrate/config.{toml,yaml})")
	pf.String(config.KeyLimitlessAPIKey, "", "Limitless API key")
	pf.String(config.KeyOmiAPIKey, "", "Omi developer API key")
	pf.String(config.KeyLimitlessBaseURL, limitless.DefaultBaseURL, "Limitless API base URL")
	pf.String(config.KeyOmiBaseURL, omi.DefaultBaseURL, "Omi API base URL")
	pf.Duration(config.KeyTimeout, v.GetDuration(config.KeyTimeout), "HTTP request timeout")
	pf.String(config.KeyLogLevel, v.GetString(config.KeyLogLevel), "Log level (debug, info, warn, error)")

	f := cmd.Flags()
	f.String(config.KeyDate, "", "Import a single day (YYYY-MM-DD)")
	f.String(config.KeyFromDate, "", "Start date (YYYY-MM-DD); without --to-date runs until the latest lifelog")
	f.String(config.KeyToDate, "", "End date (YYYY-MM-DD), inclusive")
	f.Bool(config.KeyAll, false, "Discover and import the full history")
	f.Int(config.KeyLimit, v.GetInt(config.KeyLimit), "Number of recent lifelogs to import when no dates are given")
	f.String(config.KeyTimezone, v.GetString(config.KeyTimezone), "IANA timezone for date queries")
	f.Int(config.KeyWorkers, v.GetInt(config.KeyWorkers), "Parallel upload workers")
	f.Int(config.KeyRPM, v.GetInt(config.KeyRPM), "Upload requests per minute across all workers")
	f.Int(config.KeyMaxSegments, v.GetInt(config.KeyMaxSegments), "Maximum transcript segments per conversation")
	f.Bool(config.KeyDryRun, false, "Analyze and preview without uploading")
	f.BoolP(config.KeyYes, "y", false, "Skip the confirmation prompt")
	f.Bool(config.KeyAllowPartialRange, false, "Continue when date discovery is interrupted by an API error")
	f.String(config.KeyMetricsAddr, "", "Serve Prometheus metrics on this address (e.g. :9090)")

	f.String(config.KeyReportMongoURI, "", "Archive the run report to MongoDB")
	f.String(config.KeyReportMongoDB, v.GetString(config.KeyReportMongoDB), "MongoDB database for run reports")
	f.String(config.KeyReportPostgresDSN, "", "Archive the run report to Postgres")
	f.String(config.KeyReportSupabaseURL, "", "Archive the run report to a Supabase project")
	f.String(config.KeyReportSupabaseKey, "", "Supabase service key (REST mode)")
	f.String(config.KeyReportSupabasePwd, "", "Supabase database password (direct mode)")
	f.String(config.KeyReportSQLite, "", "Archive the run report to a SQLite file")

	// Binding can only fail for a nil flag.
	_ = v.BindPFlags(pf)
	_ = v.BindPFlags(f)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out, errOut io.Writer) error {
	logger := newLogger(errOut, cfg)
	formatter := output.NewFormatter(out)

	source, err := limitless.NewClient(limitless.Config{
		APIKey:  cfg.LimitlessAPIKey,
		BaseURL: cfg.LimitlessBaseURL,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	uploader, err := omi.NewClient(omi.Config{
		APIKey:  cfg.OmiAPIKey,
		BaseURL: cfg.OmiBaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return err
	}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	sink, closeSink, err := openSink(ctx, cfg.Report, logger)
	if err != nil {
		// The archive is optional; the import itself can still run.
		logger.Error("report sink unavailable", "error", err)
	}
	defer closeSink()

	svc, err := migrationservice.New(migrationservice.Config{
		Settings: cfg,
		Source:   source,
		Uploader: uploader,
		Sink:     sink,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	plan, err := svc.Plan(ctx)
	if errors.Is(err, migrationservice.ErrNothingToImport) {
		formatter.Info(err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	formatter.Plan(plan)

	if cfg.DryRun {
		formatter.Preview(migrationservice.NewPreview(plan, cfg.MaxSegments))
		return nil
	}
	if plan.Stats.Importable == 0 {
		formatter.Info("No lifelogs with transcript content; nothing to upload.")
		return nil
	}
	if !cfg.Yes {
		ok, err := confirm(in, out, fmt.Sprintf("Create %d Omi conversations?", plan.Stats.TotalConversations))
		if err != nil {
			return err
		}
		if !ok {
			formatter.Info("Import cancelled.")
			return nil
		}
	}

	total := len(plan.Lifelogs)
	res, err := svc.Import(ctx, plan, func(o domain.Outcome) {
		formatter.Outcome(o, total)
	})
	if res != nil {
		formatter.Tally(res.Summary)
	}
	return err
}
