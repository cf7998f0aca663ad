package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifelog-migrate/pkg/config"
	"lifelog-migrate/pkg/omi"
	"lifelog-migrate/pkg/output"
)

const keyListLimit = "list-limit"

// NewOmiListCmd builds the omilist command, which prints conversations that
// already exist in Omi.
func NewOmiListCmd() *cobra.Command {
	v := config.NewViper()
	v.SetDefault(keyListLimit, 20)

	cmd := &cobra.Command{
		Use:           "omilist",
		Short:         "List existing Omi conversations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadConfigFile(v); err != nil {
				return err
			}
			cfg := config.Load(v)
			if cfg.OmiAPIKey == "" {
				return fmt.Errorf("%w: set %s_OMI_API_KEY", config.ErrMissingCredentials, config.EnvPrefix)
			}

			client, err := omi.NewClient(omi.Config{
				APIKey:  cfg.OmiAPIKey,
				BaseURL: cfg.OmiBaseURL,
				Timeout: cfg.Timeout,
			})
			if err != nil {
				return err
			}
			convs, err := client.ListConversations(cmd.Context(), v.GetInt(keyListLimit))
			if err != nil {
				return err
			}

			formatter := output.NewFormatter(cmd.OutOrStdout())
			if len(convs) == 0 {
				formatter.Info("No conversations found")
				return nil
			}
			rows := make([][]string, 0, len(convs))
			for _, c := range convs {
				rows = append(rows, []string{c.ID, c.StartedAt, c.Source, c.Structured.Title})
			}
			formatter.Table([]string{"ID", "STARTED", "SOURCE", "TITLE"}, rows)
			return nil
		},
	}

	f := cmd.Flags()
	f.String(config.KeyConfig, "", "Config file")
	f.String(config.KeyOmiAPIKey, "", "Omi developer API key")
	f.String(config.KeyOmiBaseURL, omi.DefaultBaseURL, "Omi API base URL")
	f.Duration(config.KeyTimeout, v.GetDuration(config.KeyTimeout), "HTTP request timeout")
	f.IntP(keyListLimit, "n", v.GetInt(keyListLimit), "Maximum conversations to list")
	_ = v.BindPFlags(f)
	return cmd
}
