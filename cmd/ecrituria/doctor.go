package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/appconfig"
	"pkt.systems/ecrituria/internal/version"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

type doctorCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var checkTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			configPath := opts.configPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath, "server", cfg.Server.BaseURL)

			api, err := apiclient.New(apiclient.Options{
				BaseURL:   cfg.Server.BaseURL,
				Timeout:   cfg.Server.Timeout(),
				UserAgent: version.UserAgent(),
			})
			if err != nil {
				return err
			}
			failed := runDoctorChecks(cmd.Context(), logger, cmd.OutOrStdout(), checkTimeout, doctorChecks(api, schema.ProjectName(cfg.Project)))
			if failed > 0 {
				return fmt.Errorf("doctor: %d check(s) failed", failed)
			}
			logger.Info("doctor complete")
			return nil
		},
	}
	cmd.Flags().DurationVar(&checkTimeout, "check-timeout", 15*time.Second, "timeout for each check")
	return cmd
}

func doctorChecks(api *apiclient.Client, project schema.ProjectName) []doctorCheck {
	checks := []doctorCheck{
		{name: "backend", run: func(ctx context.Context) (string, error) {
			projects, err := api.Projects(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s, %d projet(s)", api.BaseURL(), len(projects)), nil
		}},
		{name: "models", run: func(ctx context.Context) (string, error) {
			models, err := api.Models(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d modèle(s)", len(models)), nil
		}},
		{name: "apikey", run: func(ctx context.Context) (string, error) {
			status, err := api.APIKey(ctx)
			if err != nil {
				return "", err
			}
			if !status.HasKey {
				return "aucune clé configurée", nil
			}
			return status.MaskedKey, nil
		}},
	}
	if project == "" {
		return checks
	}
	return append(checks,
		doctorCheck{name: "project", run: func(ctx context.Context) (string, error) {
			tree, err := api.Files(ctx, project)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s, %d fichier(s)", project, len(tree.Paths())), nil
		}},
		doctorCheck{name: "stats", run: func(ctx context.Context) (string, error) {
			stats, err := api.Stats(ctx, project)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d chunk(s) indexé(s)", stats.Index.TotalChunks), nil
		}},
	)
}

// runDoctorChecks runs every check, prints one line each and returns the
// number of failures.
func runDoctorChecks(ctx context.Context, logger pslog.Logger, out io.Writer, timeout time.Duration, checks []doctorCheck) int {
	failed := 0
	for _, check := range checks {
		runCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		detail, err := check.run(runCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			failed++
			logger.Warn("doctor check failed", "check", check.name, "err", err)
			_, _ = fmt.Fprintf(out, "✗ %s: %s\n", check.name, apiclient.DetailOf(err))
			continue
		}
		logger.Info("doctor check ok", "check", check.name)
		_, _ = fmt.Fprintf(out, "✓ %s: %s\n", check.name, detail)
	}
	return failed
}
