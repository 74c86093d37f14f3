package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskscore/internal/app/server"
	"taskscore/internal/domain/core"
	"taskscore/internal/domain/performance"
	"taskscore/internal/platform/config"
	"taskscore/internal/platform/db"
	"taskscore/internal/platform/jobs"
	"taskscore/internal/transport/http/shared"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "taskscore",
		Short:        "Task review and performance scoring service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newRecalculateCmd())
	return root
}

func loadConfig() (config.Config, error) {
	cfg := config.Load()
	setupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, cfg)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := db.Connect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			if err := db.Migrate(cmd.Context(), pool, cfg.MigrationsDir); err != nil {
				return err
			}
			if seed {
				if err := db.Seed(cmd.Context(), pool, cfg); err != nil {
					return err
				}
			}
			slog.Info("migrations applied", "dir", cfg.MigrationsDir, "seeded", seed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "also seed the default tenant, roles and permissions")
	return cmd
}

func newRecalculateCmd() *cobra.Command {
	var (
		tenantID    string
		deadline    time.Duration
		periodStart string
		periodEnd   string
	)
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Recalculate performance scores for every active employee",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := db.Connect(ctx, cfg)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			policy, err := performance.LoadPolicy(cfg.ScorePolicyFile)
			if err != nil {
				return err
			}
			directory := core.NewService(core.NewStore(pool))
			scores := performance.NewService(performance.NewStore(pool), directory, policy, cfg.ScoreWorkers)

			period, err := parsePeriod(scores.CurrentPeriod(), periodStart, periodEnd)
			if err != nil {
				return err
			}

			tenants := []string{tenantID}
			if tenantID == "" {
				if tenants, err = directory.ListTenantIDs(ctx); err != nil {
					return err
				}
			}

			runner := jobs.New(pool)
			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			for _, tenant := range tenants {
				result, err := runner.RunNow(ctx, jobs.JobScoreRecalculation, tenant, func(ctx context.Context) (any, error) {
					return scores.CalculateAll(ctx, tenant, period, time.Now().Add(deadline))
				})
				if err != nil {
					slog.Error("score recalculation failed", "tenantId", tenant, "err", err)
					continue
				}
				if err := out.Encode(map[string]any{"tenantId": tenant, "result": result}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID (default: every tenant)")
	cmd.Flags().DurationVar(&deadline, "deadline", 10*time.Minute, "stop starting new employees after this long")
	cmd.Flags().StringVar(&periodStart, "period-start", "", "period start, YYYY-MM-DD (default: current month)")
	cmd.Flags().StringVar(&periodEnd, "period-end", "", "exclusive period end, YYYY-MM-DD")
	return cmd
}

func parsePeriod(current performance.Period, rawStart, rawEnd string) (performance.Period, error) {
	if rawStart == "" && rawEnd == "" {
		return current, nil
	}
	start, err := shared.ParseDate(rawStart)
	if err != nil {
		return performance.Period{}, fmt.Errorf("--period-start: %w", err)
	}
	end, err := shared.ParseDate(rawEnd)
	if err != nil {
		return performance.Period{}, fmt.Errorf("--period-end: %w", err)
	}
	period := performance.Period{Start: start.UTC(), End: end.UTC()}
	return period, period.Validate()
}
