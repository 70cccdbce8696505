package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"GridCast/internal/di"
	"GridCast/pkg/config"
	"GridCast/pkg/util"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "gridcast",
		Short:        "Hourly electricity demand forecaster",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(serveCmd(load), predictCmd(load), checkCmd(load))
	return root
}

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, Kafka consumer and background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log.Printf("env=%s history=%s cache=%s kafka=%t", cfg.Environment, cfg.History.Backend, cfg.Cache.Backend, cfg.Kafka.Enabled)

			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.Run()
		},
	}
}

func predictCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		start   string
		horizon int
		weekly  bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Print one forecast as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				_ = app.Shutdown(ctx)
			}()

			orch := app.Orchestrator()
			loc := orch.Location()
			ctx := cmd.Context()

			var out interface{}
			if weekly {
				day := util.DayFloor(time.Now().In(loc)).AddDate(0, 0, 1)
				if start != "" {
					d, ok := util.ParseDate(start, loc)
					if !ok {
						return fmt.Errorf("--start must be YYYY-MM-DD with --weekly")
					}
					day = d
				}
				out, err = orch.PredictWeekly(ctx, day)
			} else {
				ts := util.HourFloor(time.Now().In(loc)).Add(time.Hour)
				if start != "" {
					t, ok := util.ParseTime(start, loc)
					if !ok {
						return fmt.Errorf("--start must be RFC3339, ISO-8601 or unix seconds")
					}
					ts = t
				}
				out, err = orch.PredictHorizon(ctx, ts, horizon)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first forecast hour (default: next hour), or the first day with --weekly")
	cmd.Flags().IntVar(&horizon, "horizon", 24, "hours to forecast (1..168)")
	cmd.Flags().BoolVar(&weekly, "weekly", false, "aggregate seven days from --start (default: tomorrow)")
	return cmd
}

type checkReport struct {
	Artifacts     map[string]bool `json:"artifacts,omitempty"`
	ModelVersion  string          `json:"model_version,omitempty"`
	History       string          `json:"history"`
	LastAvailable *time.Time      `json:"last_available,omitempty"`
	OK            bool            `json:"ok"`
	Errors        []string        `json:"errors,omitempty"`
}

// checkCmd validates the artifacts and the history backend without
// starting anything.
func checkCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, model artifacts and the history backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			rep := checkReport{History: cfg.History.Backend, OK: true}
			fail := func(err error) {
				rep.OK = false
				rep.Errors = append(rep.Errors, err.Error())
			}

			if a, err := di.ProvideArtifacts(cfg); err != nil {
				fail(err)
			} else {
				rep.Artifacts = a.Checks
				rep.ModelVersion = a.Version
			}

			ch, err := di.ProvideClickHouseClient(cfg)
			if err != nil {
				fail(err)
			} else {
				if ch != nil {
					defer ch.Close()
				}
				if store, err := di.ProvideHistoryStore(cfg, ch, nil); err != nil {
					fail(err)
				} else {
					defer store.Close()
					ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
					defer cancel()
					if err := store.Health(ctx); err != nil {
						fail(err)
					} else if last, err := store.LastAvailableTimestamp(ctx); err != nil {
						fail(err)
					} else {
						rep.LastAvailable = &last
					}
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if !rep.OK {
				return fmt.Errorf("check failed")
			}
			return nil
		},
	}
}
