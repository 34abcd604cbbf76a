package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/di"
	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"github.com/spf13/cobra"
)

// Execute builds the command tree and runs it.
func Execute(ctx context.Context) error {
	var configPath string
	root := &cobra.Command{
		Use:           "marketpulse",
		Short:         "Daily scoring and market snapshot engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(
		serveCmd(load),
		runDailyCmd(load),
		fetchCmd(load),
		scoreCmd(load),
		commentCmd(load),
		snapshotCmd(load),
	)
	return root.ExecuteContext(ctx)
}

type loader func() (*config.Config, error)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the report API, run queue and run-request consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.RunContext(cmd.Context())
		},
	}
}

// withToolkit loads config, wires the use cases and closes them after fn.
func withToolkit(load loader, fn func(tk *di.Toolkit) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	tk, err := di.InitializeToolkit(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer tk.Close()
	return fn(tk)
}

// dateArg parses an optional YYYY-MM-DD argument; none means today in the
// exchange timezone.
func dateArg(args []string, loc *time.Location) (time.Time, error) {
	if len(args) == 0 || args[0] == "" {
		return util.TruncateDay(time.Now().In(loc)), nil
	}
	return util.ParseDate(args[0])
}

func runDailyCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "run-daily [date]",
		Short: "Fetch bars, score, comment and snapshot the latest trading day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(load, func(tk *di.Toolkit) error {
				date, err := dateArg(args, tk.Location)
				if err != nil {
					return err
				}
				res, err := tk.Pipeline.Run(cmd.Context(), date)
				if err != nil {
					return reportNoData(tk.Logger, date, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run-daily %s: scored=%d top=%d market_score=%d state=%s advice=%d aligned=%t\n",
					util.FormatDate(res.Date), res.Scored, res.TopCount,
					res.Snapshot.MarketScore, res.Snapshot.MarketState, res.Snapshot.CapitalAdvice, res.Aligned)
				return nil
			})
		},
	}
}

func fetchCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [date]",
		Short: "Download the latest end-of-day bars and store them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(load, func(tk *di.Toolkit) error {
				date, err := dateArg(args, tk.Location)
				if err != nil {
					return err
				}
				res, err := tk.Fetch.Fetch(cmd.Context(), date)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fetch: %s, latest %s\n", res, util.FormatDate(res.Latest))
				return nil
			})
		},
	}
}

func scoreCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "score <date>",
		Short: "Score every instrument of a date and write the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(load, func(tk *di.Toolkit) error {
				date, err := util.ParseDate(args[0])
				if err != nil {
					return err
				}
				var res *usecase.ScoreResult
				err = tk.Pipeline.Exclusive(cmd.Context(), date, func(ctx context.Context) (err error) {
					res, err = tk.Scoring.ScoreDay(ctx, date)
					return err
				})
				if err != nil {
					return reportNoData(tk.Logger, date, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "score %s: scored=%d top=%d\n", util.FormatDate(date), res.Scored, len(res.Top))
				return nil
			})
		},
	}
}

func commentCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <date>",
		Short: "Render and store the Top-N commentary for a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(load, func(tk *di.Toolkit) error {
				date, err := util.ParseDate(args[0])
				if err != nil {
					return err
				}
				var text string
				err = tk.Pipeline.Exclusive(cmd.Context(), date, func(ctx context.Context) (err error) {
					text, err = tk.Comment.Comment(ctx, date)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func snapshotCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <date>",
		Short: "Build the market snapshot for a date and store the configured fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(load, func(tk *di.Toolkit) error {
				date, err := util.ParseDate(args[0])
				if err != nil {
					return err
				}
				var snap models.MarketSnapshot
				err = tk.Pipeline.Exclusive(cmd.Context(), date, func(ctx context.Context) (err error) {
					snap, err = tk.Snapshot.BuildAndStore(ctx, date)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: market_score=%d state=%s advice=%d adv_ratio=%.4f\n",
					util.FormatDate(date), snap.MarketScore, snap.MarketState, snap.CapitalAdvice, snap.Breadth.AdvRatio)
				return nil
			})
		},
	}
}

// reportNoData logs a missing trading day as a warning and keeps the error so
// the process still exits non-zero.
func reportNoData(l *applogger.Logger, date time.Time, err error) error {
	if errors.Is(err, models.ErrNoDataForDate) {
		l.Warn("no bars for date", applogger.Date("date", date))
		return fmt.Errorf("no data for %s: %w", util.FormatDate(date), err)
	}
	return err
}
