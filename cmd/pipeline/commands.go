package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ohlcv-pipeline/internal/export"
	"ohlcv-pipeline/internal/model"
	"ohlcv-pipeline/internal/pipeline"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Incremental Bronze → Silver → Gold OHLCV pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file (optional)")

	root.AddCommand(
		newIngestCmd(),
		newStageCmd(model.StageSilver),
		newStageCmd(model.StageGold),
		newRunCmd(),
		newRebuildCmd(),
		newWatermarkCmd(),
		newExportCmd(),
	)
	return root
}

// withApp opens the app, runs fn and reports its outcome.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) (outcome, error)) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	a, ctx, err := openApp(cmd.Context(), cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	started := time.Now()
	out, err := fn(ctx, a)
	if err == nil && out.summary != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out.summary)
	}
	return a.finish(ctx, started, out, err)
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch new bars for every configured symbol into Bronze",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (outcome, error) {
				rep, err := a.ingestor().Run(ctx, a.cfg.Symbols())
				return outcome{stage: model.StageBronze, summary: ingestSummary(rep)}, err
			})
		},
	}
}

func newStageCmd(stage model.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   string(stage),
		Short: fmt.Sprintf("Run the %s stage from its committed watermark", stage),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) (outcome, error) {
				p := a.pipeline()
				wm := p.ReadWatermark(ctx, stage)
				var (
					rep pipeline.StageReport
					err error
				)
				if stage == model.StageSilver {
					rep, err = p.RunSilver(ctx, wm)
				} else {
					rep, err = p.RunGold(ctx, wm)
				}
				return outcome{stage: stage, summary: rep.String()}, err
			})
		},
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest, then run Silver and Gold",
		RunE: func(cmd *cobra.Command, args []string) error {
			skipIngest, _ := cmd.Flags().GetBool("skip-ingest")
			return withApp(cmd, func(ctx context.Context, a *app) (outcome, error) {
				var lines []string
				if !skipIngest {
					rep, err := a.ingestor().Run(ctx, a.cfg.Symbols())
					if err != nil {
						return outcome{stage: model.StageBronze}, err
					}
					lines = append(lines, ingestSummary(rep))
				}
				reps, err := a.pipeline().Run(ctx)
				return stagesOutcome(lines, reps), err
			})
		},
	}
	cmd.Flags().Bool("skip-ingest", false, "only run Silver and Gold over existing Bronze rows")
	return cmd
}

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "rebuild {silver|gold|all}",
		Short:     "Reset a stage to EMPTY and reprocess full history",
		Long:      "Deletes the target stage rows, then reruns the stage from EMPTY.\nThe reset and the rerun are separate transactions: if the rerun fails the stage is left empty until the next run.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(pipeline.TargetSilver), string(pipeline.TargetGold), string(pipeline.TargetAll)},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := pipeline.ParseTarget(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) (outcome, error) {
				reps, err := a.pipeline().Rebuild(ctx, target)
				out := stagesOutcome(nil, reps)
				if out.stage == "" {
					out.stage = model.Stage(target)
				}
				return out, err
			})
		},
	}
}

func stagesOutcome(lines []string, reps []pipeline.StageReport) outcome {
	var out outcome
	for _, r := range reps {
		lines = append(lines, r.String())
		out.stage = r.Stage
	}
	out.summary = strings.Join(lines, "\n")
	return out
}

func newWatermarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watermark",
		Short: "Print committed watermarks and row counts per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			a, ctx, err := openApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.store.Counts(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tSTATE\tWATERMARK\tROWS\tTICKER DATES")
			for _, wm := range a.pipeline().Watermarks(ctx) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", wm.Stage, wm.State(), wm, counts[wm.Stage], tickerDates(wm))
			}
			if a.pub != nil {
				for _, stage := range []model.Stage{model.StageSilver, model.StageGold} {
					wm, err := a.pub.ReadWatermark(ctx, stage)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s (published)\t%s\t%s\t-\t%s\n", stage, wm.State(), wm, tickerDates(wm))
				}
			}
			return w.Flush()
		},
	}
}

func tickerDates(wm model.Watermark) string {
	parts := make([]string, 0, len(wm.Tickers))
	for _, t := range wm.SortedTickers() {
		parts = append(parts, t+"="+wm.Tickers[t].Format(model.DateLayout))
	}
	return strings.Join(parts, " ")
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write Gold rows to a parquet snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("out")
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			tickers, _ := cmd.Flags().GetStringSlice("tickers")

			from, err := parseDateFlag("from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseDateFlag("to", toStr)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) (outcome, error) {
				out := outcome{stage: model.StageGold}
				rows, err := a.store.ReadGold(ctx, tickers, from, to)
				if err != nil {
					return out, err
				}
				path := outPath
				if path == "" {
					path = filepath.Join(a.cfg.Storage.ExportDir,
						fmt.Sprintf("gold_%s.parquet", time.Now().UTC().Format("20060102T150405")))
				}
				if err := export.WriteGoldParquet(path, rows); err != nil {
					return out, err
				}
				out.summary = fmt.Sprintf("exported %d gold rows to %s", len(rows), path)
				return out, nil
			})
		},
	}
	cmd.Flags().String("out", "", "output file (default: <export_dir>/gold_<timestamp>.parquet)")
	cmd.Flags().String("from", "", "first trade date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "last trade date, YYYY-MM-DD")
	cmd.Flags().StringSlice("tickers", nil, "tickers to export (default: all)")
	return cmd
}

func parseDateFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYY-MM-DD: %w", name, err)
	}
	return d, nil
}
