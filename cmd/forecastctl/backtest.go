package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"FinCast/internal/domain/models"
	"FinCast/internal/usecase"
)

var flagLookback int

var backtestAllCmd = &cobra.Command{
	Use:   "backtest-all",
	Short: "Backtest every stored config of a user and report MAPE",
	RunE:  runBacktestAll,
}

func init() {
	backtestAllCmd.Flags().IntVarP(&flagHorizon, "horizon", "H", 7, "held-out days")
	backtestAllCmd.Flags().IntVarP(&flagLookback, "lookback", "l", 60, "training days before the held-out tail")
	rootCmd.AddCommand(backtestAllCmd)
}

func runBacktestAll(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	start, err := startDay()
	if err != nil {
		return err
	}
	rt, closeFn, err := openRuntime()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	cfgs, err := rt.storage.Configs.ListByUser(ctx, flagUser)
	if err != nil {
		return err
	}
	if len(cfgs) == 0 {
		fmt.Printf("User %d has no stored configs.\n", flagUser)
		return nil
	}

	var bar *progressbar.ProgressBar
	if !flagQuiet {
		bar = progressbar.Default(int64(len(cfgs)), "backtesting")
	}
	async := usecase.NewAsyncForecaster(rt.orch)
	pending := make([]*usecase.Future[[]models.ForecastResult], len(cfgs))
	for i, cfg := range cfgs {
		pending[i] = async.BacktestAsync(ctx, flagUser, cfg, start, flagHorizon, flagLookback)
	}

	results := make([]models.AccuracyMetrics, 0, len(cfgs))
	failed := 0
	for i, fut := range pending {
		rows, err := fut.Wait(ctx)
		if err != nil {
			failed++
			progress("\n  config %d: %v\n", cfgs[i].ID, err)
		} else {
			results = append(results, usecase.Accuracy(cfgs[i], rows, flagHorizon, flagLookback))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONFIG\tMAPE %\tHORIZON\tLOOKBACK")
	for _, m := range results {
		mape := "n/a"
		if m.MAPE != nil {
			mape = fmt.Sprintf("%.2f", *m.MAPE)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", m.ConfigID, mape, m.HorizonDays, m.LookbackDays)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d backtests failed", failed, len(cfgs))
	}
	return nil
}
