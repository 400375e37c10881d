package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"FinCast/internal/domain/models"
)

var (
	flagAlgorithm string
	flagWindow    int
	flagAlpha     float64
	flagSeason    int
	flagHorizon   int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Forecast daily spending for one user",
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&flagAlgorithm, "algorithm", "a", string(models.AlgorithmLinearRegression), "SMA, EWMA, LINEAR_REGRESSION or SEASONAL_DECOMPOSITION")
	generateCmd.Flags().IntVar(&flagWindow, "window", 0, "SMA window (default 7)")
	generateCmd.Flags().Float64Var(&flagAlpha, "alpha", 0, "EWMA smoothing factor (default 0.3)")
	generateCmd.Flags().IntVar(&flagSeason, "season", 0, "season length in days (default 7)")
	generateCmd.Flags().IntVarP(&flagHorizon, "horizon", "H", 7, "days to forecast")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	algo, err := models.ParseAlgorithm(flagAlgorithm)
	if err != nil {
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

	cfg := models.ConfigRequest{
		Algorithm:       string(algo),
		WindowSize:      flagWindow,
		SmoothingFactor: flagAlpha,
		SeasonLength:    flagSeason,
	}.ToConfig(flagUser)

	rows, err := rt.orch.Generate(context.Background(), flagUser, cfg, start, flagHorizon)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No history in the lookback window; nothing forecast.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tFORECAST\tCONFIG")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.TargetDate.Format("2006-01-02"), r.ForecastValue.StringFixed(2), r.ConfigID)
	}
	return tw.Flush()
}
