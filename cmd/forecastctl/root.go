package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	"FinCast/pkg/metrics"
	"FinCast/pkg/util"
)

var (
	flagConfig string
	flagUser   int64
	flagStart  string
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:           "forecastctl",
	Short:         "Run FinCast forecasts from the command line",
	Long:          "Generate, backtest and scan spending forecasts against the configured storage without starting the API.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().Int64VarP(&flagUser, "user", "u", 0, "user id")
	rootCmd.PersistentFlags().StringVar(&flagStart, "start", "", "first forecast day (YYYY-MM-DD), defaults to tomorrow")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress output")
}

type cliEnv struct {
	cfg     *config.Config
	storage *di.Storage
	orch    *usecase.ForecastOrchestrator
	scan    *usecase.AnomalyScan
}

// openRuntime builds the use cases straight on storage. The CLI skips the
// result cache so every run recomputes.
func openRuntime() (*cliEnv, func(), error) {
	cfg, err := config.LoadWithEnv(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	l, err := di.ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	st, closeStorage, err := di.ProvideStorage(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	pub, closePub, err := di.ProvidePublisher(cfg, l)
	if err != nil {
		closeStorage()
		return nil, nil, err
	}
	m := metrics.Noop{}
	rt := &cliEnv{
		cfg:     cfg,
		storage: st,
		orch:    di.ProvideOrchestrator(cfg, st, pub, m, l),
		scan:    di.ProvideAnomalyScan(st, m, l),
	}
	return rt, func() {
		closePub()
		closeStorage()
	}, nil
}

func requireUser() error {
	if flagUser <= 0 {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func startDay() (time.Time, error) {
	return util.ParseDateDefault(flagStart, util.Tomorrow(time.Now()))
}

func progress(format string, a ...interface{}) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, a...)
	}
}
