package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"FinCast/pkg/util"
)

var (
	flagDays      int
	flagThreshold float64
)

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Flag unusual spending days",
	RunE:  runAnomalies,
}

func init() {
	anomaliesCmd.Flags().IntVarP(&flagDays, "days", "n", 180, "days of history to scan, ending yesterday")
	anomaliesCmd.Flags().Float64VarP(&flagThreshold, "threshold", "t", 3, "z-score threshold in sample deviations")
	rootCmd.AddCommand(anomaliesCmd)
}

func runAnomalies(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	rt, closeFn, err := openRuntime()
	if err != nil {
		return err
	}
	defer closeFn()

	from, to := util.Window(time.Now(), flagDays)
	found, err := rt.scan.ScanAnomalies(context.Background(), flagUser, from, to, flagThreshold)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No anomalies.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAMOUNT\tZ")
	for _, a := range found {
		fmt.Fprintf(tw, "%s\t%.2f\t%+.2f\n", a.EventDate.Format("2006-01-02"), a.AnomalyValue, a.ZScore)
	}
	return tw.Flush()
}
