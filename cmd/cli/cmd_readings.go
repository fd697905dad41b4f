package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/spf13/cobra"
)

var readingsCmd = &cobra.Command{
	Use:   "readings",
	Short: "Query stored readings",
}

var readingsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent readings",
	RunE:  runReadingsLatest,
}

var readingsLimit int

func init() {
	rootCmd.AddCommand(readingsCmd)
	readingsCmd.AddCommand(readingsLatestCmd)

	readingsLatestCmd.Flags().IntVar(&readingsLimit, "limit", models.DefaultLatestLimit, "number of readings (max 100)")
}

func runReadingsLatest(cmd *cobra.Command, args []string) error {
	readings, err := newAPIClient().Latest(cmd.Context(), readingsLimit)
	if err != nil {
		return fmt.Errorf("failed to load readings: %w", err)
	}

	printReadings(cmd.OutOrStdout(), readings)
	return nil
}

func printReadings(out io.Writer, readings []models.SensorReading) {
	if len(readings) == 0 {
		fmt.Fprintln(out, "No readings stored yet.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME (UTC)\tORIGIN\tTEMP °C\tHUMIDITY %\tHEAT INDEX")
	for _, r := range readings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%.2f\n",
			r.ID,
			r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			r.Origin,
			r.Temperature,
			r.Humidity,
			r.HeatIndex,
		)
	}
	tw.Flush()
}
