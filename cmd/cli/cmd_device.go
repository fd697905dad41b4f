package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/sguter90/heatmaestro/pkg/api"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sguter90/heatmaestro/pkg/simulator"
	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Emulate the field device",
	Long: `Emulate the field device: poll the sample interval from the server, post a
reading each interval and keep the cadence independent of request latency.
Readings are tagged with an origin the server treats as real hardware.`,
	RunE: runDevice,
}

var (
	deviceOrigin string
	deviceCount  int
)

func init() {
	rootCmd.AddCommand(deviceCmd)

	deviceCmd.Flags().StringVar(&deviceOrigin, "origin", "raspberry-emulator", "origin tag of the posted readings")
	deviceCmd.Flags().IntVar(&deviceCount, "count", 0, "stop after this many readings (0 = run until interrupted)")
}

func runDevice(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emu := &deviceEmulator{
		client:    newAPIClient(),
		generator: simulator.NewGenerator(simulator.Options{}),
		origin:    deviceOrigin,
		interval:  models.DefaultIntervalSeconds * time.Second,
		out:       cmd.OutOrStdout(),
	}
	return emu.Run(ctx, deviceCount)
}

// deviceEmulator reproduces the firmware loop of the field device
type deviceEmulator struct {
	client    *api.Client
	generator *simulator.Generator
	origin    string
	interval  time.Duration
	out       io.Writer
}

// Run posts readings until ctx is done or count readings were sent
func (d *deviceEmulator) Run(ctx context.Context, count int) error {
	for sent := 0; count == 0 || sent < count; {
		start := time.Now()

		d.refreshInterval(ctx)
		if d.post(ctx) {
			sent++
		}

		if count > 0 && sent >= count {
			return nil
		}

		// keep the cadence exact regardless of request latency
		wait := d.interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
	return nil
}

// refreshInterval keeps the previous interval when the server cannot be asked
func (d *deviceEmulator) refreshInterval(ctx context.Context) {
	secs, err := d.client.Interval(ctx)
	if err != nil {
		fmt.Fprintf(d.out, "⚠ Could not fetch interval: %v\n", err)
		return
	}
	if secs > 0 {
		d.interval = time.Duration(secs) * time.Second
	}
}

func (d *deviceEmulator) post(ctx context.Context) bool {
	in := d.generator.Generate()

	resp, err := d.client.PostReading(ctx, api.ReadingRequest{
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		Origin:      d.origin,
	})
	if err != nil {
		fmt.Fprintf(d.out, "❌ Failed to send reading: %v\n", err)
		return false
	}

	fmt.Fprintf(d.out, "✓ %s | every %s\n", resp.Reading, d.interval)
	if resp.Alerts.Any() {
		fmt.Fprintf(d.out, "⚠ Limits exceeded: temperature=%t humidity=%t heatIndex=%t\n",
			resp.Alerts.Temperature, resp.Alerts.Humidity, resp.Alerts.HeatIndex)
	}
	return true
}
