package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sguter90/heatmaestro/pkg/api"
	"github.com/sguter90/heatmaestro/pkg/settings"
	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "heatmaestro",
	Short: "HeatMaestro - Storage Room Heat Index Monitor",
	Long: `HeatMaestro collects temperature and humidity readings from a field device
or a built-in simulator, computes a heat index for the configured room and
raises alerts when configured limits are exceeded.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", settings.Load().Client.URL,
		"base URL of a running HeatMaestro server (env HEATMAESTRO_URL)")
}

// newAPIClient returns a client for the commands that talk to a running server
func newAPIClient() *api.Client {
	return api.NewClient(serverURL, api.WithTimeout(10*time.Second))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
