package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sguter90/heatmaestro/pkg/api"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the environmental configuration",
	Long:  `Show, change and list the room configuration used for heat index computation.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save a new active configuration",
	Long: `Interactively enter a new configuration, or load one from a YAML or JSON
file with --file. The current values are offered as defaults.`,
	RunE: runConfigSet,
}

var configHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved configurations",
	RunE:  runConfigHistory,
}

var (
	configFile         string
	configHistoryLimit int
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configHistoryCmd)

	configSetCmd.Flags().StringVarP(&configFile, "file", "f", "", "read the configuration from a YAML or JSON file")
	configHistoryCmd.Flags().IntVar(&configHistoryLimit, "limit", 10, "number of configurations to list (0 = all)")
}

// configField describes one prompt of the interactive editor
type configField struct {
	key   string
	label string
	value func(models.EnvironmentalConfig) string
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var configFields = []configField{
	{"width", "Room width (m)", func(c models.EnvironmentalConfig) string { return formatFloat(c.Width) }},
	{"length", "Room length (m)", func(c models.EnvironmentalConfig) string { return formatFloat(c.Length) }},
	{"height", "Room height (m)", func(c models.EnvironmentalConfig) string { return formatFloat(c.Height) }},
	{"peopleMin", "Minimum people", func(c models.EnvironmentalConfig) string { return strconv.Itoa(c.PeopleMin) }},
	{"peopleMax", "Maximum people", func(c models.EnvironmentalConfig) string { return strconv.Itoa(c.PeopleMax) }},
	{"materialType", "Material type", func(c models.EnvironmentalConfig) string { return string(c.MaterialType) }},
	{"materialCount", "Material units", func(c models.EnvironmentalConfig) string { return strconv.Itoa(c.MaterialCount) }},
	{"materialWidth", "Unit width (m)", func(c models.EnvironmentalConfig) string { return formatFloat(c.MaterialWidth) }},
	{"materialLength", "Unit length (m)", func(c models.EnvironmentalConfig) string { return formatFloat(c.MaterialLength) }},
	{"materialHeight", "Unit height (m)", func(c models.EnvironmentalConfig) string { return formatFloat(c.MaterialHeight) }},
	{"tempLimit", "Temperature limit (°C)", func(c models.EnvironmentalConfig) string { return formatFloat(c.TempLimit) }},
	{"humidityLimit", "Humidity limit (%)", func(c models.EnvironmentalConfig) string { return formatFloat(c.HumidityLimit) }},
	{"heatIndexLimit", "Heat index limit", func(c models.EnvironmentalConfig) string { return formatFloat(c.HeatIndexLimit) }},
	{"interval", "Sample interval (s)", func(c models.EnvironmentalConfig) string { return strconv.Itoa(c.IntervalSeconds) }},
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	client := newAPIClient()

	cfg, err := client.ActiveConfig(cmd.Context())
	if api.IsNotFound(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "No configuration saved yet, the defaults are in effect:")
		defaults := models.DefaultConfig()
		cfg, err = &defaults, nil
	}
	if err != nil {
		return fmt.Errorf("failed to load active config: %w", err)
	}

	printConfig(cmd.OutOrStdout(), *cfg)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	client := newAPIClient()
	out := cmd.OutOrStdout()

	var (
		cfg models.EnvironmentalConfig
		err error
	)
	if configFile != "" {
		cfg, err = loadConfigFile(configFile)
	} else {
		current, loadErr := client.ActiveConfig(cmd.Context())
		defaults := models.DefaultConfig()
		switch {
		case loadErr == nil:
			defaults = *current
		case !api.IsNotFound(loadErr):
			return fmt.Errorf("failed to load active config: %w", loadErr)
		}
		cfg, err = collectConfig(bufio.NewReader(cmd.InOrStdin()), out, defaults)
	}
	if err != nil {
		return err
	}

	saved, err := client.SaveConfig(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(out, "\n✓ Configuration %s saved and active\n", saved.ID)
	return nil
}

func runConfigHistory(cmd *cobra.Command, args []string) error {
	history, err := newAPIClient().ConfigHistory(cmd.Context(), configHistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load config history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(history) == 0 {
		fmt.Fprintln(out, "No configurations saved yet.")
		return nil
	}

	for i, cfg := range history {
		marker := " "
		if cfg.Active {
			marker = "*"
		}
		fmt.Fprintf(out, "%s [%d] %s  %s  %gx%gx%g m  %s x%d  interval=%ds\n",
			marker,
			i+1,
			cfg.CreatedAt.Format("2006-01-02 15:04:05"),
			cfg.ID,
			cfg.Width, cfg.Length, cfg.Height,
			cfg.MaterialType, cfg.MaterialCount,
			cfg.IntervalSeconds,
		)
	}
	return nil
}

// collectConfig prompts for every field, offering the values of defaults
func collectConfig(reader *bufio.Reader, out io.Writer, defaults models.EnvironmentalConfig) (models.EnvironmentalConfig, error) {
	fmt.Fprintln(out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(out, "New Environmental Configuration")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	values := make(map[string]string, len(configFields))
	for _, f := range configFields {
		def := f.value(defaults)
		fmt.Fprintf(out, "%s [%s]: ", f.label, def)

		input, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return models.EnvironmentalConfig{}, fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			input = def
		}
		values[f.key] = input
	}

	data, err := json.Marshal(values)
	if err != nil {
		return models.EnvironmentalConfig{}, err
	}
	return models.ParseConfigJSON(data)
}

// loadConfigFile reads a configuration with the same keys as the API body.
// Files ending in .json are parsed as JSON, everything else as YAML.
func loadConfigFile(path string) (models.EnvironmentalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.EnvironmentalConfig{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return models.ParseConfigJSON(data)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return models.EnvironmentalConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return models.EnvironmentalConfig{}, fmt.Errorf("failed to convert %s: %w", path, err)
	}
	return models.ParseConfigJSON(body)
}

func printConfig(out io.Writer, cfg models.EnvironmentalConfig) {
	fmt.Fprintln(out, "\n"+strings.Repeat("=", 60))
	if cfg.Active {
		fmt.Fprintf(out, "Active Configuration %s (saved %s)\n", cfg.ID, cfg.CreatedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(out, "Default Configuration")
	}
	fmt.Fprintln(out, strings.Repeat("=", 60))

	for _, f := range configFields {
		fmt.Fprintf(out, "  %-24s %s\n", f.label+":", f.value(cfg))
	}
	fmt.Fprintln(out, strings.Repeat("=", 60))
}
