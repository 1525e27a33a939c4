package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/monitor/internal/sensor"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type Dependencies struct {
	// Config is used when --config is not given. Nil means built-in defaults.
	Config *config.Config
	// Collector overrides the collector built from Config.Sensor.
	Collector sensor.Collector
	Client    *http.Client
}

func (d *Dependencies) config() *config.Config {
	if d.Config == nil {
		return config.Defaults()
	}
	return d.Config
}

func (d *Dependencies) client() *http.Client {
	if d.Client == nil {
		return &http.Client{Timeout: 10 * time.Second}
	}
	return d.Client
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "vitalsctl",
		Short:         "Measure vital signs from device sensors",
		Long:          "Run SpO2/heart rate, respiratory rate and blood pressure measurements in-process,\nor inspect a running vitalscan-monitor.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return nil
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			deps.Config = cfg
			return nil
		},
	}

	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(NewMeasureCmd(deps))
	rootCmd.AddCommand(NewKindsCmd(deps))
	rootCmd.AddCommand(NewStatsCmd(deps))

	return rootCmd
}
