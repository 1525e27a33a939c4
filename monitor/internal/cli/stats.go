package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitalscan/vitalscan/monitor/internal/metrics"
)

func NewStatsCmd(deps *Dependencies) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show measurement counters from a running monitor",
		Long:  "Scrape the monitor's /metrics endpoint and summarize outcomes per measurement kind.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimRight(server, "/") + "/metrics"
			families, err := metrics.Fetch(cmd.Context(), deps.client(), url)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", url, err)
			}
			formatter := NewFormatter(cmd.OutOrStdout())
			return formatter.Stats(families)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8080", "Monitor base URL")

	return cmd
}
