package cli

import (
	"github.com/spf13/cobra"
)

func NewKindsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List measurement kinds with their sensor and duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := NewFormatter(cmd.OutOrStdout())
			return formatter.Kinds(deps.config().Measurement)
		},
	}
}
