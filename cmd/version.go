package cmd

import (
	"fmt"

	"payment-mcp/pkg/version"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the MCP server",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Name, version.GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
