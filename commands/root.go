package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

var rootCmd = &cobra.Command{
	Use:     "cocos-mcp",
	Short:   "MCP server for the Cocos Creator editor",
	Long:    "cocos-mcp exposes Cocos Creator editor operations as MCP tools over streamable HTTP and stdio.",
	Version: mcp.ServerVersion,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, serveOptions{})
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mcp.ServerName, mcp.ServerVersion)
	},
}

// configFlag holds the --config flag value.
var configFlag string

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to the JSON or YAML config file (default: MCP_CONFIG_PATH or ~/.cocos-mcp/config/mcp_config.json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(versionCmd)
}
