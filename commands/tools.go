package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cocos-mcp/cocos-mcp-go/config"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

var (
	toolsWithAliases  bool
	toolsWithInternal bool
	initConfigForce   bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.NewConfig()
		if configFlag != "" {
			loaded, err := config.LoadConfig(configFlag)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		// Audit output is not wanted for a catalog dump.
		cfg.Logging.AuditPath = ""

		rt, err := newRuntime(cfg, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		catalog := catalogOutput{Tools: make([]mcp.Tool, 0)}
		for _, tool := range rt.manager.GetTools() {
			if !toolsWithInternal && rt.isInternal(tool.Name) {
				continue
			}
			catalog.Tools = append(catalog.Tools, tool)
		}
		sort.Slice(catalog.Tools, func(i, j int) bool { return catalog.Tools[i].Name < catalog.Tools[j].Name })

		if toolsWithAliases {
			aliases := rt.manager.Aliases()
			catalog.Aliases = make(map[string]aliasOutput, len(aliases))
			for name, alias := range aliases {
				catalog.Aliases[name] = aliasOutput{Tool: alias.Tool, Action: alias.Action}
			}
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(catalog)
	},
}

type catalogOutput struct {
	Tools   []mcp.Tool             `json:"tools"`
	Aliases map[string]aliasOutput `json:"aliases,omitempty"`
}

type aliasOutput struct {
	Tool   string `json:"tool"`
	Action string `json:"action,omitempty"`
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFlag
		if path == "" {
			resolved, err := config.ResolveConfigPath()
			if err != nil {
				return err
			}
			path = resolved
		}

		if initConfigForce {
			if err := config.SaveConfig(config.NewConfig(), path); err != nil {
				return err
			}
		} else if err := config.EnsureDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
		return nil
	},
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsWithAliases, "aliases", false, "Include the legacy tool name table")
	toolsCmd.Flags().BoolVar(&toolsWithInternal, "internal", false, "Include the editor bridge tools")
	initConfigCmd.Flags().BoolVar(&initConfigForce, "force", false, "Overwrite an existing config file")
}
