package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"datasync/internal/core"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "列出内置的读写插件",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := core.RegisterAllBuiltinPlugins(); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
		for _, p := range core.DefaultRegistry.GetPluginInfo() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Type, p.Description)
		}
		return w.Flush()
	},
}
