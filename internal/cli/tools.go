package cli

import (
	"encoding/json"
	"fmt"

	"github.com/saeedalam/mongo-mcp/internal/mcp"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog as JSON",
	Long: `Print the tool catalog exactly as the server answers tools/list.

No database connection is made.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := json.MarshalIndent(map[string]interface{}{
			"tools": mcp.DefaultRegistry().Infos(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
