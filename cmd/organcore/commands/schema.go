package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Apply the DDL bundle for the configured driver",
	Long: `Create every registry table that does not exist yet. The statements are
idempotent, so running schema against an initialised store is a no-op.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.db.ApplySchema(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", rt.db.Driver())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
