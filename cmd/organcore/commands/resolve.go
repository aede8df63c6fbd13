package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"organcore/pkg/domain"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Print the organ that owns an id",
	Long: `Determine whether the id belongs to a person, nation, business or plain
organization and print its representation as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := domain.ParseID(args[0])
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			organ, found, err := rt.svc.Resolver.Resolve(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("organ %d: %w", id, domain.ErrNotFound)
			}
			return writeJSON(cmd, organ.Representation())
		})
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
