package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"organcore/pkg/domain"
)

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find people and organizations by name",
	Long: `List every person whose full name and every organization whose name
contains the query, ignoring case, ordered by id.

Use --json for machine-readable output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			organs, err := rt.svc.Resolver.Search(ctx, args[0])
			if err != nil {
				return err
			}
			if searchJSON {
				reprs := make([]any, 0, len(organs))
				for _, o := range organs {
					reprs = append(reprs, o.Representation())
				}
				return writeJSON(cmd, reprs)
			}
			if len(organs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tNAME")
			for _, o := range organs {
				fmt.Fprintf(w, "%d\t%s\t%s\n", o.OrganID(), o.Kind(), displayName(o))
			}
			return w.Flush()
		})
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(searchCmd)
}

func displayName(o domain.Organ) string {
	switch v := o.(type) {
	case domain.Person:
		return v.FullName()
	case domain.Organizational:
		return v.Org().Name
	default:
		return o.String()
	}
}
