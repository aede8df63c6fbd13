package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"organcore/pkg/domain"
)

var statsWarm []string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print identity cache sizes and collected metrics",
	Long: `Print the number of entries in every identity cache tier followed by the
metric families gathered in this process. Pass --warm with ids to resolve them
first, so the cache and operation counters have something to report.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(statsWarm))
		for _, raw := range statsWarm {
			id, err := domain.ParseID(raw)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			for _, id := range ids {
				if _, _, err := rt.svc.Resolver.Resolve(ctx, id); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIER\tENTRIES")
			c := rt.svc.Cache()
			for _, t := range c.Tiers() {
				fmt.Fprintf(w, "%s\t%d\n", t, c.Len(t))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			families, err := rt.metrics.Gather()
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			for _, line := range metricLines(families) {
				fmt.Fprintln(out, line)
			}
			return nil
		})
	},
}

func init() {
	statsCmd.Flags().StringSliceVar(&statsWarm, "warm", nil, "ids to resolve before reporting")
	rootCmd.AddCommand(statsCmd)
}

// metricLines renders counters as their value and histograms as their sample
// count, one series per line, sorted.
func metricLines(families []*dto.MetricFamily) []string {
	var lines []string
	for _, f := range families {
		for _, m := range f.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			series := f.GetName()
			if len(labels) > 0 {
				series += "{" + strings.Join(labels, ",") + "}"
			}
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				lines = append(lines, fmt.Sprintf("%s %g", series, m.GetCounter().GetValue()))
			case dto.MetricType_HISTOGRAM:
				lines = append(lines, fmt.Sprintf("%s count=%d", series, m.GetHistogram().GetSampleCount()))
			}
		}
	}
	sort.Strings(lines)
	return lines
}
