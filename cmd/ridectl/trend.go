package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

var trendMode string

var trendCmd = &cobra.Command{
	Use:   "trend <metric>",
	Short: "Show a metric across the timeline",
	Long: `Show one metric over time with a least-squares trend line, or the change
between consecutive progress reports with --mode between_reports.

METRICS:

  ` + metricList(),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trend, err := app.Trends.Trend(cmd.Context(), session(), domain.MetricID(args[0]), domain.TrendMode(trendMode))
		if err != nil {
			return fmt.Errorf("failed to build trend: %s", domain.Reason(err))
		}

		title := trend.Metric.Label
		if trend.Metric.Unit != "" {
			title += " (" + trend.Metric.Unit + ")"
		}
		color.Cyan("%s", title)
		if !trend.Enough {
			fmt.Println(trend.Message)
			return nil
		}

		faint := color.New(color.Faint)
		for _, p := range trend.Points {
			value := faint.Sprint("-")
			if p.Value != nil {
				value = formatValue(*p.Value, "")
			}
			fmt.Printf("  %s %s\n", padRight(p.Label, 18), value)
		}
		for _, b := range trend.Between {
			line := fmt.Sprintf("  %s %+g", padRight(b.Label, 24), b.Delta)
			switch {
			case b.Delta > 0:
				color.Green("%s", line)
			case b.Delta < 0:
				color.Red("%s", line)
			default:
				fmt.Println(line)
			}
		}
		if trend.Line != nil {
			fmt.Printf("Trend: %s (slope %.3f per snapshot)\n", trend.Line.Direction, trend.Line.Slope)
		}
		return nil
	},
}

func init() {
	trendCmd.Flags().StringVarP(&trendMode, "mode", "m", string(domain.TrendTimeSeries), "time_series or between_reports")
	rootCmd.AddCommand(trendCmd)
}

func metricList() string {
	ids := make([]string, 0, len(domain.Metrics()))
	for _, m := range domain.Metrics() {
		ids = append(ids, string(m.ID))
	}
	return strings.Join(ids, ", ")
}
