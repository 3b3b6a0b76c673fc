package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/app"
	"github.com/doeshing/afcover/internal/application/ledger"
	"github.com/doeshing/afcover/internal/domain"
)

// NewReportCommand creates the report command
func NewReportCommand(container *app.Container) *cobra.Command {
	var (
		days   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize spend over the last N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Ledger == nil {
				return errors.New(ErrLedgerUnavailable)
			}
			report, err := container.Ledger.Report(cmd.Context(), days)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			displayReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", domain.DefaultReportDays, "Number of days, ending today")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func displayReport(out io.Writer, r ledger.Report) {
	fmt.Fprintf(out, "Spend report %s to %s\n\n", r.From, r.To)
	fmt.Fprintf(out, "%-10s  %8s  %11s  %6s\n", "Date", "Spent", "Generations", "Images")
	for _, d := range r.Days {
		fmt.Fprintf(out, "%-10s  %8s  %11d  %6d\n", d.Date, domain.FormatUSD(d.TotalSpent), d.GenerationCount, d.ImageCount)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Total:         %s (%d generations, %d images)\n", domain.FormatUSD(r.Total), r.Generations, r.Images)
	fmt.Fprintf(out, "Average/day:   %s\n", domain.FormatUSD(r.DailyAverage))
	fmt.Fprintf(out, "Today:         %s of %s (%s%%)\n", domain.FormatUSD(r.Today.TotalSpent), domain.FormatUSD(r.Limit), r.TodayPercent.StringFixed(1))
}
