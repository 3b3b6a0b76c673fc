package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/app"
	"github.com/doeshing/afcover/internal/application/ledger"
	"github.com/doeshing/afcover/internal/domain"
)

// NewUsageCommand creates the usage command
func NewUsageCommand(container *app.Container) *cobra.Command {
	var (
		date   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show today's spend, the daily limit and the remaining budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Ledger == nil {
				return errors.New(ErrLedgerUnavailable)
			}
			day := container.Ledger.Today()
			if date != "" {
				day = domain.Date(date)
			}
			usage, err := container.Ledger.Usage(cmd.Context(), day)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), usage)
			}
			displayUsage(cmd.OutOrStdout(), usage, container.Ledger.Location())
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day to show as YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func displayUsage(out io.Writer, u ledger.Usage, location string) {
	fmt.Fprintf(out, "Date:        %s\n", u.Entry.Date)
	fmt.Fprintf(out, "Spent:       %s\n", domain.FormatUSD(u.Entry.TotalSpent))
	fmt.Fprintf(out, "Generations: %d\n", u.Entry.GenerationCount)
	fmt.Fprintf(out, "Images:      %d\n", u.Entry.ImageCount)
	if u.Held.IsPositive() {
		fmt.Fprintf(out, "Reserved:    %s\n", domain.FormatUSD(u.Held))
	}
	fmt.Fprintf(out, "Daily limit: %s\n", domain.FormatUSD(u.Limit))
	fmt.Fprintf(out, "Remaining:   %s\n", domain.FormatUSD(u.Remaining))
	fmt.Fprintf(out, "Ledger:      %s\n", location)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
