package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/app"
	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect submitted generations",
	}

	cmd.AddCommand(newHistoryListCommand(container))
	cmd.AddCommand(newHistorySearchCommand(container))
	cmd.AddCommand(newHistoryExportCommand(container))
	cmd.AddCommand(newHistoryClearCommand(container))

	return cmd
}

func newHistoryListCommand(container *app.Container) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistoryEntries(cmd.OutOrStdout(), container.HistoryStore, limit, "")
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "Number of entries to display")
	return cmd
}

func newHistorySearchCommand(container *app.Container) *cobra.Command {
	var (
		query string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search generations by prompt, request id or status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" {
				return domain.NewValidationError("query", ErrQueryRequired)
			}
			return listHistoryEntries(cmd.OutOrStdout(), container.HistoryStore, limit, query)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Search keyword")
	cmd.Flags().IntVar(&limit, "limit", domain.DefaultHistorySearchLimit, "Maximum matches to display")
	return cmd
}

func newHistoryExportCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export history to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := container.HistoryStore
			if store == nil {
				return errors.New(ErrHistoryStoreUnavailable)
			}
			if err := store.ExportJSON(args[0]); err != nil {
				return fmt.Errorf("failed to export history to %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported history to %s\n", args[0])
			return nil
		},
	}
}

func newHistoryClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := container.HistoryStore
			if store == nil {
				return errors.New(ErrHistoryStoreUnavailable)
			}
			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgHistoryCleared)
			return nil
		},
	}
}

// listHistoryEntries prints one line per record, newest first.
func listHistoryEntries(out io.Writer, store ports.HistoryRepository, limit int, query string) error {
	if store == nil {
		return errors.New(ErrHistoryStoreUnavailable)
	}

	records, err := store.Records(limit, query)
	if err != nil {
		return fmt.Errorf("failed to retrieve history records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	for _, rec := range records {
		fmt.Fprintf(out, "%s | %-13s | %s x%d/%d | %s | %s\n",
			rec.Timestamp.Local().Format(TimestampFormat),
			rec.Stage,
			rec.Resolution,
			rec.Delivered,
			rec.Requested,
			domain.FormatUSD(rec.Cost),
			shorten(rec.Prompt, 60))
	}
	return nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
