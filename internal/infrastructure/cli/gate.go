package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// gateFlags are the confirmation switches shared by generate, ask and batch.
type gateFlags struct {
	dryRun     bool
	confirm    bool
	askConfirm bool
}

func (g *gateFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&g.dryRun, "dry-run", false, "Only print the estimate (wins over every other switch)")
	cmd.Flags().BoolVar(&g.confirm, "confirm", false, "Submit the chargeable request")
	cmd.Flags().BoolVar(&g.askConfirm, "ask-confirm", false, "Show the estimate and ask before submitting")
}

// previewFunc returns the estimate and today's remaining budget.
type previewFunc func(ctx context.Context) (domain.Estimate, domain.Money, error)

// resolveGate turns flags and environment into the typed gate. A forced dry
// run beats everything, then explicit confirmation, then an interactive prompt.
// Anything else is a dry run.
func resolveGate(ctx context.Context, g gateFlags, getenv func(string) string, prompter ports.ConfirmationPrompter, preview previewFunc) (domain.Confirmation, error) {
	if g.dryRun || envTrue(getenv(domain.EnvDryRun)) {
		return domain.DryRun, nil
	}
	if g.confirm || strings.TrimSpace(getenv(domain.EnvSkipConfirm)) == "1" {
		return domain.Confirmed, nil
	}
	if g.askConfirm && prompter != nil && prompter.Enabled() {
		est, remaining, err := preview(ctx)
		if err != nil {
			return domain.DryRun, err
		}
		ok, err := prompter.Confirm(est, remaining)
		if err != nil {
			return domain.DryRun, err
		}
		if ok {
			return domain.Confirmed, nil
		}
	}
	return domain.DryRun, nil
}

func envTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
