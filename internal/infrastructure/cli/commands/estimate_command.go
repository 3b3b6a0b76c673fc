package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/app"
	"github.com/doeshing/afcover/internal/domain"
)

// estimateScenarios are the reference rows printed by the estimate command.
var estimateScenarios = []struct {
	resolution domain.Resolution
	images     int
}{
	{domain.Resolution1K, 1},
	{domain.Resolution4K, 1},
	{domain.Resolution1K, 4},
	{domain.Resolution4K, 4},
}

// NewEstimateCommand creates the estimate command. It never touches the network or the ledger.
func NewEstimateCommand(container *app.Container) *cobra.Command {
	var (
		resolution string
		variations int
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Show what generations cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			displayScenarios(out)

			if !cmd.Flags().Changed("resolution") && !cmd.Flags().Changed("variations") {
				return nil
			}
			opts := domain.RequestOptions{
				Resolution:    container.Config.Generation.Resolution,
				NumVariations: container.Config.Generation.NumVariations,
				OutputFormat:  container.Config.Generation.OutputFormat,
			}
			if resolution != "" {
				opts.Resolution = resolution
			}
			if cmd.Flags().Changed("variations") {
				opts.NumVariations = variations
			}
			req, err := domain.NewGenerationRequest("estimate", opts)
			if err != nil {
				return err
			}
			est := domain.EstimateCost(req)
			fmt.Fprintf(out, "\nYour request: %d x %s = %s\n", est.Images, est.Resolution, domain.FormatUSD(est.Total))
			return nil
		},
	}

	cmd.Flags().StringVarP(&resolution, "resolution", "r", "", "Resolution: 1K, 2K or 4K")
	cmd.Flags().IntVarP(&variations, "variations", "n", 0, "Number of images, clamped to 1-4")
	return cmd
}

func displayScenarios(out io.Writer) {
	fmt.Fprintf(out, "%-10s  %6s  %9s  %8s\n", "Resolution", "Images", "Per image", "Total")
	for _, s := range estimateScenarios {
		fmt.Fprintf(out, "%-10s  %6d  %9s  %8s\n",
			s.resolution,
			s.images,
			domain.FormatUSD(domain.PerImageRate(s.resolution)),
			domain.FormatUSD(domain.CostFor(s.resolution, s.images)))
	}
}
