package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/application/batch"
	"github.com/doeshing/afcover/internal/application/generate"
	"github.com/doeshing/afcover/internal/domain"
)

func newBatchCommand(env *runtimeEnv) *cobra.Command {
	var (
		workers int
		req     requestFlags
		gate    gateFlags
	)

	cmd := &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Generate several covers from a YAML file against one budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env.container
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			file, err := batch.ParseFile(data)
			if err != nil {
				return err
			}
			opts, err := req.options(cmd, c.Config, c.Library)
			if err != nil {
				return err
			}
			jobs, err := file.Jobs(c.Composer, opts)
			if err != nil {
				return err
			}
			poll, err := req.pollSettings(c.Config)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			g, err := resolveGate(ctx, gate, env.getenv, env.prompter, func(ctx context.Context) (domain.Estimate, domain.Money, error) {
				return batchPreview(ctx, c.Generator, jobs)
			})
			if err != nil {
				return err
			}

			runner := *c.BatchRunner
			if workers > 0 {
				runner.Workers = workers
			}
			outcomes := runner.Run(ctx, jobs, generate.RunRequest{
				Gate:      g,
				APIKey:    c.APIKey,
				OutputDir: req.outputDirectory(c.Config),
				Poll:      poll,
			})

			if req.json {
				if err := RenderJSON(cmd.OutOrStdout(), manifests(outcomes)); err != nil {
					return err
				}
			} else {
				RenderBatch(cmd.OutOrStdout(), outcomes)
			}
			return batchError(outcomes)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent lifecycles (default from config)")
	req.register(cmd)
	gate.register(cmd)
	return cmd
}

// batchPreview sums the estimates of every job.
func batchPreview(ctx context.Context, svc *generate.Service, jobs []batch.Job) (domain.Estimate, domain.Money, error) {
	total := domain.Estimate{PerImage: domain.ZeroMoney, Total: domain.ZeroMoney}
	var remaining domain.Money
	for i, job := range jobs {
		est, rem, err := svc.Preview(ctx, job.Request)
		if err != nil {
			return total, domain.ZeroMoney, err
		}
		if i == 0 {
			total.Resolution = est.Resolution
			total.PerImage = est.PerImage
			remaining = rem
		}
		total.Images += est.Images
		total.Total = total.Total.Add(est.Total)
	}
	return total, remaining, nil
}

func manifests(outcomes []batch.Outcome) []domain.Manifest {
	out := make([]domain.Manifest, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Manifest
	}
	return out
}

// batchError reports the first failure so the exit code reflects its kind.
func batchError(outcomes []batch.Outcome) error {
	var first error
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			if first == nil {
				first = o.Err
			}
		}
	}
	if first == nil {
		return nil
	}
	return fmt.Errorf("%d of %d batch job(s) failed, first: %w", failed, len(outcomes), first)
}
