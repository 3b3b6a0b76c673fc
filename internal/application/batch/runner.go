package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/afcover/internal/application/generate"
	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// Lifecycle runs one generation.
type Lifecycle interface {
	Run(ctx context.Context, rr generate.RunRequest) (domain.Manifest, error)
}

// Runner fans jobs out over a bounded number of workers.
type Runner struct {
	Lifecycle Lifecycle
	Workers   int
	Logger    ports.Logger
}

// Outcome is the result of one job.
type Outcome struct {
	Job      Job
	Manifest domain.Manifest
	Err      error
}

// Summary aggregates outcomes.
type Summary struct {
	Jobs      int
	Succeeded int
	Failed    int
	Images    int
	Spent     domain.Money
	Duration  time.Duration
}

// Run executes every job with template's gate, key, output dir and poll
// settings. A failing job never stops the others; outcomes keep job order.
func (r *Runner) Run(ctx context.Context, jobs []Job, template generate.RunRequest) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.workers())
	for i, job := range jobs {
		g.Go(func() error {
			rr := template
			rr.Request = job.Request
			rr.BaseName = job.BaseName
			m, err := r.Lifecycle.Run(ctx, rr)
			outcomes[i] = Outcome{Job: job, Manifest: m, Err: err}
			if err != nil && r.Logger != nil {
				r.Logger.Warn("batch job failed", map[string]interface{}{
					"index": job.Index,
					"name":  job.BaseName,
					"stage": string(m.Stage),
					"error": err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Summarize totals a batch.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Jobs: len(outcomes), Spent: domain.ZeroMoney}
	for _, o := range outcomes {
		if o.Err == nil {
			s.Succeeded++
		} else {
			s.Failed++
		}
		if o.Manifest.Result != nil {
			s.Images += len(o.Manifest.Result.LocalPaths)
			s.Spent = s.Spent.Add(o.Manifest.Result.ActualCost)
		}
		if o.Manifest.Duration > s.Duration {
			s.Duration = o.Manifest.Duration
		}
	}
	return s
}

func (r *Runner) workers() int {
	if r.Workers < 1 {
		return 1
	}
	return r.Workers
}
