package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/afcover/internal/application/batch"
	"github.com/doeshing/afcover/internal/domain"
)

// RenderManifest prints a lifecycle manifest in a friendly, ASCII-only format.
func RenderManifest(out io.Writer, m domain.Manifest) {
	est := m.Estimate
	switch m.Stage {
	case domain.StageReportedOnly:
		fmt.Fprintln(out, "DRY RUN: nothing was submitted")
	case domain.StageRejected:
		fmt.Fprintln(out, "REJECTED: nothing was submitted")
	default:
		id := ""
		if m.Job != nil {
			id = " (" + m.Job.RequestID + ")"
		}
		fmt.Fprintf(out, "Generation %s%s\n", strings.ReplaceAll(string(m.Stage), "_", " "), id)
	}

	fmt.Fprintf(out, "Prompt: %s\n", truncate(m.Request.Prompt, 160))
	if m.Request.IsEdit() {
		fmt.Fprintf(out, "Mode: edit with %d reference image(s)\n", len(m.Request.ReferenceImages))
	}
	fmt.Fprintf(out, "Estimate: %d x %s @ %s = %s\n", est.Images, est.Resolution, domain.FormatUSD(est.PerImage), domain.FormatUSD(est.Total))

	if m.Result != nil && len(m.Artifacts) > 0 {
		fmt.Fprintln(out, "Images:")
		for _, a := range m.Artifacts {
			fmt.Fprintf(out, "  %d. %s (%s)\n", a.Index, a.Path, humanize.Bytes(uint64(a.Bytes)))
		}
	}
	if len(m.Missing) > 0 {
		fmt.Fprintf(out, "Missing images: %s\n", joinInts(m.Missing))
	}
	if m.Result != nil && m.Stage.Charged() {
		fmt.Fprintf(out, "Charged: %s\n", domain.FormatUSD(m.Result.ActualCost))
	}
	if m.Result != nil && m.Result.Detail != "" && !m.Stage.Charged() {
		fmt.Fprintf(out, "Detail: %s\n", m.Result.Detail)
	}
	fmt.Fprintf(out, "Daily limit: %s  Remaining: %s\n", domain.FormatUSD(m.Limit), domain.FormatUSD(m.Remaining))
	if m.Stage == domain.StageReportedOnly {
		fmt.Fprintln(out, "Re-run with --confirm (or --ask-confirm) to generate.")
	}
}

// RenderJSON writes v as indented JSON.
func RenderJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderBatch prints one line per job and a summary.
func RenderBatch(out io.Writer, outcomes []batch.Outcome) {
	for _, o := range outcomes {
		status := string(o.Manifest.Stage)
		if o.Err != nil {
			status += ": " + o.Err.Error()
		}
		fmt.Fprintf(out, "[%d] %-24s %s %s\n", o.Job.Index, o.Job.BaseName, domain.FormatUSD(o.Manifest.Estimate.Total), status)
	}
	s := batch.Summarize(outcomes)
	fmt.Fprintf(out, "\n%d job(s): %d ok, %d failed, %d image(s), charged %s\n", s.Jobs, s.Succeeded, s.Failed, s.Images, domain.FormatUSD(s.Spent))
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
