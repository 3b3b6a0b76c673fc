package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// Prompter implements ConfirmationPrompter using stdin/stdout.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Enabled indicates the prompter is interactive.
func (p *Prompter) Enabled() bool {
	return true
}

// Confirm shows the estimate and asks before spending money.
func (p *Prompter) Confirm(estimate domain.Estimate, remaining domain.Money) (bool, error) {
	fmt.Fprintf(p.out, "\nThis will generate %d image(s) at %s for %s.\n",
		estimate.Images, estimate.Resolution, domain.FormatUSD(estimate.Total))
	fmt.Fprintf(p.out, "Remaining budget today: %s\n", domain.FormatUSD(remaining))
	if estimate.Total.GreaterThan(remaining) {
		fmt.Fprintln(p.out, "Warning: the estimate exceeds the remaining budget; the request will be rejected.")
	}
	return p.ask("[y/N]: ")
}

func (p *Prompter) ask(prompt string) (bool, error) {
	fmt.Fprint(p.out, "Continue? ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
