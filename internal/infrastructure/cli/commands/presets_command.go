package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/app"
	"github.com/doeshing/afcover/internal/infrastructure/prompt"
)

// NewPresetsCommand lists the genre, style and regional presets the composer knows.
func NewPresetsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List genre, style and regional presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayPresets(cmd.OutOrStdout(), container.Composer.Presets())
			return nil
		},
	}
}

func displayPresets(out io.Writer, p *prompt.Presets) {
	fmt.Fprintf(out, "Genres:  %s\n", strings.Join(p.GenreNames(), ", "))
	fmt.Fprintln(out, "Styles:")
	for _, name := range p.StyleNames() {
		fmt.Fprintf(out, "  %-12s %s\n", name, p.Styles[name].Name)
	}
	fmt.Fprintln(out, "Regions:")
	for _, name := range p.RegionNames() {
		fmt.Fprintf(out, "  %-12s %s\n", name, p.Regions[name].Name)
	}
}
