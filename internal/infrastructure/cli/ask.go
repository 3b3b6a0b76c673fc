package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/infrastructure/prompt"
)

func newAskCommand(env *runtimeEnv) *cobra.Command {
	var (
		name string
		req  requestFlags
		gate gateFlags
	)

	cmd := &cobra.Command{
		Use:   "ask <request>",
		Short: "Describe the cover in plain words",
		Example: "  afcover ask 'modern kabuli cover for \"Watan\" by Ahmad Zahir, 2 variations in 4K'\n" +
			"  afcover ask 'traditional cover with gold details' --confirm",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env.container
			parsed, err := c.Parser.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			text, err := c.Composer.Compose(parsed.Params)
			if err != nil {
				return err
			}

			opts, err := req.options(cmd, c.Config, c.Library)
			if err != nil {
				return err
			}
			if req.resolution == "" {
				opts.Resolution = string(parsed.Resolution)
			}
			if !cmd.Flags().Changed("variations") {
				opts.NumVariations = parsed.NumVariations
			}
			request, err := domain.NewGenerationRequest(text, opts)
			if err != nil {
				return err
			}

			if !req.json {
				fmt.Fprintln(cmd.OutOrStdout(), describeIntent(parsed))
			}
			base := name
			if base == "" {
				base = prompt.BaseName(parsed.Params)
			}
			return runLifecycle(cmd, env, request, base, gate, &req)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Base name of the downloaded files")
	req.register(cmd)
	gate.register(cmd)
	return cmd
}

func describeIntent(in domain.CoverIntent) string {
	p := in.Params
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+value)
		}
	}
	add("title", p.Title)
	add("artist", p.Artist)
	add("genre", p.Genre)
	add("style", p.Style)
	add("regional", p.Regional)
	add("custom", p.Custom)
	add("resolution", string(in.Resolution))
	add("variations", fmt.Sprint(in.NumVariations))
	return "Understood: " + strings.Join(parts, ", ")
}
