package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/app"
	"github.com/doeshing/afcover/internal/application/generate"
	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/infrastructure/prompt"
	"github.com/doeshing/afcover/internal/ports"
)

// runtimeEnv is what the generation commands need beyond the container.
type runtimeEnv struct {
	container *app.Container
	prompter  ports.ConfirmationPrompter
	getenv    func(string) string
}

// coverFlags are the structured prompt inputs.
type coverFlags struct {
	params domain.CoverParams
	name   string
}

func (f *coverFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.params.Title, "title", "", "Release title")
	flags.StringVar(&f.params.Artist, "artist", "", "Artist name")
	flags.StringVar(&f.params.Genre, "genre", "", "Genre preset (see 'afcover presets')")
	flags.StringVar(&f.params.Style, "style", "", "Cover style preset")
	flags.StringVar(&f.params.Regional, "regional", "", "Regional modifier")
	flags.StringSliceVar(&f.params.Colors, "color", nil, "Featured color (repeatable)")
	flags.StringVar(&f.params.Subject, "subject", "", "Main subject of the artwork")
	flags.StringVar(&f.params.Custom, "custom", "", "Extra prompt text")
	flags.StringVar(&f.params.Avoid, "avoid", "", "Things to keep out of the image")
	flags.StringVar(&f.params.ReleaseType, "release-type", "", "album, single or ep")
	flags.StringVar(&f.name, "name", "", "Base name of the downloaded files")
}

func (f *coverFlags) baseName() string {
	if f.name != "" {
		return f.name
	}
	return prompt.BaseName(f.params)
}

func newGenerateCommand(env *runtimeEnv) *cobra.Command {
	var (
		cover coverFlags
		req   requestFlags
		gate  gateFlags
	)

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate an album cover (dry run unless --confirm)",
		Long: "Generate composes a prompt from the structured flags, or uses the positional prompt as-is,\n" +
			"prints the cost estimate and, only with --confirm, submits the job and downloads the images.",
		Example: "  afcover generate --title Watan --artist \"Ahmad Zahir\" --style traditional --regional herati\n" +
			"  afcover generate \"neon desert highway at dusk\" -r 4K -n 2 --confirm",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := env.container.Config
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				composed, err := env.container.Composer.Compose(cover.params)
				if err != nil {
					return err
				}
				text = composed
			}
			opts, err := req.options(cmd, cfg, env.container.Library)
			if err != nil {
				return err
			}
			request, err := domain.NewGenerationRequest(text, opts)
			if err != nil {
				return err
			}
			return runLifecycle(cmd, env, request, cover.baseName(), gate, &req)
		},
	}

	cover.register(cmd)
	req.register(cmd)
	gate.register(cmd)
	return cmd
}

// runLifecycle resolves the gate, runs one lifecycle and renders the manifest.
// The manifest is rendered even when the run fails.
func runLifecycle(cmd *cobra.Command, env *runtimeEnv, request domain.GenerationRequest, baseName string, gf gateFlags, rf *requestFlags) error {
	c := env.container
	ctx := cmd.Context()
	gate, err := resolveGate(ctx, gf, env.getenv, env.prompter, func(ctx context.Context) (domain.Estimate, domain.Money, error) {
		return c.Generator.Preview(ctx, request)
	})
	if err != nil {
		return err
	}
	poll, err := rf.pollSettings(c.Config)
	if err != nil {
		return err
	}

	rr := generate.RunRequest{
		Request:   request,
		Gate:      gate,
		APIKey:    c.APIKey,
		OutputDir: rf.outputDirectory(c.Config),
		BaseName:  baseName,
		Poll:      poll,
	}

	var spinner *Spinner
	if gate == domain.Confirmed && !rf.json {
		spinner = NewSpinner(cmd.ErrOrStderr())
		rr.Progress = spinner.Update
		spinner.Start()
	}
	manifest, runErr := c.Generator.Run(ctx, rr)
	if spinner != nil {
		spinner.Stop()
	}

	out := cmd.OutOrStdout()
	if rf.json {
		if err := RenderJSON(out, manifest); err != nil {
			return err
		}
	} else {
		RenderManifest(out, manifest)
	}
	return runErr
}
