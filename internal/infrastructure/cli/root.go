package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/afcover/internal/app"
	"github.com/doeshing/afcover/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCmd wires the cobra root command. The returned cleanup flushes
// metrics and closes the stores; call it once the command has finished.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, func() error, error) {
	container, err := app.BuildContainer(ctx, app.Options{Verbose: opts.Verbose, ConfigPath: opts.ConfigPath})
	if err != nil {
		return nil, nil, err
	}
	env := &runtimeEnv{
		container: container,
		prompter:  NewPrompter(nil, os.Stderr),
		getenv:    os.Getenv,
	}

	verbose := opts.Verbose
	root := &cobra.Command{
		Use:   "afcover",
		Short: "afcover - album cover generator on fal.ai Nano Banana Pro",
		Long: "afcover composes album cover prompts, estimates their cost and, only when confirmed,\n" +
			"generates them on fal.ai while keeping daily spend under a budget.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Parsed by main before the container is built; registered so cobra accepts it.
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", opts.Verbose, "Enable debug logging")

	root.AddCommand(newGenerateCommand(env))
	root.AddCommand(newAskCommand(env))
	root.AddCommand(newBatchCommand(env))
	root.AddCommand(commands.NewUsageCommand(container))
	root.AddCommand(commands.NewReportCommand(container))
	root.AddCommand(commands.NewEstimateCommand(container))
	root.AddCommand(commands.NewHistoryCommand(container))
	root.AddCommand(commands.NewConfigCommand(container))
	root.AddCommand(commands.NewDoctorCommand(container))
	root.AddCommand(commands.NewPresetsCommand(container))
	root.AddCommand(commands.NewLibraryCommand(container))
	root.AddCommand(commands.NewVersionCommand())
	return root, container.Close, nil
}
