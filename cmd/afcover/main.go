package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/infrastructure/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cli.Options{Verbose: isVerbose(os.Args[1:])}

	root, cleanup, err := cli.NewRootCmd(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return cli.ExitCode(err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return cli.ExitCode(err)
	}
	return 0
}

func isVerbose(args []string) bool {
	debug := os.Getenv(domain.EnvDebug)
	if strings.EqualFold(debug, "1") || strings.EqualFold(debug, "true") {
		return true
	}
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if arg == "-v" || arg == "--verbose" || arg == "--verbose=true" {
			return true
		}
	}
	return false
}
