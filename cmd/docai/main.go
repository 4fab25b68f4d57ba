// Command docai is the command-line client of DocumentAI. It keeps the
// signed-in session in a local store and talks to the document API with the
// session credential.
//
// @title                       docai session agent
// @version                     1.0
// @description                 Local agent exposing the session store and the authenticated document API.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/documentai/docai/internal/pkg/config"
	"github.com/documentai/docai/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code: 0 on
// success, 1 when the command failed and 2 on a usage error.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(&cli{stdin: stdin, stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "docai: %v\nrun \"%s --help\" for usage\n", err, cmd.CommandPath())
		return 2
	}
	fmt.Fprintf(stderr, "docai: %v\n", err)
	return 1
}

// cli carries the process streams into every command.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "docai",
		Short: "DocumentAI command-line client",
		Long: "docai keeps the signed-in DocumentAI session in a local store and talks to the\n" +
			"document API with the session credential.\n\n" +
			"Configuration is read from " + config.Prefix + "* environment variables and .env.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unknown command %q", args[0])
			}
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			return usagef("missing command")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	root.AddCommand(
		newLoginCmd(c),
		newSignupCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newTokenCmd(c),
		newUploadCmd(c),
		newFilesCmd(c),
		newRemoveCmd(c),
		newChatCmd(c),
		newDownloadCmd(c),
		newAgentCmd(c),
	)
	return root
}

// action opens the configured session for the duration of fn.
func (c *cli) action(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: c.stderr, Service: "docai"})

		a, err := newApp(ctx, cfg, log, c.stdin, c.stdout, c.stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(ctx, a, args)
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// usageArgs reports positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{msg: err.Error()}
		}
		return nil
	}
}
