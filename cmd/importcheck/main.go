// Command importcheck validates academic import spreadsheets offline and
// writes blank templates, using the same parser and rules as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/JonMunkholm/acadimport/internal/core/schemas" // Register all import kinds
	"github.com/JonMunkholm/acadimport/internal/logging"
)

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitUsage      = 64
)

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitFailure
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "importcheck",
		Short:         "Check academic import spreadsheets before uploading them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newValidateCmd(), newTemplateCmd(), newKindsCmd())
	return root
}

func main() {
	_ = godotenv.Load()

	cmd := newRootCmd()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		var ce *codedError
		// Validation failures have already been reported on stdout.
		if !errors.As(err, &ce) || ce.code != exitValidation {
			fmt.Fprintln(os.Stderr, "importcheck:", err)
		}
	}
	os.Exit(exitCode(err))
}
