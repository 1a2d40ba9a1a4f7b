// Command checkin drives the check-in flow from a terminal. The location comes
// from a flag, the facial photo from an image file, and no platform
// authenticator is available.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"bailbond/checkin-service/internal/checkin"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(newRootCmd(), os.Stderr))
}

// run executes the command and reports a failure on stderr, returning the
// process exit code.
func run(root *cobra.Command, stderr io.Writer) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, displayError(err))
		return 1
	}
	return 0
}

// displayError is the text shown to the user: a flow failure's message
// rather than its kind and cause.
func displayError(err error) string {
	var failure *checkin.Failure
	if errors.As(err, &failure) && failure.Message != "" {
		return failure.Message
	}
	return err.Error()
}
