package cli

import (
	"fmt"
	"io"
	"os"

	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

// PrintError prints an error to stderr with appropriate formatting.
// If the error is a TaskqError, it uses the user-friendly format.
func PrintError(err error) {
	printError(os.Stderr, err)
}

func printError(w io.Writer, err error) {
	if tqErr := tqerrors.AsTaskqError(err); tqErr != nil {
		fmt.Fprintln(w, tqErr.UserMessage())
		if verbose {
			fmt.Fprintf(w, "\nCode: %s\n", tqErr.Code)
			if tqErr.Cause != nil {
				fmt.Fprintf(w, "Cause: %v\n", tqErr.Cause)
			}
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
