// Package main provides the backlinkwatch CLI entrypoint.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lukemcguire/backlinkwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitFailure)
	}
}
