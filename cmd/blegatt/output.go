package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	successColor = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed)
	labelColor   = color.New(color.FgCyan)
	dimColor     = color.New(color.Faint)
)

// isTerminal reports whether f is attached to a terminal
var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// setupOutput disables colors unless stdout is a terminal and --no-color is unset.
func setupOutput(cmd *cobra.Command, _ []string) error {
	noColor, _ := cmd.Flags().GetBool("no-color")
	color.NoColor = noColor || !isTerminal(os.Stdout)
	return nil
}

func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = successColor.Fprintln(w, fmt.Sprintf(format, args...))
}

func printFailure(w io.Writer, format string, args ...any) {
	_, _ = failureColor.Fprintln(w, fmt.Sprintf(format, args...))
}
