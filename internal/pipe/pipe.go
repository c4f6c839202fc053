// Package pipe detects whether the CLI is part of a shell pipeline.
package pipe

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsStdinPiped returns true if stdin is receiving piped input.
func IsStdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode()&os.ModeCharDevice) == 0 || stat.Size() > 0
}

// IsStdoutPiped returns true if stdout is being piped to another process.
func IsStdoutPiped() bool {
	return !term.IsTerminal(int(os.Stdout.Fd()))
}

// ReadStdin reads all available data from stdin.
// Returns nil if stdin is not piped.
func ReadStdin() ([]byte, error) {
	if !IsStdinPiped() {
		return nil, nil
	}
	return io.ReadAll(os.Stdin)
}

// ReadInput reads path, or stdin when path is "-".
func ReadInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
