package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	uperrors "github.com/matzehuels/cargo-upgrade/pkg/errors"
)

// usageLine is printed under argument errors.
const usageLine = "cargo upgrade [FLAGS] [OPTIONS] [--] [dependency]..."

// UsageError is a command-line parsing failure.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// flagError converts pflag's parse errors into UsageErrors.
func flagError(_ *cobra.Command, err error) error {
	msg := err.Error()
	if name, ok := unknownFlag(msg); ok {
		msg = fmt.Sprintf("Found argument '%s' which wasn't expected, or isn't valid in this context", name)
	}
	return &UsageError{Message: msg}
}

// unknownFlag extracts the flag from "unknown flag: --x" and
// "unknown shorthand flag: 'x' in -x".
func unknownFlag(msg string) (string, bool) {
	if name, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return name, true
	}
	if rest, ok := strings.CutPrefix(msg, "unknown shorthand flag: "); ok {
		if len(rest) >= 3 && rest[0] == '\'' {
			return "-" + rest[1:2], true
		}
	}
	return "", false
}

// FormatError renders err for the terminal.
//
// Usage errors keep the argument parser's layout. Everything else prints the
// outermost message followed by one "Caused by:" line per wrapped cause.
func FormatError(err error) string {
	var b strings.Builder

	var ue *UsageError
	if errors.As(err, &ue) {
		b.WriteString("error: " + ue.Message + "\n\n")
		b.WriteString("USAGE:\n    " + usageLine + "\n\n")
		b.WriteString("For more information try --help\n")
		return b.String()
	}

	chain := uperrors.Chain(err)
	if len(chain) == 0 {
		return ""
	}
	b.WriteString("Command failed due to unhandled error: " + chain[0] + "\n\n")
	for _, cause := range chain[1:] {
		b.WriteString("Caused by: " + cause + "\n")
	}
	if len(chain) > 1 {
		b.WriteString("\n")
	}
	return b.String()
}
