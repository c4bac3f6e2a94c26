package main

import (
	"errors"
	"fmt"
	"os"

	"budgetbuddy/internal/core"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

// errorText shows the user-facing message for categorized errors and the
// raw text for everything else (flag parsing, configuration).
func errorText(err error) string {
	var m core.Messager
	for _, kind := range []error{core.ErrValidation, core.ErrAuth, core.ErrFetch, core.ErrRemote, core.ErrNotFound} {
		if errors.Is(err, kind) {
			return core.UserMessage(err)
		}
	}
	if errors.As(err, &m) && m.UserMessage() != "" {
		return m.UserMessage()
	}
	return err.Error()
}
