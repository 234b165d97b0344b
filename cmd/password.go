package cmd

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/vaultarc/vaultarc/internal/config"
	"github.com/vaultarc/vaultarc/internal/storage"
)

// passwordFuncFor resolves job.Crypt.PasswordSource into a
// storage.PasswordFunc: "env:VAR" reads an environment variable,
// "literal:..." carries the password inline (job-file convenience,
// not recommended for production use), and "prompt" (or an empty
// source when crypt is enabled) reads from the controlling terminal
// without echo.
func passwordFuncFor(job *config.JobConfig) storage.PasswordFunc {
	source := job.Crypt.PasswordSource
	return func(prompt string, mode storage.PasswordMode) ([]byte, error) {
		switch {
		case strings.HasPrefix(source, "env:"):
			name := strings.TrimPrefix(source, "env:")
			v, ok := os.LookupEnv(name)
			if !ok {
				return nil, fmt.Errorf("password env var %q is not set", name)
			}
			return []byte(v), nil
		case strings.HasPrefix(source, "literal:"):
			return []byte(strings.TrimPrefix(source, "literal:")), nil
		default:
			return promptPassword(prompt)
		}
	}
}

func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}
