package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cameronmore/authd/password"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newHashPasswordCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password and print its stored secret",
		Long: `hash-password reads a password (without echo on a terminal, otherwise
one line from stdin) and prints the stored secret using the configured
scrypt parameters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			hasher, err := password.NewHasher(password.Params{
				N:       cfg.ScryptN,
				R:       cfg.ScryptR,
				P:       cfg.ScryptP,
				KeyLen:  password.DefaultParams.KeyLen,
				SaltLen: password.DefaultParams.SaltLen,
			})
			if err != nil {
				return err
			}

			pw, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			stored, err := hasher.Hash(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored)
			return nil
		},
	}
}

// readPassword prompts without echo when stdin is a terminal and reads a
// single line otherwise.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
