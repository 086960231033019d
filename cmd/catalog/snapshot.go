package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"catalog-go/internal/app"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

// readPassphrase prompts on stderr and reads a passphrase without echo. When
// stdin is not a terminal a single line is read instead, so scripts can pipe it.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		fmt.Fprintln(os.Stderr)
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := app.InitKeys(cmd.Context(), cfg, passphrase); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Archive the catalog database in a vault",
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload an encrypted snapshot of the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "PushSnapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.PushSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pushed snapshot at changelog entry #%d\n", version)
		return nil
	},
}

var snapshotPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Restore the database from the newest snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		version, err := app.PullSnapshot(cmd.Context(), cfg, passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Restored snapshot at changelog entry #%d\n", version)
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysInitCmd)

	snapshotCmd.AddCommand(snapshotPushCmd)
	snapshotCmd.AddCommand(snapshotPullCmd)

	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(snapshotCmd)
}
