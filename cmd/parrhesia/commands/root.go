package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"parrhesia/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string

	wire *app.Wire
)

// Execute runs the CLI.
func Execute() error {
	root := &cobra.Command{
		Use:   "parrhesia",
		Short: "Ephemeral end-to-end encrypted group chat",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".parrhesia")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			cfg, err := app.LoadConfig(home)
			if err != nil {
				return err
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			wire, err = app.NewWire(cfg, passphrase)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.parrhesia)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity key")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")

	root.AddCommand(initCmd(), fingerprintCmd(), createCmd(), joinCmd(), verifyPeerCmd())
	return root.Execute()
}
