package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a long-term identity key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				ok, err := wire.Identity.Exists()
				if err != nil {
					return err
				}
				if ok {
					return errors.New("identity already exists; use --force to replace it")
				}
			}
			pub, priv, err := crypto.GenerateSigningKeyPair()
			if err != nil {
				return err
			}
			kp := domain.SigningKeyPair{Public: pub, Private: priv}
			if err := wire.Identity.Save(passphrase, kp); err != nil {
				return err
			}
			fmt.Println("identity created")
			fmt.Println("fingerprint:", crypto.Fingerprint(pub))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}
