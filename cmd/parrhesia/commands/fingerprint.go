package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parrhesia/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the local identity fingerprint (safety number)",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := wire.Identity.Load(passphrase)
			if err != nil {
				return err
			}
			fmt.Println(crypto.Fingerprint(kp.Public))
			return nil
		},
	}
}
