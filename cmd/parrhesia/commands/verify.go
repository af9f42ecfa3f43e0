package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parrhesia/internal/domain"
)

func verifyPeerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-peer <room> <fingerprint>",
		Short: "Mark a peer's fingerprint as verified after comparing safety numbers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			room := domain.RoomID(args[0])
			fp := domain.Fingerprint(args[1])
			if err := wire.Tofu.MarkVerified(room, fp); err != nil {
				return err
			}
			fmt.Println("verified", shortFP(fp)+"…")
			return nil
		},
	}
}
