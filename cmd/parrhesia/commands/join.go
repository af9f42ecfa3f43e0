package commands

import (
	"context"

	"github.com/spf13/cobra"

	"parrhesia/internal/domain"
)

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <room>",
		Short: "Join an existing room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			room := domain.RoomID(args[0])
			ok, err := wire.Rooms.RoomExists(ctx, room)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrRoomNotFound
			}
			return runChat(ctx, room)
		},
	}
}
