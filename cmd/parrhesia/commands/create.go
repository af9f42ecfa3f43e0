package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a room and start chatting",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			room, err := wire.Rooms.CreateRoom(ctx)
			if err != nil {
				return err
			}
			fmt.Println("created room", room)
			return runChat(ctx, room)
		},
	}
}
