package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"parrhesia/internal/domain"
	"parrhesia/internal/relay"
	"parrhesia/internal/services/group"
	"parrhesia/internal/services/session"
)

// consoleEvents renders session activity to the terminal, coloring each
// peer with its deterministic palette color.
type consoleEvents struct{}

func ansi(hex string) string {
	if len(hex) != 7 || hex[0] != '#' {
		return ""
	}
	var r, g, b int
	fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)
}

func (consoleEvents) MessageReceived(peer domain.PeerID, color string, plaintext []byte) {
	fmt.Printf("%s%s\x1b[0m: %s\n", ansi(color), peer, plaintext)
}

func (consoleEvents) PeerJoined(peer domain.PeerID, fp domain.Fingerprint, color string) {
	fmt.Printf("%s%s\x1b[0m joined (fingerprint %s…)\n", ansi(color), peer, shortFP(fp))
}

func (consoleEvents) PeerLeft(peer domain.PeerID) {
	fmt.Printf("%s left\n", peer)
}

func (consoleEvents) PeerRejected(peer domain.PeerID, reason error) {
	fmt.Printf("%s rejected: %v\n", peer, reason)
}

func (consoleEvents) RoomClosed(reason error) {
	fmt.Printf("room closed: %v\n", reason)
}

func shortFP(fp domain.Fingerprint) string {
	s := fp.String()
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// runChat connects to room and pumps stdin lines through the session
// until EOF or room shutdown.
func runChat(ctx context.Context, room domain.RoomID) error {
	kp, err := wire.Identity.Load(passphrase)
	if err != nil {
		return err
	}

	mgr, err := group.New(room, kp, wire.Tofu, wire.Log.WithField("component", "group"))
	if err != nil {
		return err
	}
	transport, err := relay.Dial(ctx, wire.Config.RelayURL, room)
	if err != nil {
		return err
	}

	var history domain.HistoryStore
	if wire.History != nil {
		history = wire.History
	}
	sess := session.New(room, mgr, transport, history, consoleEvents{},
		wire.Log.WithField("component", "session"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				break
			}
			if err := sess.Send(ctx, []byte(line)); err != nil {
				return
			}
		}
		cancel()
	}()

	fmt.Println("room:", room)
	fmt.Println("fingerprint:", mgr.Fingerprint())
	err = sess.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
