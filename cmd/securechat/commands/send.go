package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"securechat/internal/domain"
)

// send <peer> <message...>: encrypt and send one message to <peer>.
func sendCmd() *cobra.Command {
	var (
		contextID string
		wait      time.Duration
	)
	cmd := &cobra.Command{
		Use:         "send <peer> <message...>",
		Short:       "Encrypt and send a message to a peer",
		Args:        cobra.MinimumNArgs(2),
		Annotations: keyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wait <= 0 {
				wait = wire.Config.PeerKeyTimeout + 5*time.Second
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			peer := domain.UserID(args[0])
			if err := appCtx.Send(ctx, peer, contextID, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&contextID, "context", "", "opaque context reference for a new chat")
	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for the peer key (default peer key timeout + 5s)")
	return cmd
}
