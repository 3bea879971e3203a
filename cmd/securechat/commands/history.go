package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"securechat/internal/domain"
)

func historyCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:         "history <peer>",
		Short:       "Print the decrypted conversation with a peer",
		Args:        cobra.ExactArgs(1),
		Annotations: keyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wait <= 0 {
				wait = wire.Config.PeerKeyTimeout + 5*time.Second
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			peer := domain.UserID(args[0])
			msgs, err := appCtx.History(ctx, peer)
			if err != nil {
				return fmt.Errorf("history with %q: %w", peer, err)
			}
			for _, m := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m, appCtx.Self()))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for the peer key")
	return cmd
}

func formatMessage(m domain.DecryptedMessage, self domain.UserID) string {
	who := m.SenderID.String()
	if m.SenderID == self {
		who = "me"
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("2006-01-02 15:04"), who, m.Text)
}
