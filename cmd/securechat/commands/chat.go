package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"securechat/internal/chat"
	"securechat/internal/domain"
	"securechat/internal/services/exchange"
)

func chatCmd() *cobra.Command {
	var contextID string
	cmd := &cobra.Command{
		Use:         "chat <peer>",
		Short:       "Open an interactive conversation with a peer",
		Long:        "Open an interactive conversation. Type a line and press enter to send.\nCommands: /retry restarts a timed out key exchange, /quit leaves.",
		Args:        cobra.ExactArgs(1),
		Annotations: keyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r := &renderer{out: cmd.OutOrStdout(), self: appCtx.Self()}

			conv, err := appCtx.Open(ctx, domain.UserID(args[0]), contextID, r.render)
			if err != nil {
				return err
			}
			defer conv.Close(context.WithoutCancel(ctx))

			return runChat(ctx, conv, cmd.InOrStdin(), r)
		},
	}
	cmd.Flags().StringVar(&contextID, "context", "", "opaque context reference for a new chat")
	return cmd
}

func runChat(ctx context.Context, conv *chat.Conversation, in io.Reader, r *renderer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	// Peer typing expires on the reader's clock, so re-render periodically.
	refresh := time.NewTicker(time.Second)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh.C:
			r.render(conv.View())
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "/quit":
				return nil
			case "/retry":
				if err := conv.Retry(ctx); err != nil {
					return err
				}
				continue
			}
			if err := conv.Typing(ctx); err != nil {
				r.warn(err)
			}
			if err := conv.Send(ctx, line); err != nil {
				r.warn(err)
			}
		}
	}
}

// renderer prints the parts of a View that changed since the last call.
type renderer struct {
	out  io.Writer
	self domain.UserID

	mu      sync.Mutex
	printed map[domain.MessageID]bool
	state   exchange.State
	typing  bool
	pending int
	started bool
}

func (r *renderer) render(v chat.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || v.State != r.state {
		r.started = true
		r.state = v.State
		fmt.Fprintf(r.out, "-- %s: %s\n", v.PeerName, describeState(v.State))
	}
	if r.printed == nil {
		r.printed = map[domain.MessageID]bool{}
	}
	for _, m := range v.Messages {
		if r.printed[m.ID] {
			continue
		}
		r.printed[m.ID] = true
		fmt.Fprintln(r.out, formatMessage(m, r.self))
	}

	if v.Pending != r.pending {
		if v.Pending > 0 {
			fmt.Fprintf(r.out, "-- %d message(s) queued until the session is secure\n", v.Pending)
		}
		r.pending = v.Pending
	}
	if v.Presence.PeerTyping != r.typing {
		r.typing = v.Presence.PeerTyping
		if r.typing {
			fmt.Fprintf(r.out, "-- %s is typing...\n", v.PeerName)
		}
	}
}

func (r *renderer) warn(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func describeState(s exchange.State) string {
	switch s {
	case exchange.StateSecure:
		return "secure"
	case exchange.StateKeyExchangeTimeout:
		return "peer key did not arrive (type /retry to try again)"
	default:
		return "connecting..."
	}
}
