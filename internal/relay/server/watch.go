package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"securechat/internal/domain"
	"securechat/internal/relay"
)

const writeWait = 10 * time.Second

// handleWatch (GET /v1/watch?kind=&id=) upgrades to a websocket and sends
// one WatchEvent per change of the resource. Events carry no state; clients
// re-fetch.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	res := domain.Resource{
		Kind: domain.ResourceKind(r.URL.Query().Get("kind")),
		ID:   r.URL.Query().Get("id"),
	}
	if !res.Kind.Valid() || res.ID == "" {
		s.fail(w, r, fmt.Errorf("%w: bad watch resource %q", domain.ErrInvalidArgument, res.String()))
		return
	}
	if err := s.authorizeWatch(r.Context(), res); err != nil {
		s.fail(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	pongWait := 2 * s.ping
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := s.hub.Watch(ctx, res)

	// Reader: we never expect data frames, but need to see the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := s.clock.Ticker(s.ping)
	defer ping.Stop()
	s.log.Debug(ctx, "watch opened", "resource", res.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Debug(ctx, "watch closed", "resource", res.String())
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(relay.WatchEvent{Kind: res.Kind, ID: res.ID}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) authorizeWatch(ctx context.Context, res domain.Resource) error {
	if _, ok := callerFrom(ctx); !ok {
		return nil
	}
	switch res.Kind {
	case domain.ResourceUserChats:
		return requireSelf(ctx, domain.UserID(res.ID))
	default:
		sess, err := s.backend.GetSession(ctx, domain.SessionID(res.ID))
		if err != nil {
			return err
		}
		return requireParticipant(ctx, sess)
	}
}
