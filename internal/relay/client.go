package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"securechat/internal/domain"
	"securechat/internal/logging"
)

const maxErrorBody = 64 << 10

// Client talks to a relay. The zero HTTP and Dialer fields fall back to the
// package defaults.
type Client struct {
	Base   string
	Token  string
	HTTP   *http.Client
	Dialer *websocket.Dialer

	log logging.Logger
}

// NewClient returns a client for the relay at base, authenticating with token
// when it is non-empty.
func NewClient(base, token string, log logging.Logger) *Client {
	return &Client{
		Base:   strings.TrimRight(base, "/"),
		Token:  token,
		HTTP:   &http.Client{Timeout: 15 * time.Second},
		Dialer: websocket.DefaultDialer,
		log:    logging.OrNop(log),
	}
}

func (c *Client) UpsertSession(ctx context.Context, s domain.Session) (domain.Session, bool, error) {
	var out CreateSessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/sessions", CreateSessionRequest{
		ID:           s.ID,
		Participants: s.Participants,
		PublicKeys:   s.PublicKeys,
		ContextID:    s.ContextID,
	}, &out)
	if err != nil {
		return domain.Session{}, false, err
	}
	return out.Session, out.Created, nil
}

func (c *Client) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	var out domain.Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id.String()), nil, &out); err != nil {
		return domain.Session{}, err
	}
	return out, nil
}

func (c *Client) ListSessions(ctx context.Context, user domain.UserID) ([]domain.Session, error) {
	var out []domain.Session
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(user.String())+"/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MergePublicKey(ctx context.Context, id domain.SessionID, user domain.UserID, key domain.PublicKey) error {
	return c.do(ctx, http.MethodPut, sessionPath(id, "keys", user), PublicKeyRequest{
		Kty: key.Kty, Crv: key.Crv, X: key.X, Y: key.Y,
	}, nil)
}

func (c *Client) MergeTyping(ctx context.Context, id domain.SessionID, user domain.UserID, at domain.Timestamp) error {
	return c.do(ctx, http.MethodPut, sessionPath(id, "typing", user), StampRequest{At: at}, nil)
}

func (c *Client) MergeLastSeen(ctx context.Context, id domain.SessionID, user domain.UserID, at domain.Timestamp) error {
	return c.do(ctx, http.MethodPut, sessionPath(id, "last-seen", user), StampRequest{At: at}, nil)
}

// AppendMessage posts msg. The relay assigns the creation time and sequence.
func (c *Client) AppendMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	var out domain.Message
	err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(msg.SessionID.String())+"/messages", MessageRequest{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		Ciphertext: msg.Ciphertext,
		IV:         msg.IV,
		Type:       msg.Type,
	}, &out)
	if err != nil {
		return domain.Message{}, err
	}
	return out, nil
}

func (c *Client) ListMessages(ctx context.Context, id domain.SessionID) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id.String())+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens the relay's websocket change feed for res. The returned channel
// closes when ctx ends or the connection drops.
func (c *Client) Watch(ctx context.Context, res domain.Resource) (<-chan struct{}, error) {
	u, err := c.watchURL(res)
	if err != nil {
		return nil, err
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u, c.header())
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: watch %s: %s", domain.ErrDeliveryChannel, res, resp.Status)
		}
		return nil, fmt.Errorf("%w: watch %s: %v", domain.ErrDeliveryChannel, res, err)
	}

	out := make(chan struct{}, 1)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()
	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		for {
			var ev WatchEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					c.log.Debug(ctx, "watch closed", "resource", res.String(), "err", err)
				}
				return
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

func (c *Client) watchURL(res domain.Resource) (string, error) {
	u, err := url.Parse(c.Base)
	if err != nil {
		return "", fmt.Errorf("relay url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/watch"
	u.RawQuery = url.Values{"kind": {string(res.Kind)}, "id": {res.ID}}.Encode()
	return u.String(), nil
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	return h
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	for k, v := range c.header() {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eb ErrorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &eb) != nil || eb.Error.Code == 0 {
			eb.Error = ErrorDetail{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return ErrorFor(eb.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("relay %s %s: decode: %w", method, path, err)
	}
	return nil
}

func sessionPath(id domain.SessionID, field string, user domain.UserID) string {
	return "/v1/sessions/" + url.PathEscape(id.String()) + "/" + field + "/" + url.PathEscape(user.String())
}

var (
	_ domain.Backend = (*Client)(nil)
	_ domain.Watcher = (*Client)(nil)
)
