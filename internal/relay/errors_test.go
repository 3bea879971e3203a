package relay

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/domain"
)

func TestDescribeAndErrorFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidParticipants, http.StatusBadRequest},
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrSessionNotSecure, http.StatusConflict},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("handler: %w", tc.err)
		d := Describe(wrapped)
		assert.Equal(t, tc.code, d.Code, tc.err)
		assert.ErrorIs(t, ErrorFor(d), tc.err)
	}

	d := Describe(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, d.Code)
	assert.Equal(t, "internal error", d.Message, "internal details stay on the server")
	assert.Error(t, ErrorFor(d))
}

func TestErrorFor_Forbidden(t *testing.T) {
	assert.ErrorIs(t, ErrorFor(ErrorDetail{Code: http.StatusForbidden}), domain.ErrUnauthorized)
}

func TestWatchURL(t *testing.T) {
	c := NewClient("https://relay.example.com/base/", "", nil)
	u, err := c.watchURL(domain.MessagesResource("s 1"))
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example.com/base/v1/watch?id=s+1&kind=messages", u)

	c = NewClient("http://127.0.0.1:8080", "", nil)
	u, err = c.watchURL(domain.UserChatsResource("alice"))
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8080/v1/watch?id=alice&kind=user_chats", u)
}
