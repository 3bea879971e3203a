package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"securechat/internal/domain"
	"securechat/internal/relay"
)

// handleCreateSession (POST /v1/sessions)
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req relay.CreateSessionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	candidate := domain.Session{
		ID:           req.ID,
		Participants: req.Participants,
		PublicKeys:   map[domain.UserID]domain.PublicKey{},
		ContextID:    req.ContextID,
		CreatedAt:    domain.NewTimestamp(s.clock.Now()),
	}
	if candidate.ID == "" {
		candidate.ID = domain.SessionID(uuid.NewString())
	}
	if err := requireParticipant(r.Context(), candidate); err != nil {
		s.fail(w, r, err)
		return
	}
	// A caller may only seed its own key.
	caller, authed := callerFrom(r.Context())
	for user, key := range req.PublicKeys {
		if authed && user != caller {
			continue
		}
		if candidate.HasParticipant(user) && !key.IsZero() {
			candidate.PublicKeys[user] = key
		}
	}

	sess, created, err := s.backend.UpsertSession(r.Context(), candidate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
		s.notifySession(sess)
	}
	s.respond(w, code, relay.CreateSessionResponse{Session: sess, Created: created})
}

// handleGetSession (GET /v1/sessions/{id})
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, sess)
}

// handleListSessions (GET /v1/users/{id}/sessions)
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(chi.URLParam(r, "id"))
	if err := requireSelf(r.Context(), user); err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.backend.ListSessions(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Session{}
	}
	s.respond(w, http.StatusOK, list)
}

// handlePutKey (PUT /v1/sessions/{id}/keys/{user})
func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	var req relay.PublicKeyRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.merge(w, r, func(id domain.SessionID, user domain.UserID) error {
		return s.backend.MergePublicKey(r.Context(), id, user, req.Key())
	})
}

// handlePutTyping (PUT /v1/sessions/{id}/typing/{user})
func (s *Server) handlePutTyping(w http.ResponseWriter, r *http.Request) {
	at, ok := s.stamp(w, r)
	if !ok {
		return
	}
	s.merge(w, r, func(id domain.SessionID, user domain.UserID) error {
		return s.backend.MergeTyping(r.Context(), id, user, at)
	})
}

// handlePutLastSeen (PUT /v1/sessions/{id}/last-seen/{user})
func (s *Server) handlePutLastSeen(w http.ResponseWriter, r *http.Request) {
	at, ok := s.stamp(w, r)
	if !ok {
		return
	}
	s.merge(w, r, func(id domain.SessionID, user domain.UserID) error {
		return s.backend.MergeLastSeen(r.Context(), id, user, at)
	})
}

// handlePostMessage (POST /v1/sessions/{id}/messages)
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req relay.MessageRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := requireSelf(r.Context(), req.SenderID); err != nil {
		s.fail(w, r, err)
		return
	}
	msg, err := s.backend.AppendMessage(r.Context(), domain.Message{
		ID:         req.ID,
		SessionID:  domain.SessionID(chi.URLParam(r, "id")),
		SenderID:   req.SenderID,
		Ciphertext: req.Ciphertext,
		IV:         req.IV,
		Type:       req.Type,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.hub.Notify(domain.MessagesResource(msg.SessionID))
	s.respond(w, http.StatusCreated, msg)
}

// handleListMessages (GET /v1/sessions/{id}/messages)
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	msgs, err := s.backend.ListMessages(r.Context(), sess.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	s.respond(w, http.StatusOK, msgs)
}

// loadSession reads {id} and checks the caller may see it.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	sess, err := s.backend.GetSession(r.Context(), domain.SessionID(chi.URLParam(r, "id")))
	if err == nil {
		err = requireParticipant(r.Context(), sess)
	}
	if err != nil {
		s.fail(w, r, err)
		return domain.Session{}, false
	}
	return sess, true
}

// merge runs a per-user session update for {id}/{user} and notifies watchers.
func (s *Server) merge(w http.ResponseWriter, r *http.Request, apply func(domain.SessionID, domain.UserID) error) {
	id := domain.SessionID(chi.URLParam(r, "id"))
	user := domain.UserID(chi.URLParam(r, "user"))
	if err := requireSelf(r.Context(), user); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := apply(id, user); err != nil {
		s.fail(w, r, err)
		return
	}
	if sess, err := s.backend.GetSession(r.Context(), id); err == nil {
		s.notifySession(sess)
	} else {
		s.hub.Notify(domain.SessionResource(id))
	}
	w.WriteHeader(http.StatusNoContent)
}

// stamp reads an optional StampRequest; an absent or zero time becomes now.
func (s *Server) stamp(w http.ResponseWriter, r *http.Request) (domain.Timestamp, bool) {
	var req relay.StampRequest
	if r.ContentLength != 0 {
		if err := s.decode(w, r, &req); err != nil {
			s.fail(w, r, err)
			return domain.Timestamp{}, false
		}
	}
	if req.At.IsZero() {
		req.At = domain.NewTimestamp(s.clock.Now())
	}
	return req.At, true
}
