package store

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"securechat/internal/delivery"
	"securechat/internal/domain"
)

// Memory is an in-process Backend and Watcher. It is the single-process
// fallback and the relay's default storage.
type Memory struct {
	clock clock.Clock

	mu       sync.RWMutex
	sessions map[domain.SessionID]domain.Session
	byPair   map[string]domain.SessionID
	messages map[domain.SessionID][]domain.Message
	seq      int64

	feed *delivery.Notifier
}

// NewMemory returns an empty arena. A nil clock uses the wall clock.
func NewMemory(c clock.Clock) *Memory {
	if c == nil {
		c = clock.New()
	}
	return &Memory{
		clock:    c,
		sessions: make(map[domain.SessionID]domain.Session),
		byPair:   make(map[string]domain.SessionID),
		messages: make(map[domain.SessionID][]domain.Message),
		feed:     delivery.NewNotifier(),
	}
}

func (m *Memory) UpsertSession(_ context.Context, s domain.Session) (domain.Session, bool, error) {
	if err := validateParticipants(s.Participants); err != nil {
		return domain.Session{}, false, err
	}

	m.mu.Lock()
	if id, ok := m.byPair[s.PairKey()]; ok {
		existing := m.sessions[id].Clone()
		m.mu.Unlock()
		return existing, false, nil
	}
	s = s.Clone()
	if s.ID == "" {
		s.ID = domain.SessionID(newID())
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = domain.NewTimestamp(m.clock.Now())
	}
	m.sessions[s.ID] = s
	m.byPair[s.PairKey()] = s.ID
	m.mu.Unlock()

	m.notify(domain.SessionResource(s.ID))
	for _, p := range s.Participants {
		m.notify(domain.UserChatsResource(p))
	}
	return s.Clone(), true, nil
}

func (m *Memory) GetSession(_ context.Context, id domain.SessionID) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) ListSessions(_ context.Context, user domain.UserID) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Session, 0)
	for _, s := range m.sessions {
		if s.HasParticipant(user) {
			out = append(out, s.Clone())
		}
	}
	sortSessions(out)
	return out, nil
}

// MergePublicKey replaces user's key, last write wins. Other entries are kept.
func (m *Memory) MergePublicKey(_ context.Context, id domain.SessionID, user domain.UserID, key domain.PublicKey) error {
	return m.merge(id, user, func(s *domain.Session) { s.PublicKeys[user] = key })
}

func (m *Memory) MergeTyping(_ context.Context, id domain.SessionID, user domain.UserID, at domain.Timestamp) error {
	return m.merge(id, user, func(s *domain.Session) { s.Typing[user] = at })
}

func (m *Memory) MergeLastSeen(_ context.Context, id domain.SessionID, user domain.UserID, at domain.Timestamp) error {
	return m.merge(id, user, func(s *domain.Session) { s.LastSeen[user] = at })
}

// merge applies a single per-user map update under the write lock.
func (m *Memory) merge(id domain.SessionID, user domain.UserID, apply func(*domain.Session)) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrNotFound
	}
	if !s.HasParticipant(user) {
		m.mu.Unlock()
		return domain.ErrInvalidParticipants
	}
	s = s.Clone()
	apply(&s)
	m.sessions[id] = s
	participants := s.Participants
	m.mu.Unlock()

	m.notify(domain.SessionResource(id))
	for _, p := range participants {
		m.notify(domain.UserChatsResource(p))
	}
	return nil
}

func (m *Memory) AppendMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	s, ok := m.sessions[msg.SessionID]
	if !ok {
		m.mu.Unlock()
		return domain.Message{}, domain.ErrNotFound
	}
	if !s.HasParticipant(msg.SenderID) {
		m.mu.Unlock()
		return domain.Message{}, domain.ErrInvalidParticipants
	}
	msg = prepareMessage(msg, m.clock)
	m.seq++
	msg.Seq = m.seq
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	m.mu.Unlock()

	m.notify(domain.MessagesResource(msg.SessionID))
	return msg, nil
}

func (m *Memory) ListMessages(_ context.Context, id domain.SessionID) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[id]; !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.Message, len(m.messages[id]))
	copy(out, m.messages[id])
	domain.SortMessages(out)
	return out, nil
}

// Watch signals whenever res changes.
func (m *Memory) Watch(ctx context.Context, res domain.Resource) (<-chan struct{}, error) {
	return m.feed.Watch(ctx, res)
}

func (m *Memory) notify(res domain.Resource) { m.feed.Notify(res) }

func sortSessions(ss []domain.Session) {
	sort.SliceStable(ss, func(i, j int) bool {
		if !ss[i].CreatedAt.Equal(ss[j].CreatedAt.Time) {
			return ss[i].CreatedAt.Before(ss[j].CreatedAt.Time)
		}
		return ss[i].ID < ss[j].ID
	})
}

func validateParticipants(ps []domain.UserID) error {
	if len(ps) != 2 || ps[0] == "" || ps[1] == "" || ps[0] == ps[1] {
		return domain.ErrInvalidParticipants
	}
	return nil
}

func newID() string { return uuid.NewString() }

func prepareMessage(msg domain.Message, c clock.Clock) domain.Message {
	if msg.ID == "" {
		msg.ID = domain.MessageID(newID())
	}
	if msg.Type == "" {
		msg.Type = domain.MessageTypeText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = domain.NewTimestamp(c.Now())
	}
	return msg
}

var (
	_ domain.Backend = (*Memory)(nil)
	_ domain.Watcher = (*Memory)(nil)
)
