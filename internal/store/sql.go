package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"securechat/internal/domain"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect selects the SQL flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const (
	presenceTyping   = "typing"
	presenceLastSeen = "last_seen"
)

// SQL is a Backend over database/sql. SQLite gives two processes on one
// machine a shared file; Postgres serves the relay.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	clock   clock.Clock
	close   func()
}

// NewSQL wraps an already-migrated database handle.
func NewSQL(db *sql.DB, dialect Dialect, c clock.Clock) *SQL {
	if c == nil {
		c = clock.New()
	}
	return &SQL{db: db, dialect: dialect, clock: c}
}

// OpenSQLite opens (creating if needed) the database file at path and
// migrates it.
func OpenSQLite(ctx context.Context, path string, c clock.Clock) (*SQL, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := NewSQL(db, DialectSQLite, c)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects a pgx pool to dsn, exposes it through database/sql,
// and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, c clock.Clock) (*SQL, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := NewSQL(stdlib.OpenDBFromPool(pool), DialectPostgres, c)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQL) Close() error {
	err := s.db.Close()
	if s.close != nil {
		s.close()
	}
	return err
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *SQL) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	dialect, dir := "sqlite3", "migrations/sqlite"
	if s.dialect == DialectPostgres {
		dialect, dir = "postgres", "migrations/postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQL) UpsertSession(ctx context.Context, in domain.Session) (domain.Session, bool, error) {
	if err := validateParticipants(in.Participants); err != nil {
		return domain.Session{}, false, err
	}
	in = in.Clone()
	if in.ID == "" {
		in.ID = domain.SessionID(newID())
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = domain.NewTimestamp(s.clock.Now())
	}

	created := false
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO sessions (id, participant_a, participant_b, pair_key, context_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (pair_key) DO NOTHING`),
			string(in.ID), string(in.Participants[0]), string(in.Participants[1]),
			in.PairKey(), in.ContextID, in.CreatedAt.Millis(),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		created = true
		for user, key := range in.PublicKeys {
			if err := s.putKey(ctx, tx, in.ID, user, key); err != nil {
				return err
			}
		}
		for user, at := range in.Typing {
			if err := s.putPresence(ctx, tx, in.ID, user, presenceTyping, at); err != nil {
				return err
			}
		}
		for user, at := range in.LastSeen {
			if err := s.putPresence(ctx, tx, in.ID, user, presenceLastSeen, at); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("db error: %w", err)
	}

	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, participant_a, participant_b, context_id, created_at
		FROM sessions WHERE pair_key = ?`), in.PairKey())
	out, err := s.scanSession(ctx, row)
	return out, created, err
}

func (s *SQL) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, participant_a, participant_b, context_id, created_at
		FROM sessions WHERE id = ?`), string(id))
	return s.scanSession(ctx, row)
}

func (s *SQL) ListSessions(ctx context.Context, user domain.UserID) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, participant_a, participant_b, context_id, created_at
		FROM sessions WHERE participant_a = ? OR participant_b = ?
		ORDER BY created_at, id`), string(user), string(user))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	var out []domain.Session
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	for i := range out {
		if err := s.loadMaps(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []domain.Session{}
	}
	return out, nil
}

// MergePublicKey upserts user's row in session_keys, last write wins.
func (s *SQL) MergePublicKey(ctx context.Context, id domain.SessionID, user domain.UserID, key domain.PublicKey) error {
	if err := s.checkParticipant(ctx, id, user); err != nil {
		return err
	}
	if err := s.putKey(ctx, s.db, id, user, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *SQL) MergeTyping(ctx context.Context, id domain.SessionID, user domain.UserID, at domain.Timestamp) error {
	return s.mergePresence(ctx, id, user, presenceTyping, at)
}

func (s *SQL) MergeLastSeen(ctx context.Context, id domain.SessionID, user domain.UserID, at domain.Timestamp) error {
	return s.mergePresence(ctx, id, user, presenceLastSeen, at)
}

func (s *SQL) mergePresence(ctx context.Context, id domain.SessionID, user domain.UserID, kind string, at domain.Timestamp) error {
	if err := s.checkParticipant(ctx, id, user); err != nil {
		return err
	}
	if err := s.putPresence(ctx, s.db, id, user, kind, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *SQL) AppendMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	if err := s.checkParticipant(ctx, m.SessionID, m.SenderID); err != nil {
		return domain.Message{}, err
	}
	m = prepareMessage(m, s.clock)
	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO messages (id, session_id, sender_id, ciphertext, iv, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`),
		string(m.ID), string(m.SessionID), string(m.SenderID),
		m.Ciphertext, m.IV, string(m.Type), m.CreatedAt.Millis(),
	).Scan(&m.Seq)
	if err != nil {
		return domain.Message{}, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (s *SQL) ListMessages(ctx context.Context, id domain.SessionID) ([]domain.Message, error) {
	if _, err := s.participants(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT seq, id, session_id, sender_id, ciphertext, iv, type, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at, seq`), string(id))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []domain.Message{}
	for rows.Next() {
		var (
			m                       domain.Message
			msgID, sess, sender, tp string
			createdAt               int64
		)
		if err := rows.Scan(&m.Seq, &msgID, &sess, &sender, &m.Ciphertext, &m.IV, &tp, &createdAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.ID = domain.MessageID(msgID)
		m.SessionID = domain.SessionID(sess)
		m.SenderID = domain.UserID(sender)
		m.Type = domain.MessageType(tp)
		m.CreatedAt = domain.TimestampFromMillis(createdAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *SQL) participants(ctx context.Context, id domain.SessionID) ([]domain.UserID, error) {
	var a, b string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT participant_a, participant_b FROM sessions WHERE id = ?`), string(id)).Scan(&a, &b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return []domain.UserID{domain.UserID(a), domain.UserID(b)}, nil
}

func (s *SQL) checkParticipant(ctx context.Context, id domain.SessionID, user domain.UserID) error {
	ps, err := s.participants(ctx, id)
	if err != nil {
		return err
	}
	if ps[0] != user && ps[1] != user {
		return domain.ErrInvalidParticipants
	}
	return nil
}

func (s *SQL) putKey(ctx context.Context, db DBTX, id domain.SessionID, user domain.UserID, key domain.PublicKey) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, s.q(`
		INSERT INTO session_keys (session_id, user_id, public_key) VALUES (?, ?, ?)
		ON CONFLICT (session_id, user_id) DO UPDATE SET public_key = excluded.public_key`),
		string(id), string(user), string(raw))
	return err
}

func (s *SQL) putPresence(ctx context.Context, db DBTX, id domain.SessionID, user domain.UserID, kind string, at domain.Timestamp) error {
	_, err := db.ExecContext(ctx, s.q(`
		INSERT INTO session_presence (session_id, user_id, kind, at) VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, user_id, kind) DO UPDATE SET at = excluded.at`),
		string(id), string(user), kind, at.Millis())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionRow(r rowScanner) (domain.Session, error) {
	var (
		id, a, b, contextID string
		createdAt           int64
	)
	if err := r.Scan(&id, &a, &b, &contextID, &createdAt); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:           domain.SessionID(id),
		Participants: []domain.UserID{domain.UserID(a), domain.UserID(b)},
		ContextID:    contextID,
		CreatedAt:    domain.TimestampFromMillis(createdAt),
	}, nil
}

func (s *SQL) scanSession(ctx context.Context, row *sql.Row) (domain.Session, error) {
	sess, err := scanSessionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("db error: %w", err)
	}
	if err := s.loadMaps(ctx, &sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// loadMaps fills the per-user key, typing and last-seen maps.
func (s *SQL) loadMaps(ctx context.Context, sess *domain.Session) error {
	sess.PublicKeys = map[domain.UserID]domain.PublicKey{}
	sess.Typing = map[domain.UserID]domain.Timestamp{}
	sess.LastSeen = map[domain.UserID]domain.Timestamp{}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT user_id, public_key FROM session_keys WHERE session_id = ?`), string(sess.ID))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for rows.Next() {
		var user, raw string
		if err := rows.Scan(&user, &raw); err != nil {
			_ = rows.Close()
			return fmt.Errorf("db error: %w", err)
		}
		var key domain.PublicKey
		if err := json.Unmarshal([]byte(raw), &key); err != nil {
			_ = rows.Close()
			return fmt.Errorf("decode public key for %s: %w", user, err)
		}
		sess.PublicKeys[domain.UserID(user)] = key
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, s.q(`SELECT user_id, kind, at FROM session_presence WHERE session_id = ?`), string(sess.ID))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			user, kind string
			at         int64
		)
		if err := rows.Scan(&user, &kind, &at); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		switch kind {
		case presenceTyping:
			sess.Typing[domain.UserID(user)] = domain.TimestampFromMillis(at)
		case presenceLastSeen:
			sess.LastSeen[domain.UserID(user)] = domain.TimestampFromMillis(at)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// q rewrites ? placeholders to $n for Postgres.
func (s *SQL) q(query string) string {
	query = strings.TrimSpace(query)
	if s.dialect != DialectPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ domain.Backend = (*SQL)(nil)
