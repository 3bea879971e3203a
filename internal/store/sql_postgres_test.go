package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benbjohnson/clock"
	"github.com/pressly/goose/v3"

	"securechat/internal/domain"
)

func newPostgresWithMock(t *testing.T) (*SQL, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	c := clock.NewMock()
	c.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewSQL(db, DialectPostgres, c), mock, db
}

const participantsQuery = `(?s)^SELECT\s+participant_a,\s*participant_b\s+FROM\s+sessions\s+WHERE\s+id\s*=\s*\$1$`

func TestRebind(t *testing.T) {
	pg := &SQL{dialect: DialectPostgres}
	if got := pg.q("SELECT a FROM t WHERE x = ? AND y = ?"); got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Fatalf("postgres rebind: %q", got)
	}
	lite := &SQL{dialect: DialectSQLite}
	if got := lite.q(" SELECT ? "); got != "SELECT ?" {
		t.Fatalf("sqlite rebind: %q", got)
	}
}

func TestAppendMessage_Postgres(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(participantsQuery).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"participant_a", "participant_b"}).AddRow("alice", "bob"))

	q := `(?s)^INSERT\s+INTO\s+messages\s*\(id,\s*session_id,\s*sender_id,\s*ciphertext,\s*iv,\s*type,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*RETURNING\s+seq$`
	mock.ExpectQuery(q).
		WithArgs("m1", "s1", "alice", []byte("ct"), []byte("iv"), "text", int64(1714564800000)).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	got, err := s.AppendMessage(context.Background(), domain.Message{
		ID: "m1", SessionID: "s1", SenderID: "alice", Ciphertext: []byte("ct"), IV: []byte("iv"),
	})
	if err != nil {
		t.Fatalf("AppendMessage error: %v", err)
	}
	if got.Seq != 7 || got.Type != domain.MessageTypeText {
		t.Fatalf("unexpected message: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendMessage_Postgres_DBError(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(participantsQuery).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"participant_a", "participant_b"}).AddRow("alice", "bob"))
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+messages`).WillReturnError(errors.New("db down"))

	_, err := s.AppendMessage(context.Background(), domain.Message{SessionID: "s1", SenderID: "bob", Ciphertext: []byte("c"), IV: []byte("i")})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMergePublicKey_Postgres_NotFound(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(participantsQuery).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	err := s.MergePublicKey(context.Background(), "missing", "alice", domain.PublicKey{Kty: "OKP"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMergeTyping_Postgres_Upserts(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(participantsQuery).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"participant_a", "participant_b"}).AddRow("alice", "bob"))
	q := `(?s)^INSERT\s+INTO\s+session_presence\s*\(session_id,\s*user_id,\s*kind,\s*at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(session_id,\s*user_id,\s*kind\)\s*DO\s+UPDATE\s+SET\s+at\s*=\s*excluded\.at$`
	mock.ExpectExec(q).
		WithArgs("s1", "bob", "typing", int64(1000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.MergeTyping(context.Background(), "s1", "bob", domain.TimestampFromMillis(1000)); err != nil {
		t.Fatalf("MergeTyping error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrate_UsesDialectDirectory(t *testing.T) {
	s, _, db := newPostgresWithMock(t)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	if gotDir != "migrations/postgres" {
		t.Fatalf("dir = %q", gotDir)
	}

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return errors.New("boom") }
	if err := s.Migrate(context.Background()); err == nil {
		t.Fatal("expected migrate error")
	}
}
