package memstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"walchat/walchat/utils/logging"
)

func TestMain(m *testing.M) {
	logging.InitTestLogger()
	os.Exit(m.Run())
}

func TestCurrentSessionAutoCreates(t *testing.T) {
	store := NewStore(nil)

	session := store.CurrentSession()
	if session.ID == "" {
		t.Fatal("expected an auto-created session")
	}
	if session.Title != DefaultTitle {
		t.Errorf("expected title %q, got %q", DefaultTitle, session.Title)
	}
	if len(session.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(session.Messages))
	}
	if got := len(store.Sessions()); got != 1 {
		t.Errorf("expected exactly one session, got %d", got)
	}
}

func TestCurrentSessionIdempotent(t *testing.T) {
	store := NewStore(nil)

	a := store.CurrentSession()
	b := store.CurrentSession()
	if a.ID != b.ID || a.Title != b.Title || !a.UpdatedAt.Equal(b.UpdatedAt) {
		t.Errorf("consecutive reads differ: %+v vs %+v", a, b)
	}
}

func TestTitleShortContentVerbatim(t *testing.T) {
	store := NewStore(nil)

	session := store.AppendMessage(context.Background(), NewMessage(RoleUser, "Hi"))
	if session.Title != "Hi" {
		t.Errorf("expected title %q, got %q", "Hi", session.Title)
	}
}

func TestTitleLongContentTruncated(t *testing.T) {
	store := NewStore(nil)

	content := "Hello there, how are you doing today?"
	session := store.AppendMessage(context.Background(), NewMessage(RoleUser, content))

	want := string([]rune(content)[:30]) + "..."
	if session.Title != want {
		t.Errorf("expected title %q, got %q", want, session.Title)
	}
}

func TestTitleDerivedOnce(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	first := store.AppendMessage(ctx, NewMessage(RoleUser, "first question"))
	store.AppendMessage(ctx, NewMessage(RoleAssistant, "an answer"))
	second := store.AppendMessage(ctx, NewMessage(RoleUser, "a much better title candidate"))

	if second.Title != first.Title {
		t.Errorf("title was recomputed: %q -> %q", first.Title, second.Title)
	}
}

func TestTitleNotDerivedFromAssistant(t *testing.T) {
	store := NewStore(nil)

	session := store.AppendMessage(context.Background(), NewMessage(RoleAssistant, "welcome"))
	if session.Title != DefaultTitle {
		t.Errorf("expected title %q, got %q", DefaultTitle, session.Title)
	}
}

func TestDeriveTitle(t *testing.T) {
	if got := DeriveTitle(nil); got != DefaultTitle {
		t.Errorf("empty list: expected %q, got %q", DefaultTitle, got)
	}
	msgs := []Message{{Role: RoleSystem, Content: "prompt"}, {Role: RoleAssistant, Content: "hello"}}
	if got := DeriveTitle(msgs); got != DefaultTitle {
		t.Errorf("no user message: expected %q, got %q", DefaultTitle, got)
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: "short"})
	if got := DeriveTitle(msgs); got != "short" {
		t.Errorf("expected %q, got %q", "short", got)
	}
}

func TestUpdatedAtMonotonic(t *testing.T) {
	store := NewStore(nil)
	clock := time.Unix(1000, 0)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	ctx := context.Background()

	prev := store.CurrentSession().UpdatedAt
	for i := 0; i < 5; i++ {
		session := store.AppendMessage(ctx, NewMessage(RoleUser, "msg"))
		if session.UpdatedAt.Before(prev) {
			t.Fatalf("UpdatedAt went backwards: %v -> %v", prev, session.UpdatedAt)
		}
		if !session.UpdatedAt.Equal(clock) {
			t.Fatalf("UpdatedAt %v does not match append time %v", session.UpdatedAt, clock)
		}
		prev = session.UpdatedAt
	}
}

func TestAppendOrdering(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	contents := []string{"one", "two", "three", "four"}
	for _, c := range contents {
		store.AppendMessage(ctx, NewMessage(RoleUser, c))
	}

	session := store.CurrentSession()
	if len(session.Messages) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(session.Messages))
	}
	for i, c := range contents {
		if session.Messages[i].Content != c {
			t.Errorf("position %d: expected %q, got %q", i, c, session.Messages[i].Content)
		}
	}
}

func TestSelectSessionNotFound(t *testing.T) {
	store := NewStore(nil)
	current := store.CurrentSession()

	if err := store.SelectSession("no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if got := store.CurrentSession(); got.ID != current.ID {
		t.Errorf("current session changed on failed select: %q -> %q", current.ID, got.ID)
	}
}

func TestCreateSessionPrepends(t *testing.T) {
	store := NewStore(nil)
	first := store.CreateSession()
	second := store.CreateSession()

	sessions := store.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != second.ID || sessions[1].ID != first.ID {
		t.Errorf("expected newest-first ordering, got %q then %q", sessions[0].ID, sessions[1].ID)
	}
	if store.CurrentSession().ID != second.ID {
		t.Errorf("expected new session to become current")
	}
}

func TestSwitchingAffectsOnlyCurrentSession(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	first := store.CreateSession()
	second := store.CreateSession()

	if err := store.SelectSession(first.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	store.AppendMessage(ctx, NewMessage(RoleUser, "routed to first"))

	got1, err := store.Session(first.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	got2, err := store.Session(second.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	if len(got1.Messages) != 1 || got1.Title != "routed to first" {
		t.Errorf("first session not updated: %+v", got1)
	}
	if len(got2.Messages) != 0 || got2.Title != DefaultTitle || !got2.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("second session was touched: %+v", got2)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	store := NewStore(nil)
	store.AppendMessage(context.Background(), NewMessage(RoleUser, "original"))

	snapshot := store.CurrentSession()
	snapshot.Messages[0].Content = "tampered"
	snapshot.Title = "tampered"

	if got := store.CurrentSession(); got.Messages[0].Content != "original" || got.Title == "tampered" {
		t.Errorf("snapshot mutation leaked into the store: %+v", got)
	}
}

func TestRebuildSession(t *testing.T) {
	t0 := time.Unix(5000, 0)
	msgs := []Message{
		{ID: "a", Role: RoleUser, Content: "archived question", Timestamp: t0},
		{ID: "b", Role: RoleAssistant, Content: "archived answer", Timestamp: t0.Add(time.Minute)},
	}

	session := RebuildSession("sess-1", msgs)
	if session.ID != "sess-1" {
		t.Errorf("id %q", session.ID)
	}
	if session.Title != "archived question" {
		t.Errorf("title %q", session.Title)
	}
	if !session.CreatedAt.Equal(t0) || !session.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("timestamps: %v / %v", session.CreatedAt, session.UpdatedAt)
	}

	empty := RebuildSession("sess-2", nil)
	if empty.Title != DefaultTitle {
		t.Errorf("empty session title %q", empty.Title)
	}
}

type recordingArchiver struct {
	sessionIDs []string
	messages   []Message
	err        error
}

func (a *recordingArchiver) StoreMessage(_ context.Context, sessionID string, msg Message) error {
	a.sessionIDs = append(a.sessionIDs, sessionID)
	a.messages = append(a.messages, msg)
	return a.err
}

func (a *recordingArchiver) LoadSessions(context.Context, string) ([]Session, error) {
	return nil, nil
}

func TestArchiverReceivesAppends(t *testing.T) {
	archiver := &recordingArchiver{}
	store := NewStore(archiver)

	session := store.AppendMessage(context.Background(), NewMessage(RoleUser, "persist me"))

	if len(archiver.messages) != 1 {
		t.Fatalf("expected 1 archived message, got %d", len(archiver.messages))
	}
	if archiver.sessionIDs[0] != session.ID {
		t.Errorf("archived under %q, expected %q", archiver.sessionIDs[0], session.ID)
	}
	if archiver.messages[0].Content != "persist me" {
		t.Errorf("archived content %q", archiver.messages[0].Content)
	}
}

func TestArchiverFailureDoesNotFailAppend(t *testing.T) {
	archiver := &recordingArchiver{err: errors.New("bucket down")}
	store := NewStore(archiver)

	session := store.AppendMessage(context.Background(), NewMessage(RoleUser, "still appended"))
	if len(session.Messages) != 1 {
		t.Errorf("append lost on archive failure: %+v", session)
	}
}
