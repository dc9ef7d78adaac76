package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"walchat/walchat/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTitle is the title a session carries until its first user message.
const DefaultTitle = "New Chat"

// titleRunes is how much of the first user message becomes the title.
const titleRunes = 30

var ErrSessionNotFound = errors.New("session not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.New().String(),
		Role:    role,
		Content: content,
	}
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Archiver is the optional durable-storage hook. Implementations archive each
// appended message; failures are logged, never propagated into the append.
type Archiver interface {
	StoreMessage(ctx context.Context, sessionID string, msg Message) error
	LoadSessions(ctx context.Context, userID string) ([]Session, error)
}

// Store is the in-memory session registry. It owns every Session and Message
// it hands out: reads return copies, and all mutation goes through Store
// methods, which is what keeps the title/UpdatedAt rules enforceable.
type Store struct {
	mu        sync.RWMutex
	sessions  []*Session // most recently created first
	currentID string
	now       func() time.Time
	archiver  Archiver
}

// NewStore builds an empty store. archiver may be nil.
func NewStore(archiver Archiver) *Store {
	return &Store{
		now:      time.Now,
		archiver: archiver,
	}
}

// CreateSession prepends a fresh session and makes it current.
func (s *Store) CreateSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.createSessionLocked())
}

func (s *Store) createSessionLocked() *Session {
	now := s.now()
	session := &Session{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions = append([]*Session{session}, s.sessions...)
	s.currentID = session.ID
	return session
}

// SelectSession switches the current session. Unknown ids return
// ErrSessionNotFound and leave the current session untouched.
func (s *Store) SelectSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.ID == id {
			s.currentID = id
			return nil
		}
	}
	return ErrSessionNotFound
}

// AppendMessage appends msg to the current session, stamps UpdatedAt, and
// derives the title on the first user message. Returns a snapshot of the
// session after the append.
func (s *Store) AppendMessage(ctx context.Context, msg Message) Session {
	s.mu.Lock()
	session := s.currentLocked()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	wasEmpty := len(session.Messages) == 0
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = s.now()
	if wasEmpty && msg.Role == RoleUser {
		session.Title = DeriveTitle(session.Messages)
	}
	snapshot := cloneSession(session)
	s.mu.Unlock()

	if s.archiver != nil {
		if err := s.archiver.StoreMessage(ctx, snapshot.ID, msg); err != nil {
			logging.ErrorLogger.Error("message archive failed",
				zap.String("session_id", snapshot.ID),
				zap.Error(err),
			)
		}
	}
	return snapshot
}

// CurrentSession returns a snapshot of the current session, creating the
// first session on demand.
func (s *Store) CurrentSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.currentLocked())
}

// Session returns a snapshot of one session by id.
func (s *Store) Session(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.ID == id {
			return cloneSession(session), nil
		}
	}
	return Session{}, ErrSessionNotFound
}

// Sessions returns snapshots of every session, newest-created first.
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, cloneSession(session))
	}
	return out
}

// currentLocked resolves the current session, auto-creating the first one so
// callers never see an empty registry.
func (s *Store) currentLocked() *Session {
	if len(s.sessions) == 0 {
		return s.createSessionLocked()
	}
	for _, session := range s.sessions {
		if session.ID == s.currentID {
			return session
		}
	}
	// currentID should always resolve; fall back rather than panic.
	s.currentID = s.sessions[0].ID
	return s.sessions[0]
}

// DeriveTitle is the title rule: first user message, truncated to 30 runes
// with a "..." marker when longer. Empty lists and lists without a user
// message keep the default title.
func DeriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) <= titleRunes {
			return m.Content
		}
		return string(runes[:titleRunes]) + "..."
	}
	return DefaultTitle
}

// RebuildSession reconstructs a session snapshot from archived messages,
// already ordered by timestamp. Used by archive backends for LoadSessions.
func RebuildSession(id string, messages []Message) Session {
	session := Session{
		ID:       id,
		Title:    DeriveTitle(messages),
		Messages: messages,
	}
	if len(messages) > 0 {
		session.CreatedAt = messages[0].Timestamp
		session.UpdatedAt = messages[len(messages)-1].Timestamp
	}
	return session
}

func cloneSession(s *Session) Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}
