package controllers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"walchat/walchat/services/llm"
	"walchat/walchat/sources/memstore"
	"walchat/walchat/utils/logging"

	"go.uber.org/zap"
)

var (
	// ErrEmptyMessage rejects whitespace-only submissions before any
	// state mutation.
	ErrEmptyMessage = errors.New("empty message")
	// ErrGenerationInFlight rejects a submission while one is already
	// running for the same session.
	ErrGenerationInFlight = errors.New("generation already in flight")
)

// Generator is the streaming text backend as the controller sees it.
// *llm.Client satisfies it.
type Generator interface {
	Run(ctx context.Context, history []llm.Message) (string, error)
	RunStream(ctx context.Context, history []llm.Message) (llm.FragmentStream, error)
}

// ChatController glues one session store to the generation backend. One
// submission cycle may be in flight per session; the user message is always
// appended before the backend call and never rolled back.
type ChatController struct {
	store     *memstore.Store
	generator Generator

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewChatController(store *memstore.Store, generator Generator) *ChatController {
	return &ChatController{
		store:     store,
		generator: generator,
		inFlight:  make(map[string]bool),
	}
}

// Store exposes the underlying session store for read routes.
func (c *ChatController) Store() *memstore.Store { return c.store }

// Chat runs one full submission cycle and appends the assistant reply in one
// piece. The returned session reflects the state after the cycle; on
// generation failure it still contains the user message.
func (c *ChatController) Chat(ctx context.Context, text string) (memstore.Session, error) {
	trimmed, sessionID, err := c.begin(text)
	if err != nil {
		return memstore.Session{}, err
	}
	defer c.finish(sessionID)

	session := c.store.AppendMessage(ctx, memstore.NewMessage(memstore.RoleUser, trimmed))

	content, err := c.generator.Run(ctx, history(session))
	if err != nil {
		logging.ErrorLogger.Error("generation failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return session, err
	}
	return c.store.AppendMessage(ctx, memstore.NewMessage(memstore.RoleAssistant, content)), nil
}

// ChatStream runs one submission cycle, relaying reply fragments as they
// arrive. On completion the concatenated reply is appended as one assistant
// message. Timeout and backend failures surface on the error channel and
// append nothing; if ctx is cancelled mid-stream the fragments received so
// far are appended as the final, truncated reply.
func (c *ChatController) ChatStream(ctx context.Context, text string) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	trimmed, sessionID, err := c.begin(text)
	if err != nil {
		errCh <- err
		close(out)
		close(errCh)
		return out, errCh
	}

	session := c.store.AppendMessage(ctx, memstore.NewMessage(memstore.RoleUser, trimmed))

	stream, err := c.generator.RunStream(ctx, history(session))
	if err != nil {
		c.finish(sessionID)
		logging.ErrorLogger.Error("generation failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		errCh <- err
		close(out)
		close(errCh)
		return out, errCh
	}

	go func() {
		defer close(out)
		defer close(errCh)
		defer c.finish(sessionID)

		var full strings.Builder
		for fragment := range stream.Fragments() {
			full.WriteString(fragment)
			select {
			case out <- fragment:
			case <-ctx.Done():
				stream.Close()
				for range stream.Fragments() {
				}
			}
		}

		switch streamErr := stream.Err(); {
		case streamErr == nil:
			c.appendAssistant(sessionID, full.String())
		case errors.Is(streamErr, context.Canceled):
			// Caller stopped the stream; keep what arrived as the
			// final truncated reply.
			if full.Len() > 0 {
				c.appendAssistant(sessionID, full.String())
			}
		default:
			logging.ErrorLogger.Error("generation failed",
				zap.String("session_id", sessionID),
				zap.Error(streamErr),
			)
			errCh <- streamErr
		}
	}()

	return out, errCh
}

// NewSession creates a fresh session and makes it current.
func (c *ChatController) NewSession() memstore.Session {
	return c.store.CreateSession()
}

// Sessions lists every session, newest-created first.
func (c *ChatController) Sessions() []memstore.Session {
	return c.store.Sessions()
}

// SelectSession switches the current session.
func (c *ChatController) SelectSession(id string) error {
	return c.store.SelectSession(id)
}

// SessionMessages returns the messages of one session.
func (c *ChatController) SessionMessages(id string) ([]memstore.Message, error) {
	session, err := c.store.Session(id)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

func (c *ChatController) begin(text string) (string, string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", "", ErrEmptyMessage
	}
	sessionID := c.store.CurrentSession().ID

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[sessionID] {
		return "", "", ErrGenerationInFlight
	}
	c.inFlight[sessionID] = true
	return trimmed, sessionID, nil
}

func (c *ChatController) finish(sessionID string) {
	c.mu.Lock()
	delete(c.inFlight, sessionID)
	c.mu.Unlock()
}

func (c *ChatController) appendAssistant(sessionID, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.store.AppendMessage(ctx, memstore.NewMessage(memstore.RoleAssistant, content))
	logging.AppLogger.Info("assistant reply appended",
		zap.String("session_id", sessionID),
		zap.Int("content_len", len(content)),
	)
}

func history(session memstore.Session) []llm.Message {
	out := make([]llm.Message, 0, len(session.Messages))
	for _, m := range session.Messages {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
