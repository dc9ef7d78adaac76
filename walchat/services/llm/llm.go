package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"walchat/walchat/config"
	httputils "walchat/walchat/utils/http"
	"walchat/walchat/utils/logging"

	"go.uber.org/zap"
)

// ErrGenerationFailed covers an unreachable backend, a non-success status and
// request serialization failures. The cause is attached via %w wrapping.
var ErrGenerationFailed = errors.New("generation failed")

type Client struct {
	baseURL     string
	model       string
	temperature float64
	maxDuration time.Duration
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL:     cfg.LLMBaseURL,
		model:       cfg.LLMModel,
		temperature: cfg.LLMTemperature,
		maxDuration: cfg.LLMMaxDuration,
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

type Options struct {
	Temperature float64 `json:"temperature"`
}

type ChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// FragmentStream is a finite, in-order, consume-once sequence of reply
// fragments. Fragments() closes when the reply is complete, the call timed
// out, or the stream was closed; Err() is valid once Fragments() is closed.
type FragmentStream interface {
	Fragments() <-chan string
	Err() error
	Close()
}

type stream struct {
	ch     chan string
	cancel context.CancelFunc
	err    error
}

func (s *stream) Fragments() <-chan string { return s.ch }

// Err reports why the stream ended: nil on completion, context.Canceled
// after Close, context.DeadlineExceeded on timeout, ErrGenerationFailed
// otherwise. Only valid after Fragments() is closed.
func (s *stream) Err() error { return s.err }

// Close stops fragment production. Safe to call more than once.
func (s *stream) Close() { s.cancel() }

// Run issues one blocking chat call and returns the full reply.
func (c *Client) Run(ctx context.Context, history []Message) (string, error) {
	defer logging.LogDuration(ctx, "llm_run")()

	ctx, cancel := context.WithTimeout(ctx, c.maxDuration)
	defer cancel()

	var resp ChatResponse
	if err := httputils.PostJSON(ctx, c.baseURL+"/chat", c.request(history, false), &resp); err != nil {
		return "", wrapCallError(ctx, err)
	}
	return resp.Message.Content, nil
}

// RunStream issues one chat call and exposes the reply as a fragment stream.
// The whole call, consumption included, is bounded by the configured max
// duration.
func (c *Client) RunStream(ctx context.Context, history []Message) (FragmentStream, error) {
	defer logging.LogDuration(ctx, "llm_run_stream")()

	ctx, cancel := context.WithCancel(ctx)
	ctx, timeout := context.WithTimeout(ctx, c.maxDuration)

	body, err := httputils.PostStream(ctx, c.baseURL+"/chat", c.request(history, true))
	if err != nil {
		err = wrapCallError(ctx, err)
		timeout()
		cancel()
		return nil, err
	}

	s := &stream{
		ch:     make(chan string),
		cancel: cancel,
	}

	go func() {
		defer func() {
			close(s.ch)
			timeout()
			cancel()
			body.Close()
		}()

		decoder := json.NewDecoder(body)
		for {
			var chunk ChatResponse
			if err := decoder.Decode(&chunk); err != nil {
				if err == io.EOF {
					return
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					s.err = ctxErr
					return
				}
				logging.ErrorLogger.Error("llm stream decode error", zap.Error(err))
				s.err = fmt.Errorf("%w: %v", ErrGenerationFailed, err)
				return
			}
			if chunk.Done {
				return
			}
			select {
			case s.ch <- chunk.Message.Content:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
	}()

	return s, nil
}

func (c *Client) request(history []Message, stream bool) ChatRequest {
	return ChatRequest{
		Model:    c.model,
		Messages: history,
		Stream:   stream,
		Options:  &Options{Temperature: c.temperature},
	}
}

func wrapCallError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
}
