package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"walchat/walchat/config"
	"walchat/walchat/controllers"
	"walchat/walchat/middlewares"
	"walchat/walchat/services/llm"
	"walchat/walchat/sources/memstore"
	"walchat/walchat/types"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

func ChatRoutes(hub *controllers.Hub, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		// POST /chat/ : one full submission cycle
		gr.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req types.ChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ctrl := controllerFor(hub, r)
			session, err := ctrl.Chat(r.Context(), req.Content)
			if err != nil {
				http.Error(w, err.Error(), statusFor(err))
				return
			}
			json.NewEncoder(w).Encode(session)
		})

		// POST /chat/sessions : start a new session
		gr.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
			session := controllerFor(hub, r).NewSession()
			json.NewEncoder(w).Encode(session)
		})

		// GET /chat/sessions : list sessions, newest-created first
		gr.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
			ctrl := controllerFor(hub, r)
			sessions := ctrl.Sessions()
			resp := types.SessionListResponse{
				CurrentSessionID: ctrl.Store().CurrentSession().ID,
				Sessions:         make([]types.SessionSummary, 0, len(sessions)),
			}
			for _, s := range sessions {
				resp.Sessions = append(resp.Sessions, types.SessionSummary{
					ID:           s.ID,
					Title:        s.Title,
					MessageCount: len(s.Messages),
					CreatedAt:    s.CreatedAt,
					UpdatedAt:    s.UpdatedAt,
				})
			}
			json.NewEncoder(w).Encode(resp)
		})

		// POST /chat/sessions/{session_id}/select : switch current session
		gr.Post("/sessions/{session_id}/select", func(w http.ResponseWriter, r *http.Request) {
			err := controllerFor(hub, r).SelectSession(chi.URLParam(r, "session_id"))
			if err != nil {
				http.Error(w, err.Error(), statusFor(err))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		// GET /chat/sessions/{session_id}/messages : full transcript
		gr.Get("/sessions/{session_id}/messages", func(w http.ResponseWriter, r *http.Request) {
			msgs, err := controllerFor(hub, r).SessionMessages(chi.URLParam(r, "session_id"))
			if err != nil {
				http.Error(w, err.Error(), statusFor(err))
				return
			}
			json.NewEncoder(w).Encode(msgs)
		})
	})

	// GET /chat/ws : streamed submission cycle; the first frame carries the
	// token since browsers cannot set headers on websocket upgrades.
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")

		ctx := r.Context()
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "unsupported data")
			return
		}
		var input struct {
			Token       string            `json:"token"`
			ChatRequest types.ChatRequest `json:"chat_request"`
		}
		if err := json.Unmarshal(data, &input); err != nil {
			conn.Write(ctx, websocket.MessageText, []byte(`{"error":"invalid json"}`))
			return
		}

		address, err := middlewares.ParseAddress(input.Token, cfg.JWTSecret)
		if err != nil {
			conn.Write(ctx, websocket.MessageText, []byte(`{"error":"invalid token"}`))
			conn.Close(websocket.StatusPolicyViolation, "invalid token")
			return
		}

		ctrl := hub.Controller(address)
		ch, errCh := ctrl.ChatStream(ctx, input.ChatRequest.Content)
		for chunk := range ch {
			if err := conn.Write(ctx, websocket.MessageText, []byte(chunk)); err != nil {
				return
			}
		}
		if err := <-errCh; err != nil {
			conn.Write(ctx, websocket.MessageText, []byte(`{"error":"`+err.Error()+`"}`))
			conn.Close(websocket.StatusInternalError, "stream error")
			return
		}
		conn.Close(websocket.StatusNormalClosure, "")
	})
	return r
}

func controllerFor(hub *controllers.Hub, r *http.Request) *controllers.ChatController {
	address := r.Context().Value(middlewares.AddressKey).(string)
	return hub.Controller(address)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, controllers.ErrEmptyMessage), errors.Is(err, controllers.ErrGenerationInFlight):
		return http.StatusBadRequest
	case errors.Is(err, memstore.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
