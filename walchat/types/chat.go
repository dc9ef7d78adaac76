package types

import "time"

type ConnectRequest struct {
	Address string `json:"address"`
}

type ConnectResponse struct {
	Token string `json:"token"`
}

type ChatRequest struct {
	Content string `json:"content"`
}

// SessionSummary is what the sessions panel renders.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SessionListResponse struct {
	CurrentSessionID string           `json:"current_session_id"`
	Sessions         []SessionSummary `json:"sessions"`
}
