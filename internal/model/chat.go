package model

// ChatRole is the speaker of a chat turn.
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is a single turn of an assistant chat session.
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// ChatRequest is the request body for a chat turn.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatResponse is returned after a non-streaming chat turn.
type ChatResponse struct {
	SessionID string        `json:"sessionId"`
	Reply     ChatMessage   `json:"reply"`
	History   []ChatMessage `json:"history"`
}

// TokenEvent is a streamed chunk of a model reply.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// ErrorEvent is sent over a stream when a turn fails.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
