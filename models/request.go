package models

// DefaultUserID is used whenever a request omits the user id.
const DefaultUserID = "default_user"

type DietTextRequest struct {
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
	Note   string `json:"note,omitempty"`
}

type ExerciseRequest struct {
	UserID  string `json:"user_id,omitempty"`
	Source  string `json:"source" binding:"required"`
	CSVText string `json:"csv_text" binding:"required"`
}

type ReportRequest struct {
	UserID string `json:"user_id,omitempty"`
	Day    string `json:"day,omitempty"` // YYYY-MM-DD; default: today
}

type QueryRequest struct {
	UserID   string `json:"user_id,omitempty"`
	Question string `json:"question" binding:"required"`
}

// ChatTurn is one message of a client-supplied chat history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message   string     `json:"message" binding:"required"`
	History   []ChatTurn `json:"history,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
}
