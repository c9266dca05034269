package models

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type DietTextResponse struct {
	OK     bool   `json:"ok"`
	Day    string `json:"day"`
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
}

type DietAudioResponse struct {
	OK    bool   `json:"ok"`
	Saved string `json:"saved"`
	Note  string `json:"note"`
}

type ExerciseResponse struct {
	OK    bool   `json:"ok"`
	Saved string `json:"saved"`
	Rows  int    `json:"rows"`
}

type ReindexResponse struct {
	OK     bool `json:"ok"`
	Count  int  `json:"count"`
	Chunks int  `json:"chunks"`
}

type ReportResponse struct {
	OK         bool   `json:"ok"`
	RunID      string `json:"run_id"`
	Day        string `json:"day"`
	ReportPath string `json:"report_path"`
	ReportMD   string `json:"report_md"`
}

// CheckpointResponse is the last saved graph state of a run.
type CheckpointResponse struct {
	OK        bool            `json:"ok"`
	RunID     string          `json:"run_id"`
	Graph     string          `json:"graph"`
	Node      string          `json:"node"`
	Seq       int             `json:"seq"`
	UserID    string          `json:"user_id"`
	Day       string          `json:"day"`
	CreatedAt time.Time       `json:"created_at"`
	State     json.RawMessage `json:"state"`
}

type LatestReportResponse struct {
	OK   bool   `json:"ok"`
	Path string `json:"path"`
	Body string `json:"body"`
}

type QueryResponse struct {
	OK      bool     `json:"ok"`
	Answer  string   `json:"answer"`
	Context []string `json:"context"`
}

type ChatResponse struct {
	OK        bool   `json:"ok"`
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}
