package api

import (
	"encoding/json"
	"strings"
	"time"

	"unlabel/backend/internal/store"
)

// TextRequest carries raw label text for the single-shot analyzer.
type TextRequest struct {
	Text string `json:"text"`
}

// AgentRequest starts an autonomous analysis. Either Text or ImageBase64 is required.
type AgentRequest struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Query       string `json:"query"`
}

// StartAgentResponse describes an asynchronous agent run kickoff.
type StartAgentResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// AgentRunDTO is the API representation of a persisted agent run.
type AgentRunDTO struct {
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Step      int             `json:"step"`
	Total     int             `json:"total"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AgentRunFromModel converts a stored run.
func AgentRunFromModel(run store.AgentRun) AgentRunDTO {
	dto := AgentRunDTO{
		RunID:     run.RunID,
		Status:    run.Status,
		Message:   run.Message,
		Step:      run.Step,
		Total:     run.Total,
		Error:     run.Error,
		UpdatedAt: run.UpdatedAt,
	}
	if strings.TrimSpace(run.ResultJSON) != "" {
		dto.Result = json.RawMessage(run.ResultJSON)
	}
	return dto
}

// HistoryDTO is the API representation of an AnalysisHistory row.
type HistoryDTO struct {
	ID           uint            `json:"id"`
	InputType    string          `json:"input_type"`
	InputContent string          `json:"input_content"`
	Title        *string         `json:"title"`
	Summary      string          `json:"summary"`
	FullResult   json.RawMessage `json:"full_result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HistoryFromModel converts a row; the full result is only included for detail views.
func HistoryFromModel(h store.AnalysisHistory, withResult bool) HistoryDTO {
	dto := HistoryDTO{
		ID:           h.ID,
		InputType:    h.InputType,
		InputContent: h.InputContent,
		Title:        h.Title,
		Summary:      h.Summary,
		CreatedAt:    h.CreatedAt,
	}
	if withResult {
		dto.FullResult = h.FullResult()
	}
	return dto
}

// HistoryResponse pages history rows.
type HistoryResponse struct {
	Items []HistoryDTO `json:"items"`
	Total int64        `json:"total"`
}

// RenameRequest sets or clears a history title.
type RenameRequest struct {
	Title string `json:"title"`
}

// FoodResponse mirrors the food database envelope the frontend expects.
type FoodResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// ConfigResponse reports the active capability setup and limits.
type ConfigResponse struct {
	AIEnabled       bool     `json:"ai_enabled"`
	Providers       []string `json:"providers"`
	AgentMaxSteps   int      `json:"agent_max_steps"`
	MaxTranslations int      `json:"max_translations"`
	ImageArchive    bool     `json:"image_archive"`
}
