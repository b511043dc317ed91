package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Input types recorded on AnalysisHistory rows.
const (
	InputText       = "text"
	InputImage      = "image"
	InputComparison = "comparison"
	InputAgent      = "agent"
)

// AnalysisHistory is one completed analysis owned by a user.
type AnalysisHistory struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	UserID         string  `gorm:"size:255;index" json:"user_id"`
	InputType      string  `gorm:"size:32;index" json:"input_type"`
	InputContent   string  `gorm:"type:text" json:"input_content"`
	Title          *string `gorm:"size:255" json:"title"`
	Summary        string  `gorm:"type:text" json:"summary"`
	FullResultJSON string  `gorm:"type:text" json:"-"`
	// CreatedAt is indexed for the newest-first history listing.
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName keeps the table name stable across renames of the Go type.
func (AnalysisHistory) TableName() string {
	return "analysis_history"
}

// SetFullResult stores result as JSON.
func (h *AnalysisHistory) SetFullResult(result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	h.FullResultJSON = string(payload)
	return nil
}

// FullResult returns the stored result as raw JSON, or null when empty.
func (h *AnalysisHistory) FullResult() json.RawMessage {
	if strings.TrimSpace(h.FullResultJSON) == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(h.FullResultJSON)
}

// AgentRun persists autonomous agent progress across restarts.
type AgentRun struct {
	RunID         string `gorm:"primaryKey;size:64"`
	UserID        string `gorm:"size:255;index"`
	Status        string `gorm:"size:32;index"`
	Message       string `gorm:"size:255"`
	Step          int
	Total         int
	LastEventJSON string `gorm:"type:text"`
	ResultJSON    string `gorm:"type:text"`
	Error         string `gorm:"type:text"`
	UpdatedAt     time.Time
	CreatedAt     time.Time
}
