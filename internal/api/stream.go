package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"unlabel/backend/internal/agent"
	"unlabel/backend/internal/store"
)

// Event types sent over the agent progress websocket.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
)

// Run statuses beyond the agent's own in_progress and completed.
const (
	StatusQueued = "queued"
	StatusFailed = "failed"
)

// ProgressEvent describes websocket payloads emitted during agent runs.
type ProgressEvent struct {
	Type      string        `json:"type"`
	RunID     string        `json:"run_id"`
	Step      int           `json:"step,omitempty"`
	Total     int           `json:"total,omitempty"`
	Message   string        `json:"message,omitempty"`
	Status    string        `json:"status,omitempty"`
	Result    *agent.Result `json:"result,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn  *websocket.Conn
	runID string
	mu    sync.Mutex
}

// ProgressNotifier fans agent progress out to websocket clients and records
// it on the AgentRun row. It implements agent.ProgressSink.
type ProgressNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus map[string]*ProgressEvent
	db         *store.Database
}

// NewProgressNotifier constructs a notifier. db may be nil.
func NewProgressNotifier(db *store.Database) *ProgressNotifier {
	return &ProgressNotifier{
		clients:    make(map[*wsClient]struct{}),
		lastStatus: make(map[string]*ProgressEvent),
		db:         db,
	}
}

// Register attaches a websocket connection. A non-empty runID limits the
// client to that run and replays its latest status.
func (n *ProgressNotifier) Register(conn *websocket.Conn, runID string) *wsClient {
	client := &wsClient{conn: conn, runID: runID}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	var status *ProgressEvent
	if runID != "" {
		status = n.lastStatus[runID]
	}
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *ProgressNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the event to every client subscribed to its run.
func (n *ProgressNotifier) Broadcast(event ProgressEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	defer n.mu.Unlock()
	if event.Type == EventProgress && event.Status == agent.StatusInProgress {
		snapshot := event
		n.lastStatus[event.RunID] = &snapshot
	} else {
		delete(n.lastStatus, event.RunID)
	}

	for client := range n.clients {
		if client.runID != "" && client.runID != event.RunID {
			continue
		}
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
}

// Report implements agent.ProgressSink.
func (n *ProgressNotifier) Report(_ context.Context, p agent.Progress) {
	event := ProgressEvent{
		Type:    EventProgress,
		RunID:   p.RunID,
		Step:    p.Step,
		Total:   p.Total,
		Message: p.Message,
		Status:  p.Status,
	}
	n.Broadcast(event)
	n.persist(&store.AgentRun{
		RunID:   p.RunID,
		Status:  p.Status,
		Message: p.Message,
		Step:    p.Step,
		Total:   p.Total,
	}, event)
}

// Finish broadcasts the terminal event of a run and stores its result or error.
func (n *ProgressNotifier) Finish(run *store.AgentRun, result *agent.Result, runErr error) {
	event := ProgressEvent{Type: EventResult, RunID: run.RunID, Status: agent.StatusCompleted, Result: result}
	if runErr != nil {
		reason := publicReason(runErr)
		event = ProgressEvent{Type: EventError, RunID: run.RunID, Status: StatusFailed, Message: reason}
		run.Status = StatusFailed
		run.Error = reason
		run.Message = "Agent error: " + reason
	} else {
		run.Status = agent.StatusCompleted
		run.Message = "Analysis complete!"
		run.Step = result.TotalSteps + 1
		run.Total = result.TotalSteps + 1
		if payload, err := json.Marshal(result); err == nil {
			run.ResultJSON = string(payload)
		}
	}
	n.Broadcast(event)
	n.persist(run, ProgressEvent{Type: event.Type, RunID: event.RunID, Status: event.Status, Message: event.Message})
}

func (n *ProgressNotifier) persist(run *store.AgentRun, last ProgressEvent) {
	if n.db == nil {
		return
	}
	if payload, err := json.Marshal(last); err == nil {
		run.LastEventJSON = string(payload)
	}
	if err := n.db.SaveAgentRun(run); err != nil {
		logrus.WithError(err).WithField("run_id", run.RunID).Warn("persist agent run")
	}
}

// LastStatus returns the latest in-progress event of a run.
func (n *ProgressNotifier) LastStatus(runID string) *ProgressEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	status, ok := n.lastStatus[runID]
	if !ok {
		return nil
	}
	copy := *status
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
