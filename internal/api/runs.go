package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"unlabel/backend/internal/agent"
	"unlabel/backend/internal/pipeline"
	"unlabel/backend/internal/store"
)

var errRunCancelled = errors.New("agent run cancelled")

func (s *Server) handleAgent(c *gin.Context) {
	in, err := s.bindAgentInput(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	run := s.newRun(in.RunID, userID(c), agent.StatusInProgress)
	result, err := s.agent.Run(c.Request.Context(), in, s.notifier)
	if err != nil {
		s.notifier.Finish(run, nil, err)
		if errors.Is(err, pipeline.ErrEmptyInput) {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
		logrus.WithError(err).WithField("run_id", in.RunID).Error("agent run failed")
		s.renderFailure(c, http.StatusInternalServerError, "Agent error: ", err)
		return
	}
	s.notifier.Finish(run, &result, nil)
	s.recordHistory(c, store.InputAgent, agentContent(in), result.Synthesis.ExecutiveSummary, result)
	c.JSON(http.StatusOK, result)
}

// handleStartAgent runs the agent in the background and returns at once;
// progress goes to the websocket stream and the run record.
func (s *Server) handleStartAgent(c *gin.Context) {
	in, err := s.bindAgentInput(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	owner := userID(c)
	run := s.newRun(in.RunID, owner, StatusQueued)
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.runMu.Lock()
	s.runs[in.RunID] = cancel
	s.runMu.Unlock()

	s.runWG.Add(1)
	go s.runAgent(ctx, run, owner, in)

	c.JSON(http.StatusAccepted, StartAgentResponse{
		RunID:     in.RunID,
		Status:    StatusQueued,
		StartedAt: run.CreatedAt,
	})
}

func (s *Server) runAgent(ctx context.Context, run *store.AgentRun, owner string, in agent.Input) {
	defer s.runWG.Done()

	log := logrus.WithField("run_id", in.RunID)
	log.Info("background agent run started")
	result, err := s.agent.Run(ctx, in, s.notifier)
	if ctx.Err() != nil {
		err = errRunCancelled
	}
	s.forgetRun(in.RunID)
	if err != nil {
		log.WithError(err).Warn("background agent run failed")
		s.notifier.Finish(run, nil, err)
		return
	}
	s.notifier.Finish(run, &result, nil)

	row := &store.AnalysisHistory{
		UserID:       owner,
		InputType:    store.InputAgent,
		InputContent: agentContent(in),
		Summary:      result.Synthesis.ExecutiveSummary,
	}
	if err := row.SetFullResult(result); err == nil {
		if err := s.db.SaveHistory(row); err != nil {
			log.WithError(err).Warn("save analysis history")
		}
	}
	log.WithField("total_steps", result.TotalSteps).Info("background agent run complete")
}

// forgetRun releases the cancel func of a finished background run.
func (s *Server) forgetRun(runID string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if cancel, ok := s.runs[runID]; ok {
		cancel()
		delete(s.runs, runID)
	}
}

func (s *Server) handleAgentRun(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("id"))
	run, err := s.db.GetAgentRun(runID)
	if err != nil || run.UserID != userID(c) {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("run %s not found", runID))
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, AgentRunFromModel(*run))
}

func (s *Server) handleCancelAgent(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("id"))
	if runID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("run id required"))
		return
	}

	errNoRun := errors.New("no agent run in progress with that id")
	run, err := s.db.GetAgentRun(runID)
	if err != nil || run.UserID != userID(c) {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, errNoRun)
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	s.runMu.Lock()
	cancel, ok := s.runs[runID]
	s.runMu.Unlock()
	if !ok {
		s.renderError(c, http.StatusNotFound, errNoRun)
		return
	}

	cancel()
	logrus.WithField("run_id", runID).Info("agent run cancellation requested")
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleAgentStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	runID := strings.TrimSpace(c.Query("run_id"))
	client := s.notifier.Register(conn, runID)
	logrus.WithFields(logrus.Fields{
		"remote": conn.RemoteAddr().String(),
		"run_id": runID,
	}).Info("agent websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("agent websocket closed")
			} else {
				logrus.WithError(err).Warn("agent websocket unexpected close")
			}
			break
		}
	}
}

// bindAgentInput decodes and validates an AgentRequest and assigns a run id.
func (s *Server) bindAgentInput(c *gin.Context) (agent.Input, error) {
	var req AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return agent.Input{}, err
	}
	in := agent.Input{
		RunID:     uuid.NewString(),
		Text:      strings.TrimSpace(req.Text),
		Query:     strings.TrimSpace(req.Query),
		ImageMIME: strings.TrimSpace(req.MimeType),
	}
	if encoded := strings.TrimSpace(req.ImageBase64); encoded != "" {
		image, mime, err := decodeImage(encoded)
		if err != nil {
			return agent.Input{}, err
		}
		in.Image = image
		if in.ImageMIME == "" {
			in.ImageMIME = mime
		}
		if int64(len(image)) > s.maxUpload {
			return agent.Input{}, fmt.Errorf("image exceeds %d bytes", s.maxUpload)
		}
	}
	if in.Text == "" && len(in.Image) == 0 {
		return agent.Input{}, errors.New("Text or image is required")
	}
	if len(in.Image) > 0 && !strings.HasPrefix(in.ImageMIME, "image/") {
		return agent.Input{}, errNotImage
	}
	return in, nil
}

// decodeImage accepts plain base64 or a data URL and returns the bytes and
// the MIME type it implies.
func decodeImage(encoded string) ([]byte, string, error) {
	mime := ""
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", errors.New("invalid image data URL")
		}
		mime = strings.TrimSuffix(meta, ";base64")
		encoded = payload
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image_base64: %w", err)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func (s *Server) newRun(runID, owner, status string) *store.AgentRun {
	run := &store.AgentRun{
		RunID:     runID,
		UserID:    owner,
		Status:    status,
		Message:   "Run accepted",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.SaveAgentRun(run); err != nil {
		logrus.WithError(err).WithField("run_id", runID).Warn("persist agent run")
	}
	return run
}

func agentContent(in agent.Input) string {
	switch {
	case in.Text != "" && in.Query != "":
		return in.Text + "\n\nQuery: " + in.Query
	case in.Text != "":
		return in.Text
	case in.Query != "":
		return "[image] " + in.Query
	}
	return "[image]"
}
