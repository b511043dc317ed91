package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"unlabel/backend/internal/agent"
	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/compare"
	"unlabel/backend/internal/food"
	"unlabel/backend/internal/pipeline"
	"unlabel/backend/internal/store"
)

const (
	defaultUserID         = "anonymous"
	defaultMaxUploadBytes = 10 << 20
)

// ImageArchive stores uploaded label photos and returns a locator for them.
type ImageArchive interface {
	Store(ctx context.Context, owner, filename, contentType string, data []byte) (string, error)
}

// Config defines server dependencies.
type Config struct {
	DBPath         string
	SilentDB       bool
	AllowedOrigins []string
	Capability     ai.Capability
	Pipeline       pipeline.Options
	Agent          agent.Config
	Food           food.Config
	// Archive is optional; without it uploads are recorded by filename.
	Archive        ImageArchive
	MaxUploadBytes int64
}

// Server wires HTTP handlers with persistence and the analysis services.
type Server struct {
	db              *store.Database
	llm             ai.Capability
	coordinator     *pipeline.Coordinator
	analyzer        *pipeline.Analyzer
	agent           *agent.Agent
	comparer        *compare.Service
	food            *food.Client
	archive         ImageArchive
	notifier        *ProgressNotifier
	allowedOrigins  []string
	maxTranslations int
	maxUpload       int64

	baseCtx  context.Context
	shutdown context.CancelFunc
	runMu    sync.Mutex
	runs     map[string]context.CancelFunc
	runWG    sync.WaitGroup
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	if cfg.Capability == nil {
		return nil, fmt.Errorf("capability gateway: %w", pipeline.ErrNotConfigured)
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	coordinator := pipeline.NewCoordinator(cfg.Capability, cfg.Pipeline)
	maxTranslations := cfg.Pipeline.MaxTranslations
	if maxTranslations <= 0 {
		maxTranslations = pipeline.DefaultMaxTranslations
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	if cfg.Archive == nil {
		logrus.Info("image archive disabled - uploads are recorded by filename")
	}
	if !cfg.Capability.Enabled() {
		logrus.Warn("capability gateway has no providers; responses will use fallbacks")
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		db:              db,
		llm:             cfg.Capability,
		coordinator:     coordinator,
		analyzer:        coordinator.Analyzer(),
		agent:           agent.New(cfg.Capability, coordinator, coordinator.Analyzer(), cfg.Agent),
		comparer:        compare.NewService(cfg.Capability, coordinator),
		food:            food.NewClient(cfg.Food),
		archive:         cfg.Archive,
		notifier:        NewProgressNotifier(db),
		allowedOrigins:  cfg.AllowedOrigins,
		maxTranslations: maxTranslations,
		maxUpload:       maxUpload,
		baseCtx:         ctx,
		shutdown:        cancel,
		runs:            make(map[string]context.CancelFunc),
	}
	return server, nil
}

// Close cancels background agent runs, waits for them and closes the database.
func (s *Server) Close() error {
	s.shutdown()
	s.runWG.Wait()
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		analyze := api.Group("/analyze")
		analyze.POST("/text", s.handleAnalyzeText)
		analyze.POST("/image", s.handleAnalyzeImage)
		analyze.POST("/decision", s.handleDecision)
		analyze.POST("/decision/image", s.handleDecisionImage)
		analyze.POST("/compare", s.handleCompare)
		analyze.POST("/agent", s.handleAgent)
		analyze.POST("/agent/runs", s.handleStartAgent)
		analyze.GET("/agent/runs/:id", s.handleAgentRun)
		analyze.DELETE("/agent/runs/:id", s.handleCancelAgent)
		analyze.GET("/agent/stream", s.handleAgentStream)

		api.GET("/food/search", s.handleFoodSearch)
		api.GET("/food/product/:barcode", s.handleFoodProduct)

		api.GET("/history", s.handleListHistory)
		api.GET("/history/:id", s.handleGetHistory)
		api.PATCH("/history/:id", s.handleRenameHistory)
		api.DELETE("/history/:id", s.handleDeleteHistory)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	providers := []string{}
	if lister, ok := s.llm.(interface{ Providers() []string }); ok {
		if names := lister.Providers(); names != nil {
			providers = names
		}
	}
	c.JSON(http.StatusOK, ConfigResponse{
		AIEnabled:       s.llm.Enabled(),
		Providers:       providers,
		AgentMaxSteps:   s.agent.MaxSteps(),
		MaxTranslations: s.maxTranslations,
		ImageArchive:    s.archive != nil,
	})
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// renderFailure answers with the message class of the failing operation and
// a short public reason. Callers log err itself; provider detail stays out of
// the response.
func (s *Server) renderFailure(c *gin.Context, status int, prefix string, err error) {
	c.JSON(status, gin.H{"error": prefix + publicReason(err)})
}

func publicReason(err error) string {
	var capErr *ai.CapabilityError
	var statusErr *ai.StatusError
	switch {
	case errors.Is(err, errRunCancelled):
		return errRunCancelled.Error()
	case errors.Is(err, ai.ErrUnavailable):
		return "analysis service is not configured"
	case errors.As(err, &capErr), errors.As(err, &statusErr):
		return "analysis service unavailable"
	case errors.Is(err, ai.ErrMalformedOutput):
		return "analysis result could not be read"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, food.ErrUpstream):
		return "food database unavailable"
	}
	return "internal error"
}

// userID identifies the history owner of a request.
func userID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
		return id
	}
	return defaultUserID
}

func parseUintParam(value string) (uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("identifier is required")
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier: %w", err)
	}
	if parsed == 0 {
		return 0, errors.New("identifier must be greater than zero")
	}
	return uint(parsed), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
