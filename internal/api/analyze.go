package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"unlabel/backend/internal/compare"
	"unlabel/backend/internal/pipeline"
	"unlabel/backend/internal/store"
)

var (
	errEmptyText   = errors.New("Text cannot be empty")
	errNotImage    = errors.New("File must be an image")
	errMissingFile = errors.New("file is required")
)

// upload is a validated label photo taken from a multipart form.
type upload struct {
	data     []byte
	mime     string
	filename string
}

func (s *Server) handleAnalyzeText(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.renderError(c, http.StatusBadRequest, errEmptyText)
		return
	}

	result := s.analyzer.AnalyzeText(c.Request.Context(), req.Text)
	s.recordHistory(c, store.InputText, req.Text, result.Insight, result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAnalyzeImage(c *gin.Context) {
	img, err := s.readImage(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	result := s.analyzer.AnalyzeImage(ctx, img.data, img.mime)
	s.recordHistory(c, store.InputImage, s.archiveImage(ctx, userID(c), img), result.Insight, result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDecision(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.renderError(c, http.StatusBadRequest, errEmptyText)
		return
	}

	result, err := s.coordinator.Process(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyInput) {
			s.renderError(c, http.StatusBadRequest, errEmptyText)
			return
		}
		logrus.WithError(err).Error("decision engine failed")
		s.renderFailure(c, http.StatusInternalServerError, "Decision engine error: ", err)
		return
	}
	s.recordHistory(c, store.InputText, req.Text, result.QuickInsight.Summary, result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDecisionImage(c *gin.Context) {
	img, err := s.readImage(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	text, err := s.analyzer.ExtractLabel(ctx, img.data, img.mime)
	if err != nil {
		logrus.WithError(err).Warn("label extraction failed")
		s.renderFailure(c, http.StatusInternalServerError, "Decision engine image processing error: ", err)
		return
	}

	result, err := s.coordinator.Process(ctx, pipeline.Request{
		Text:       text,
		UserIntent: c.PostForm("user_intent"),
	})
	if err != nil {
		logrus.WithError(err).Error("decision engine failed on extracted label")
		s.renderFailure(c, http.StatusInternalServerError, "Decision engine image processing error: ", err)
		return
	}
	s.recordHistory(c, store.InputImage, s.archiveImage(ctx, userID(c), img), result.QuickInsight.Summary, result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCompare(c *gin.Context) {
	var req compare.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ProductAText) == "" || strings.TrimSpace(req.ProductBText) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("Both product texts are required"))
		return
	}

	result, err := s.comparer.Compare(c.Request.Context(), req)
	if err != nil {
		logrus.WithError(err).Error("comparison failed")
		s.renderFailure(c, http.StatusInternalServerError, "Comparison error: ", err)
		return
	}
	content := fmt.Sprintf("%s vs %s", result.ProductAName, result.ProductBName)
	s.recordHistory(c, store.InputComparison, content, result.ComparisonInsight.Summary, result)
	c.JSON(http.StatusOK, result)
}

// readImage loads the "file" form field and checks it is an image.
func (s *Server) readImage(c *gin.Context) (upload, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return upload{}, errMissingFile
		}
		return upload{}, err
	}
	data, err := readFormFile(header, s.maxUpload)
	if err != nil {
		return upload{}, err
	}

	mime := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return upload{}, errNotImage
	}
	return upload{data: data, mime: mime, filename: header.Filename}, nil
}

func readFormFile(header *multipart.FileHeader, limit int64) ([]byte, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	if len(data) == 0 {
		return nil, errMissingFile
	}
	return data, nil
}

// archiveImage returns the archive locator of img, or its filename when
// archiving is off or fails.
func (s *Server) archiveImage(ctx context.Context, owner string, img upload) string {
	if s.archive == nil {
		return img.filename
	}
	uri, err := s.archive.Store(ctx, owner, img.filename, img.mime, img.data)
	if err != nil {
		logrus.WithError(err).WithField("filename", img.filename).Warn("archive label image")
		return img.filename
	}
	return uri
}

// recordHistory persists one completed analysis. Failures are logged only.
func (s *Server) recordHistory(c *gin.Context, inputType, content, summary string, result any) {
	row := &store.AnalysisHistory{
		UserID:       userID(c),
		InputType:    inputType,
		InputContent: content,
		Summary:      summary,
	}
	if err := row.SetFullResult(result); err != nil {
		logrus.WithError(err).Warn("encode analysis result")
		return
	}
	if err := s.db.SaveHistory(row); err != nil {
		logrus.WithError(err).WithField("input_type", inputType).Warn("save analysis history")
		return
	}
	c.Header("X-History-ID", fmt.Sprint(row.ID))
}
