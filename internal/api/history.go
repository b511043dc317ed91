package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"unlabel/backend/internal/store"
)

const defaultHistoryPageSize = 25

func (s *Server) handleListHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}

	rows, total, err := s.db.ListHistory(store.HistoryQuery{
		UserID:    userID(c),
		InputType: c.Query("type"),
		Offset:    page * pageSize,
		Limit:     pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]HistoryDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, HistoryFromModel(row, false))
	}
	c.JSON(http.StatusOK, HistoryResponse{Items: items, Total: total})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	row, err := s.db.GetHistory(userID(c), id)
	if err != nil {
		s.renderHistoryError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, HistoryFromModel(*row, true))
}

func (s *Server) handleRenameHistory(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	row, err := s.db.RenameHistory(userID(c), id, req.Title)
	if err != nil {
		s.renderHistoryError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, HistoryFromModel(*row, false))
}

func (s *Server) handleDeleteHistory(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.db.DeleteHistory(userID(c), id); err != nil {
		s.renderHistoryError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

func (s *Server) renderHistoryError(c *gin.Context, id uint, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("history %d not found", id))
		return
	}
	s.renderError(c, http.StatusInternalServerError, err)
}
