package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"unlabel/backend/internal/food"
)

func (s *Server) handleFoodSearch(c *gin.Context) {
	query := firstNonEmpty(c.Query("q"), c.Query("query"))
	if query == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	products, err := s.food.Search(c.Request.Context(), query)
	if err != nil {
		logrus.WithError(err).WithField("query", query).Warn("food search failed")
		s.renderFailure(c, http.StatusBadGateway, "External API error: ", err)
		return
	}
	if len(products) == 0 {
		c.JSON(http.StatusOK, FoodResponse{
			Status:  "error",
			Message: fmt.Sprintf("No products found for '%s'. Please try a different keyword.", query),
			Data:    []food.ProductSummary{},
		})
		return
	}
	c.JSON(http.StatusOK, FoodResponse{Status: "success", Data: products})
}

func (s *Server) handleFoodProduct(c *gin.Context) {
	barcode := strings.TrimSpace(c.Param("barcode"))
	product, err := s.food.Product(c.Request.Context(), barcode)
	switch {
	case errors.Is(err, food.ErrNotFound):
		c.JSON(http.StatusOK, FoodResponse{Status: "error", Message: "Product not found."})
	case err != nil:
		logrus.WithError(err).WithField("barcode", barcode).Warn("food product lookup failed")
		s.renderFailure(c, http.StatusBadGateway, "External API error: ", err)
	default:
		c.JSON(http.StatusOK, FoodResponse{Status: "success", Data: product})
	}
}
