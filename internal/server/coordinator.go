package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/draftforge/draftforge/pkg/api"
)

func (s *Server) getCoordinator(c *gin.Context) {
	c.JSON(http.StatusOK, s.coordinator.Snapshot())
}

func (s *Server) submitReview(c *gin.Context) {
	var req api.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrInvalidJSON, err))
		return
	}

	if err := s.coordinator.SubmitReview(
		c.Request.Context(), req.Inputs,
	); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.coordinator.Snapshot())
}

func (s *Server) cancelGeneration(c *gin.Context) {
	if err := s.coordinator.CancelGeneration(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.coordinator.Snapshot())
}

func (s *Server) advanceChapter(c *gin.Context) {
	next, err := s.coordinator.Advance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.AdvanceResponse{
		Chapter: next,
	})
}
