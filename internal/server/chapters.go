package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/draftforge/draftforge/internal/wizard"
	"github.com/draftforge/draftforge/pkg/api"
)

var ErrInvalidJSON = errors.New("invalid JSON payload")

func (s *Server) listChapters(c *gin.Context) {
	ctx := c.Request.Context()

	digests := make([]*api.ChapterDigest, 0, len(s.catalog))
	for _, ref := range s.catalog {
		state := s.store.Load(ctx, ref.Number)
		title := state.Title
		if title == "" {
			title = ref.Title
		}
		digests = append(digests, &api.ChapterDigest{
			Number:      ref.Number,
			Title:       title,
			Status:      state.Status(),
			CompletedAt: state.CompletedAt,
		})
	}

	c.JSON(http.StatusOK, api.ChaptersListResponse{
		Chapters: digests,
		Count:    len(digests),
	})
}

func (s *Server) getWizard(c *gin.Context) {
	chapter, ok := chapterParam(c)
	if !ok {
		return
	}
	if !s.catalog.Contains(chapter) {
		respondError(c, fmt.Errorf("%w: %d", wizard.ErrUnknownChapter, chapter))
		return
	}

	// The open chapter is served from the coordinator so in-memory
	// mutations are visible; any other chapter comes straight from the
	// durable record
	if chapter == s.coordinator.Chapter() {
		if state, err := s.coordinator.WizardState(); err == nil {
			c.JSON(http.StatusOK, state)
			return
		}
	}
	c.JSON(http.StatusOK, s.store.Load(c.Request.Context(), chapter))
}

func (s *Server) putWizard(c *gin.Context) {
	chapter, ok := chapterParam(c)
	if !ok {
		return
	}

	var req api.UpdateWizardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", ErrInvalidJSON, err))
		return
	}

	if err := s.coordinator.Open(c.Request.Context(), chapter); err != nil {
		respondError(c, err)
		return
	}
	err := s.coordinator.UpdateWizard(
		c.Request.Context(), req.Title, req.Notes, req.TargetLength, req.Tone,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	state, err := s.coordinator.WizardState()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) getStepContent(c *gin.Context) {
	chapter, ok := chapterParam(c)
	if !ok {
		return
	}
	step, ok := stepParam(c)
	if !ok {
		return
	}

	if err := s.coordinator.Open(c.Request.Context(), chapter); err != nil {
		respondError(c, err)
		return
	}
	content, err := s.coordinator.StepContent(c.Request.Context(), step)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.StepContentResponse{
		Chapter: chapter,
		Step:    step,
		Content: content,
	})
}

func (s *Server) generateStep(c *gin.Context) {
	chapter, ok := chapterParam(c)
	if !ok {
		return
	}
	step, ok := stepParam(c)
	if !ok {
		return
	}

	if err := s.coordinator.Open(c.Request.Context(), chapter); err != nil {
		respondError(c, err)
		return
	}
	handle, err := s.coordinator.Generate(c.Request.Context(), step)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, api.GenerateStartedResponse{
		Handle: handle,
	})
}

func (s *Server) approveStep(c *gin.Context) {
	chapter, ok := chapterParam(c)
	if !ok {
		return
	}
	step, ok := stepParam(c)
	if !ok {
		return
	}

	var req api.ApproveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", ErrInvalidJSON, err))
			return
		}
	}

	if err := s.coordinator.Open(c.Request.Context(), chapter); err != nil {
		respondError(c, err)
		return
	}
	if err := s.coordinator.Approve(
		c.Request.Context(), step, req.Notes,
	); err != nil {
		respondError(c, err)
		return
	}

	state, err := s.coordinator.WizardState()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
