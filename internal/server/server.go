package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/draftforge/draftforge/internal/artifact"
	"github.com/draftforge/draftforge/internal/util"
	"github.com/draftforge/draftforge/internal/wizard"
	"github.com/draftforge/draftforge/pkg/api"
)

// Server implements the HTTP API server for the drafting cockpit
type Server struct {
	coordinator *wizard.Coordinator
	store       *wizard.Store
	catalog     wizard.Catalog
	notifier    *wizard.Notifier
	service     string
	version     string
	sockets     util.Set[*Client]
	mu          sync.Mutex
}

var ErrInvalidChapter = errors.New("invalid chapter number")

// NewServer creates a new HTTP API server
func NewServer(
	co *wizard.Coordinator, store *wizard.Store, catalog wizard.Catalog,
	notifier *wizard.Notifier, service, version string,
) *Server {
	return &Server{
		coordinator: co,
		store:       store,
		catalog:     catalog,
		notifier:    notifier,
		service:     service,
		version:     version,
		sockets:     util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", s.handleHealth)

	// Chapter endpoints
	chapters := router.Group("/chapters")
	{
		chapters.GET("", s.listChapters)
		chapters.GET("/", s.listChapters)
		chapters.GET("/:chapter/wizard", s.getWizard)
		chapters.PUT("/:chapter/wizard", s.putWizard)
		chapters.GET("/:chapter/steps/:step/content", s.getStepContent)
		chapters.POST("/:chapter/steps/:step/generate", s.generateStep)
		chapters.POST("/:chapter/steps/:step/approve", s.approveStep)
	}

	// Coordinator endpoints
	coord := router.Group("/coordinator")
	{
		coord.GET("", s.getCoordinator)
		coord.POST("/review", s.submitReview)
		coord.POST("/cancel", s.cancelGeneration)
		coord.POST("/advance", s.advanceChapter)
	}

	// WebSocket
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: s.service,
		Version: s.version,
		Status:  "healthy",
	})
}

// chapterParam parses the chapter path parameter, responding with an
// error when it is not a number
func chapterParam(c *gin.Context) (api.ChapterID, bool) {
	n, err := strconv.Atoi(c.Param("chapter"))
	if err != nil {
		respondError(c, ErrInvalidChapter)
		return 0, false
	}
	return api.ChapterID(n), true
}

// stepParam parses the step path parameter, accepting legacy aliases
func stepParam(c *gin.Context) (api.StepID, bool) {
	step, err := api.ParseStepID(c.Param("step"))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return step, true
}

// respondError maps domain errors onto HTTP statuses and writes the
// standard error payload
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, wizard.ErrUnknownChapter),
		errors.Is(err, api.ErrUnknownStep),
		errors.Is(err, wizard.ErrManifestMissing),
		errors.Is(err, artifact.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, wizard.ErrNoChapterOpen),
		errors.Is(err, wizard.ErrExecutionActive),
		errors.Is(err, wizard.ErrDependenciesNotApproved),
		errors.Is(err, wizard.ErrNotGenerated),
		errors.Is(err, wizard.ErrTitleRequired),
		errors.Is(err, wizard.ErrNothingToCancel),
		errors.Is(err, wizard.ErrNoPendingReview),
		errors.Is(err, wizard.ErrChapterNotDone),
		errors.Is(err, wizard.ErrLastChapter):
		status = http.StatusConflict
	case errors.Is(err, wizard.ErrMissingReview),
		errors.Is(err, wizard.ErrInvalidTone),
		errors.Is(err, wizard.ErrInvalidLength),
		errors.Is(err, ErrInvalidChapter),
		errors.Is(err, ErrInvalidJSON):
		status = http.StatusBadRequest
	}

	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
