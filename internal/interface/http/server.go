// Package http implements the REST API of the center back end.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/center-hub/center-hub/internal/application/command"
	"github.com/center-hub/center-hub/internal/application/query"
	"github.com/center-hub/center-hub/internal/domain/shared"
	"github.com/center-hub/center-hub/internal/interface/http/handlers"
	"github.com/center-hub/center-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// APIKeyHeader is checked against APIKeyHashes (bcrypt).
	// Empty APIKeyHashes leaves the API open.
	APIKeyHeader string
	APIKeyHashes []string

	// BodyLimit in echo notation, e.g. "1M".
	BodyLimit string

	// RateLimitPerSecond per client IP on /api; zero disables the limiter.
	RateLimitPerSecond float64
	RateLimitBurst     int

	Debug bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		APIKeyHeader: "X-API-Key",
		BodyLimit:    "1M",

		RateLimitPerSecond: 10,
		RateLimitBurst:     20,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by the HTTP server.
type Dependencies struct {
	Commands *command.Service

	GetStudent    *query.GetStudentHandler
	GetFinance    *query.GetFinanceHandler
	GetAttendance *query.GetAttendanceHandler
	GetExams      *query.GetExamsHandler
	GetCourses    *query.GetStudentCoursesHandler
	ListCatalog   *query.ListCatalogHandler
	GetHistory    *query.GetHistoryHandler

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP API server.
type Server struct {
	config Config
	deps   Dependencies
	echo   *echo.Echo
	logger *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	if deps.Commands == nil {
		return nil, errors.New("http: command service is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if config.APIKeyHeader == "" {
		config.APIKeyHeader = DefaultConfig().APIKeyHeader
	}
	if config.BodyLimit == "" {
		config.BodyLimit = DefaultConfig().BodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = config.Debug
	e.Server.ReadTimeout = config.ReadTimeout
	e.Server.WriteTimeout = config.WriteTimeout
	e.Server.IdleTimeout = config.IdleTimeout

	s := &Server{
		config: config,
		deps:   deps,
		echo:   e,
		logger: deps.Logger.With(logger.Component("http")),
	}
	e.HTTPErrorHandler = s.errorHandler

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware registers global middleware. The first one is outermost.
func (s *Server) setupMiddleware() {
	s.echo.Pre(middleware.RemoveTrailingSlash())
	s.echo.Use(
		handlers.RequestID(),
		handlers.AccessLog(s.logger),
		handlers.Recovery(s.logger),
		middleware.BodyLimit(s.config.BodyLimit),
		middleware.Secure(),
		handlers.SessionScope(),
	)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/live", s.handleLive)

	auth := handlers.NewAPIKeyAuth(s.config.APIKeyHeader, s.config.APIKeyHashes)
	api := s.echo.Group("/api")
	if s.config.RateLimitPerSecond > 0 {
		api.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:  rate.Limit(s.config.RateLimitPerSecond),
				Burst: s.config.RateLimitBurst,
			}),
			DenyHandler: func(c echo.Context, _ string, _ error) error {
				c.Response().Header().Set("Retry-After", "1")
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			},
		}))
	}
	api.Use(auth.Middleware())

	// ─────────────────────────────────────────────────────────────────────────
	// Student Card
	// ─────────────────────────────────────────────────────────────────────────
	api.POST("/students", s.handleSaveStudent)
	api.PUT("/students/:id", s.handleSaveStudent)
	api.GET("/students/:id", s.handleGetStudent)
	api.DELETE("/students/:id", s.handleDeleteStudent)
	api.GET("/students/:id/history", s.handleGetHistory)

	// ─────────────────────────────────────────────────────────────────────────
	// Pipeline
	// ─────────────────────────────────────────────────────────────────────────
	api.POST("/students/:id/pipeline/advance", s.handleAdvance)
	api.POST("/students/:id/pipeline/activate", s.handleActivate)
	api.PUT("/students/:id/pipeline/stage", s.handleMoveStage)
	api.PUT("/students/:id/status", s.handleChangeStatus)

	// ─────────────────────────────────────────────────────────────────────────
	// Subjects, Discounts & Groups
	// ─────────────────────────────────────────────────────────────────────────
	api.POST("/students/:id/subjects", s.handleAddSubject)
	api.DELETE("/students/:id/subjects/:subject", s.handleRemoveSubject)
	api.PUT("/students/:id/discounts/:subject", s.handleSetDiscount)
	api.POST("/students/:id/groups", s.handleAssignGroup)
	api.DELETE("/students/:id/groups/:groupId", s.handleUnassignGroup)

	// ─────────────────────────────────────────────────────────────────────────
	// Derived Metrics
	// ─────────────────────────────────────────────────────────────────────────
	api.GET("/students/:id/finance", s.handleGetFinance)
	api.GET("/students/:id/attendance", s.handleGetAttendance)
	api.GET("/students/:id/exams", s.handleGetExams)
	api.GET("/students/:id/courses", s.handleGetCourses)
	api.GET("/courses", s.handleListCatalog)

	// ─────────────────────────────────────────────────────────────────────────
	// Journals
	// ─────────────────────────────────────────────────────────────────────────
	api.POST("/students/:id/exams", s.handleRecordExam)
	api.POST("/attendance", s.handleRecordAttendance)

	// ─────────────────────────────────────────────────────────────────────────
	// Undo
	// ─────────────────────────────────────────────────────────────────────────
	api.GET("/undo/:feature", s.handlePendingUndo)
	api.POST("/undo/:feature", s.handleUndo)
	api.DELETE("/undo", s.handleDropUndo)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Addr))

	err := s.echo.Start(s.config.Addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES & ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Fields maps form fields to messages on validation failures.
	Fields map[string]string `json:"fields,omitempty"`
}

func respond(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, JSONResponse{
		Success:   true,
		Data:      data,
		RequestID: handlers.RequestIDFromContext(c),
	})
}

// errorHandler maps domain errors to status codes:
// field map 422, not found 404, missing confirmation 409, bad input 400.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, apiErr := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logger.Err(err),
			logger.String("path", c.Path()),
			logger.String("request_id", handlers.RequestIDFromContext(c)),
		)
		if !s.config.Debug {
			apiErr.Message = http.StatusText(status)
		}
	}

	resp := JSONResponse{Error: apiErr, RequestID: handlers.RequestIDFromContext(c)}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		s.logger.Warn("write error response", logger.Err(err))
	}
}

func classify(err error) (int, *APIError) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, &APIError{Code: codeFor(he.Code), Message: fmt.Sprint(he.Message)}
	}
	if ve, isField := shared.AsValidation(err); isField {
		return http.StatusUnprocessableEntity, &APIError{
			Code:    "validation_failed",
			Message: "validation failed",
			Fields:  ve.Fields,
		}
	}

	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, &APIError{Code: "not_found", Message: err.Error()}
	case errors.Is(err, shared.ErrConfirmationRequired):
		return http.StatusConflict, &APIError{Code: "confirmation_required", Message: err.Error()}
	case shared.IsValidation(err):
		return http.StatusBadRequest, &APIError{Code: "invalid_input", Message: err.Error()}
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable, &APIError{Code: "unavailable", Message: err.Error()}
	default:
		return http.StatusInternalServerError, &APIError{Code: "internal_error", Message: err.Error()}
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "body_too_large"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	default:
		return "http_error"
	}
}
