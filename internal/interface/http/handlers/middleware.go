package handlers

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/center-hub/center-hub/internal/infrastructure/messaging"
	"github.com/center-hub/center-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// HeaderSessionID selects the undo scope of the operator session.
	HeaderSessionID = "X-Session-ID"

	// DefaultSession is used when the header is absent.
	DefaultSession = "default"

	contextKeySession   = "session"
	contextKeyRequestID = "request_id"
)

// SessionFromContext returns the undo scope set by SessionScope.
func SessionFromContext(c echo.Context) string {
	if s, ok := c.Get(contextKeySession).(string); ok && s != "" {
		return s
	}
	return DefaultSession
}

// RequestIDFromContext returns the request ID set by RequestID.
func RequestIDFromContext(c echo.Context) string {
	id, _ := c.Get(contextKeyRequestID).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// API KEY AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyAuth checks the API key header against bcrypt hashes.
// With no hashes configured every request passes.
type APIKeyAuth struct {
	header string
	hashes [][]byte

	mu       sync.RWMutex
	accepted map[string]struct{}
}

// NewAPIKeyAuth creates an APIKeyAuth. Blank hashes are ignored.
func NewAPIKeyAuth(header string, hashes []string) *APIKeyAuth {
	if header == "" {
		header = "X-API-Key"
	}
	a := &APIKeyAuth{
		header:   header,
		accepted: make(map[string]struct{}),
	}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			a.hashes = append(a.hashes, []byte(h))
		}
	}
	return a
}

// Enabled reports whether any hash is configured.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.hashes) > 0
}

// IsValid checks a presented key. Keys that matched once skip bcrypt.
func (a *APIKeyAuth) IsValid(key string) bool {
	if key == "" {
		return false
	}

	a.mu.RLock()
	_, ok := a.accepted[key]
	a.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			a.mu.Lock()
			a.accepted[key] = struct{}{}
			a.mu.Unlock()
			return true
		}
	}
	return false
}

// Middleware returns the echo middleware.
func (a *APIKeyAuth) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !a.Enabled() {
				return next(c)
			}
			if !a.IsValid(c.Request().Header.Get(a.header)) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}
			return next(c)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SCOPE
// ══════════════════════════════════════════════════════════════════════════════

// SessionScope stores the X-Session-ID value for undo commands.
func SessionScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := strings.TrimSpace(c.Request().Header.Get(HeaderSessionID))
			if session == "" {
				session = DefaultSession
			}
			c.Set(contextKeySession, session)
			return next(c)
		}
	}
}

// RequestID takes X-Request-ID or generates one, echoes it back and
// propagates it as the correlation ID of emitted notifications.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.New().String()
			}
			c.Set(contextKeyRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(messaging.WithCorrelationID(req.Context(), id)))
			return next(c)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING & RECOVERY
// ══════════════════════════════════════════════════════════════════════════════

// AccessLog writes one line per request.
func AccessLog(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler commit the status before it is logged
				c.Error(err)
			}

			req := c.Request()
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", c.Path()),
				logger.Int("status", c.Response().Status),
				logger.Latency(time.Since(start)),
				logger.String("ip", c.RealIP()),
				logger.String("request_id", RequestIDFromContext(c)),
				logger.Session(SessionFromContext(c)),
			}
			if id := c.Param("id"); id != "" {
				fields = append(fields, logger.StudentID(id))
			}

			switch status := c.Response().Status; {
			case status >= 500:
				log.Error("http request", append(fields, logger.Err(err))...)
			case status >= 400:
				log.Warn("http request", fields...)
			default:
				log.Info("http request", fields...)
			}
			return nil
		}
	}
}

// Recovery turns a panic into a 500 response.
func Recovery(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered",
						logger.Any("error", r),
						logger.String("stack", string(debug.Stack())),
						logger.String("path", c.Request().URL.Path),
						logger.String("request_id", RequestIDFromContext(c)),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(c)
		}
	}
}
