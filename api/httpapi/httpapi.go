package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	wsadapter "civicrank/adapters/websocket"
	"civicrank/analytics"
	"civicrank/core"
	"civicrank/engine"
	"civicrank/leaderboard"
	"civicrank/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	Logger         *slog.Logger
}

// Deps are the optional read models exposed next to the engine. Without a
// Leaderboard the board is read from storage on every request.
type Deps struct {
	Hub         *realtime.Hub
	Leaderboard leaderboard.Board
	Stats       *analytics.PointStats
	DAU         *analytics.DAU
}

type server struct {
	svc  *engine.Service
	deps Deps
	log  *slog.Logger
}

// NewRouter builds the REST API and WebSocket stream.
// Routes (relative to the prefix):
//   - GET    /healthz
//   - POST   /points/award, /points/adjust
//   - GET    /users/:id/points, /users/:id/progress
//   - GET    /levels, /progress?points=N; POST /levels/defaults
//   - GET    /rules; POST /rules; PUT /rules/:id; DELETE /rules/:id
//   - GET    /trending, /leaderboard?offset=&limit=, /stats?top=N
//   - GET    /users/:id/notifications, /users/:id/notifications/unread
//   - POST   /users/:id/notifications, /users/:id/notifications/read-all, /users/:id/notifications/:nid/read
//   - POST   /forums/:id/likes, /forums/:id/comments, /forums/:id/status
//   - GET    /ws?user=ID
func NewRouter(svc *engine.Service, deps Deps, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &server{svc: svc, deps: deps, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	if opts.AllowCORSOrigin != "" {
		r.Use(withCORS(opts.AllowCORSOrigin))
	}

	base := r.Group(normalizePrefix(opts.PathPrefix))
	base.GET("/healthz", s.health)

	api := base.Group("")
	if len(opts.APIKeys) > 0 {
		api.Use(withAPIKeyAuth(opts.APIKeys))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		api.Use(withRateLimit(opts.RateLimitRPM, opts.RateLimitBurst))
	}

	api.POST("/points/award", s.award)
	api.POST("/points/adjust", s.adjust)
	api.GET("/users/:id/points", s.history)
	api.GET("/users/:id/progress", s.userProgress)

	api.GET("/levels", s.levels)
	api.POST("/levels/defaults", s.ensureLevels)
	api.GET("/progress", s.progress)

	api.GET("/rules", s.listRules)
	api.POST("/rules", s.saveRule)
	api.PUT("/rules/:id", s.saveRule)
	api.DELETE("/rules/:id", s.deleteRule)

	api.GET("/trending", s.trending)
	api.GET("/leaderboard", s.leaderboard)
	api.GET("/stats", s.stats)

	api.GET("/users/:id/notifications", s.inbox)
	api.GET("/users/:id/notifications/unread", s.unread)
	api.POST("/users/:id/notifications", s.system)
	api.POST("/users/:id/notifications/read-all", s.markAllRead)
	api.POST("/users/:id/notifications/:nid/read", s.markRead)

	api.POST("/forums/:id/likes", s.like)
	api.POST("/forums/:id/comments", s.comment)
	api.POST("/forums/:id/status", s.status)

	if deps.Hub != nil {
		api.GET("/ws", gin.WrapH(wsadapter.Handler(deps.Hub)))
	}

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "route not found", nil)
	})
	return r
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return "/"
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	return prefix
}

// health verifies storage answers by reading the level ladder.
func (s *server) health(c *gin.Context) {
	status := gin.H{"status": "healthy", "checks": gin.H{"storage": "ok"}}
	if _, err := s.svc.Levels(c.Request.Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		status = gin.H{"status": "unhealthy", "checks": gin.H{"storage": "failed"}}
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func userParam(c *gin.Context) (core.UserID, bool) {
	user, err := core.NormalizeUserID(core.UserID(c.Param("id")))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_user", err.Error(), nil)
		return "", false
	}
	return user, true
}

// intQuery parses an optional positive integer query value.
func intQuery(c *gin.Context, key string, def int) (int, bool) {
	return boundedQuery(c, key, def, 1)
}

// boundedQuery parses an integer query parameter no smaller than lo.
func boundedQuery(c *gin.Context, key string, def, lo int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo {
		msg := key + " must be a positive integer"
		if lo == 0 {
			msg = key + " must be a non-negative integer"
		}
		writeError(c, http.StatusBadRequest, "invalid_"+key, msg, nil)
		return 0, false
	}
	return n, true
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, code, msg string, details any) {
	c.AbortWithStatusJSON(status, apiError{Code: code, Message: msg, Details: details})
}

// writeEngineError maps engine and store errors onto HTTP statuses.
func (s *server) writeEngineError(c *gin.Context, err error) {
	var perr *engine.PipelineError
	switch {
	case errors.Is(err, engine.ErrInvalidUser),
		errors.Is(err, engine.ErrEmptyEventType),
		errors.Is(err, engine.ErrZeroAdjustment),
		errors.Is(err, engine.ErrEmptyReason):
		writeError(c, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.As(err, &perr):
		s.log.Error("award pipeline failed", "step", perr.Step, "partial", perr.Partial, "error", perr.Err)
		writeError(c, http.StatusInternalServerError, "pipeline_failed", err.Error(), gin.H{"step": perr.Step, "partial": perr.Partial})
	case errors.Is(err, core.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
		writeError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}
