package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/siddharthiitian/Flight-Amedus/config"
	"github.com/siddharthiitian/Flight-Amedus/logger"
	"github.com/siddharthiitian/Flight-Amedus/services"
	"github.com/siddharthiitian/Flight-Amedus/tracing"
	"github.com/siddharthiitian/Flight-Amedus/web"
)

const requestIDKey = "request_id"

// FlightSearcher is implemented by services.AmadeusClient.
type FlightSearcher interface {
	SearchFlights(ctx context.Context, req services.FlightSearchRequest) ([]services.FlightOffer, error)
}

// ItineraryPlanner is implemented by services.ItineraryGenerator.
type ItineraryPlanner interface {
	Generate(ctx context.Context, req services.ItineraryRequest, p config.LLMProvider) (*services.Itinerary, error)
}

type Handler struct {
	cfg     *config.Config
	flights FlightSearcher
	planner ItineraryPlanner
	log     *zap.Logger
}

func New(cfg *config.Config, flights FlightSearcher, planner ItineraryPlanner, log *zap.Logger) *Handler {
	return &Handler{cfg: cfg, flights: flights, planner: planner, log: log}
}

// NewRouter builds the gin engine: recovery, tracing, CORS, request ids,
// templates and all routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Trusted proxies: X-Forwarded-For is honoured only from these (none by default)
	if err := r.SetTrustedProxies(h.cfg.TrustedProxies); err != nil {
		h.log.Warn("⚠️ invalid TRUSTED_PROXIES, trusting none", zap.Strings("proxies", h.cfg.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}

	// CORS: allow configured frontend origins
	allowedOrigins := append([]string{"http://localhost:5173", "http://localhost:3000"}, h.cfg.FrontendURLs...)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(otelgin.Middleware(tracing.ServiceName))
	r.Use(h.requestContext())
	r.SetHTMLTemplate(web.Templates())

	// Routes
	r.GET("/", h.FormHandler)
	r.POST("/plan", h.PlanHandler)
	r.POST("/plan/pdf", h.PlanPDFHandler)

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthHandler)
		api.GET("/diagnostics", h.DiagnosticsHandler)
		api.POST("/flights/search", h.SearchHandler)
		api.POST("/itinerary", h.ItineraryHandler)
		api.POST("/itinerary/pdf", h.DownloadHandler)
	}
	return r
}

// requestContext tags every request with a fresh id and logs it once done.
func (h *Handler) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		l := logger.WithTrace(c.Request.Context(), h.log)
		if status >= http.StatusInternalServerError {
			l.Error("request", fields...)
			return
		}
		l.Info("request", fields...)
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// reqLog is the handler logger annotated with the request and trace ids.
func (h *Handler) reqLog(c *gin.Context) *zap.Logger {
	return logger.WithTrace(c.Request.Context(), h.log).With(zap.String("request_id", requestID(c)))
}

// ─── Error Mapping ────────────────────────────────────────────────────────────

// statusFor maps a component error to the HTTP status the API returns.
func statusFor(err error) int {
	var (
		cfgErr  *config.ConfigurationError
		authErr *services.AuthenticationError
		srchErr *services.SearchError
		genErr  *services.GenerationError
	)
	switch {
	case errors.Is(err, services.ErrInvalidRequest), errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &authErr), errors.As(err, &srchErr), errors.As(err, &genErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// errorKind names the failure for API clients.
func errorKind(err error) string {
	var (
		cfgErr  *config.ConfigurationError
		authErr *services.AuthenticationError
		srchErr *services.SearchError
		genErr  *services.GenerationError
	)
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return "invalid_request"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &srchErr):
		return "search"
	case errors.As(err, &genErr):
		return "generation"
	}
	return "internal"
}

// fail logs err once and writes the JSON error body.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	l := h.reqLog(c).With(zap.String("kind", errorKind(err)), zap.Error(err))
	if status >= http.StatusInternalServerError {
		l.Error("❌ request failed")
	} else {
		l.Warn("⚠️ request failed")
	}
	c.JSON(status, gin.H{
		"error":      err.Error(),
		"kind":       errorKind(err),
		"request_id": requestID(c),
	})
}

// badRequest answers a body that could not be bound at all.
func (h *Handler) badRequest(c *gin.Context, err error) {
	h.reqLog(c).Warn("⚠️ invalid request body", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      "Invalid request: " + err.Error(),
		"kind":       "invalid_request",
		"request_id": requestID(c),
	})
}

// provider resolves the named provider and applies per-request overrides.
func (h *Handler) provider(name, model, apiKey string) (config.LLMProvider, error) {
	p, err := h.cfg.Provider(name)
	if err != nil {
		return p, err
	}
	if m := strings.TrimSpace(model); m != "" {
		p.Model = m
	}
	if k := strings.Trim(strings.TrimSpace(apiKey), `'"`); k != "" {
		p.APIKey = k
	}
	return p, nil
}
