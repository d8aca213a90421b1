// Package websocket serves the live task event stream.
package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/infrastructure/httpserver"
	ws "github.com/lllypuk/tasktracker/internal/infrastructure/websocket"
	"github.com/lllypuk/tasktracker/internal/middleware"
)

// EventsPath is the stream route relative to the API group.
const EventsPath = "/task/events"

// tokenQueryParam carries a bearer token for browsers that cannot set headers.
const tokenQueryParam = "token"

// Handler upgrades requests to WebSocket connections on the hub.
type Handler struct {
	hub            *ws.Hub
	upgrader       websocket.Upgrader
	tokenValidator middleware.TokenValidator
	logger         *zap.Logger
	clientConfig   ws.ClientConfig
}

// HandlerConfig holds configuration for the WebSocket handler.
type HandlerConfig struct {
	// CheckOrigin returns true if the request origin is acceptable.
	// Nil allows every origin.
	CheckOrigin func(r *http.Request) bool

	ClientConfig ws.ClientConfig
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the handler.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithTokenValidator lets clients authenticate with a "token" query parameter.
func WithTokenValidator(validator middleware.TokenValidator) HandlerOption {
	return func(h *Handler) {
		h.tokenValidator = validator
	}
}

// WithHandlerConfig sets the handler configuration.
func WithHandlerConfig(config HandlerConfig) HandlerOption {
	return func(h *Handler) {
		h.upgrader.ReadBufferSize = config.ClientConfig.ReadBufferSize
		h.upgrader.WriteBufferSize = config.ClientConfig.WriteBufferSize
		if config.CheckOrigin != nil {
			h.upgrader.CheckOrigin = config.CheckOrigin
		}
		h.clientConfig = config.ClientConfig
	}
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *ws.Hub, opts ...HandlerOption) *Handler {
	defaults := ws.DefaultClientConfig()
	h := &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  defaults.ReadBufferSize,
			WriteBufferSize: defaults.WriteBufferSize,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger:       zap.NewNop(),
		clientConfig: defaults,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HandleEvents upgrades the connection and registers the client with the hub.
// The stream is open to anonymous callers; a token that is present must be
// valid.
func (h *Handler) HandleEvents(c echo.Context) error {
	userID := middleware.GetUserID(c)

	if token := c.QueryParam(tokenQueryParam); token != "" && userID == 0 && h.tokenValidator != nil {
		claims, err := h.tokenValidator.ValidateToken(c.Request().Context(), token)
		if err != nil {
			h.logger.Debug("websocket token rejected", zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}
		userID = claims.UserID
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		// Upgrade already wrote the error response.
		return nil
	}

	client := ws.NewClient(
		h.hub,
		conn,
		userID,
		ws.WithClientConfig(h.clientConfig),
		ws.WithClientLogger(h.logger),
	)

	h.hub.Register(client)

	h.logger.Info("websocket connection established",
		zap.String("client_id", client.ID()),
		zap.Int64("user_id", userID),
		zap.String("remote_ip", c.RealIP()),
	)

	go client.WritePump()
	go client.ReadPump()

	return nil
}

// RegisterRoutes registers the stream on the API group.
func (h *Handler) RegisterRoutes(r *httpserver.Router) {
	r.API().GET(EventsPath, h.HandleEvents)
}
