package websocket

import (
	"net/http"
	"strings"

	"fleetgrid-backend/infrastructure/session"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/common"
	appErrors "fleetgrid-backend/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests to WebSocket connections. The upgrade goes
// through the same bearer flow as REST: revocation check first, then
// signature validation, then the client joins its organization's room.
type Server struct {
	hub         *Hub
	validator   *auth.TokenValidator
	revocations *session.RevocationRegistry
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewServer creates a new WebSocket server
func NewServer(hub *Hub, validator *auth.TokenValidator, revocations *session.RevocationRegistry, logger *zap.Logger) *Server {
	return &Server{
		hub:         hub,
		validator:   validator,
		revocations: revocations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the CORS layer in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleUpgrade authenticates and upgrades a connection request. Browser
// WebSocket clients cannot set headers, so the token may also arrive in the
// `token` query parameter.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	rawToken := extractToken(r)
	if rawToken == "" {
		common.RespondAppError(w, appErrors.NewUnauthorizedError("missing authentication token"))
		return
	}

	if s.revocations.IsRevoked(r.Context(), rawToken) {
		common.RespondAppError(w, appErrors.NewUnauthorizedError("token revoked"))
		return
	}

	claims, err := s.validator.ValidateToken(rawToken)
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError("invalid or expired token"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(claims.OrganizationID, claims.Subject, s.hub, conn, s.logger)
	client.Start()
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
