// Package httpapi exposes the authentication service over HTTP using gin.
// It wires the route table, the authentication middleware, and graceful
// shutdown of the underlying http.Server.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rmaia/authd/internal/logging"
	"github.com/rmaia/authd/internal/server/oauth"
	"github.com/rmaia/authd/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address   string
	logger    logging.Logger
	users     *services.UserService
	sessions  *services.SessionService
	identity  oauth.IdentityProvider
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, users *services.UserService,
	sessions *services.SessionService, identity oauth.IdentityProvider, secretKey string) *Server {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		users:     users,
		sessions:  sessions,
		identity:  identity,
		jwtSecret: []byte(secretKey),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/auth/register", s.register)
	r.POST("/auth/login", s.login)
	r.GET("/auth/google", s.googleLogin)
	r.GET("/auth/google/callback", s.googleCallback)

	r.POST("/refresh-token", s.refresh)
	r.POST("/refresh-token/revoke", s.revoke)

	authed := r.Group("/", s.authentication())
	authed.GET("/user", s.currentUser)
	authed.GET("/user/:id", s.getUser)
	authed.DELETE("/user/:id", s.deleteUser)
	authed.GET("/protected", s.protected)

	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{Addr: s.address, Handler: s.Router()}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
