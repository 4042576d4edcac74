// Package httpapi exposes the websocket entrypoints and the small REST
// surface: room state lookups, account management, and login.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roomchess/roomchess/internal/identity"
	"github.com/roomchess/roomchess/internal/registry"
	"github.com/roomchess/roomchess/internal/store"
	"github.com/roomchess/roomchess/internal/users"
)

type Server struct {
	reg    *registry.Registry
	board  *store.Store
	issuer *identity.Issuer
	users  *users.Repository // nil keeps the account endpoints off
	log    *zap.Logger
}

func New(reg *registry.Registry, board *store.Store, issuer *identity.Issuer, usersRepo *users.Repository, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{reg: reg, board: board, issuer: issuer, users: usersRepo, log: log}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/ws", s.handleLobbyWS)
	r.GET("/ws/play/:room_id", s.handlePlayWS)

	api := r.Group("/api/v1")
	api.GET("/rooms/:room_id", s.handleRoomState)
	if s.users != nil {
		api.POST("/users", s.handleCreateUser)
		api.GET("/users", s.handleListUsers)
		api.GET("/users/:id", s.handleGetUser)
		api.DELETE("/users/:id", s.handleDeleteUser)
		api.POST("/auth", s.handleLogin)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
