package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/roomchess/roomchess/internal/session"
)

const (
	identityCookie    = "rc_id"
	identityCookieAge = int(30 * 24 * time.Hour / time.Second)
)

func (s *Server) handleLobbyWS(c *gin.Context) {
	s.serveWS(c, session.Lobby())
}

func (s *Server) handlePlayWS(c *gin.Context) {
	s.serveWS(c, session.Play(c.Param("room_id")))
}

func (s *Server) serveWS(c *gin.Context, intent session.Intent) {
	userID, ok := s.resolveIdentity(c)
	if !ok {
		return
	}

	// game clients are served from their own origin
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sess := session.New(userID, intent, s.reg, conn, s.log)
	if err := sess.Run(c.Request.Context()); err != nil {
		s.log.Debug("session_ended", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// resolveIdentity picks the player id for this connection: a bearer token
// first, then the rc_id cookie, and finally a fresh anonymous identity whose
// token is set as the cookie so the visitor keeps their seat on reconnect.
func (s *Server) resolveIdentity(c *gin.Context) (uuid.UUID, bool) {
	if h := c.GetHeader("Authorization"); h != "" {
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found {
			c.JSON(http.StatusUnauthorized, gin.H{"type": "error"})
			return uuid.Nil, false
		}
		id, err := s.issuer.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"type": "error"})
			return uuid.Nil, false
		}
		return id, true
	}

	if token, err := c.Cookie(identityCookie); err == nil {
		if id, err := s.issuer.Verify(token); err == nil {
			return id, true
		}
	}

	id := uuid.New()
	token, err := s.issuer.Issue(id)
	if err != nil {
		s.log.Error("identity_issue_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"type": "error"})
		return uuid.Nil, false
	}
	c.SetCookie(identityCookie, token, identityCookieAge, "/", "", false, true)
	return id, true
}
