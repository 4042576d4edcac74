package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roomchess/roomchess/internal/store"
)

// handleRoomState returns the stored board fields for a room, usually just
// {"fen": ...}. A room that never started reads as not_started.
func (s *Server) handleRoomState(c *gin.Context) {
	fields, err := s.board.Board(c.Request.Context(), c.Param("room_id"))
	if errors.Is(err, store.ErrNoRoom) {
		c.JSON(http.StatusBadRequest, gin.H{"type": "not_started"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error"})
		return
	}
	c.JSON(http.StatusOK, fields)
}
