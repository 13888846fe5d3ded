package server

import (
	"errors"
	"net/http"

	"github.com/boothworks/prizebooth/internal/engine"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/gin-gonic/gin"
)

// Play runs one decision and returns the terminal outcome. A paused
// booth answers 409 with the pause reason instead of an outcome; the
// client is expected to stop offering plays until resumed.
func (s *Server) Play(c *gin.Context) {
	outcome, err := s.game.DecideOutcome(c.Request.Context())
	if errors.Is(err, engine.ErrPaused) {
		c.JSON(http.StatusConflict, gin.H{
			"error": gin.H{
				"type":    "paused",
				"message": s.pause.Reason(),
			},
		})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// Status is the unauthenticated booth heartbeat.
func (s *Server) Status(c *gin.Context) {
	settings := s.settings.Get()
	now := s.clock.Now().In(s.settings.Location())

	c.JSON(http.StatusOK, gin.H{
		"machine_name": settings.MachineName,
		"date":         now.Format(domain.DateFormat),
		"paused":       s.pause.IsPaused(),
		"pause_reason": s.pause.Reason(),
		"active_plan":  s.game.ActivePlan(),
		"open_time":    s.settings.OpenTime(),
		"close_time":   s.settings.CloseTime(),
	})
}
