package server

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/resilience"
)

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "terminal",
		"ws_path":   s.config.Server.WebSocketPath,
		"codec":     s.config.Terminal.Codec,
		"shells":    s.shells.Count(),
		"endpoints": []string{"/health", "/metrics", "/shells", s.config.Server.WebSocketPath},
	})
}

func (s *Server) health(c *gin.Context) {
	s.metrics.SetShellsActive(s.shells.Count())
	status := "healthy"
	spawn := s.terminals.SpawnState()
	if spawn != resilience.StateClosed {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"spawn":   spawn.String(),
		"shells":  s.shells.Count(),
		"metrics": s.metrics.Snapshot(),
	})
}

func (s *Server) listShells(c *gin.Context) {
	shells := s.shells.List()
	sort.Slice(shells, func(i, j int) bool { return shells[i].StartedAt.Before(shells[j].StartedAt) })
	c.JSON(http.StatusOK, gin.H{"shells": shells})
}
