package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// handleHealth reports process liveness and persistence health
func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":   "ok",
		"database": "disabled",
	}
	if s.repo != nil {
		if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["database"] = "ok"
		}
	}
	successResponse(c, health)
}

// handleStatus returns aggregate metrics and breaker state
func (s *Server) handleStatus(c *gin.Context) {
	engaged, reason := s.orch.BreakerState()
	successResponse(c, gin.H{
		"metrics": s.metrics.GetStatus(),
		"breaker": gin.H{
			"engaged": engaged,
			"reason":  reason,
		},
		"symbols": s.orch.Symbols(),
	})
}

// handleRisk returns the risk governor's daily stats
func (s *Server) handleRisk(c *gin.Context) {
	successResponse(c, s.governor.GetDailyStats())
}

// handleDecisions returns the recent decision history for a symbol
func (s *Server) handleDecisions(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Decision history requires database persistence")
		return
	}

	symbol := normalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "Symbol is required")
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	decisions, err := s.repo.GetRecentDecisions(c.Request.Context(), symbol, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch decisions")
		return
	}
	successResponse(c, decisions)
}

// handleBreakerReset clears the global circuit breaker
func (s *Server) handleBreakerReset(c *gin.Context) {
	engaged, reason := s.orch.BreakerState()
	if !engaged {
		successResponse(c, gin.H{"message": "Breaker was not engaged"})
		return
	}

	s.orch.ResetBreaker()
	s.logger.Info().Str("previous_reason", reason).Msg("breaker reset via API")
	successResponse(c, gin.H{"message": "Breaker reset"})
}
