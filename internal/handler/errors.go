package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmatch/internal/model"
	"leadmatch/internal/service"
)

// respondError maps service errors to a status code and a safe message
func respondError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, model.ErrLeadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
	case errors.Is(err, model.ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrInvalidLead):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("❌ %s failed: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
