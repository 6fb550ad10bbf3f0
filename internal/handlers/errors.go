package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"delivering/internal/pkg/errs"
)

// respondError maps service error kinds onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(404, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrInvalidState):
		c.JSON(422, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrDriverUnavailable):
		c.JSON(409, gin.H{"error": err.Error()})
	default:
		c.JSON(500, gin.H{"error": err.Error()})
	}
}

// currentUserID reads the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) uint {
	if v, ok := c.Get("userId"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
