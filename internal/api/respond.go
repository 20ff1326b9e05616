package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"labour_connect/internal/domain"     // Error taxonomy
	"labour_connect/internal/middleware" // Caller identity

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // UUID identifiers
	"github.com/sirupsen/logrus" // Logging library
)

// statusFor maps a reason code to its HTTP status
var statusFor = map[domain.Code]int{
	domain.CodeValidation:          http.StatusBadRequest,
	domain.CodeInsufficientBalance: http.StatusPaymentRequired,
	domain.CodeInvalidTransition:   http.StatusConflict,
	domain.CodeForbidden:           http.StatusForbidden,
	domain.CodeNotFound:            http.StatusNotFound,
	domain.CodeAlreadyRated:        http.StatusConflict,
	domain.CodeJobAlreadyAssigned:  http.StatusConflict,
	domain.CodeConcurrencyConflict: http.StatusConflict,
	domain.CodeGateway:             http.StatusBadGateway,
}

// fail renders err as {"error": {"code", "message"}}
func fail(c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		status, ok := statusFor[de.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": gin.H{"code": de.Code, "message": de.Message}})
		return
	}
	// Unexpected errors are logged and hidden
	logrus.WithFields(logrus.Fields{
		"path":  c.FullPath(), // Route
		"error": err.Error(),  // Error message
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "Internal server error"}})
}

// badRequest renders a validation_error
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": domain.CodeValidation, "message": message}})
}

// caller returns the authenticated identity or renders 401
func caller(c *gin.Context) (domain.User, bool) {
	user, ok := middleware.CurrentUser(c) // Get identity from context
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "unauthorized", "message": "Unauthorized"}})
	}
	return user, ok
}

// pathID parses a UUID path parameter or renders 400
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads page and page_size with the defaults 1 and 20
func pagination(c *gin.Context) (int, int) {
	page := 1      // Default page
	pageSize := 20 // Default page size
	// If page exists in query
	if p := c.Query("page"); p != "" {
		// Convert page to integer
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// If page_size exists in query
	if ps := c.Query("page_size"); ps != "" {
		// Convert page_size to integer
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size if valid
		}
	}
	return page, pageSize
}

// totalPages is the page count for total items
func totalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}
