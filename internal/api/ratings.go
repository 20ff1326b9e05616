package api

import (
	"net/http" // HTTP status codes

	"labour_connect/internal/rating" // Rating trigger

	"github.com/gin-gonic/gin" // Gin web framework
)

// SubmitRatingHandler records the caller's rating of the other job participant
func SubmitRatingHandler(ratings *rating.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		var req rating.SubmitInput // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid rating")
			return
		}
		r, err := ratings.Submit(c.Request.Context(), user, req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"rating": r})
	}
}

// ListUserRatingsHandler returns the ratings a user received
func ListUserRatingsHandler(ratings *rating.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathID(c, "userId") // Parse user ID
		if !ok {
			return
		}
		page, pageSize := pagination(c) // Parse pagination
		list, total, err := ratings.ListForUser(c.Request.Context(), userID, page, pageSize)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ratings":     list,                        // Page of ratings
			"page":        page,                        // Current page
			"page_size":   pageSize,                    // Page size
			"total":       total,                       // Total ratings
			"total_pages": totalPages(total, pageSize), // Total pages
		})
	}
}

// GetProfileHandler returns a user's reputation aggregates
func GetProfileHandler(ratings *rating.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathID(c, "userId") // Parse user ID
		if !ok {
			return
		}
		p, err := ratings.Profile(c.Request.Context(), userID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"profile": p})
	}
}
