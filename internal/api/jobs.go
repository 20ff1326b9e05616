package api

import (
	"net/http" // HTTP status codes

	"labour_connect/internal/domain" // Importing domain models
	"labour_connect/internal/job"    // Job lifecycle

	"github.com/gin-gonic/gin" // Gin web framework
)

// CreateJobHandler posts a job, charging the employer
func CreateJobHandler(jobs *job.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		var req job.CreateInput // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid job")
			return
		}
		j, err := jobs.Create(c.Request.Context(), user, req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"job": j})
	}
}

// ListJobsHandler lists the jobs visible to the caller
func ListJobsHandler(jobs *job.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		page, pageSize := pagination(c) // Parse pagination
		f := job.Filter{Category: c.Query("category"), Page: page, Size: pageSize}
		if raw := c.Query("status"); raw != "" {
			status, ok := domain.ParseJobStatus(raw)
			if !ok {
				badRequest(c, "Invalid status")
				return
			}
			f.Status = status
		}
		list, total, err := jobs.List(c.Request.Context(), user, f)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"jobs":        list,                        // Page of jobs
			"page":        page,                        // Current page
			"page_size":   pageSize,                    // Page size
			"total":       total,                       // Total jobs
			"total_pages": totalPages(total, pageSize), // Total pages
		})
	}
}

// GetJobHandler returns one job
func GetJobHandler(jobs *job.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := caller(c); !ok {
			return
		}
		id, ok := pathID(c, "id") // Parse job ID
		if !ok {
			return
		}
		j, err := jobs.Get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"job": j})
	}
}

// StatusRequest represents a job status change
type StatusRequest struct {
	Status string `json:"status" binding:"required"` // Target state
}

// UpdateJobStatusHandler moves a job through its lifecycle
func UpdateJobStatusHandler(jobs *job.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		id, ok := pathID(c, "id") // Parse job ID
		if !ok {
			return
		}
		var req StatusRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "status is required")
			return
		}
		j, err := jobs.UpdateStatus(c.Request.Context(), user, id, domain.JobStatus(req.Status))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"job": j})
	}
}
