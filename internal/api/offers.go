package api

import (
	"net/http" // HTTP status codes

	"labour_connect/internal/domain" // Importing domain models
	"labour_connect/internal/job"    // Job lifecycle
	"labour_connect/internal/offer"  // Offer negotiation

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Currency amounts
)

// CreateOfferHandler sends a priced offer, charging the sender
func CreateOfferHandler(offers *offer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		var req offer.CreateInput // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid offer")
			return
		}
		o, err := offers.Create(c.Request.Context(), user, req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"offer": o})
	}
}

// ListOffersHandler lists a job's offers. The employer and admins see all of
// them, anyone else only the offers they are party to.
func ListOffersHandler(offers *offer.Service, jobs *job.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		jobID, ok := pathID(c, "jobId") // Parse job ID
		if !ok {
			return
		}
		j, err := jobs.Get(c.Request.Context(), jobID)
		if err != nil {
			fail(c, err)
			return
		}
		list, err := offers.List(c.Request.Context(), jobID)
		if err != nil {
			fail(c, err)
			return
		}
		if j.EmployerID != user.ID && !user.IsAdmin() {
			visible := make([]domain.Offer, 0, len(list))
			for _, o := range list {
				if o.FromUserID == user.ID || o.ToUserID == user.ID {
					visible = append(visible, o)
				}
			}
			list = visible
		}
		c.JSON(http.StatusOK, gin.H{"offers": list})
	}
}

// RespondRequest represents an offer response
type RespondRequest struct {
	Action         string          `json:"action" binding:"required,oneof=accept reject counter"` // accept, reject or counter
	CounterAmount  decimal.Decimal `json:"counter_amount"`                                        // Price of the reverse offer
	CounterMessage string          `json:"counter_message"`                                       // Note on the reverse offer
}

// RespondOfferHandler accepts, rejects or counters an offer as its recipient
func RespondOfferHandler(offers *offer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		id, ok := pathID(c, "id") // Parse offer ID
		if !ok {
			return
		}
		var req RespondRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "action must be accept, reject or counter")
			return
		}
		if req.Action == "counter" {
			original, counter, err := offers.Counter(c.Request.Context(), user, id, offer.CounterInput{
				Amount:  req.CounterAmount,
				Message: req.CounterMessage,
			})
			if err != nil {
				fail(c, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"offer": original, "counter": counter})
			return
		}
		o, j, err := offers.Respond(c.Request.Context(), user, id, req.Action == "accept")
		if err != nil {
			fail(c, err)
			return
		}
		resp := gin.H{"offer": o}
		if j != nil {
			resp["job"] = j // Assigned job
		}
		c.JSON(http.StatusOK, resp)
	}
}
