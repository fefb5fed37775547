package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/types"
)

type handler struct {
	deps Deps
}

// EvaluateRequest is the body of POST /v1/evaluate
type EvaluateRequest struct {
	Items []*types.ContentItem `json:"items" binding:"required,min=1"`
}

// FeedbackBatchRequest is the body of POST /v1/feedback/batch
type FeedbackBatchRequest struct {
	Reports []types.TrackerIssue `json:"reports" binding:"required,min=1"`
}

func (h *handler) health(c *gin.Context) {
	if h.deps.Health != nil {
		if err := h.deps.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.deps.Evaluator.EvaluateBatch(c.Request.Context(), req.Items)
	if err != nil {
		logging.Errorf("[API] evaluate failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handler) feedbackBatch(c *gin.Context) {
	if h.deps.Feedback == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "feedback processing is not configured"})
		return
	}
	var req FeedbackBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, r := range req.Reports {
		if r.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every report needs an id"})
			return
		}
	}

	summary, err := h.deps.Feedback.ProcessBatch(c.Request.Context(), req.Reports)
	if err != nil {
		logging.Errorf("[API] feedback batch failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
