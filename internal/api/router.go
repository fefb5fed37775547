// Package api exposes the intake pipeline over HTTP.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steveyegge/intake/internal/feedback"
	"github.com/steveyegge/intake/internal/intake"
	"github.com/steveyegge/intake/internal/types"
)

// Evaluator scores candidate batches
type Evaluator interface {
	EvaluateBatch(ctx context.Context, candidates []*types.ContentItem) (*intake.BatchReport, error)
}

// FeedbackBatcher processes reports delivered in a request body
type FeedbackBatcher interface {
	ProcessBatch(ctx context.Context, issues []types.TrackerIssue) (*feedback.RunSummary, error)
}

// Deps are the collaborators served by the router. A nil Feedback disables
// the feedback endpoint.
type Deps struct {
	Evaluator Evaluator
	Feedback  FeedbackBatcher

	// Health reports backend readiness; nil means always healthy
	Health func(ctx context.Context) error
}

var _ Evaluator = (*intake.Pipeline)(nil)
var _ FeedbackBatcher = (*feedback.Processor)(nil)

// SetupRouter builds the gin engine. mode "release" silences gin's debug output.
func SetupRouter(mode string, deps Deps) *gin.Engine {
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	h := &handler{deps: deps}
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/evaluate", h.evaluate)
		v1.POST("/feedback/batch", h.feedbackBatch)
	}
	return r
}
