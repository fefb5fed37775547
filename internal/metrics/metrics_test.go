package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrementByLabel(t *testing.T) {
	before := testutil.ToFloat64(GateDecisions.WithLabelValues("approved"))
	GateDecisions.WithLabelValues("approved").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(GateDecisions.WithLabelValues("approved")))

	before = testutil.ToFloat64(FeedbackReports.WithLabelValues("skipped"))
	FeedbackReports.WithLabelValues("skipped").Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(FeedbackReports.WithLabelValues("skipped")))
}
