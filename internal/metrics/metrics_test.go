package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPoll(t *testing.T) {
	before := testutil.ToFloat64(PollsTotal.WithLabelValues("metrics-test", OutcomeError))
	RecordPoll("metrics-test", 20*time.Millisecond, errors.New("down"))
	after := testutil.ToFloat64(PollsTotal.WithLabelValues("metrics-test", OutcomeError))
	assert.Equal(t, before+1, after)
}

func TestRecordAction(t *testing.T) {
	before := testutil.ToFloat64(ActionsTotal.WithLabelValues("cancel", OutcomeRejected))
	RecordAction("cancel", OutcomeRejected)
	assert.Equal(t, before+1, testutil.ToFloat64(ActionsTotal.WithLabelValues("cancel", OutcomeRejected)))
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest("GET", "/tasks", "200", time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/tasks", "200")), 1.0)
}
