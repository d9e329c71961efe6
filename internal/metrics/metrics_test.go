package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/places", "200"))

	RecordAPIRequest("GET", "/api/places", 200, 15*time.Millisecond)
	RecordAPIRequest("GET", "/api/places", 200, 30*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/places", "200"))
	assert.Equal(t, before+2, after)
}

func TestRecordRecompute(t *testing.T) {
	tests := []struct {
		name    string
		outcome string
	}{
		{"successful recompute", "ok"},
		{"recompute after retries", "retried"},
		{"failed recompute", "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(RecomputeTotal.WithLabelValues(tt.outcome))
			RecordRecompute(tt.outcome, time.Millisecond)
			assert.Equal(t, before+1, testutil.ToFloat64(RecomputeTotal.WithLabelValues(tt.outcome)))
		})
	}
}
