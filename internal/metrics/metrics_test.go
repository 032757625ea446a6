package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if jobPollsTotal == nil || jobsSettledTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservePoll(t *testing.T) {
	Init()
	before := testutil.ToFloat64(jobPollsTotal.WithLabelValues("running"))
	ObservePoll("running")
	ObservePoll("running")
	if got := testutil.ToFloat64(jobPollsTotal.WithLabelValues("running")); got != before+2 {
		t.Errorf("expected running polls to grow by 2, got %f -> %f", before, got)
	}
}

func TestObserveSettled(t *testing.T) {
	Init()
	before := testutil.ToFloat64(jobsSettledTotal.WithLabelValues("failed"))
	ObserveSettled("failed")
	if got := testutil.ToFloat64(jobsSettledTotal.WithLabelValues("failed")); got != before+1 {
		t.Errorf("expected failed settlements to grow by 1, got %f -> %f", before, got)
	}
}

func TestObserveBackendRequest(t *testing.T) {
	ObserveBackendRequest("get_job", 200, 20*time.Millisecond)
	if val := testutil.ToFloat64(backendRequestsTotal.WithLabelValues("get_job", "200")); val < 1 {
		t.Errorf("expected backend request counter to be observed, got %f", val)
	}
	if val := testutil.CollectAndCount(backendRequestDuration); val <= 0 {
		t.Errorf("expected backend request duration to be observed, got %d", val)
	}
}
