package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDispatch(t *testing.T) {
	ok := DispatchTotal.WithLabelValues("probe", "file.open", "success")
	failed := DispatchTotal.WithLabelValues("probe", "file.open", "failure")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveDispatch("probe", "file.open", nil, time.Microsecond)
	ObserveDispatch("probe", "file.open", errors.New("boom"), time.Millisecond)
	ObserveDispatch("probe", "file.open", nil, 0)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Positive(t, testutil.CollectAndCount(DispatchLatency, "hvol_dispatch_latency_nanoseconds"))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("probe.flush")
	assert.Equal(t, "probe.flush", timer.Name())
	time.Sleep(time.Millisecond)
	first := timer.Stop()
	assert.GreaterOrEqual(t, first, time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), first)
}
