package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"hrledger/internal/ledger"
	"hrledger/internal/metrics"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ledger.ErrAlreadyCheckedIn, "already_checked_in"},
		{ledger.ErrNotFound, "not_found"},
		{ledger.Validation("type", "unknown"), "validation_error"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := metrics.Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveOperation(t *testing.T) {
	counter := metrics.LedgerOperations.WithLabelValues("test.op", "not_pending")
	before := testutil.ToFloat64(counter)

	metrics.ObserveOperation("test.op", ledger.ErrNotPending)

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("expected counter %v, got %v", before+1, got)
	}
}
