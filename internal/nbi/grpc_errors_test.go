package nbi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/sim/state"
)

func TestToStatusError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"canceled", context.Canceled, codes.Canceled},
		{"deadline", fmt.Errorf("sweep: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"not found", fmt.Errorf("%w: link 7", ErrNotFound), codes.NotFound},
		{"core not found", &core.DomainError{Op: "LinkByID", ID: 7, Cause: core.ErrElementNotFound}, codes.NotFound},
		{"invalid request", ErrInvalidRequest, codes.InvalidArgument},
		{"malformed document", fmt.Errorf("load: %w", core.ErrFormat), codes.InvalidArgument},
		{"forwarding cycle", core.ErrForwardingCycle, codes.InvalidArgument},
		{"removed", core.ErrElementRemoved, codes.FailedPrecondition},
		{"last layer", core.ErrLastLayer, codes.FailedPrecondition},
		{"concurrent update", state.ErrConcurrentUpdate, codes.Aborted},
		{"inconsistent result", fmt.Errorf("%w: x", state.ErrInconsistentResult), codes.DataLoss},
		{"invariant", &core.InvariantViolation{Check: "links", Detail: "stale"}, codes.DataLoss},
		{"io", core.ErrIO, codes.Internal},
		{"unknown", errors.New("boom"), codes.Internal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ToStatusError(tc.err)
			assert.Equal(t, tc.want, status.Code(got))
			assert.Contains(t, status.Convert(got).Message(), tc.err.Error())
		})
	}
}

func TestToStatusErrorPassesThroughStatus(t *testing.T) {
	assert.NoError(t, ToStatusError(nil))
	in := status.Error(codes.Unavailable, "down")
	assert.Equal(t, in, ToStatusError(in))
}
