package nbi

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/sim/state"
)

var (
	// ErrNotFound is used when a requested element id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is used for malformed request payloads.
	ErrInvalidRequest = errors.New("invalid request")
)

// ToStatusError maps domain and workspace errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var violation *core.InvariantViolation
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	case errors.Is(err, ErrNotFound),
		errors.Is(err, core.ErrElementNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrFormat),
		errors.Is(err, core.ErrWrongDesign),
		errors.Is(err, core.ErrLayerMismatch),
		errors.Is(err, core.ErrNotContiguous),
		errors.Is(err, core.ErrForwardingFraction),
		errors.Is(err, core.ErrForwardingCycle),
		errors.Is(err, core.ErrResourceCycle),
		errors.Is(err, core.ErrCoupling),
		errors.Is(err, core.ErrServiceChain),
		errors.Is(err, core.ErrBackupRoute),
		errors.Is(err, core.ErrTreeShape):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrElementRemoved),
		errors.Is(err, core.ErrRoutingType),
		errors.Is(err, core.ErrCoupledCapacity),
		errors.Is(err, core.ErrLastLayer):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, state.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())

	case errors.Is(err, state.ErrInconsistentResult),
		errors.As(err, &violation):
		return status.Error(codes.DataLoss, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
