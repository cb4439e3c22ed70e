package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-rule violations. Mutators wrap them in a
// *DomainError; callers match with errors.Is.
var (
	ErrWrongDesign        = errors.New("element belongs to a different design")
	ErrElementRemoved     = errors.New("element has been removed")
	ErrElementNotFound    = errors.New("element not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrLayerMismatch      = errors.New("elements belong to different layers")
	ErrNotContiguous      = errors.New("path is not contiguous")
	ErrRoutingType        = errors.New("operation not allowed under the layer routing type")
	ErrForwardingFraction = errors.New("forwarding fractions out of a node exceed 1")
	ErrForwardingCycle    = errors.New("forwarding rules form a cycle")
	ErrResourceCycle      = errors.New("resource composition would create a cycle")
	ErrCoupling           = errors.New("invalid coupling")
	ErrCoupledCapacity    = errors.New("capacity of a coupled link mirrors its coupled demand")
	ErrServiceChain       = errors.New("traversed resources do not match the service chain")
	ErrBackupRoute        = errors.New("invalid backup route relation")
	ErrTreeShape          = errors.New("links do not form a tree rooted at the ingress node")
	ErrLastLayer          = errors.New("a design must keep at least one layer")
	ErrIO                 = errors.New("design i/o failed")
	ErrFormat             = errors.New("malformed design document")
)

// DomainError carries structured context for a rejected operation. The
// design is left unchanged whenever a DomainError is returned.
type DomainError struct {
	Op      string // operation that failed, e.g. "AddRoute"
	Element string // element kind, e.g. "link"
	ID      int64  // element id, or -1 when not applicable
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Element != "" && e.ID >= 0 {
		return fmt.Sprintf("%s %s %d: %v", e.Op, e.Element, e.ID, e.Cause)
	}
	if e.Element != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Element, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DomainError) Unwrap() error { return e.Cause }

func domainErr(op string, el Element, cause error) error {
	de := &DomainError{Op: op, ID: noID, Cause: cause}
	if el != nil {
		de.Element = el.Kind().String()
		de.ID = el.ID()
	}
	return de
}

func opErr(op string, sentinel error, format string, args ...any) error {
	return &DomainError{Op: op, ID: noID, Cause: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}

// InvariantViolation is the panic value raised by CheckCachesConsistency when
// a cached index diverges from ground truth. It signals a defect in this
// package, never a caller error.
type InvariantViolation struct {
	Check  string
	Detail string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation [%s]: %s", v.Check, v.Detail)
}

func violation(check, format string, args ...any) error {
	return &InvariantViolation{Check: check, Detail: fmt.Sprintf(format, args...)}
}
