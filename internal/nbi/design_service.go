package nbi

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/internal/observability"
	"github.com/signalsfoundry/netdesign/internal/sim/failure"
	"github.com/signalsfoundry/netdesign/internal/sim/state"
)

// FormatMetadataKey carries the document format of a LoadDesign request.
const FormatMetadataKey = "x-design-format"

// ConsistencyReport is the CheckConsistency response payload.
type ConsistencyReport struct {
	Consistent bool   `json:"consistent"`
	Check      string `json:"check,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// DesignService implements DesignServiceServer over a Workspace.
type DesignService struct {
	workspace *state.Workspace
	analyzer  *failure.Analyzer
	log       logging.Logger
	loadOpts  []core.Option
}

// DesignServiceOption customises a DesignService.
type DesignServiceOption func(*DesignService)

// WithLoadOptions sets the options applied to designs received by
// LoadDesign, e.g. the process-wide tolerances.
func WithLoadOptions(opts ...core.Option) DesignServiceOption {
	return func(s *DesignService) {
		s.loadOpts = append(s.loadOpts, opts...)
	}
}

// WithAnalyzer replaces the default failure analyzer.
func WithAnalyzer(a *failure.Analyzer) DesignServiceOption {
	return func(s *DesignService) {
		if a != nil {
			s.analyzer = a
		}
	}
}

// NewDesignService constructs a DesignService bound to a workspace.
func NewDesignService(ws *state.Workspace, log logging.Logger, opts ...DesignServiceOption) *DesignService {
	if log == nil {
		log = logging.Noop()
	}
	s := &DesignService{
		workspace: ws,
		analyzer:  failure.NewAnalyzer(log),
		log:       log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// GetSummary digests the live design.
func (s *DesignService) GetSummary(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return s.summary()
}

// CheckConsistency verifies the live design's caches. A divergence is
// reported in the payload rather than as an RPC error.
func (s *DesignService) CheckConsistency(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	report := ConsistencyReport{Consistent: true}
	if err := s.workspace.CheckConsistency(ctx); err != nil {
		report.Consistent = false
		report.Detail = err.Error()
		var v *core.InvariantViolation
		if errors.As(err, &v) {
			report.Check = v.Check
			report.Detail = v.Detail
		}
	}
	out, err := toStruct(report)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// SetLinkFailureState sets the listed links up or down in one batch.
func (s *DesignService) SetLinkFailureState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.setFailureState(ctx, "SetLinkFailureState", in, func(d *core.Design, id int64, up bool, batch *failureBatch) error {
		l := d.LinkByID(id)
		if l == nil {
			return fmt.Errorf("%w: link %d", ErrNotFound, id)
		}
		if up {
			batch.linksUp = append(batch.linksUp, l)
		} else {
			batch.linksDown = append(batch.linksDown, l)
		}
		return nil
	})
}

// SetNodeFailureState sets the listed nodes up or down in one batch.
func (s *DesignService) SetNodeFailureState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.setFailureState(ctx, "SetNodeFailureState", in, func(d *core.Design, id int64, up bool, batch *failureBatch) error {
		n := d.NodeByID(id)
		if n == nil {
			return fmt.Errorf("%w: node %d", ErrNotFound, id)
		}
		if up {
			batch.nodesUp = append(batch.nodesUp, n)
		} else {
			batch.nodesDown = append(batch.nodesDown, n)
		}
		return nil
	})
}

type failureBatch struct {
	linksUp, linksDown []*core.Link
	nodesUp, nodesDown []*core.Node
}

func (s *DesignService) setFailureState(
	ctx context.Context,
	op string,
	in *structpb.Struct,
	collect func(d *core.Design, id int64, up bool, batch *failureBatch) error,
) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var req FailureStateRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, ToStatusError(err)
	}

	err := s.workspace.Update(ctx, op, func(d *core.Design) error {
		var batch failureBatch
		for _, id := range req.IDs {
			if err := collect(d, id, *req.Up, &batch); err != nil {
				return err
			}
		}
		return d.SetLinksAndNodesFailureState(batch.linksUp, batch.linksDown, batch.nodesUp, batch.nodesDown)
	})
	if err != nil {
		return nil, ToStatusError(err)
	}
	s.requestLogger(ctx).Info(ctx, "failure state changed",
		logging.String("operation", op),
		logging.Int("elements", len(req.IDs)),
		logging.Bool("up", *req.Up),
	)
	return s.summary()
}

// AnalyzeSRGs fails every SRG in turn on a snapshot and reports the
// traffic each one takes down.
func (s *DesignService) AnalyzeSRGs(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	report, err := s.analyzer.SweepWorkspace(ctx, s.workspace)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := toStruct(report)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// SaveDesign serialises the live design in the requested format.
func (s *DesignService) SaveDesign(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	format, err := parseFormat(in.GetValue())
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := observability.StartSpan(ctx, "design.Save", attribute.String("format", format.String()))

	var buf bytes.Buffer
	err = s.workspace.WithReadLock(func(d *core.Design) error {
		return core.Save(d, &buf, format)
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, ToStatusError(err)
	}
	s.requestLogger(ctx).Debug(ctx, "design saved",
		logging.String("format", format.String()),
		logging.Int("bytes", buf.Len()),
	)
	return wrapperspb.Bytes(buf.Bytes()), nil
}

// LoadDesign replaces the live design with the received document.
func (s *DesignService) LoadDesign(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if len(in.GetValue()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "design document is required")
	}
	format, err := parseFormat(firstHeader(incoming(ctx), FormatMetadataKey))
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := observability.StartSpan(ctx, "design.Load",
		attribute.String("format", format.String()),
		attribute.Int("bytes", len(in.GetValue())),
	)

	d, err := core.Load(bytes.NewReader(in.GetValue()), format, s.loadOpts...)
	if err == nil {
		err = s.workspace.Replace(ctx, d)
	}
	observability.EndSpan(span, err)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return s.summary()
}

func (s *DesignService) summary() (*structpb.Struct, error) {
	out, err := toStruct(s.workspace.Summary())
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

func (s *DesignService) ensureReady() error {
	if s == nil || s.workspace == nil {
		return status.Error(codes.FailedPrecondition, "design workspace is not configured")
	}
	return nil
}

func (s *DesignService) requestLogger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

func parseFormat(name string) (core.Format, error) {
	if name == "" {
		return core.FormatJSON, nil
	}
	return core.ParseFormat(name)
}

func incoming(ctx context.Context) metadata.MD {
	md, _ := metadata.FromIncomingContext(ctx)
	return md
}
