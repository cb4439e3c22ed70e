package nbi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/sim/failure"
	"github.com/signalsfoundry/netdesign/model"
)

// Client is a typed wrapper over DesignServiceClient that decodes the Struct
// payloads into their Go types.
type Client struct {
	rpc DesignServiceClient
}

// NewClient wraps a connection to a design service.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{rpc: NewDesignServiceClient(cc)}
}

// Summary fetches the live design summary.
func (c *Client) Summary(ctx context.Context) (model.Summary, error) {
	out, err := c.rpc.GetSummary(ctx, &emptypb.Empty{})
	if err != nil {
		return model.Summary{}, err
	}
	return decodeSummary(out)
}

// CheckConsistency asks the server to verify its caches.
func (c *Client) CheckConsistency(ctx context.Context) (ConsistencyReport, error) {
	var report ConsistencyReport
	out, err := c.rpc.CheckConsistency(ctx, &emptypb.Empty{})
	if err != nil {
		return report, err
	}
	if err := fromStruct(out, &report); err != nil {
		return report, fmt.Errorf("decode consistency report: %w", err)
	}
	return report, nil
}

// SetLinksUp sets the listed links up (up=true) or down.
func (c *Client) SetLinksUp(ctx context.Context, up bool, ids ...int64) (model.Summary, error) {
	in, err := toStruct(FailureStateRequest{IDs: ids, Up: &up})
	if err != nil {
		return model.Summary{}, err
	}
	out, err := c.rpc.SetLinkFailureState(ctx, in)
	if err != nil {
		return model.Summary{}, err
	}
	return decodeSummary(out)
}

// SetNodesUp sets the listed nodes up (up=true) or down.
func (c *Client) SetNodesUp(ctx context.Context, up bool, ids ...int64) (model.Summary, error) {
	in, err := toStruct(FailureStateRequest{IDs: ids, Up: &up})
	if err != nil {
		return model.Summary{}, err
	}
	out, err := c.rpc.SetNodeFailureState(ctx, in)
	if err != nil {
		return model.Summary{}, err
	}
	return decodeSummary(out)
}

// AnalyzeSRGs runs a single-SRG failure sweep on the server.
func (c *Client) AnalyzeSRGs(ctx context.Context) (*failure.Report, error) {
	out, err := c.rpc.AnalyzeSRGs(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	report := &failure.Report{}
	if err := fromStruct(out, report); err != nil {
		return nil, fmt.Errorf("decode srg report: %w", err)
	}
	return report, nil
}

// Save downloads the live design in the given format.
func (c *Client) Save(ctx context.Context, format core.Format) ([]byte, error) {
	out, err := c.rpc.SaveDesign(ctx, wrapperspb.String(format.String()))
	if err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// Load replaces the live design with doc, encoded in format.
func (c *Client) Load(ctx context.Context, doc []byte, format core.Format) (model.Summary, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, FormatMetadataKey, format.String())
	out, err := c.rpc.LoadDesign(ctx, wrapperspb.Bytes(doc))
	if err != nil {
		return model.Summary{}, err
	}
	return decodeSummary(out)
}

func decodeSummary(s *structpb.Struct) (model.Summary, error) {
	var sum model.Summary
	if err := fromStruct(s, &sum); err != nil {
		return sum, fmt.Errorf("decode summary: %w", err)
	}
	return sum, nil
}
