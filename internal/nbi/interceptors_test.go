package nbi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/signalsfoundry/netdesign/internal/logging"
)

func TestRequestIDInterceptorUsesInboundHeader(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-42"))
	info := &grpc.UnaryServerInfo{FullMethod: GetSummaryMethod}

	var gotID string
	var gotLogger logging.Logger
	_, err := RequestIDUnaryServerInterceptor(nil)(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		gotID = logging.RequestIDFromContext(ctx)
		gotLogger = logging.LoggerFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req-42", gotID)
	assert.NotNil(t, gotLogger)
}

func TestRequestIDInterceptorGeneratesID(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: GetSummaryMethod}
	var gotID string
	_, err := RequestIDUnaryServerInterceptor(logging.Noop())(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		gotID = logging.RequestIDFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, gotID)
}

func TestRequestIDClientInterceptorForwardsID(t *testing.T) {
	ctx := logging.ContextWithRequestID(context.Background(), "req-7")
	var forwarded []string
	err := RequestIDUnaryClientInterceptor()(ctx, GetSummaryMethod, nil, nil, nil,
		func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
			md, _ := metadata.FromOutgoingContext(ctx)
			forwarded = md.Get(RequestIDMetadataKey)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"req-7"}, forwarded)
}

func TestTracingInterceptorStartsServerSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := logging.ContextWithRequestID(context.Background(), "req-9")
	info := &grpc.UnaryServerInfo{FullMethod: AnalyzeSRGsMethod}
	_, err := TracingUnaryServerInterceptor()(ctx, nil, info, func(context.Context, any) (any, error) {
		return nil, ErrNotFound
	})
	require.ErrorIs(t, err, ErrNotFound)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "netdesign/DesignService/AnalyzeSRGs", spans[0].Name())
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "AnalyzeSRGs", attrs["rpc.method"])
	assert.Equal(t, "req-9", attrs["request_id"])
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
