package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/netdesign/model"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	require.NoError(t, err)

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/netdesign.v1.DesignService/GetSummary"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.RPCRequests.WithLabelValues("DesignService", "GetSummary", "OK")))
	assert.Equal(t, uint64(1), histogramSampleCount(t, reg, "netdesign_rpc_request_duration_seconds", map[string]string{
		"service": "DesignService",
		"method":  "GetSummary",
	}))
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	require.NoError(t, err)

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/netdesign.v1.DesignService/LoadDesign"}
	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.RPCRequests.WithLabelValues("DesignService", "LoadDesign", "InvalidArgument")))
}

func TestCollectorsShareARegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewDesignCollector(reg)
	require.NoError(t, err)
	second, err := NewDesignCollector(reg)
	require.NoError(t, err)
	assert.Same(t, first.Elements, second.Elements)

	_, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: "netdesign_elements", Help: "clash"}), "netdesign_elements")
	assert.Error(t, err)
}

func TestDesignCollectorSummaryGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewDesignCollector(reg)
	require.NoError(t, err)

	c.SetSummary(model.Summary{
		Layers:                  2,
		Nodes:                   4,
		Links:                   6,
		DownLinks:               2,
		OfferedTraffic:          30,
		CarriedTraffic:          25,
		BlockedTraffic:          5,
		OversubscribedResources: 1,
	})

	assert.Equal(t, 4.0, testutil.ToFloat64(c.Elements.WithLabelValues("node")))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.Elements.WithLabelValues("link")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Elements.WithLabelValues("multicast_tree")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DownElements.WithLabelValues("link")))
	assert.Equal(t, 25.0, testutil.ToFloat64(c.Traffic.WithLabelValues("carried")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.Traffic.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Oversubscribed.WithLabelValues("resource")))
}

func TestDesignCollectorRunsAndChecks(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewDesignCollector(reg)
	require.NoError(t, err)

	c.ObserveConsistencyCheck(nil)
	c.ObserveConsistencyCheck(nil)
	c.ObserveConsistencyCheck(errors.New("diverged"))
	c.ObserveAlgorithmRun("reroute", 20*time.Millisecond, nil)
	c.ObserveAlgorithmRun("reroute", 10*time.Millisecond, errors.New("infeasible"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ConsistencyChecks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ConsistencyChecks.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AlgorithmRuns.WithLabelValues("reroute", "error")))
	assert.Equal(t, uint64(2), histogramSampleCount(t, reg, "netdesign_algorithm_run_duration_seconds", map[string]string{"algorithm": "reroute"}))

	var nilCollector *DesignCollector
	assert.NotPanics(t, func() {
		nilCollector.SetSummary(model.Summary{})
		nilCollector.ObserveAlgorithmRun("x", time.Second, nil)
	})
}

func TestMetricsHandlerExposesDesignGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	rpc, err := NewRPCCollector(reg)
	require.NoError(t, err)
	design, err := NewDesignCollector(reg)
	require.NoError(t, err)
	design.SetSummary(model.Summary{Nodes: 3})
	rpc.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	rpc.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	rpc.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	for _, metric := range []string{
		"netdesign_rpc_requests_total",
		"netdesign_rpc_request_duration_seconds",
		`netdesign_elements{kind="node"} 3`,
		"netdesign_traffic",
	} {
		assert.Contains(t, body, metric)
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"":                                       {"unknown", "unknown"},
		"nomethod":                               {"unknown", "unknown"},
		"/netdesign.v1.DesignService/SaveDesign": {"DesignService", "SaveDesign"},
		"Plain/Call":                             {"Plain", "Call"},
		"/svc/":                                  {"svc", "unknown"},
	}
	for in, want := range cases {
		service, method := SplitMethod(in)
		assert.Equal(t, want[0], service, in)
		assert.Equal(t, want[1], method, in)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	require.NoError(t, err)
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
