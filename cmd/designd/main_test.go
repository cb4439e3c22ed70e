package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/config"
	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/internal/nbi"
	"github.com/signalsfoundry/netdesign/model"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.MetricsAddr = ""
	cfg.LogLevel = "warn"
	return cfg
}

func writeDesign(t *testing.T) string {
	t.Helper()
	d := core.New(core.WithName("startup"))
	a, err := d.AddNode("a", model.Point{})
	require.NoError(t, err)
	b, err := d.AddNode("b", model.Point{})
	require.NoError(t, err)
	_, err = d.AddLink(a, b, 10, 1, core.DefaultPropagationSpeedKmPerSec, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "startup.yaml")
	require.NoError(t, core.SaveFile(d, path))
	return path
}

func TestDesigndServesStartupDesign(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := testConfig(t)
	cfg.DesignFile = writeDesign(t)
	cfg.AuditInterval = 5 * time.Millisecond

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, logging.New(cfg.Logging()), lis, reg)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	sum, err := nbi.NewClient(conn).Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "startup", sum.Name)
	assert.Equal(t, 2, sum.Nodes)
	assert.Equal(t, 1, sum.Links)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "netdesign_rpc_requests_total"))

	cancel()
	require.NoError(t, <-errCh)
}

func TestDesigndRejectsMissingDesignFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.DesignFile = filepath.Join(t.TempDir(), "missing.json")

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	err = run(context.Background(), cfg, nil, lis, prometheus.NewRegistry())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIO)
}

func TestInitialDesignDefaultsToEmpty(t *testing.T) {
	d, err := initialDesign("", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, d.NumberOfLayers())
	assert.Zero(t, d.NumberOfNodes())
}
