package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/netdesign/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	opts, err := cfg.ModelOptions()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultOptions(), opts)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, "info", cfg.Logging().Level)
	assert.False(t, cfg.Tracing().Enabled)
	assert.Equal(t, "netdesign", cfg.Tracing().ServiceName)
	assert.Equal(t, time.Minute, cfg.AuditInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NETDESIGN_EPSILON", "1e-9")
	t.Setenv("NETDESIGN_CYCLE_POLICY", "Iterate")
	t.Setenv("NETDESIGN_MAX_ITERATIONS", "50")
	t.Setenv("NETDESIGN_LOG_FORMAT", "json")
	t.Setenv("NETDESIGN_TRACING_ENABLED", "true")
	t.Setenv("NETDESIGN_TRACING_EXPORTER", "OTLP")
	t.Setenv("NETDESIGN_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("NETDESIGN_DESIGN_FILE", "/tmp/backbone.json")
	t.Setenv("NETDESIGN_AUDIT_INTERVAL", "0")

	cfg, err := Load()
	require.NoError(t, err)
	opts, err := cfg.ModelOptions()
	require.NoError(t, err)
	assert.Equal(t, model.Options{Epsilon: 1e-9, CyclePolicy: model.CycleIterate, MaxIterations: 50}, opts)
	assert.Equal(t, "json", cfg.Logging().Format)

	tc := cfg.Tracing()
	assert.True(t, tc.Enabled)
	assert.Equal(t, "otlp", tc.Exporter)
	assert.Equal(t, "collector:4317", tc.Endpoint)
	assert.Equal(t, "/tmp/backbone.json", cfg.DesignFile)
	assert.Zero(t, cfg.AuditInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"unparsable epsilon": {"NETDESIGN_EPSILON", "tiny"},
		"zero epsilon":       {"NETDESIGN_EPSILON", "0"},
		"cycle policy":       {"NETDESIGN_CYCLE_POLICY", "ignore"},
		"iterations":         {"NETDESIGN_MAX_ITERATIONS", "0"},
		"exporter":           {"NETDESIGN_TRACING_EXPORTER", "zipkin"},
		"sample ratio":       {"NETDESIGN_TRACING_SAMPLE_RATIO", "1.5"},
		"audit interval":     {"NETDESIGN_AUDIT_INTERVAL", "-5s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
