package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesFieldsAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "json", Writer: &buf})

	ctx, log := WithRequestLogger(context.Background(), base.With(String("component", "test")))
	log.Debug(ctx, "design updated", Int("nodes", 3), Bool("consistent", true))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "design updated", rec["msg"])
	assert.Equal(t, "test", rec["component"])
	assert.Equal(t, float64(3), rec["nodes"])
	assert.Equal(t, RequestIDFromContext(ctx), rec["request_id"])
}

func TestLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Writer: &buf})
	log.Info(context.Background(), "dropped")
	assert.Zero(t, buf.Len())
	log.Warn(context.Background(), "kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "fixed")
	again, id := EnsureRequestID(ctx)
	assert.Equal(t, "fixed", id)
	assert.Equal(t, ctx, again)

	_, generated := EnsureRequestID(context.Background())
	assert.Len(t, generated, 36)

	assert.Nil(t, LoggerFromContext(context.Background()))
	assert.NotNil(t, LoggerFromContext(ContextWithLogger(context.Background(), nil)))
}

func TestDesignLoggerScopesRecords(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "json", Writer: &buf})

	ctx, log := WithDesignLogger(context.Background(), base, "design-1")
	assert.Equal(t, "design-1", DesignIDFromContext(ctx))
	assert.Same(t, log, LoggerFromContext(ctx))
	log.Info(ctx, "link removed", ElementID("link", 7), Epoch(12))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "design-1", rec["design_id"])
	assert.Equal(t, RequestIDFromContext(ctx), rec["request_id"])
	assert.Equal(t, float64(7), rec["link_id"])
	assert.Equal(t, float64(12), rec["epoch"])
}

func TestRequestLoggerOmitsUnknownDesign(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Writer: &buf})
	ctx, log := WithRequestLogger(context.Background(), base)
	log.Info(ctx, "no design")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "design_id")
	assert.Empty(t, DesignIDFromContext(ctx))
}
