// Package config loads process configuration from NETDESIGN_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/internal/observability"
	"github.com/signalsfoundry/netdesign/model"
)

// Prefix is the environment variable prefix, e.g. NETDESIGN_LOG_LEVEL.
const Prefix = "netdesign"

// Config is the full process configuration shared by the binaries.
type Config struct {
	// Model tolerances applied to designs created or loaded by the process.
	Epsilon       float64 `envconfig:"EPSILON" default:"1e-6"`
	CyclePolicy   string  `envconfig:"CYCLE_POLICY" default:"reject"`
	MaxIterations int     `envconfig:"MAX_ITERATIONS" default:"1000"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	TracingEnabled     bool    `envconfig:"TRACING_ENABLED" default:"false"`
	TracingExporter    string  `envconfig:"TRACING_EXPORTER" default:"stdout"`
	TracingEndpoint    string  `envconfig:"OTLP_ENDPOINT"`
	TracingServiceName string  `envconfig:"TRACING_SERVICE_NAME" default:"netdesign"`
	TracingSampleRatio float64 `envconfig:"TRACING_SAMPLE_RATIO" default:"1"`

	GRPCAddr    string `envconfig:"GRPC_ADDR" default:":50051"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	// DesignFile is loaded at startup when set.
	DesignFile string `envconfig:"DESIGN_FILE"`
	// AuditInterval paces the background consistency audit; 0 disables it.
	AuditInterval time.Duration `envconfig:"AUDIT_INTERVAL" default:"1m"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot check on its own.
func (c Config) Validate() error {
	if _, err := c.ModelOptions(); err != nil {
		return err
	}
	switch strings.ToLower(c.TracingExporter) {
	case "", "stdout", "otlp", "otlpgrpc":
	default:
		return fmt.Errorf("unsupported tracing exporter %q", c.TracingExporter)
	}
	if c.AuditInterval < 0 {
		return fmt.Errorf("audit interval must not be negative, got %s", c.AuditInterval)
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be in [0, 1], got %v", c.TracingSampleRatio)
	}
	return nil
}

// ModelOptions converts the model settings into design options.
func (c Config) ModelOptions() (model.Options, error) {
	policy, err := model.ParseCyclePolicy(c.CyclePolicy)
	if err != nil {
		return model.Options{}, err
	}
	opts := model.Options{
		Epsilon:       c.Epsilon,
		CyclePolicy:   policy,
		MaxIterations: c.MaxIterations,
	}
	if err := opts.Validate(); err != nil {
		return model.Options{}, err
	}
	return opts, nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat, AddSource: true}
}

// Tracing returns the tracer configuration.
func (c Config) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.TracingEnabled,
		ServiceName: c.TracingServiceName,
		Exporter:    strings.ToLower(c.TracingExporter),
		Endpoint:    c.TracingEndpoint,
		SampleRatio: c.TracingSampleRatio,
	}
}
