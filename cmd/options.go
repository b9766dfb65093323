package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/giantswarm/kubewire/internal/instrumentation"
	"github.com/giantswarm/kubewire/internal/k8s"
	"github.com/giantswarm/kubewire/internal/logging"
	"github.com/giantswarm/kubewire/internal/output"
)

// envPrefix is prepended to every flag name to form its environment
// variable, e.g. --ca-file is KUBEWIRE_CA_FILE.
const envPrefix = "KUBEWIRE"

// Output formats accepted by --output.
const (
	outputJSON = "json"
	outputName = "name"
)

// Global flag names.
const (
	flagServer        = "server"
	flagToken         = "token"
	flagTokenFile     = "token-file"
	flagNamespace     = "namespace"
	flagNamespaceFile = "namespace-file"
	flagCAFile        = "ca-file"
	flagTimeout       = "timeout"
	flagLogLevel      = "log-level"
	flagLogFormat     = "log-format"
	flagDebug         = "debug"
	flagOutput        = "output"
	flagShowSecrets   = "show-secrets"
	flagShowManaged   = "show-managed-fields"
)

// addGlobalFlags defines the connection and output flags shared by every
// command talking to the API server.
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String(flagServer, "", "API server URL (default: in-cluster service address)")
	fs.String(flagToken, "", "Bearer token (default: read from --token-file)")
	fs.String(flagTokenFile, "", "Path to the bearer token file (default: service account token)")
	fs.StringP(flagNamespace, "n", "", "Namespace (default: service account namespace, then \"default\")")
	fs.String(flagNamespaceFile, "", "Path to the namespace file (default: service account namespace)")
	fs.String(flagCAFile, "", "Path to the CA bundle (default: service account CA, then system trust store)")
	fs.Duration(flagTimeout, k8s.DefaultTimeout*time.Second, "Timeout for non-streaming requests")
	fs.String(flagLogLevel, "warn", "Log level: debug, info, warn or error")
	fs.String(flagLogFormat, logging.FormatText, "Log format: text or json")
	fs.Bool(flagDebug, false, "Log request URLs, timings and response codes")
	fs.StringP(flagOutput, "o", "", "Output format: json or name")
	fs.Bool(flagShowSecrets, false, "Print Secret values instead of "+output.RedactedValue)
	fs.Bool(flagShowManaged, false, "Keep metadata.managedFields and last-applied-configuration in JSON output")
}

// loadConfig binds the command's flags into a fresh viper instance so that
// each flag can also be set through its KUBEWIRE_ environment variable.
// Explicit flags win over the environment.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// session bundles what a command needs to talk to the API server.
type session struct {
	client   *k8s.Client
	logger   *slog.Logger
	provider *instrumentation.Provider
	config   *viper.Viper
	out      io.Writer
}

// newSession resolves flags and environment into a client. The caller must
// call Close.
func newSession(cmd *cobra.Command) (*session, error) {
	v, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	switch v.GetString(flagOutput) {
	case "", outputJSON, outputName:
	default:
		return nil, &k8s.ConfigError{Field: flagOutput, Reason: fmt.Sprintf("unknown output format %q (expected %q or %q)", v.GetString(flagOutput), outputJSON, outputName)}
	}

	logger, err := logging.New(v.GetString(flagLogFormat), v.GetString(flagLogLevel), cmd.ErrOrStderr())
	if err != nil {
		return nil, &k8s.ConfigError{Field: "logging", Reason: err.Error()}
	}

	instrumentationConfig := instrumentation.DefaultConfig()
	instrumentationConfig.ServiceVersion = currentVersion()
	provider, err := instrumentation.NewProvider(cmd.Context(), instrumentationConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	if provider.Enabled() {
		logger.Info("Instrumentation enabled",
			"metrics_exporter", instrumentationConfig.MetricsExporter,
			"tracing_exporter", instrumentationConfig.TracingExporter)
	}

	client, err := k8s.NewClient(&k8s.ClientConfig{
		Host:          v.GetString(flagServer),
		Token:         v.GetString(flagToken),
		TokenFile:     v.GetString(flagTokenFile),
		Namespace:     v.GetString(flagNamespace),
		NamespaceFile: v.GetString(flagNamespaceFile),
		CACertFile:    v.GetString(flagCAFile),
		Timeout:       v.GetDuration(flagTimeout),
		UserAgent:     "kubewire/" + currentVersion(),
		DebugMode:     v.GetBool(flagDebug),
		Logger:        logger,
		Metrics:       provider.Metrics(),
	})
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	return &session{
		client:   client,
		logger:   logger,
		provider: provider,
		config:   v,
		out:      cmd.OutOrStdout(),
	}, nil
}

// output returns the requested format, or def when none was given.
func (s *session) output(def string) string {
	if o := s.config.GetString(flagOutput); o != "" {
		return o
	}
	return def
}

// processor returns the JSON post-processing selected by the flags.
func (s *session) processor() *output.Processor {
	p := output.DefaultProcessor()
	p.MaskSecrets = !s.config.GetBool(flagShowSecrets)
	p.Slim = !s.config.GetBool(flagShowManaged)
	return p
}

// namespace returns the --namespace value; empty means the client default.
func (s *session) namespace() string {
	return s.config.GetString(flagNamespace)
}

// Close releases the client and flushes telemetry.
func (s *session) Close() {
	_ = s.client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.provider.Shutdown(ctx); err != nil {
		s.logger.Warn("Failed to flush instrumentation", logging.Err(err))
	}
}

// lookupResource resolves a resource argument or reports it as a ConfigError.
func lookupResource(name string) (k8s.Resource, error) {
	res, ok := k8s.LookupResource(name)
	if !ok {
		return k8s.Resource{}, &k8s.ConfigError{Field: "resource", Reason: fmt.Sprintf("unknown resource type %q", name)}
	}
	return res, nil
}
