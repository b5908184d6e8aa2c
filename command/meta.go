// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/llm-twin/ic-autoscaler/config"
	"github.com/llm-twin/ic-autoscaler/provider/appautoscaling"
	"github.com/llm-twin/ic-autoscaler/scaling"
	flaghelper "github.com/llm-twin/ic-autoscaler/sdk/helper/flag"
	"github.com/llm-twin/ic-autoscaler/sdk/helper/metrics"
	"github.com/llm-twin/ic-autoscaler/sdk/helper/ptr"
	"github.com/llm-twin/ic-autoscaler/telemetry"
	"github.com/llm-twin/ic-autoscaler/version"
	"github.com/mitchellh/cli"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// telemetryShutdownTimeout bounds the final metrics flush, which runs even
// when the command context was cancelled.
const telemetryShutdownTimeout = 10 * time.Second

// ClientFactory builds the scaling client used by a command run.
type ClientFactory func(ctx context.Context, cfg *config.AWS, logger hclog.Logger) (scaling.Client, error)

// AWSClientFactory is the ClientFactory which talks to AWS Application Auto
// Scaling.
func AWSClientFactory(ctx context.Context, cfg *config.AWS, logger hclog.Logger) (scaling.Client, error) {
	return appautoscaling.New(ctx, cfg, logger)
}

// Meta contains the dependencies shared by the setup, cleanup and status
// commands.
type Meta struct {
	Ctx context.Context
	Ui  cli.Ui

	// ClientFactory defaults to AWSClientFactory.
	ClientFactory ClientFactory

	// LogOutput defaults to stderr.
	LogOutput io.Writer
}

// runFunc is the command specific part of a run.
type runFunc func(ctx context.Context, o *scaling.Orchestrator) error

// metaHelp returns the help text of the options shared by all commands
// which talk to the provider.
func metaHelp() string {
	helpText := `
Options:

  -config=<path>
    The path to either a single config file or a directory of config files.
    This option may be specified multiple times; later files take
    precedence.

  -log-level=<level>
    Specify the verbosity level of the logs. Valid values include TRACE,
    DEBUG, INFO, WARN and ERROR. The default is INFO.

  -log-json
    Output logs in a JSON format. The default is false.

AWS Options:

  -aws-region=<region>
    The AWS region. Defaults to the region of the environment or shared
    configuration, then us-east-1.

  -aws-profile=<name>
    The shared configuration profile to use.

  -aws-endpoint=<url>
    Overrides the Application Auto Scaling endpoint.

  -aws-call-timeout=<dur>
    The time limit of each individual API call. 0 disables the limit. The
    default is 30s.

  -aws-rate-limit=<num>
    The maximum number of API requests per second. -1 disables rate
    limiting. The default is 10.

Autoscaling Options:

  -inference-component-name=<name>
    The name of the inference component to scale. Required.

  -endpoint-name=<name>
    The name of the endpoint hosting the inference component. Required.

  -policy-name=<name>
    The name of the scaling policy. Defaults to the endpoint name.

  -initial-copy-count=<num>
    The minimum number of copies. The default is 1.

  -max-copy-count=<num>
    The maximum number of copies. The default is 6.

  -target-value=<num>
    The desired number of invocations per copy. The default is 4.

  -target-value-offset=<num>
    Added to the target value before it is sent to the provider. The
    default is 1.

  -scale-in-cooldown=<dur>
    The minimum time between scale in activities, in whole seconds. The
    default is 200s.

  -scale-out-cooldown=<dur>
    The minimum time between scale out activities, in whole seconds. The
    default is 200s.

  -disable-scale-in
    Stop the policy from removing copies. The default is false.

  -tag=<key>=<value>
    A tag to apply to the scalable target when it is registered. This option
    may be specified multiple times.

Telemetry Options:

  -telemetry-disable-hostname
    Specifies whether gauge values should be prefixed with the local hostname.

  -telemetry-enable-hostname-label
    Enable adding hostname to metric labels.

  -telemetry-statsite-address=<addr>
    The address of the statsite aggregation server.

  -telemetry-statsd-address=<addr>
    The address of the statsd aggregation.

  -telemetry-dogstatsd-address=<addr>
    The address of the Datadog statsd server.

  -telemetry-dogstatsd-tag=<tag>
    A global tag that will be added to all telemetry packets sent to
    DogStatsD. This option may be specified multiple times.

  -telemetry-prometheus-metrics
    Enable the Prometheus sink. Defaults to false.

  -telemetry-prometheus-retention-time=<dur>
    The time to retain Prometheus metrics before they are expired and
    untracked.

  -telemetry-pushgateway-address=<addr>
    The address of a Prometheus Pushgateway metrics are pushed to when the
    command finishes. Requires -telemetry-prometheus-metrics.

  -telemetry-pushgateway-job=<name>
    The job name metrics are pushed under. Defaults to ic-autoscaler.

  -telemetry-circonus-api-token=<token>
    A valid API Token used to create/manage check. If provided, metric
    management is enabled.

  -telemetry-circonus-submission-url=<url>
    The check.config.submission_url field from a previously created HTTPTRAP
    check.
`
	return strings.TrimSpace(helpText)
}

// readConfig parses the command flags and merges them on top of the loaded
// configuration files. Errors are written to the UI and nil is returned.
func (m *Meta) readConfig(name string, args []string) *config.Config {
	var configPath []string

	// cmdConfig is used to store any passed CLI flags.
	cmdConfig := &config.Config{
		AWS:         &config.AWS{},
		Autoscaling: &config.Autoscaling{},
		Telemetry:   &config.Telemetry{},
	}

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.Usage = func() { m.Ui.Error("Run 'ic-autoscaler " + name + " -help' for more information.") }
	flags.SetOutput(io.Discard)

	// Specify our top level CLI flags.
	flags.Var((*flaghelper.StringFlag)(&configPath), "config", "")
	flags.StringVar(&cmdConfig.LogLevel, "log-level", "", "")
	flags.BoolVar(&cmdConfig.LogJson, "log-json", false, "")

	// Specify our AWS client flags.
	flags.StringVar(&cmdConfig.AWS.Region, "aws-region", "", "")
	flags.StringVar(&cmdConfig.AWS.Profile, "aws-profile", "", "")
	flags.StringVar(&cmdConfig.AWS.Endpoint, "aws-endpoint", "", "")
	flags.Var((flaghelper.FuncDurationVar)(func(d time.Duration) error {
		cmdConfig.AWS.CallTimeout = ptr.Of(d)
		return nil
	}), "aws-call-timeout", "")
	flags.Var((flaghelper.FuncIntVar)(func(i int) error {
		cmdConfig.AWS.RateLimitPtr = ptr.Of(i)
		cmdConfig.AWS.RateLimit = i
		return nil
	}), "aws-rate-limit", "")

	// Specify our autoscaling flags.
	flags.StringVar(&cmdConfig.Autoscaling.InferenceComponentName, "inference-component-name", "", "")
	flags.StringVar(&cmdConfig.Autoscaling.EndpointName, "endpoint-name", "", "")
	flags.StringVar(&cmdConfig.Autoscaling.PolicyName, "policy-name", "", "")
	flags.Var((flaghelper.FuncIntVar)(func(i int) error {
		cmdConfig.Autoscaling.InitialCopyCount = ptr.Of(i)
		return nil
	}), "initial-copy-count", "")
	flags.Var((flaghelper.FuncIntVar)(func(i int) error {
		cmdConfig.Autoscaling.MaxCopyCount = ptr.Of(i)
		return nil
	}), "max-copy-count", "")
	flags.Var((flaghelper.FuncFloatVar)(func(f float64) error {
		cmdConfig.Autoscaling.TargetValue = ptr.Of(f)
		return nil
	}), "target-value", "")
	flags.Var((flaghelper.FuncFloatVar)(func(f float64) error {
		cmdConfig.Autoscaling.TargetValueOffset = ptr.Of(f)
		return nil
	}), "target-value-offset", "")
	flags.Var((flaghelper.FuncDurationVar)(func(d time.Duration) error {
		cmdConfig.Autoscaling.ScaleInCooldown = ptr.Of(d)
		return nil
	}), "scale-in-cooldown", "")
	flags.Var((flaghelper.FuncDurationVar)(func(d time.Duration) error {
		cmdConfig.Autoscaling.ScaleOutCooldown = ptr.Of(d)
		return nil
	}), "scale-out-cooldown", "")
	flags.Var((flaghelper.FuncBoolVar)(func(b bool) error {
		cmdConfig.Autoscaling.DisableScaleIn = ptr.Of(b)
		return nil
	}), "disable-scale-in", "")
	flags.Var((flaghelper.FuncMapStringStringVar)(func(k, v string) error {
		if cmdConfig.Autoscaling.Tags == nil {
			cmdConfig.Autoscaling.Tags = make(map[string]string)
		}
		cmdConfig.Autoscaling.Tags[k] = v
		return nil
	}), "tag", "")

	// Specify our Telemetry CLI flags.
	flags.BoolVar(&cmdConfig.Telemetry.DisableHostname, "telemetry-disable-hostname", false, "")
	flags.BoolVar(&cmdConfig.Telemetry.EnableHostnameLabel, "telemetry-enable-hostname-label", false, "")
	flags.StringVar(&cmdConfig.Telemetry.StatsiteAddr, "telemetry-statsite-address", "", "")
	flags.StringVar(&cmdConfig.Telemetry.StatsdAddr, "telemetry-statsd-address", "", "")
	flags.StringVar(&cmdConfig.Telemetry.DogStatsDAddr, "telemetry-dogstatsd-address", "", "")
	flags.Var((*flaghelper.StringFlag)(&cmdConfig.Telemetry.DogStatsDTags), "telemetry-dogstatsd-tag", "")
	flags.BoolVar(&cmdConfig.Telemetry.PrometheusMetrics, "telemetry-prometheus-metrics", false, "")
	flags.Var((flaghelper.FuncDurationVar)(func(d time.Duration) error {
		cmdConfig.Telemetry.PrometheusRetentionTime = d
		return nil
	}), "telemetry-prometheus-retention-time", "")
	flags.StringVar(&cmdConfig.Telemetry.PushgatewayAddr, "telemetry-pushgateway-address", "", "")
	flags.StringVar(&cmdConfig.Telemetry.PushgatewayJob, "telemetry-pushgateway-job", "", "")
	flags.StringVar(&cmdConfig.Telemetry.CirconusAPIToken, "telemetry-circonus-api-token", "", "")
	flags.StringVar(&cmdConfig.Telemetry.CirconusCheckSubmissionURL, "telemetry-circonus-submission-url", "", "")

	if err := flags.Parse(args); err != nil {
		m.Ui.Error(fmt.Sprintf("Error parsing flags: %v", err))
		return nil
	}

	if flags.NArg() != 0 {
		m.Ui.Error(fmt.Sprintf("Unexpected arguments: %s", strings.Join(flags.Args(), " ")))
		return nil
	}

	fileConfig, err := config.LoadPaths(configPath)
	if err != nil {
		m.Ui.Error(err.Error())
		return nil
	}

	merged := fileConfig.Merge(cmdConfig)

	// Validate the merged result since the Pushgateway and Prometheus options
	// may come from different sources.
	if err := merged.Validate(); err != nil {
		m.Ui.Error(fmt.Sprintf("invalid configuration. %v", err))
		return nil
	}
	return merged
}

// run executes f against an orchestrator built from the parsed args. It
// owns the logger, telemetry and client lifecycle and returns the exit code.
func (m *Meta) run(name string, args []string, f runFunc) int {
	cfg := m.readConfig(name, args)
	if cfg == nil {
		return 1
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "ic-autoscaler",
		Level:      hclog.LevelFromString(cfg.LogLevel),
		JSONFormat: cfg.LogJson,
		Output:     m.logOutput(),
	}).Named(name)

	logConfiguration(logger, cfg)

	tel, err := telemetry.Setup(cfg.Telemetry, logger)
	if err != nil {
		m.Ui.Error(fmt.Sprintf("Error setting up telemetry: %v", err))
		return 1
	}
	metrics.SetDefaultLabels([]metrics.Label{{Name: "command", Value: name}})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		_ = tel.Shutdown(ctx)
	}()

	ctx := m.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	factory := m.ClientFactory
	if factory == nil {
		factory = AWSClientFactory
	}

	client, err := factory(ctx, cfg.AWS, logger)
	if err != nil {
		m.Ui.Error(fmt.Sprintf("Error creating Application Auto Scaling client: %v", err))
		return 1
	}

	orchestrator := scaling.NewOrchestrator(client, cfg.ToScalingConfig(), logger)

	if err := f(ctx, orchestrator); err != nil {
		m.Ui.Error(formatError(err))
		return 1
	}
	return 0
}

func (m *Meta) logOutput() io.Writer {
	if m.LogOutput != nil {
		return m.LogOutput
	}
	return os.Stderr
}

// logConfiguration writes the effective configuration at debug level.
func logConfiguration(logger hclog.Logger, cfg *config.Config) {
	if !logger.IsDebug() {
		return
	}

	scalingCfg := cfg.ToScalingConfig()

	info := map[string]string{
		"version":             version.GetHumanVersion(),
		"log level":           cfg.LogLevel,
		"inference component": scalingCfg.InferenceComponentName,
		"endpoint":            scalingCfg.EndpointName,
		"policy":              scalingCfg.EffectivePolicyName(),
		"capacity":            fmt.Sprintf("%d-%d", scalingCfg.InitialCopyCount, scalingCfg.MaxCopyCount),
		"target value":        fmt.Sprintf("%g", scalingCfg.EffectiveTargetValue()),
	}
	if cfg.AWS != nil && cfg.AWS.Region != "" {
		info["region"] = cfg.AWS.Region
	}

	// Sort the keys for output
	infoKeys := make([]string, 0, len(info))
	for key := range info {
		infoKeys = append(infoKeys, key)
	}
	sort.Strings(infoKeys)

	padding := 20
	title := cases.Title(language.English)

	logger.Debug("configuration:")
	for _, k := range infoKeys {
		logger.Debug(fmt.Sprintf(
			"%s%s: %s",
			strings.Repeat(" ", padding-len(k)),
			title.String(k),
			info[k]))
	}
}

// formatError renders err for the UI. Cleanup failures are listed one per
// line so every failed step is visible.
func formatError(err error) string {
	var cleanupErr *scaling.CleanupError
	if errors.As(err, &cleanupErr) && len(cleanupErr.Errors) > 1 {
		lines := make([]string, 0, len(cleanupErr.Errors)+1)
		lines = append(lines, fmt.Sprintf("Error: %d cleanup steps failed:", len(cleanupErr.Errors)))
		for _, e := range cleanupErr.Errors {
			lines = append(lines, "  * "+e.Error())
		}
		return strings.Join(lines, "\n")
	}
	return fmt.Sprintf("Error: %v", err)
}
