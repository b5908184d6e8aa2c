// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/llm-twin/ic-autoscaler/scaling"
	"github.com/llm-twin/ic-autoscaler/sdk/helper/file"
	"github.com/llm-twin/ic-autoscaler/sdk/helper/ptr"
	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/go-homedir"
)

// Config is the overall configuration of an autoscaler command run and
// includes all required information to reach the provider and describe the
// autoscaling of one inference component.
//
// All time.Duration values should have two parts:
//   - a string field tagged with an hcl:"foo" and json:"-"
//   - a time.Duration field in the same struct which is populated within the
//     parseFile if the HCL param is populated.
//
// The string reference of a duration can include "ns", "us" (or "µs"), "ms",
// "s", "m", "h" suffixes.
type Config struct {

	// LogLevel is the level of the logs to emit.
	LogLevel string `hcl:"log_level,optional"`

	// LogJson enables log output in JSON format.
	LogJson bool `hcl:"log_json,optional"`

	// AWS is the configuration used to setup the Application Auto Scaling
	// client.
	AWS *AWS `hcl:"aws,block"`

	// Autoscaling describes the inference component and its scaling
	// behaviour.
	Autoscaling *Autoscaling `hcl:"autoscaling,block"`

	// Telemetry is the configuration used to setup metrics collection.
	Telemetry *Telemetry `hcl:"telemetry,block"`
}

// AWS holds the user specified configuration for connectivity to the AWS
// Application Auto Scaling API.
type AWS struct {

	// Region to use. When empty, the region is read from the environment or
	// the shared configuration.
	Region string `hcl:"region,optional"`

	// Profile is the shared configuration profile to use.
	Profile string `hcl:"profile,optional"`

	// Endpoint overrides the service endpoint, for example to target a local
	// emulator.
	Endpoint string `hcl:"endpoint,optional"`

	// AccessKeyID, SecretAccessKey and SessionToken are static credentials.
	// When unset, the default credential chain is used.
	AccessKeyID     string `hcl:"access_key_id,optional"`
	SecretAccessKey string `hcl:"secret_access_key,optional"`
	SessionToken    string `hcl:"session_token,optional"`

	// SharedConfigFiles and SharedCredentialsFiles replace the default
	// locations of the shared configuration. A leading ~ is expanded.
	SharedConfigFiles      []string `hcl:"shared_config_files,optional"`
	SharedCredentialsFiles []string `hcl:"shared_credentials_files,optional"`

	// CallTimeout bounds each individual provider call. Zero disables the
	// per-call deadline.
	CallTimeout    *time.Duration
	CallTimeoutHCL string `hcl:"call_timeout,optional" json:"-"`

	// RateLimit is the maximum number of API requests per second. -1
	// disables rate limiting.
	RateLimitPtr *int `hcl:"rate_limit,optional"`
	RateLimit    int
}

// Autoscaling holds the inference component identity and scaling
// parameters. Pointer fields distinguish an unset value from a zero value.
type Autoscaling struct {

	// InferenceComponentName is the name of the inference component.
	InferenceComponentName string `hcl:"inference_component_name,optional"`

	// EndpointName is the endpoint hosting the inference component. It is the
	// default policy name.
	EndpointName string `hcl:"endpoint_name,optional"`

	// PolicyName overrides the scaling policy name.
	PolicyName string `hcl:"policy_name,optional"`

	// InitialCopyCount and MaxCopyCount are the capacity bounds.
	InitialCopyCount *int `hcl:"initial_copy_count,optional"`
	MaxCopyCount     *int `hcl:"max_copy_count,optional"`

	// TargetValue is the desired invocations per copy. TargetValueOffset is
	// added to it before it is sent to the provider.
	TargetValue       *float64 `hcl:"target_value,optional"`
	TargetValueOffset *float64 `hcl:"target_value_offset,optional"`

	// ScaleInCooldown and ScaleOutCooldown are the minimum time between
	// scaling activities.
	ScaleInCooldown     *time.Duration
	ScaleInCooldownHCL  string `hcl:"scale_in_cooldown,optional" json:"-"`
	ScaleOutCooldown    *time.Duration
	ScaleOutCooldownHCL string `hcl:"scale_out_cooldown,optional" json:"-"`

	// DisableScaleIn stops the policy from removing copies.
	DisableScaleIn *bool `hcl:"disable_scale_in,optional"`

	// Tags are applied to the scalable target on registration.
	Tags map[string]string `hcl:"tags,optional"`
}

// Telemetry holds the user specified configuration for metrics collection.
type Telemetry struct {

	// PrometheusMetrics enables the Prometheus sink. Metrics are pushed to
	// the Pushgateway, if configured, when the command finishes.
	PrometheusMetrics bool `hcl:"prometheus_metrics,optional"`

	// PrometheusRetentionTime is the retention time for prometheus metrics if
	// greater than 0.
	PrometheusRetentionTime    time.Duration
	PrometheusRetentionTimeHCL string `hcl:"prometheus_retention_time,optional" json:"-"`

	// PushgatewayAddr is the address of a Prometheus Pushgateway and
	// PushgatewayJob the job name metrics are grouped under.
	PushgatewayAddr string `hcl:"pushgateway_address,optional"`
	PushgatewayJob  string `hcl:"pushgateway_job,optional"`

	// DisableHostname specifies if gauge values should be prefixed with the
	// local hostname.
	DisableHostname bool `hcl:"disable_hostname,optional"`

	// EnableHostnameLabel adds the hostname as a label on all metrics.
	EnableHostnameLabel bool `hcl:"enable_hostname_label,optional"`

	// StatsiteAddr specifies the address of a statsite server to forward
	// metrics data to.
	StatsiteAddr string `hcl:"statsite_address,optional"`

	// StatsdAddr specifies the address of a statsd server to forward metrics
	// to.
	StatsdAddr string `hcl:"statsd_address,optional"`

	// DogStatsDAddr specifies the address of a DataDog statsd server to
	// forward metrics to.
	DogStatsDAddr string `hcl:"dogstatsd_address,optional"`

	// DogStatsDTags specifies a list of global tags that will be added to all
	// telemetry packets sent to DogStatsD.
	DogStatsDTags []string `hcl:"dogstatsd_tags,optional"`

	// CirconusAPIToken is a valid API Token used to create/manage check. If
	// provided, metric management is enabled.
	CirconusAPIToken string `hcl:"circonus_api_token,optional"`

	// CirconusAPIApp is an app name associated with API token.
	CirconusAPIApp string `hcl:"circonus_api_app,optional"`

	// CirconusAPIURL is the base URL to use for contacting the Circonus API.
	CirconusAPIURL string `hcl:"circonus_api_url,optional"`

	// CirconusSubmissionInterval is the interval at which metrics are
	// submitted to Circonus.
	CirconusSubmissionInterval string `hcl:"circonus_submission_interval,optional"`

	// CirconusCheckSubmissionURL is the check.config.submission_url field
	// from a previously created HTTPTRAP check.
	CirconusCheckSubmissionURL string `hcl:"circonus_submission_url,optional"`

	// CirconusCheckID is the check id (not check bundle id) from a previously
	// created HTTPTRAP check.
	CirconusCheckID string `hcl:"circonus_check_id,optional"`

	// CirconusBrokerID is an explicit broker to use when creating a new
	// check.
	CirconusBrokerID string `hcl:"circonus_broker_id,optional"`
}

const (
	// defaultLogLevel is the default log level used for command runs.
	defaultLogLevel = "info"

	// defaultAWSCallTimeout is the default time limit of a single provider
	// call.
	defaultAWSCallTimeout = 30 * time.Second

	// defaultAWSRateLimit is the default number of API requests per second.
	defaultAWSRateLimit = 10

	// defaultPushgatewayJob is the default job name used when pushing
	// metrics to a Pushgateway.
	defaultPushgatewayJob = "ic-autoscaler"
)

// Default is used to generate a new default configuration.
func Default() *Config {
	return &Config{
		LogLevel: defaultLogLevel,
		AWS: &AWS{
			CallTimeout: ptr.Of(defaultAWSCallTimeout),
			RateLimit:   defaultAWSRateLimit,
		},
		Autoscaling: &Autoscaling{
			InitialCopyCount:  ptr.Of(int(scaling.DefaultInitialCopyCount)),
			MaxCopyCount:      ptr.Of(int(scaling.DefaultMaxCopyCount)),
			TargetValue:       ptr.Of(scaling.DefaultTargetValue),
			TargetValueOffset: ptr.Of(scaling.DefaultTargetValueOffset),
			ScaleInCooldown:   ptr.Of(scaling.DefaultScaleInCooldown),
			ScaleOutCooldown:  ptr.Of(scaling.DefaultScaleOutCooldown),
			DisableScaleIn:    ptr.Of(false),
		},
		Telemetry: &Telemetry{
			PushgatewayJob: defaultPushgatewayJob,
		},
	}
}

// Merge is used to merge two configurations. Values set in b take
// precedence.
func (c *Config) Merge(b *Config) *Config {
	if c == nil {
		return b
	}
	if b == nil {
		return c
	}

	result := *c

	if b.LogLevel != "" {
		result.LogLevel = b.LogLevel
	}
	if b.LogJson {
		result.LogJson = true
	}

	if b.AWS != nil {
		result.AWS = result.AWS.merge(b.AWS)
	}

	if b.Autoscaling != nil {
		result.Autoscaling = result.Autoscaling.merge(b.Autoscaling)
	}

	if b.Telemetry != nil {
		result.Telemetry = result.Telemetry.merge(b.Telemetry)
	}

	return &result
}

// Validate checks the configuration values which can be checked without the
// full autoscaling context. The autoscaling parameters themselves are
// validated by scaling.Config when a command runs.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.LogLevel != "" && hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}

	if c.AWS != nil {
		result = multierror.Append(result, c.AWS.validate())
	}

	if c.Autoscaling != nil {
		result = multierror.Append(result, c.Autoscaling.validate())
	}

	if c.Telemetry != nil {
		result = multierror.Append(result, c.Telemetry.validate())
	}

	return result.ErrorOrNil()
}

// ToScalingConfig converts the autoscaling and AWS blocks into the
// orchestrator configuration.
func (c *Config) ToScalingConfig() *scaling.Config {
	a := c.Autoscaling
	if a == nil {
		a = &Autoscaling{}
	}

	cfg := &scaling.Config{
		InferenceComponentName: a.InferenceComponentName,
		EndpointName:           a.EndpointName,
		PolicyName:             a.PolicyName,
		InitialCopyCount:       int32(ptr.ValueOr(a.InitialCopyCount, int(scaling.DefaultInitialCopyCount))),
		MaxCopyCount:           int32(ptr.ValueOr(a.MaxCopyCount, int(scaling.DefaultMaxCopyCount))),
		TargetValue:            ptr.ValueOr(a.TargetValue, scaling.DefaultTargetValue),
		TargetValueOffset:      ptr.ValueOr(a.TargetValueOffset, scaling.DefaultTargetValueOffset),
		ScaleInCooldown:        ptr.ValueOr(a.ScaleInCooldown, scaling.DefaultScaleInCooldown),
		ScaleOutCooldown:       ptr.ValueOr(a.ScaleOutCooldown, scaling.DefaultScaleOutCooldown),
		DisableScaleIn:         ptr.ValueOr(a.DisableScaleIn, false),
		Tags:                   copyTags(a.Tags),
	}

	if c.AWS != nil {
		cfg.CallTimeout = ptr.ValueOr(c.AWS.CallTimeout, 0)
	}
	return cfg
}

func (a *AWS) merge(b *AWS) *AWS {
	if a == nil {
		return b
	}

	result := *a

	if b.Region != "" {
		result.Region = b.Region
	}
	if b.Profile != "" {
		result.Profile = b.Profile
	}
	if b.Endpoint != "" {
		result.Endpoint = b.Endpoint
	}
	if b.AccessKeyID != "" {
		result.AccessKeyID = b.AccessKeyID
	}
	if b.SecretAccessKey != "" {
		result.SecretAccessKey = b.SecretAccessKey
	}
	if b.SessionToken != "" {
		result.SessionToken = b.SessionToken
	}
	if len(b.SharedConfigFiles) != 0 {
		result.SharedConfigFiles = b.SharedConfigFiles
	}
	if len(b.SharedCredentialsFiles) != 0 {
		result.SharedCredentialsFiles = b.SharedCredentialsFiles
	}
	if b.CallTimeout != nil {
		result.CallTimeout = b.CallTimeout
	}
	if b.RateLimitPtr != nil {
		result.RateLimitPtr = b.RateLimitPtr
		result.RateLimit = b.RateLimit
	}

	return &result
}

func (a *AWS) validate() *multierror.Error {
	var result *multierror.Error

	if a.CallTimeout != nil && *a.CallTimeout < 0 {
		result = multierror.Append(result, errors.New("call_timeout must not be negative"))
	}
	if a.RateLimit < -1 {
		result = multierror.Append(result, errors.New("rate_limit must be -1 or greater"))
	}
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		result = multierror.Append(result, errors.New("access_key_id and secret_access_key must be set together"))
	}

	return prefixErrors(result, "aws ->")
}

func (a *Autoscaling) merge(b *Autoscaling) *Autoscaling {
	if a == nil {
		return b
	}

	result := *a

	if b.InferenceComponentName != "" {
		result.InferenceComponentName = b.InferenceComponentName
	}
	if b.EndpointName != "" {
		result.EndpointName = b.EndpointName
	}
	if b.PolicyName != "" {
		result.PolicyName = b.PolicyName
	}
	if b.InitialCopyCount != nil {
		result.InitialCopyCount = b.InitialCopyCount
	}
	if b.MaxCopyCount != nil {
		result.MaxCopyCount = b.MaxCopyCount
	}
	if b.TargetValue != nil {
		result.TargetValue = b.TargetValue
	}
	if b.TargetValueOffset != nil {
		result.TargetValueOffset = b.TargetValueOffset
	}
	if b.ScaleInCooldown != nil {
		result.ScaleInCooldown = b.ScaleInCooldown
	}
	if b.ScaleOutCooldown != nil {
		result.ScaleOutCooldown = b.ScaleOutCooldown
	}
	if b.DisableScaleIn != nil {
		result.DisableScaleIn = b.DisableScaleIn
	}

	if len(b.Tags) != 0 {
		tags := copyTags(result.Tags)
		if tags == nil {
			tags = make(map[string]string, len(b.Tags))
		}
		for k, v := range b.Tags {
			tags[k] = v
		}
		result.Tags = tags
	}

	return &result
}

func (a *Autoscaling) validate() *multierror.Error {
	var result *multierror.Error

	if err := validateCopyCount("initial_copy_count", a.InitialCopyCount); err != nil {
		result = multierror.Append(result, err)
	}
	if err := validateCopyCount("max_copy_count", a.MaxCopyCount); err != nil {
		result = multierror.Append(result, err)
	}
	if a.ScaleInCooldown != nil && *a.ScaleInCooldown < 0 {
		result = multierror.Append(result, errors.New("scale_in_cooldown must not be negative"))
	}
	if a.ScaleOutCooldown != nil && *a.ScaleOutCooldown < 0 {
		result = multierror.Append(result, errors.New("scale_out_cooldown must not be negative"))
	}
	for k := range a.Tags {
		if k == "" {
			result = multierror.Append(result, errors.New("tag keys must not be empty"))
			break
		}
	}

	return prefixErrors(result, "autoscaling ->")
}

// validateCopyCount checks a copy count fits the provider's int32 capacity
// fields.
func validateCopyCount(name string, n *int) error {
	switch {
	case n == nil:
		return nil
	case *n < 0:
		return fmt.Errorf("%s must not be negative", name)
	case int64(*n) > math.MaxInt32:
		return fmt.Errorf("%s must not exceed %d, got %d", name, math.MaxInt32, *n)
	}
	return nil
}

func (t *Telemetry) merge(b *Telemetry) *Telemetry {
	if t == nil {
		return b
	}

	result := *t

	if b.StatsiteAddr != "" {
		result.StatsiteAddr = b.StatsiteAddr
	}
	if b.StatsdAddr != "" {
		result.StatsdAddr = b.StatsdAddr
	}
	if b.DogStatsDAddr != "" {
		result.DogStatsDAddr = b.DogStatsDAddr
	}
	if b.DogStatsDTags != nil {
		result.DogStatsDTags = b.DogStatsDTags
	}
	if b.PrometheusMetrics {
		result.PrometheusMetrics = b.PrometheusMetrics
	}
	if b.PrometheusRetentionTime != 0 {
		result.PrometheusRetentionTime = b.PrometheusRetentionTime
	}
	if b.PushgatewayAddr != "" {
		result.PushgatewayAddr = b.PushgatewayAddr
	}
	if b.PushgatewayJob != "" {
		result.PushgatewayJob = b.PushgatewayJob
	}
	if b.DisableHostname {
		result.DisableHostname = true
	}
	if b.EnableHostnameLabel {
		result.EnableHostnameLabel = true
	}
	if b.CirconusAPIToken != "" {
		result.CirconusAPIToken = b.CirconusAPIToken
	}
	if b.CirconusAPIApp != "" {
		result.CirconusAPIApp = b.CirconusAPIApp
	}
	if b.CirconusAPIURL != "" {
		result.CirconusAPIURL = b.CirconusAPIURL
	}
	if b.CirconusSubmissionInterval != "" {
		result.CirconusSubmissionInterval = b.CirconusSubmissionInterval
	}
	if b.CirconusCheckSubmissionURL != "" {
		result.CirconusCheckSubmissionURL = b.CirconusCheckSubmissionURL
	}
	if b.CirconusCheckID != "" {
		result.CirconusCheckID = b.CirconusCheckID
	}
	if b.CirconusBrokerID != "" {
		result.CirconusBrokerID = b.CirconusBrokerID
	}

	return &result
}

func (t *Telemetry) validate() *multierror.Error {
	var result *multierror.Error

	if t.PushgatewayAddr != "" && !t.PrometheusMetrics {
		result = multierror.Append(result, errors.New("pushgateway_address requires prometheus_metrics"))
	}
	if t.PrometheusRetentionTime < 0 {
		result = multierror.Append(result, errors.New("prometheus_retention_time must not be negative"))
	}

	return prefixErrors(result, "telemetry ->")
}

// prefixErrors prefixes all errors within result.
func prefixErrors(result *multierror.Error, prefix string) *multierror.Error {
	if result != nil {
		for i, err := range result.Errors {
			result.Errors[i] = multierror.Prefix(err, prefix)
		}
	}
	return result
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	i, err := copystructure.Copy(tags)
	if err != nil {
		panic(err.Error())
	}
	return i.(map[string]string)
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", field, err)
	}
	return d, nil
}

func parseFile(file string, cfg *Config) error {
	if err := hclsimple.DecodeFile(file, nil, cfg); err != nil {
		return err
	}

	if cfg.AWS != nil {
		if cfg.AWS.CallTimeoutHCL != "" {
			d, err := parseDuration("call_timeout", cfg.AWS.CallTimeoutHCL)
			if err != nil {
				return err
			}
			cfg.AWS.CallTimeout = &d
		}

		if cfg.AWS.RateLimitPtr != nil {
			cfg.AWS.RateLimit = *cfg.AWS.RateLimitPtr
		}

		for i, p := range cfg.AWS.SharedConfigFiles {
			expanded, err := homedir.Expand(p)
			if err != nil {
				return err
			}
			cfg.AWS.SharedConfigFiles[i] = expanded
		}
		for i, p := range cfg.AWS.SharedCredentialsFiles {
			expanded, err := homedir.Expand(p)
			if err != nil {
				return err
			}
			cfg.AWS.SharedCredentialsFiles[i] = expanded
		}
	}

	if cfg.Autoscaling != nil {
		if cfg.Autoscaling.ScaleInCooldownHCL != "" {
			d, err := parseDuration("scale_in_cooldown", cfg.Autoscaling.ScaleInCooldownHCL)
			if err != nil {
				return err
			}
			cfg.Autoscaling.ScaleInCooldown = &d
		}

		if cfg.Autoscaling.ScaleOutCooldownHCL != "" {
			d, err := parseDuration("scale_out_cooldown", cfg.Autoscaling.ScaleOutCooldownHCL)
			if err != nil {
				return err
			}
			cfg.Autoscaling.ScaleOutCooldown = &d
		}
	}

	if cfg.Telemetry != nil {
		if cfg.Telemetry.PrometheusRetentionTimeHCL != "" {
			d, err := parseDuration("prometheus_retention_time", cfg.Telemetry.PrometheusRetentionTimeHCL)
			if err != nil {
				return err
			}
			cfg.Telemetry.PrometheusRetentionTime = d
		}
	}

	return nil
}

// LoadPaths loads and validates every path in order on top of the default
// configuration. Later paths take precedence.
func LoadPaths(paths []string) (*Config, error) {
	// Grab a default config as the base.
	cfg := Default()

	var validationErr *multierror.Error

	for _, path := range paths {
		current, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("error loading configuration from %s: %s", path, err)
		}

		if err := current.Validate(); err != nil {
			errPrefix := fmt.Sprintf("%s:", path)
			validationErr = multierror.Append(validationErr, multierror.Prefix(err, errPrefix))

			// Continue looping so we can validate other files.
			continue
		}

		cfg = cfg.Merge(current)
	}

	if validationErr != nil {
		return nil, fmt.Errorf("invalid configuration. %v", validationErr)
	}

	return cfg, nil
}

// Load loads the configuration at the given path, regardless if its a file or
// directory. Called for each -config to build up the runtime config value.
func Load(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if fi.IsDir() {
		return loadDir(path)
	}

	cleaned := filepath.Clean(path)

	cfg := &Config{}
	if err := parseFile(cleaned, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %v", cleaned, err)
	}
	return cfg, nil
}

// loadDir loads all the configurations in the given directory in alphabetical
// order.
func loadDir(dir string) (*Config, error) {

	files, err := file.GetFileListFromDir(dir, ".hcl", ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to load config directory: %v", err)
	}

	// Fast-path if we have no files
	if len(files) == 0 {
		return &Config{}, nil
	}

	sort.Strings(files)

	var result *Config
	for _, f := range files {

		cfg := &Config{}

		if err := parseFile(f, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %v", f, err)
		}

		result = result.Merge(cfg)
	}

	return result, nil
}
