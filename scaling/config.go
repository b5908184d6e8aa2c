// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scaling

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	errHelper "github.com/llm-twin/ic-autoscaler/sdk/helper/error"
)

const (
	DefaultInitialCopyCount  int32   = 1
	DefaultMaxCopyCount      int32   = 6
	DefaultTargetValue       float64 = 4.0
	DefaultTargetValueOffset float64 = 1.0
	DefaultScaleInCooldown           = 200 * time.Second
	DefaultScaleOutCooldown          = 200 * time.Second

	// MaxCooldown is the longest cooldown the provider accepts, in whole
	// seconds on the wire.
	MaxCooldown = time.Duration(math.MaxInt32) * time.Second
)

// Config describes the autoscaling of a single inference component deployed
// behind an endpoint. It is the only input of an Orchestrator.
type Config struct {

	// InferenceComponentName is the name of the deployed inference component.
	// It determines the scalable target's resource ID.
	InferenceComponentName string

	// EndpointName is the endpoint hosting the inference component.
	EndpointName string

	// PolicyName is the name of the scaling policy. It defaults to
	// EndpointName and must be unique per resource and dimension, otherwise
	// an unrelated policy is overwritten.
	PolicyName string

	// InitialCopyCount and MaxCopyCount are the minimum and maximum capacity
	// of the scalable target.
	InitialCopyCount int32
	MaxCopyCount     int32

	// TargetValue is the desired invocations per copy. The policy tracks
	// TargetValue + TargetValueOffset, leaving headroom so scale out starts
	// before copies saturate.
	TargetValue       float64
	TargetValueOffset float64

	// ScaleInCooldown and ScaleOutCooldown are the minimum time between
	// scaling activities in each direction. They are sent as whole seconds.
	ScaleInCooldown  time.Duration
	ScaleOutCooldown time.Duration

	// DisableScaleIn stops the policy from removing copies.
	DisableScaleIn bool

	// Tags are applied to the scalable target when it is first registered.
	Tags map[string]string

	// CallTimeout bounds each individual provider call. Zero leaves the
	// deadline to the caller's context and the provider SDK.
	CallTimeout time.Duration
}

// DefaultConfig returns a Config for the named component and endpoint with
// every other value set to its default.
func DefaultConfig(componentName, endpointName string) *Config {
	return &Config{
		InferenceComponentName: componentName,
		EndpointName:           endpointName,
		InitialCopyCount:       DefaultInitialCopyCount,
		MaxCopyCount:           DefaultMaxCopyCount,
		TargetValue:            DefaultTargetValue,
		TargetValueOffset:      DefaultTargetValueOffset,
		ScaleInCooldown:        DefaultScaleInCooldown,
		ScaleOutCooldown:       DefaultScaleOutCooldown,
	}
}

// Identity returns the scalable target identity the config addresses.
func (c *Config) Identity() Identity {
	return InferenceComponentIdentity(c.InferenceComponentName)
}

// EffectivePolicyName returns the configured policy name, falling back to
// the endpoint name.
func (c *Config) EffectivePolicyName() string {
	if c.PolicyName != "" {
		return c.PolicyName
	}
	return c.EndpointName
}

// EffectiveTargetValue is the target value sent to the provider.
func (c *Config) EffectiveTargetValue() float64 {
	return c.TargetValue + c.TargetValueOffset
}

// Copy returns a deep copy of the config.
func (c *Config) Copy() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Tags = maps.Clone(c.Tags)
	return &out
}

// Validate checks every value required to set up autoscaling. All problems
// are reported together within a single ConfigurationError.
func (c *Config) Validate() error {
	result := c.validateIdentity()

	if c.InitialCopyCount < 0 {
		result = multierror.Append(result, fmt.Errorf("initial copy count must not be negative, got %d", c.InitialCopyCount))
	}
	if c.InitialCopyCount > c.MaxCopyCount {
		result = multierror.Append(result, fmt.Errorf("initial copy count %d must not exceed max copy count %d",
			c.InitialCopyCount, c.MaxCopyCount))
	}
	if !(c.TargetValue > 0) || math.IsInf(c.TargetValue, 1) {
		result = multierror.Append(result, fmt.Errorf("target value must be a positive finite number, got %v", c.TargetValue))
	} else if eff := c.EffectiveTargetValue(); !(eff > 0) || math.IsInf(eff, 1) {
		result = multierror.Append(result, fmt.Errorf("target value %v with offset %v must be a positive finite number",
			c.TargetValue, c.TargetValueOffset))
	}
	if err := validateCooldown("scale in cooldown", c.ScaleInCooldown); err != nil {
		result = multierror.Append(result, err)
	}
	if err := validateCooldown("scale out cooldown", c.ScaleOutCooldown); err != nil {
		result = multierror.Append(result, err)
	}
	if c.CallTimeout < 0 {
		result = multierror.Append(result, errors.New("call timeout must not be negative"))
	}

	return configurationErrorOrNil(result)
}

// ValidateIdentity checks only the values required to address the scalable
// target and its policy, which is all cleanup and status need.
func (c *Config) ValidateIdentity() error {
	return configurationErrorOrNil(c.validateIdentity())
}

func (c *Config) validateIdentity() *multierror.Error {
	var result *multierror.Error

	if c.InferenceComponentName == "" {
		result = multierror.Append(result, errors.New("inference component name is required"))
	}
	if c.EffectivePolicyName() == "" {
		result = multierror.Append(result, errors.New("endpoint name or policy name is required"))
	}
	return result
}

// validateCooldown checks d can be sent as whole seconds in an int32.
func validateCooldown(name string, d time.Duration) error {
	switch {
	case d < 0:
		return fmt.Errorf("%s must not be negative", name)
	case d > MaxCooldown:
		return fmt.Errorf("%s must not exceed %s, got %s", name, MaxCooldown, d)
	case d%time.Second != 0:
		return fmt.Errorf("%s must be a whole number of seconds, got %s", name, d)
	}
	return nil
}

func configurationErrorOrNil(result *multierror.Error) error {
	if err := errHelper.FormattedMultiError(result); err != nil {
		return &ConfigurationError{Err: err}
	}
	return nil
}
