// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scaling

import (
	"context"
	"time"
)

// ScalingPolicy attaches a scaling rule to an already registered scalable
// target. Applying a policy with the same name again replaces its
// configuration.
type ScalingPolicy interface {

	// Name returns the policy name used to apply and later delete it.
	Name() string

	// Apply attaches or replaces the policy.
	Apply(ctx context.Context) error
}

// PolicyBuilder creates the ScalingPolicy an Orchestrator applies during
// setup. The target identity has already been registered when the policy is
// applied.
type PolicyBuilder func(client Client, id Identity, cfg *Config) ScalingPolicy

// Assert that TargetTrackingPolicy meets the ScalingPolicy interface.
var _ ScalingPolicy = (*TargetTrackingPolicy)(nil)

// TargetTrackingPolicy keeps the invocations per inference component copy
// near TargetValue.
type TargetTrackingPolicy struct {
	client Client

	Identity
	PolicyName       string
	TargetValue      float64
	ScaleInCooldown  time.Duration
	ScaleOutCooldown time.Duration
	DisableScaleIn   bool
}

// TargetTrackingPolicyBuilder is the default PolicyBuilder. The tracked value
// is the configured target plus its offset.
func TargetTrackingPolicyBuilder(client Client, id Identity, cfg *Config) ScalingPolicy {
	return &TargetTrackingPolicy{
		client:           client,
		Identity:         id,
		PolicyName:       cfg.EffectivePolicyName(),
		TargetValue:      cfg.EffectiveTargetValue(),
		ScaleInCooldown:  cfg.ScaleInCooldown,
		ScaleOutCooldown: cfg.ScaleOutCooldown,
		DisableScaleIn:   cfg.DisableScaleIn,
	}
}

// Name satisfies the Name function on the ScalingPolicy interface.
func (p *TargetTrackingPolicy) Name() string { return p.PolicyName }

// Apply satisfies the Apply function on the ScalingPolicy interface. The
// provider replaces an existing policy of the same name atomically, so no
// comparison with the current state is made.
func (p *TargetTrackingPolicy) Apply(ctx context.Context) error {
	if err := p.client.PutScalingPolicy(ctx, p.request()); err != nil {
		return toProviderError(OpPutScalingPolicy, p.Identity, err)
	}
	return nil
}

func (p *TargetTrackingPolicy) request() *PutScalingPolicyRequest {
	return &PutScalingPolicyRequest{
		PolicyName:        p.PolicyName,
		PolicyType:        PolicyTypeTargetTracking,
		ServiceNamespace:  p.ServiceNamespace,
		ResourceID:        p.ResourceID,
		ScalableDimension: p.ScalableDimension,
		TargetTrackingScalingPolicyConfiguration: &TargetTrackingScalingPolicyConfiguration{
			PredefinedMetricSpecification: PredefinedMetricSpecification{
				PredefinedMetricType: MetricTypeInvocationsPerCopy,
			},
			TargetValue:      p.TargetValue,
			ScaleInCooldown:  durationSeconds(p.ScaleInCooldown),
			ScaleOutCooldown: durationSeconds(p.ScaleOutCooldown),
			DisableScaleIn:   p.DisableScaleIn,
		},
	}
}

// durationSeconds converts d to the whole seconds used on the wire.
func durationSeconds(d time.Duration) int32 {
	return int32(d / time.Second)
}
