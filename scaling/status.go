// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scaling

import (
	"context"
	"fmt"

	"github.com/llm-twin/ic-autoscaler/sdk/helper/metrics"
)

// LifecycleState is the autoscaling state of a resource as recorded by the
// provider.
type LifecycleState string

const (
	StateUnregistered   LifecycleState = "unregistered"
	StateRegistered     LifecycleState = "registered"
	StatePolicyAttached LifecycleState = "policy_attached"
)

// Status is a point in time view of the provider's record for the managed
// scalable target and its policy.
type Status struct {
	Identity
	PolicyName string
	State      LifecycleState

	// Target is nil when the resource is not registered.
	Target *ScalableTargetDescription

	// Policy is nil when no policy of the expected name is attached.
	Policy *ScalingPolicyDescription
}

// Status describes the scalable target and the scaling policy. It only uses
// the read-only describe operations and is never part of Setup or Cleanup.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	if err := o.cfg.ValidateIdentity(); err != nil {
		return nil, err
	}

	status := Status{
		Identity:   o.id,
		PolicyName: o.policyBuilder(o.client, o.id, o.cfg).Name(),
		State:      StateUnregistered,
	}

	var targets []*ScalableTargetDescription
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		targets, err = o.client.DescribeScalableTargets(ctx, &DescribeScalableTargetsRequest{
			ServiceNamespace:  o.id.ServiceNamespace,
			ResourceIDs:       []string{o.id.ResourceID},
			ScalableDimension: o.id.ScalableDimension,
		})
		return err
	})
	if err != nil {
		return nil, toProviderError(OpDescribeScalableTargets, o.id, err)
	}

	for _, t := range targets {
		if t.ResourceID == o.id.ResourceID && t.ScalableDimension == o.id.ScalableDimension {
			status.Target = t
			status.State = StateRegistered
			break
		}
	}

	var policies []*ScalingPolicyDescription
	err = o.call(ctx, func(ctx context.Context) error {
		var err error
		policies, err = o.client.DescribeScalingPolicies(ctx, &DescribeScalingPoliciesRequest{
			ServiceNamespace:  o.id.ServiceNamespace,
			PolicyNames:       []string{status.PolicyName},
			ResourceID:        o.id.ResourceID,
			ScalableDimension: o.id.ScalableDimension,
		})
		return err
	})
	if err != nil {
		return nil, toProviderError(OpDescribeScalingPolicies, o.id, err)
	}

	for _, p := range policies {
		if p.PolicyName == status.PolicyName && p.ResourceID == o.id.ResourceID {
			status.Policy = p
			break
		}
	}

	if status.Target != nil && status.Policy != nil {
		status.State = StatePolicyAttached
	}

	if status.Target != nil {
		metrics.SetGaugeWithLabels([]string{"scaling", "target", "min_capacity"}, float32(status.Target.MinCapacity), o.labels())
		metrics.SetGaugeWithLabels([]string{"scaling", "target", "max_capacity"}, float32(status.Target.MaxCapacity), o.labels())
	}

	o.logger.Debug("described autoscaling status", "state", status.State)
	return &status, nil
}

// String returns a short human readable summary of the status.
func (s *Status) String() string {
	switch s.State {
	case StatePolicyAttached:
		return fmt.Sprintf("%s: policy %q attached, capacity %d-%d",
			s.ResourceID, s.PolicyName, s.Target.MinCapacity, s.Target.MaxCapacity)
	case StateRegistered:
		return fmt.Sprintf("%s: registered with capacity %d-%d, no policy %q",
			s.ResourceID, s.Target.MinCapacity, s.Target.MaxCapacity, s.PolicyName)
	default:
		return fmt.Sprintf("%s: not registered", s.ResourceID)
	}
}
