// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scaling

import (
	"context"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/llm-twin/ic-autoscaler/sdk/helper/metrics"
)

// Orchestrator sets up and cleans up the autoscaling of one inference
// component. It holds no state between calls: Setup and Cleanup may be
// called any number of times, in any order, against the same config.
//
// The orchestrator never retries. Its steps do not form an atomic unit, so
// retries are left to the caller, who can safely repeat the whole operation
// since every provider step is idempotent.
type Orchestrator struct {
	client        Client
	cfg           *Config
	id            Identity
	logger        hclog.Logger
	policyBuilder PolicyBuilder
}

// NewOrchestrator returns an Orchestrator for cfg which talks to the
// provider through client. The config is copied so later changes by the
// caller have no effect.
func NewOrchestrator(client Client, cfg *Config, logger hclog.Logger) *Orchestrator {
	cfg = cfg.Copy()
	id := cfg.Identity()

	return &Orchestrator{
		client:        client,
		cfg:           cfg,
		id:            id,
		logger:        logger.Named("orchestrator").With("resource_id", id.ResourceID),
		policyBuilder: TargetTrackingPolicyBuilder,
	}
}

// WithPolicyBuilder replaces the builder used to create the scaling policy.
func (o *Orchestrator) WithPolicyBuilder(b PolicyBuilder) *Orchestrator {
	o.policyBuilder = b
	return o
}

// Identity returns the scalable target identity managed by the orchestrator.
func (o *Orchestrator) Identity() Identity { return o.id }

// Setup registers the scalable target and then applies the scaling policy.
// The policy is only applied once registration succeeded. A failure leaves
// whatever was already done in place; calling Setup again converges on the
// fully configured state.
func (o *Orchestrator) Setup(ctx context.Context) error {
	defer metrics.MeasureSinceWithLabels([]string{"scaling", "setup"}, time.Now(), o.labels())

	if err := o.cfg.Validate(); err != nil {
		return err
	}

	log := o.logger.With("action", "setup")

	target := NewScalableTarget(o.client, o.id, o.cfg.InitialCopyCount, o.cfg.MaxCopyCount, o.cfg.Tags)

	log.Debug("registering scalable target",
		"min_capacity", target.MinCapacity, "max_capacity", target.MaxCapacity)

	if err := o.call(ctx, target.Register); err != nil {
		o.recordError(OpRegisterScalableTarget)
		log.Error("failed to register scalable target", "error", err)
		return err
	}
	log.Info("successfully registered scalable target")

	policy := o.policyBuilder(o.client, o.id, o.cfg)

	log.Debug("applying scaling policy", "policy_name", policy.Name())

	if err := o.call(ctx, policy.Apply); err != nil {
		o.recordError(OpPutScalingPolicy)
		log.Error("failed to apply scaling policy", "policy_name", policy.Name(), "error", err)
		return err
	}
	log.Info("successfully applied scaling policy", "policy_name", policy.Name())

	return nil
}

// Cleanup deletes the scaling policy and then deregisters the scalable
// target. Deregistration is attempted even when the policy deletion fails and
// every failure is returned within a *CleanupError.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	defer metrics.MeasureSinceWithLabels([]string{"scaling", "cleanup"}, time.Now(), o.labels())

	if err := o.cfg.ValidateIdentity(); err != nil {
		return err
	}

	log := o.logger.With("action", "cleanup")
	result := &CleanupError{}

	policyName := o.policyBuilder(o.client, o.id, o.cfg).Name()

	deleteReq := DeleteScalingPolicyRequest{
		PolicyName:        policyName,
		ServiceNamespace:  o.id.ServiceNamespace,
		ResourceID:        o.id.ResourceID,
		ScalableDimension: o.id.ScalableDimension,
	}

	log.Debug("deleting scaling policy", "policy_name", policyName)

	err := o.call(ctx, func(ctx context.Context) error { return o.client.DeleteScalingPolicy(ctx, &deleteReq) })
	if err != nil {
		o.recordError(OpDeleteScalingPolicy)
		log.Error("failed to delete scaling policy", "policy_name", policyName, "error", err)
		result.append(toProviderError(OpDeleteScalingPolicy, o.id, err))
	} else {
		log.Info("successfully deleted scaling policy", "policy_name", policyName)
	}

	deregisterReq := DeregisterScalableTargetRequest{
		ServiceNamespace:  o.id.ServiceNamespace,
		ResourceID:        o.id.ResourceID,
		ScalableDimension: o.id.ScalableDimension,
	}

	log.Debug("deregistering scalable target")

	err = o.call(ctx, func(ctx context.Context) error { return o.client.DeregisterScalableTarget(ctx, &deregisterReq) })
	if err != nil {
		o.recordError(OpDeregisterScalableTarget)
		log.Error("failed to deregister scalable target", "error", err)
		result.append(toProviderError(OpDeregisterScalableTarget, o.id, err))
	} else {
		log.Info("successfully deregistered scalable target")
	}

	return result.errorOrNil()
}

// call runs f, bounding it by the configured per call timeout.
func (o *Orchestrator) call(ctx context.Context, f func(context.Context) error) error {
	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}
	return f(ctx)
}

func (o *Orchestrator) labels() []metrics.Label {
	return []metrics.Label{{Name: "resource_id", Value: o.id.ResourceID}}
}

func (o *Orchestrator) recordError(op Operation) {
	metrics.IncrCounterWithLabels([]string{"scaling", "error"}, 1,
		append(o.labels(), metrics.Label{Name: "operation", Value: string(op)}))
}
