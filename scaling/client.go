// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package scaling orchestrates the autoscaling lifecycle of an inference
// component: registering it as a scalable target, attaching a scaling policy
// and removing both again. All state lives within the provider behind Client.
package scaling

import (
	"context"
	"time"
)

// Operation names a single provider API call. It is used to label errors,
// logs and metrics so that a failure always identifies the step which
// produced it.
type Operation string

const (
	OpRegisterScalableTarget   Operation = "RegisterScalableTarget"
	OpPutScalingPolicy         Operation = "PutScalingPolicy"
	OpDescribeScalableTargets  Operation = "DescribeScalableTargets"
	OpDescribeScalingPolicies  Operation = "DescribeScalingPolicies"
	OpDeleteScalingPolicy      Operation = "DeleteScalingPolicy"
	OpDeregisterScalableTarget Operation = "DeregisterScalableTarget"
)

const (
	// PolicyTypeTargetTracking is the only policy type this package creates.
	PolicyTypeTargetTracking = "TargetTrackingScaling"

	// MetricTypeInvocationsPerCopy is the predefined metric tracked by the
	// target-tracking policy: average invocations per inference component
	// copy.
	MetricTypeInvocationsPerCopy = "SageMakerInferenceComponentInvocationsPerCopy"
)

// Client is the narrow set of autoscaling control plane operations the
// orchestrator depends on. Implementations return a *ProviderError when the
// provider rejects or fails a call.
//
// Registering an already registered target and putting an existing policy
// are valid requests which overwrite the provider state. Deleting an absent
// policy or deregistering an absent target succeed.
type Client interface {
	RegisterScalableTarget(ctx context.Context, req *RegisterScalableTargetRequest) error
	PutScalingPolicy(ctx context.Context, req *PutScalingPolicyRequest) error
	DescribeScalableTargets(ctx context.Context, req *DescribeScalableTargetsRequest) ([]*ScalableTargetDescription, error)
	DescribeScalingPolicies(ctx context.Context, req *DescribeScalingPoliciesRequest) ([]*ScalingPolicyDescription, error)
	DeleteScalingPolicy(ctx context.Context, req *DeleteScalingPolicyRequest) error
	DeregisterScalableTarget(ctx context.Context, req *DeregisterScalableTargetRequest) error
}

type RegisterScalableTargetRequest struct {
	ServiceNamespace  string
	ResourceID        string
	ScalableDimension string
	MinCapacity       int32
	MaxCapacity       int32

	// Tags are applied to the scalable target on creation. The provider
	// ignores them when updating an existing target.
	Tags map[string]string
}

type PutScalingPolicyRequest struct {
	PolicyName        string
	PolicyType        string
	ServiceNamespace  string
	ResourceID        string
	ScalableDimension string

	TargetTrackingScalingPolicyConfiguration *TargetTrackingScalingPolicyConfiguration
}

// TargetTrackingScalingPolicyConfiguration mirrors the provider's target
// tracking configuration. Cooldowns are expressed in whole seconds as they
// are on the wire.
type TargetTrackingScalingPolicyConfiguration struct {
	PredefinedMetricSpecification PredefinedMetricSpecification
	TargetValue                   float64
	ScaleInCooldown               int32
	ScaleOutCooldown              int32
	DisableScaleIn                bool
}

type PredefinedMetricSpecification struct {
	PredefinedMetricType string
}

type DeleteScalingPolicyRequest struct {
	PolicyName        string
	ServiceNamespace  string
	ResourceID        string
	ScalableDimension string
}

type DeregisterScalableTargetRequest struct {
	ServiceNamespace  string
	ResourceID        string
	ScalableDimension string
}

// DescribeScalableTargetsRequest filters the registered targets of a
// namespace. Empty filters match everything within the namespace.
type DescribeScalableTargetsRequest struct {
	ServiceNamespace  string
	ResourceIDs       []string
	ScalableDimension string
}

// DescribeScalingPoliciesRequest filters the policies of a namespace. Empty
// filters match everything within the namespace.
type DescribeScalingPoliciesRequest struct {
	ServiceNamespace  string
	PolicyNames       []string
	ResourceID        string
	ScalableDimension string
}

// ScalableTargetDescription is the provider's record of a registered target.
type ScalableTargetDescription struct {
	ServiceNamespace  string
	ResourceID        string
	ScalableDimension string
	MinCapacity       int32
	MaxCapacity       int32
	CreationTime      time.Time
}

// ScalingPolicyDescription is the provider's record of an attached policy.
type ScalingPolicyDescription struct {
	PolicyName        string
	PolicyARN         string
	PolicyType        string
	ServiceNamespace  string
	ResourceID        string
	ScalableDimension string
	CreationTime      time.Time

	TargetTrackingScalingPolicyConfiguration *TargetTrackingScalingPolicyConfiguration
}
