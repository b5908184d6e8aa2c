// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package inmem provides an in-memory scaling.Client which mimics the
// provider's autoscaling control plane. It records every call it receives
// and supports injecting failures per operation, making it suitable for
// exercising the orchestrator without network access.
package inmem

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/llm-twin/ic-autoscaler/scaling"
)

// Assert that Client meets the scaling.Client interface.
var _ scaling.Client = (*Client)(nil)

// Call is a single recorded request. Request holds a copy of the request
// struct passed by the caller.
type Call struct {
	Op      scaling.Operation
	Request any
}

type targetKey struct {
	namespace  string
	resourceID string
	dimension  string
}

type policyKey struct {
	targetKey
	name string
}

// Client is an in-memory implementation of scaling.Client. It is safe for
// concurrent use.
type Client struct {
	lock sync.Mutex

	targets  map[targetKey]*scaling.ScalableTargetDescription
	tags     map[targetKey]map[string]string
	policies map[policyKey]*scaling.ScalingPolicyDescription
	failures map[scaling.Operation]error
	calls    []Call

	now func() time.Time
}

// NewClient returns an empty in-memory client.
func NewClient() *Client {
	return &Client{
		targets:  make(map[targetKey]*scaling.ScalableTargetDescription),
		tags:     make(map[targetKey]map[string]string),
		policies: make(map[policyKey]*scaling.ScalingPolicyDescription),
		failures: make(map[scaling.Operation]error),
		now:      time.Now,
	}
}

// FailOn makes every subsequent call of op return err until the failure is
// cleared. The call is still recorded.
func (c *Client) FailOn(op scaling.Operation, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.failures[op] = err
}

// ClearFailures removes all injected failures.
func (c *Client) ClearFailures() {
	c.lock.Lock()
	defer c.lock.Unlock()
	clear(c.failures)
}

// Calls returns every call received, in order.
func (c *Client) Calls() []Call {
	c.lock.Lock()
	defer c.lock.Unlock()
	return slices.Clone(c.calls)
}

// Operations returns the operation of every call received, in order.
func (c *Client) Operations() []scaling.Operation {
	c.lock.Lock()
	defer c.lock.Unlock()

	ops := make([]scaling.Operation, len(c.calls))
	for i, call := range c.calls {
		ops[i] = call.Op
	}
	return ops
}

// ResetCalls forgets all recorded calls without changing any state.
func (c *Client) ResetCalls() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.calls = nil
}

// Targets returns a copy of every registered target sorted by resource ID.
func (c *Client) Targets() []*scaling.ScalableTargetDescription {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make([]*scaling.ScalableTargetDescription, 0, len(c.targets))
	for _, t := range c.targets {
		tCopy := *t
		out = append(out, &tCopy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out
}

// Policies returns a copy of every attached policy sorted by resource ID and
// then name.
func (c *Client) Policies() []*scaling.ScalingPolicyDescription {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make([]*scaling.ScalingPolicyDescription, 0, len(c.policies))
	for _, p := range c.policies {
		out = append(out, copyPolicy(p))
	}
	sortPolicies(out)
	return out
}

// TargetTags returns the tags the target was registered with.
func (c *Client) TargetTags(id scaling.Identity) map[string]string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return maps.Clone(c.tags[keyOf(id.ServiceNamespace, id.ResourceID, id.ScalableDimension)])
}

// RegisterScalableTarget satisfies the RegisterScalableTarget function on the
// scaling.Client interface.
func (c *Client) RegisterScalableTarget(ctx context.Context, req *scaling.RegisterScalableTargetRequest) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	reqCopy := *req
	reqCopy.Tags = maps.Clone(req.Tags)
	if err := c.begin(ctx, scaling.OpRegisterScalableTarget, reqCopy); err != nil {
		return err
	}

	if err := validateIdentity(req.ServiceNamespace, req.ResourceID, req.ScalableDimension); err != nil {
		return err
	}
	if req.MinCapacity < 0 || req.MaxCapacity < 0 {
		return scaling.NewProviderError(scaling.ErrCodeValidation, "capacity must not be negative")
	}
	if req.MinCapacity > req.MaxCapacity {
		return scaling.NewProviderError(scaling.ErrCodeValidation,
			fmt.Sprintf("minimum capacity %d cannot be greater than maximum capacity %d", req.MinCapacity, req.MaxCapacity))
	}

	key := keyOf(req.ServiceNamespace, req.ResourceID, req.ScalableDimension)

	if existing, ok := c.targets[key]; ok {
		existing.MinCapacity = req.MinCapacity
		existing.MaxCapacity = req.MaxCapacity
		return nil
	}

	c.targets[key] = &scaling.ScalableTargetDescription{
		ServiceNamespace:  req.ServiceNamespace,
		ResourceID:        req.ResourceID,
		ScalableDimension: req.ScalableDimension,
		MinCapacity:       req.MinCapacity,
		MaxCapacity:       req.MaxCapacity,
		CreationTime:      c.now(),
	}
	if len(req.Tags) > 0 {
		c.tags[key] = maps.Clone(req.Tags)
	}
	return nil
}

// PutScalingPolicy satisfies the PutScalingPolicy function on the
// scaling.Client interface.
func (c *Client) PutScalingPolicy(ctx context.Context, req *scaling.PutScalingPolicyRequest) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	reqCopy := *req
	if req.TargetTrackingScalingPolicyConfiguration != nil {
		cfg := *req.TargetTrackingScalingPolicyConfiguration
		reqCopy.TargetTrackingScalingPolicyConfiguration = &cfg
	}
	if err := c.begin(ctx, scaling.OpPutScalingPolicy, reqCopy); err != nil {
		return err
	}

	if err := validateIdentity(req.ServiceNamespace, req.ResourceID, req.ScalableDimension); err != nil {
		return err
	}
	if req.PolicyName == "" {
		return scaling.NewProviderError(scaling.ErrCodeValidation, "policy name is required")
	}
	if req.PolicyType != scaling.PolicyTypeTargetTracking {
		return scaling.NewProviderError(scaling.ErrCodeValidation,
			fmt.Sprintf("unsupported policy type %q", req.PolicyType))
	}

	ttCfg := req.TargetTrackingScalingPolicyConfiguration
	if ttCfg == nil {
		return scaling.NewProviderError(scaling.ErrCodeValidation, "target tracking configuration is required")
	}
	if ttCfg.PredefinedMetricSpecification.PredefinedMetricType == "" {
		return scaling.NewProviderError(scaling.ErrCodeValidation, "predefined metric type is required")
	}
	if ttCfg.TargetValue <= 0 {
		return scaling.NewProviderError(scaling.ErrCodeValidation, "target value must be positive")
	}
	if ttCfg.ScaleInCooldown < 0 || ttCfg.ScaleOutCooldown < 0 {
		return scaling.NewProviderError(scaling.ErrCodeValidation, "cooldown must not be negative")
	}

	tKey := keyOf(req.ServiceNamespace, req.ResourceID, req.ScalableDimension)
	if _, ok := c.targets[tKey]; !ok {
		return scaling.NewProviderError(scaling.ErrCodeObjectNotFound,
			fmt.Sprintf("No scalable target registered for service namespace: %s, resource ID: %s, scalable dimension: %s",
				req.ServiceNamespace, req.ResourceID, req.ScalableDimension))
	}

	pKey := policyKey{targetKey: tKey, name: req.PolicyName}
	creation := c.now()
	if existing, ok := c.policies[pKey]; ok {
		creation = existing.CreationTime
	}

	cfgCopy := *ttCfg
	c.policies[pKey] = &scaling.ScalingPolicyDescription{
		PolicyName:        req.PolicyName,
		PolicyARN:         policyARN(req.ServiceNamespace, req.ResourceID, req.PolicyName),
		PolicyType:        req.PolicyType,
		ServiceNamespace:  req.ServiceNamespace,
		ResourceID:        req.ResourceID,
		ScalableDimension: req.ScalableDimension,
		CreationTime:      creation,

		TargetTrackingScalingPolicyConfiguration: &cfgCopy,
	}
	return nil
}

// DescribeScalableTargets satisfies the DescribeScalableTargets function on
// the scaling.Client interface.
func (c *Client) DescribeScalableTargets(ctx context.Context, req *scaling.DescribeScalableTargetsRequest) ([]*scaling.ScalableTargetDescription, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	reqCopy := *req
	reqCopy.ResourceIDs = slices.Clone(req.ResourceIDs)
	if err := c.begin(ctx, scaling.OpDescribeScalableTargets, reqCopy); err != nil {
		return nil, err
	}

	if req.ServiceNamespace == "" {
		return nil, scaling.NewProviderError(scaling.ErrCodeValidation, "service namespace is required")
	}

	var out []*scaling.ScalableTargetDescription
	for key, t := range c.targets {
		if key.namespace != req.ServiceNamespace {
			continue
		}
		if len(req.ResourceIDs) > 0 && !slices.Contains(req.ResourceIDs, key.resourceID) {
			continue
		}
		if req.ScalableDimension != "" && key.dimension != req.ScalableDimension {
			continue
		}
		tCopy := *t
		out = append(out, &tCopy)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out, nil
}

// DescribeScalingPolicies satisfies the DescribeScalingPolicies function on
// the scaling.Client interface.
func (c *Client) DescribeScalingPolicies(ctx context.Context, req *scaling.DescribeScalingPoliciesRequest) ([]*scaling.ScalingPolicyDescription, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	reqCopy := *req
	reqCopy.PolicyNames = slices.Clone(req.PolicyNames)
	if err := c.begin(ctx, scaling.OpDescribeScalingPolicies, reqCopy); err != nil {
		return nil, err
	}

	if req.ServiceNamespace == "" {
		return nil, scaling.NewProviderError(scaling.ErrCodeValidation, "service namespace is required")
	}

	var out []*scaling.ScalingPolicyDescription
	for key, p := range c.policies {
		if key.namespace != req.ServiceNamespace {
			continue
		}
		if len(req.PolicyNames) > 0 && !slices.Contains(req.PolicyNames, key.name) {
			continue
		}
		if req.ResourceID != "" && key.resourceID != req.ResourceID {
			continue
		}
		if req.ScalableDimension != "" && key.dimension != req.ScalableDimension {
			continue
		}
		out = append(out, copyPolicy(p))
	}

	sortPolicies(out)
	return out, nil
}

// DeleteScalingPolicy satisfies the DeleteScalingPolicy function on the
// scaling.Client interface. Deleting an absent policy succeeds.
func (c *Client) DeleteScalingPolicy(ctx context.Context, req *scaling.DeleteScalingPolicyRequest) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.begin(ctx, scaling.OpDeleteScalingPolicy, *req); err != nil {
		return err
	}

	if err := validateIdentity(req.ServiceNamespace, req.ResourceID, req.ScalableDimension); err != nil {
		return err
	}
	if req.PolicyName == "" {
		return scaling.NewProviderError(scaling.ErrCodeValidation, "policy name is required")
	}

	delete(c.policies, policyKey{
		targetKey: keyOf(req.ServiceNamespace, req.ResourceID, req.ScalableDimension),
		name:      req.PolicyName,
	})
	return nil
}

// DeregisterScalableTarget satisfies the DeregisterScalableTarget function on
// the scaling.Client interface. Deregistering removes any policy still
// attached to the target, and deregistering an absent target succeeds.
func (c *Client) DeregisterScalableTarget(ctx context.Context, req *scaling.DeregisterScalableTargetRequest) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.begin(ctx, scaling.OpDeregisterScalableTarget, *req); err != nil {
		return err
	}

	if err := validateIdentity(req.ServiceNamespace, req.ResourceID, req.ScalableDimension); err != nil {
		return err
	}

	key := keyOf(req.ServiceNamespace, req.ResourceID, req.ScalableDimension)
	delete(c.targets, key)
	delete(c.tags, key)

	for pKey := range c.policies {
		if pKey.targetKey == key {
			delete(c.policies, pKey)
		}
	}
	return nil
}

// begin records the call and returns the error the call must fail with, if
// any. The lock must be held.
func (c *Client) begin(ctx context.Context, op scaling.Operation, req any) error {
	c.calls = append(c.calls, Call{Op: op, Request: req})

	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := c.failures[op]; ok {
		return err
	}
	return nil
}

func validateIdentity(namespace, resourceID, dimension string) error {
	var missing []string

	if namespace == "" {
		missing = append(missing, "service namespace")
	}
	if resourceID == "" {
		missing = append(missing, "resource ID")
	}
	if dimension == "" {
		missing = append(missing, "scalable dimension")
	}

	if len(missing) > 0 {
		return scaling.NewProviderError(scaling.ErrCodeValidation,
			fmt.Sprintf("missing required parameters: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func keyOf(namespace, resourceID, dimension string) targetKey {
	return targetKey{namespace: namespace, resourceID: resourceID, dimension: dimension}
}

func policyARN(namespace, resourceID, name string) string {
	return fmt.Sprintf("arn:aws:autoscaling:us-east-1:000000000000:scalingPolicy:inmem:resource/%s/%s:policyName/%s",
		namespace, resourceID, name)
}

func copyPolicy(p *scaling.ScalingPolicyDescription) *scaling.ScalingPolicyDescription {
	pCopy := *p
	if p.TargetTrackingScalingPolicyConfiguration != nil {
		cfg := *p.TargetTrackingScalingPolicyConfiguration
		pCopy.TargetTrackingScalingPolicyConfiguration = &cfg
	}
	return &pCopy
}

func sortPolicies(p []*scaling.ScalingPolicyDescription) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].ResourceID != p[j].ResourceID {
			return p[i].ResourceID < p[j].ResourceID
		}
		return p[i].PolicyName < p[j].PolicyName
	})
}
