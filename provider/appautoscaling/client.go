// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package appautoscaling implements scaling.Client using the AWS Application
// Auto Scaling API.
package appautoscaling

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	"github.com/aws/smithy-go"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/llm-twin/ic-autoscaler/config"
	"github.com/llm-twin/ic-autoscaler/rate_limiter"
	"github.com/llm-twin/ic-autoscaler/scaling"
)

const (
	// defaultRegion is used when neither the configuration nor the
	// environment provide a region.
	defaultRegion = "us-east-1"

	// metricsSource labels the HTTP metrics of the API client.
	metricsSource = "application-autoscaling"
)

// Assert that Client meets the scaling.Client interface.
var _ scaling.Client = (*Client)(nil)

// api is the subset of the Application Auto Scaling client used.
type api interface {
	RegisterScalableTarget(context.Context, *applicationautoscaling.RegisterScalableTargetInput, ...func(*applicationautoscaling.Options)) (*applicationautoscaling.RegisterScalableTargetOutput, error)
	PutScalingPolicy(context.Context, *applicationautoscaling.PutScalingPolicyInput, ...func(*applicationautoscaling.Options)) (*applicationautoscaling.PutScalingPolicyOutput, error)
	DeleteScalingPolicy(context.Context, *applicationautoscaling.DeleteScalingPolicyInput, ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DeleteScalingPolicyOutput, error)
	DeregisterScalableTarget(context.Context, *applicationautoscaling.DeregisterScalableTargetInput, ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DeregisterScalableTargetOutput, error)

	applicationautoscaling.DescribeScalableTargetsAPIClient
	applicationautoscaling.DescribeScalingPoliciesAPIClient
}

// Client talks to the AWS Application Auto Scaling API. Provider errors are
// returned as *scaling.ProviderError carrying the AWS error code and
// message.
type Client struct {
	api    api
	logger hclog.Logger
}

// New loads the AWS configuration and returns a Client. The default AWS
// configuration chain handles environment variables and shared profiles;
// values in cfg take precedence.
func New(ctx context.Context, cfg *config.AWS, logger hclog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = &config.AWS{RateLimit: -1}
	}
	logger = logger.Named("appautoscaling")

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(rate_limiter.NewInstrumentedWrapper(metricsSource, cfg.RateLimit, nil)),
	}

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if len(cfg.SharedConfigFiles) != 0 {
		opts = append(opts, awsconfig.WithSharedConfigFiles(cfg.SharedConfigFiles))
	}
	if len(cfg.SharedCredentialsFiles) != 0 {
		opts = append(opts, awsconfig.WithSharedCredentialsFiles(cfg.SharedCredentialsFiles))
	}

	// In order to use static credentials both the access key and secret key
	// need to be present; the session token is optional.
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		logger.Trace("setting AWS access credentials from config")
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %v", err)
	}

	if awsCfg.Region == "" {
		logger.Trace("setting AWS region for client", "region", defaultRegion)
		awsCfg.Region = defaultRegion
	}

	svc := applicationautoscaling.NewFromConfig(awsCfg, func(o *applicationautoscaling.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newClient(svc, logger), nil
}

func newClient(svc api, logger hclog.Logger) *Client {
	return &Client{api: svc, logger: logger}
}

// RegisterScalableTarget satisfies the RegisterScalableTarget function on the
// scaling.Client interface.
func (c *Client) RegisterScalableTarget(ctx context.Context, req *scaling.RegisterScalableTargetRequest) error {
	_, err := c.api.RegisterScalableTarget(ctx, registerScalableTargetInput(req))
	if err != nil {
		return providerError(scaling.OpRegisterScalableTarget, req.ResourceID, err)
	}
	return nil
}

// PutScalingPolicy satisfies the PutScalingPolicy function on the
// scaling.Client interface.
func (c *Client) PutScalingPolicy(ctx context.Context, req *scaling.PutScalingPolicyRequest) error {
	out, err := c.api.PutScalingPolicy(ctx, putScalingPolicyInput(req))
	if err != nil {
		return providerError(scaling.OpPutScalingPolicy, req.ResourceID, err)
	}
	c.logger.Trace("put scaling policy", "policy_arn", aws.ToString(out.PolicyARN))
	return nil
}

// DescribeScalableTargets satisfies the DescribeScalableTargets function on
// the scaling.Client interface. All result pages are read.
func (c *Client) DescribeScalableTargets(ctx context.Context, req *scaling.DescribeScalableTargetsRequest) ([]*scaling.ScalableTargetDescription, error) {

	var out []*scaling.ScalableTargetDescription

	p := applicationautoscaling.NewDescribeScalableTargetsPaginator(c.api, describeScalableTargetsInput(req))
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, providerError(scaling.OpDescribeScalableTargets, resourceIDOf(req.ResourceIDs), err)
		}
		for _, t := range page.ScalableTargets {
			out = append(out, scalableTargetDescription(t))
		}
	}
	return out, nil
}

// DescribeScalingPolicies satisfies the DescribeScalingPolicies function on
// the scaling.Client interface. All result pages are read.
func (c *Client) DescribeScalingPolicies(ctx context.Context, req *scaling.DescribeScalingPoliciesRequest) ([]*scaling.ScalingPolicyDescription, error) {

	var out []*scaling.ScalingPolicyDescription

	p := applicationautoscaling.NewDescribeScalingPoliciesPaginator(c.api, describeScalingPoliciesInput(req))
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, providerError(scaling.OpDescribeScalingPolicies, req.ResourceID, err)
		}
		for _, sp := range page.ScalingPolicies {
			out = append(out, scalingPolicyDescription(sp))
		}
	}
	return out, nil
}

// DeleteScalingPolicy satisfies the DeleteScalingPolicy function on the
// scaling.Client interface. A policy which does not exist is treated as
// already deleted.
func (c *Client) DeleteScalingPolicy(ctx context.Context, req *scaling.DeleteScalingPolicyRequest) error {
	_, err := c.api.DeleteScalingPolicy(ctx, deleteScalingPolicyInput(req))
	if err != nil {
		if isObjectNotFound(err) {
			c.logger.Debug("scaling policy already absent",
				"policy_name", req.PolicyName, "resource_id", req.ResourceID)
			return nil
		}
		return providerError(scaling.OpDeleteScalingPolicy, req.ResourceID, err)
	}
	return nil
}

// DeregisterScalableTarget satisfies the DeregisterScalableTarget function on
// the scaling.Client interface. A target which is not registered is treated
// as already deregistered.
func (c *Client) DeregisterScalableTarget(ctx context.Context, req *scaling.DeregisterScalableTargetRequest) error {
	_, err := c.api.DeregisterScalableTarget(ctx, deregisterScalableTargetInput(req))
	if err != nil {
		if isObjectNotFound(err) {
			c.logger.Debug("scalable target already deregistered", "resource_id", req.ResourceID)
			return nil
		}
		return providerError(scaling.OpDeregisterScalableTarget, req.ResourceID, err)
	}
	return nil
}

// providerError converts an SDK error into a *scaling.ProviderError. The AWS
// error code and message are preserved and the original error stays
// reachable through errors.Is and errors.As.
func providerError(op scaling.Operation, resourceID string, err error) error {
	pErr := &scaling.ProviderError{Op: op, ResourceID: resourceID, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pErr.Code = apiErr.ErrorCode()
		pErr.Message = apiErr.ErrorMessage()
	}
	return pErr
}

func isObjectNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == scaling.ErrCodeObjectNotFound
}

func resourceIDOf(ids []string) string {
	if len(ids) == 1 {
		return ids[0]
	}
	return ""
}
