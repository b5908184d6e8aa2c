// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package appautoscaling

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling/types"
	"github.com/llm-twin/ic-autoscaler/scaling"
)

func registerScalableTargetInput(req *scaling.RegisterScalableTargetRequest) *applicationautoscaling.RegisterScalableTargetInput {
	input := applicationautoscaling.RegisterScalableTargetInput{
		ServiceNamespace:  types.ServiceNamespace(req.ServiceNamespace),
		ResourceId:        aws.String(req.ResourceID),
		ScalableDimension: types.ScalableDimension(req.ScalableDimension),
		MinCapacity:       aws.Int32(req.MinCapacity),
		MaxCapacity:       aws.Int32(req.MaxCapacity),
	}
	if len(req.Tags) != 0 {
		input.Tags = req.Tags
	}
	return &input
}

func putScalingPolicyInput(req *scaling.PutScalingPolicyRequest) *applicationautoscaling.PutScalingPolicyInput {
	input := applicationautoscaling.PutScalingPolicyInput{
		PolicyName:        aws.String(req.PolicyName),
		PolicyType:        types.PolicyType(req.PolicyType),
		ServiceNamespace:  types.ServiceNamespace(req.ServiceNamespace),
		ResourceId:        aws.String(req.ResourceID),
		ScalableDimension: types.ScalableDimension(req.ScalableDimension),
	}

	if cfg := req.TargetTrackingScalingPolicyConfiguration; cfg != nil {
		input.TargetTrackingScalingPolicyConfiguration = &types.TargetTrackingScalingPolicyConfiguration{
			PredefinedMetricSpecification: &types.PredefinedMetricSpecification{
				PredefinedMetricType: types.MetricType(cfg.PredefinedMetricSpecification.PredefinedMetricType),
			},
			TargetValue:      aws.Float64(cfg.TargetValue),
			ScaleInCooldown:  aws.Int32(cfg.ScaleInCooldown),
			ScaleOutCooldown: aws.Int32(cfg.ScaleOutCooldown),
			DisableScaleIn:   aws.Bool(cfg.DisableScaleIn),
		}
	}
	return &input
}

func deleteScalingPolicyInput(req *scaling.DeleteScalingPolicyRequest) *applicationautoscaling.DeleteScalingPolicyInput {
	return &applicationautoscaling.DeleteScalingPolicyInput{
		PolicyName:        aws.String(req.PolicyName),
		ServiceNamespace:  types.ServiceNamespace(req.ServiceNamespace),
		ResourceId:        aws.String(req.ResourceID),
		ScalableDimension: types.ScalableDimension(req.ScalableDimension),
	}
}

func deregisterScalableTargetInput(req *scaling.DeregisterScalableTargetRequest) *applicationautoscaling.DeregisterScalableTargetInput {
	return &applicationautoscaling.DeregisterScalableTargetInput{
		ServiceNamespace:  types.ServiceNamespace(req.ServiceNamespace),
		ResourceId:        aws.String(req.ResourceID),
		ScalableDimension: types.ScalableDimension(req.ScalableDimension),
	}
}

func describeScalableTargetsInput(req *scaling.DescribeScalableTargetsRequest) *applicationautoscaling.DescribeScalableTargetsInput {
	return &applicationautoscaling.DescribeScalableTargetsInput{
		ServiceNamespace:  types.ServiceNamespace(req.ServiceNamespace),
		ResourceIds:       req.ResourceIDs,
		ScalableDimension: types.ScalableDimension(req.ScalableDimension),
	}
}

func describeScalingPoliciesInput(req *scaling.DescribeScalingPoliciesRequest) *applicationautoscaling.DescribeScalingPoliciesInput {
	input := applicationautoscaling.DescribeScalingPoliciesInput{
		ServiceNamespace:  types.ServiceNamespace(req.ServiceNamespace),
		PolicyNames:       req.PolicyNames,
		ScalableDimension: types.ScalableDimension(req.ScalableDimension),
	}
	if req.ResourceID != "" {
		input.ResourceId = aws.String(req.ResourceID)
	}
	return &input
}

func scalableTargetDescription(t types.ScalableTarget) *scaling.ScalableTargetDescription {
	return &scaling.ScalableTargetDescription{
		ServiceNamespace:  string(t.ServiceNamespace),
		ResourceID:        aws.ToString(t.ResourceId),
		ScalableDimension: string(t.ScalableDimension),
		MinCapacity:       aws.ToInt32(t.MinCapacity),
		MaxCapacity:       aws.ToInt32(t.MaxCapacity),
		CreationTime:      aws.ToTime(t.CreationTime),
	}
}

func scalingPolicyDescription(p types.ScalingPolicy) *scaling.ScalingPolicyDescription {
	out := scaling.ScalingPolicyDescription{
		PolicyName:        aws.ToString(p.PolicyName),
		PolicyARN:         aws.ToString(p.PolicyARN),
		PolicyType:        string(p.PolicyType),
		ServiceNamespace:  string(p.ServiceNamespace),
		ResourceID:        aws.ToString(p.ResourceId),
		ScalableDimension: string(p.ScalableDimension),
		CreationTime:      aws.ToTime(p.CreationTime),
	}

	if cfg := p.TargetTrackingScalingPolicyConfiguration; cfg != nil {
		ttCfg := scaling.TargetTrackingScalingPolicyConfiguration{
			TargetValue:      aws.ToFloat64(cfg.TargetValue),
			ScaleInCooldown:  aws.ToInt32(cfg.ScaleInCooldown),
			ScaleOutCooldown: aws.ToInt32(cfg.ScaleOutCooldown),
			DisableScaleIn:   aws.ToBool(cfg.DisableScaleIn),
		}
		if spec := cfg.PredefinedMetricSpecification; spec != nil {
			ttCfg.PredefinedMetricSpecification.PredefinedMetricType = string(spec.PredefinedMetricType)
		}
		out.TargetTrackingScalingPolicyConfiguration = &ttCfg
	}
	return &out
}
