// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package appautoscaling

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling/types"
	"github.com/aws/smithy-go"
	"github.com/google/go-cmp/cmp"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/llm-twin/ic-autoscaler/config"
	"github.com/llm-twin/ic-autoscaler/scaling"
	"github.com/shoenig/test/must"
	"github.com/stretchr/testify/assert"
)

// stubAPI records every input and serves canned describe pages.
type stubAPI struct {
	err error

	register   []*applicationautoscaling.RegisterScalableTargetInput
	put        []*applicationautoscaling.PutScalingPolicyInput
	delete     []*applicationautoscaling.DeleteScalingPolicyInput
	deregister []*applicationautoscaling.DeregisterScalableTargetInput

	targetPages      [][]types.ScalableTarget
	policyPages      [][]types.ScalingPolicy
	describeTargets  []*applicationautoscaling.DescribeScalableTargetsInput
	describePolicies []*applicationautoscaling.DescribeScalingPoliciesInput
}

func (s *stubAPI) RegisterScalableTarget(_ context.Context, in *applicationautoscaling.RegisterScalableTargetInput, _ ...func(*applicationautoscaling.Options)) (*applicationautoscaling.RegisterScalableTargetOutput, error) {
	s.register = append(s.register, in)
	if s.err != nil {
		return nil, s.err
	}
	return &applicationautoscaling.RegisterScalableTargetOutput{}, nil
}

func (s *stubAPI) PutScalingPolicy(_ context.Context, in *applicationautoscaling.PutScalingPolicyInput, _ ...func(*applicationautoscaling.Options)) (*applicationautoscaling.PutScalingPolicyOutput, error) {
	s.put = append(s.put, in)
	if s.err != nil {
		return nil, s.err
	}
	return &applicationautoscaling.PutScalingPolicyOutput{PolicyARN: aws.String("arn:aws:autoscaling:policy")}, nil
}

func (s *stubAPI) DeleteScalingPolicy(_ context.Context, in *applicationautoscaling.DeleteScalingPolicyInput, _ ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DeleteScalingPolicyOutput, error) {
	s.delete = append(s.delete, in)
	if s.err != nil {
		return nil, s.err
	}
	return &applicationautoscaling.DeleteScalingPolicyOutput{}, nil
}

func (s *stubAPI) DeregisterScalableTarget(_ context.Context, in *applicationautoscaling.DeregisterScalableTargetInput, _ ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DeregisterScalableTargetOutput, error) {
	s.deregister = append(s.deregister, in)
	if s.err != nil {
		return nil, s.err
	}
	return &applicationautoscaling.DeregisterScalableTargetOutput{}, nil
}

func (s *stubAPI) DescribeScalableTargets(_ context.Context, in *applicationautoscaling.DescribeScalableTargetsInput, _ ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error) {
	s.describeTargets = append(s.describeTargets, in)
	if s.err != nil {
		return nil, s.err
	}

	page, next := pageIndex(in.NextToken, len(s.targetPages))
	out := &applicationautoscaling.DescribeScalableTargetsOutput{NextToken: next}
	if page < len(s.targetPages) {
		out.ScalableTargets = s.targetPages[page]
	}
	return out, nil
}

func (s *stubAPI) DescribeScalingPolicies(_ context.Context, in *applicationautoscaling.DescribeScalingPoliciesInput, _ ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalingPoliciesOutput, error) {
	s.describePolicies = append(s.describePolicies, in)
	if s.err != nil {
		return nil, s.err
	}

	page, next := pageIndex(in.NextToken, len(s.policyPages))
	out := &applicationautoscaling.DescribeScalingPoliciesOutput{NextToken: next}
	if page < len(s.policyPages) {
		out.ScalingPolicies = s.policyPages[page]
	}
	return out, nil
}

// pageIndex returns the page addressed by token and the token of the page
// after it, if any.
func pageIndex(token *string, pages int) (int, *string) {
	page := 0
	if token != nil {
		page, _ = strconv.Atoi(*token)
	}
	if page+1 < pages {
		return page, aws.String(strconv.Itoa(page + 1))
	}
	return page, nil
}

var testIdentity = scaling.InferenceComponentIdentity("llm-v1")

func TestClient_RegisterScalableTarget(t *testing.T) {
	stub := &stubAPI{}
	c := newClient(stub, hclog.NewNullLogger())

	err := c.RegisterScalableTarget(context.Background(), &scaling.RegisterScalableTargetRequest{
		ServiceNamespace:  testIdentity.ServiceNamespace,
		ResourceID:        testIdentity.ResourceID,
		ScalableDimension: testIdentity.ScalableDimension,
		MinCapacity:       1,
		MaxCapacity:       6,
		Tags:              map[string]string{"team": "ml"},
	})
	must.NoError(t, err)
	must.Len(t, 1, stub.register)

	in := stub.register[0]
	must.Eq(t, types.ServiceNamespaceSagemaker, in.ServiceNamespace)
	must.Eq(t, "inference-component/llm-v1", aws.ToString(in.ResourceId))
	must.Eq(t, types.ScalableDimension("sagemaker:inference-component:DesiredCopyCount"), in.ScalableDimension)
	must.Eq(t, int32(1), aws.ToInt32(in.MinCapacity))
	must.Eq(t, int32(6), aws.ToInt32(in.MaxCapacity))
	must.Eq(t, map[string]string{"team": "ml"}, in.Tags)
}

func TestClient_PutScalingPolicy(t *testing.T) {
	stub := &stubAPI{}
	c := newClient(stub, hclog.NewNullLogger())

	err := c.PutScalingPolicy(context.Background(), &scaling.PutScalingPolicyRequest{
		PolicyName:        "ep-1",
		PolicyType:        scaling.PolicyTypeTargetTracking,
		ServiceNamespace:  testIdentity.ServiceNamespace,
		ResourceID:        testIdentity.ResourceID,
		ScalableDimension: testIdentity.ScalableDimension,
		TargetTrackingScalingPolicyConfiguration: &scaling.TargetTrackingScalingPolicyConfiguration{
			PredefinedMetricSpecification: scaling.PredefinedMetricSpecification{
				PredefinedMetricType: scaling.MetricTypeInvocationsPerCopy,
			},
			TargetValue:      5,
			ScaleInCooldown:  200,
			ScaleOutCooldown: 200,
		},
	})
	must.NoError(t, err)
	must.Len(t, 1, stub.put)

	in := stub.put[0]
	must.Eq(t, "ep-1", aws.ToString(in.PolicyName))
	must.Eq(t, types.PolicyTypeTargetTrackingScaling, in.PolicyType)

	ttCfg := in.TargetTrackingScalingPolicyConfiguration
	must.NotNil(t, ttCfg)
	must.Eq(t, types.MetricType("SageMakerInferenceComponentInvocationsPerCopy"), ttCfg.PredefinedMetricSpecification.PredefinedMetricType)
	must.Eq(t, 5.0, aws.ToFloat64(ttCfg.TargetValue))
	must.Eq(t, int32(200), aws.ToInt32(ttCfg.ScaleInCooldown))
	must.Eq(t, int32(200), aws.ToInt32(ttCfg.ScaleOutCooldown))
	must.False(t, aws.ToBool(ttCfg.DisableScaleIn))
}

func TestClient_errorMapping(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		inputErr        error
		inputFunc       func(*Client) error
		expectedNil     bool
		expectedOp      scaling.Operation
		expectedCode    string
		expectedMessage string
		name            string
	}{
		{
			inputErr: &smithy.GenericAPIError{Code: scaling.ErrCodeValidation, Message: "bad bounds"},
			inputFunc: func(c *Client) error {
				return c.RegisterScalableTarget(ctx, &scaling.RegisterScalableTargetRequest{ResourceID: testIdentity.ResourceID})
			},
			expectedOp:      scaling.OpRegisterScalableTarget,
			expectedCode:    scaling.ErrCodeValidation,
			expectedMessage: "bad bounds",
			name:            "register validation error",
		},
		{
			inputErr: &types.FailedResourceAccessException{Message: aws.String("no metric")},
			inputFunc: func(c *Client) error {
				return c.PutScalingPolicy(ctx, &scaling.PutScalingPolicyRequest{ResourceID: testIdentity.ResourceID})
			},
			expectedOp:      scaling.OpPutScalingPolicy,
			expectedCode:    scaling.ErrCodeFailedResourceAccess,
			expectedMessage: "no metric",
			name:            "put typed exception",
		},
		{
			inputErr: &types.ObjectNotFoundException{Message: aws.String("no policy")},
			inputFunc: func(c *Client) error {
				return c.DeleteScalingPolicy(ctx, &scaling.DeleteScalingPolicyRequest{ResourceID: testIdentity.ResourceID})
			},
			expectedNil: true,
			name:        "delete of absent policy",
		},
		{
			inputErr: &types.ObjectNotFoundException{Message: aws.String("no target")},
			inputFunc: func(c *Client) error {
				return c.DeregisterScalableTarget(ctx, &scaling.DeregisterScalableTargetRequest{ResourceID: testIdentity.ResourceID})
			},
			expectedNil: true,
			name:        "deregister of absent target",
		},
		{
			inputErr: &smithy.GenericAPIError{Code: scaling.ErrCodeConcurrentUpdate, Message: "busy"},
			inputFunc: func(c *Client) error {
				return c.DeleteScalingPolicy(ctx, &scaling.DeleteScalingPolicyRequest{ResourceID: testIdentity.ResourceID})
			},
			expectedOp:      scaling.OpDeleteScalingPolicy,
			expectedCode:    scaling.ErrCodeConcurrentUpdate,
			expectedMessage: "busy",
			name:            "delete concurrent update",
		},
		{
			inputErr: context.DeadlineExceeded,
			inputFunc: func(c *Client) error {
				return c.DeregisterScalableTarget(ctx, &scaling.DeregisterScalableTargetRequest{ResourceID: testIdentity.ResourceID})
			},
			expectedOp: scaling.OpDeregisterScalableTarget,
			name:       "transport error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(&stubAPI{err: tc.inputErr}, hclog.NewNullLogger())

			err := tc.inputFunc(c)
			if tc.expectedNil {
				must.NoError(t, err)
				return
			}

			var pErr *scaling.ProviderError
			must.True(t, errors.As(err, &pErr))
			must.Eq(t, tc.expectedOp, pErr.Op)
			must.Eq(t, testIdentity.ResourceID, pErr.ResourceID)
			must.Eq(t, tc.expectedCode, pErr.Code)
			must.Eq(t, tc.expectedMessage, pErr.Message)
			must.ErrorIs(t, err, tc.inputErr)
		})
	}
}

func TestClient_DescribeScalableTargets(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	stub := &stubAPI{
		targetPages: [][]types.ScalableTarget{
			{
				{
					ServiceNamespace:  types.ServiceNamespaceSagemaker,
					ResourceId:        aws.String("inference-component/llm-a"),
					ScalableDimension: types.ScalableDimension(scaling.ScalableDimensionDesiredCopyCount),
					MinCapacity:       aws.Int32(1),
					MaxCapacity:       aws.Int32(6),
					CreationTime:      aws.Time(created),
				},
			},
			{
				{
					ServiceNamespace:  types.ServiceNamespaceSagemaker,
					ResourceId:        aws.String("inference-component/llm-b"),
					ScalableDimension: types.ScalableDimension(scaling.ScalableDimensionDesiredCopyCount),
					MinCapacity:       aws.Int32(0),
					MaxCapacity:       aws.Int32(2),
				},
			},
		},
	}
	c := newClient(stub, hclog.NewNullLogger())

	out, err := c.DescribeScalableTargets(context.Background(), &scaling.DescribeScalableTargetsRequest{
		ServiceNamespace:  testIdentity.ServiceNamespace,
		ResourceIDs:       []string{"inference-component/llm-a", "inference-component/llm-b"},
		ScalableDimension: testIdentity.ScalableDimension,
	})
	must.NoError(t, err)

	expected := []*scaling.ScalableTargetDescription{
		{
			ServiceNamespace:  "sagemaker",
			ResourceID:        "inference-component/llm-a",
			ScalableDimension: scaling.ScalableDimensionDesiredCopyCount,
			MinCapacity:       1,
			MaxCapacity:       6,
			CreationTime:      created,
		},
		{
			ServiceNamespace:  "sagemaker",
			ResourceID:        "inference-component/llm-b",
			ScalableDimension: scaling.ScalableDimensionDesiredCopyCount,
			MinCapacity:       0,
			MaxCapacity:       2,
		},
	}
	if diff := cmp.Diff(expected, out); diff != "" {
		t.Fatalf("unexpected targets (-want +got):\n%s", diff)
	}

	// Both pages were requested, the second with the returned token.
	must.Len(t, 2, stub.describeTargets)
	must.Nil(t, stub.describeTargets[0].NextToken)
	must.Eq(t, "1", aws.ToString(stub.describeTargets[1].NextToken))
	must.Eq(t, []string{"inference-component/llm-a", "inference-component/llm-b"}, stub.describeTargets[0].ResourceIds)
}

func TestClient_DescribeScalingPolicies(t *testing.T) {
	stub := &stubAPI{
		policyPages: [][]types.ScalingPolicy{
			{
				{
					PolicyName:        aws.String("ep-1"),
					PolicyARN:         aws.String("arn:aws:autoscaling:policy/ep-1"),
					PolicyType:        types.PolicyTypeTargetTrackingScaling,
					ServiceNamespace:  types.ServiceNamespaceSagemaker,
					ResourceId:        aws.String(testIdentity.ResourceID),
					ScalableDimension: types.ScalableDimension(testIdentity.ScalableDimension),
					TargetTrackingScalingPolicyConfiguration: &types.TargetTrackingScalingPolicyConfiguration{
						PredefinedMetricSpecification: &types.PredefinedMetricSpecification{
							PredefinedMetricType: types.MetricType(scaling.MetricTypeInvocationsPerCopy),
						},
						TargetValue:      aws.Float64(5),
						ScaleInCooldown:  aws.Int32(200),
						ScaleOutCooldown: aws.Int32(200),
					},
				},
			},
		},
	}
	c := newClient(stub, hclog.NewNullLogger())

	out, err := c.DescribeScalingPolicies(context.Background(), &scaling.DescribeScalingPoliciesRequest{
		ServiceNamespace:  testIdentity.ServiceNamespace,
		PolicyNames:       []string{"ep-1"},
		ResourceID:        testIdentity.ResourceID,
		ScalableDimension: testIdentity.ScalableDimension,
	})
	must.NoError(t, err)
	must.Len(t, 1, out)

	expected := &scaling.ScalingPolicyDescription{
		PolicyName:        "ep-1",
		PolicyARN:         "arn:aws:autoscaling:policy/ep-1",
		PolicyType:        scaling.PolicyTypeTargetTracking,
		ServiceNamespace:  "sagemaker",
		ResourceID:        testIdentity.ResourceID,
		ScalableDimension: testIdentity.ScalableDimension,
		TargetTrackingScalingPolicyConfiguration: &scaling.TargetTrackingScalingPolicyConfiguration{
			PredefinedMetricSpecification: scaling.PredefinedMetricSpecification{
				PredefinedMetricType: scaling.MetricTypeInvocationsPerCopy,
			},
			TargetValue:      5,
			ScaleInCooldown:  200,
			ScaleOutCooldown: 200,
		},
	}
	if diff := cmp.Diff(expected, out[0]); diff != "" {
		t.Fatalf("unexpected policy (-want +got):\n%s", diff)
	}

	must.Len(t, 1, stub.describePolicies)
	must.Eq(t, testIdentity.ResourceID, aws.ToString(stub.describePolicies[0].ResourceId))

	stub.err = &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
	_, err = c.DescribeScalingPolicies(context.Background(), &scaling.DescribeScalingPoliciesRequest{
		ServiceNamespace: testIdentity.ServiceNamespace,
	})
	must.True(t, scaling.IsCode(err, "ThrottlingException"))
}

// fakeService is a minimal Application Auto Scaling JSON endpoint.
type fakeService struct {
	lock    sync.Mutex
	targets []string
	bodies  []map[string]any

	// errors maps an operation to the error type returned for it.
	errors map[string]string
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()

	target := r.Header.Get("X-Amz-Target")
	f.targets = append(f.targets, target)

	raw, _ := io.ReadAll(r.Body)
	body := map[string]any{}
	_ = json.Unmarshal(raw, &body)
	f.bodies = append(f.bodies, body)

	w.Header().Set("Content-Type", "application/x-amz-json-1.1")

	op := target[strings.LastIndex(target, ".")+1:]
	if errType, ok := f.errors[op]; ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"__type":"` + errType + `","message":"injected ` + errType + `"}`))
		return
	}

	switch op {
	case "DescribeScalableTargets":
		_, _ = w.Write([]byte(`{"ScalableTargets":[{"ServiceNamespace":"sagemaker","ResourceId":"inference-component/llm-v1",` +
			`"ScalableDimension":"sagemaker:inference-component:DesiredCopyCount","MinCapacity":1,"MaxCapacity":6,"CreationTime":1714564800}]}`))
	case "PutScalingPolicy":
		_, _ = w.Write([]byte(`{"PolicyARN":"arn:aws:autoscaling:policy/ep-1"}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func newTestServiceClient(t *testing.T, f *fakeService) *Client {
	t.Helper()

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), &config.AWS{
		Region:          "eu-west-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		RateLimit:       -1,
	}, hclog.NewNullLogger())
	must.NoError(t, err)
	return c
}

func TestNew_endToEnd(t *testing.T) {
	f := &fakeService{}
	c := newTestServiceClient(t, f)

	o := scaling.NewOrchestrator(c, scaling.DefaultConfig("llm-v1", "ep-1"), hclog.NewNullLogger())
	ctx := context.Background()

	must.NoError(t, o.Setup(ctx))

	status, err := o.Status(ctx)
	must.NoError(t, err)
	must.Eq(t, scaling.StateRegistered, status.State)
	must.Eq(t, int32(6), status.Target.MaxCapacity)
	must.Eq(t, time.Unix(1714564800, 0).UTC(), status.Target.CreationTime.UTC())

	must.NoError(t, o.Cleanup(ctx))

	f.lock.Lock()
	defer f.lock.Unlock()

	assert.Equal(t, []string{
		"AnyScaleFrontendService.RegisterScalableTarget",
		"AnyScaleFrontendService.PutScalingPolicy",
		"AnyScaleFrontendService.DescribeScalableTargets",
		"AnyScaleFrontendService.DescribeScalingPolicies",
		"AnyScaleFrontendService.DeleteScalingPolicy",
		"AnyScaleFrontendService.DeregisterScalableTarget",
	}, f.targets)

	register := f.bodies[0]
	assert.Equal(t, "sagemaker", register["ServiceNamespace"])
	assert.Equal(t, "inference-component/llm-v1", register["ResourceId"])
	assert.Equal(t, "sagemaker:inference-component:DesiredCopyCount", register["ScalableDimension"])
	assert.Equal(t, 1.0, register["MinCapacity"])
	assert.Equal(t, 6.0, register["MaxCapacity"])

	put := f.bodies[1]
	assert.Equal(t, "ep-1", put["PolicyName"])
	assert.Equal(t, "TargetTrackingScaling", put["PolicyType"])

	ttCfg, ok := put["TargetTrackingScalingPolicyConfiguration"].(map[string]any)
	must.True(t, ok)
	assert.Equal(t, 5.0, ttCfg["TargetValue"])
	assert.Equal(t, 200.0, ttCfg["ScaleInCooldown"])
	assert.Equal(t, 200.0, ttCfg["ScaleOutCooldown"])
	assert.Equal(t, map[string]any{"PredefinedMetricType": "SageMakerInferenceComponentInvocationsPerCopy"},
		ttCfg["PredefinedMetricSpecification"])
}

func TestNew_endToEndErrors(t *testing.T) {
	f := &fakeService{errors: map[string]string{
		"RegisterScalableTarget": "ValidationException",
		"DeleteScalingPolicy":    "ObjectNotFoundException",
	}}
	c := newTestServiceClient(t, f)

	o := scaling.NewOrchestrator(c, scaling.DefaultConfig("llm-v1", "ep-1"), hclog.NewNullLogger())
	ctx := context.Background()

	err := o.Setup(ctx)
	must.Error(t, err)

	var pErr *scaling.ProviderError
	must.True(t, errors.As(err, &pErr))
	must.Eq(t, scaling.OpRegisterScalableTarget, pErr.Op)
	must.Eq(t, scaling.ErrCodeValidation, pErr.Code)
	must.Eq(t, "injected ValidationException", pErr.Message)

	// An absent policy does not fail cleanup.
	must.NoError(t, o.Cleanup(ctx))
}
