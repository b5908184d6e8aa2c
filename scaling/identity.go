// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scaling

const (
	// ServiceNamespaceSageMaker is the Application Auto Scaling namespace
	// which owns SageMaker scalable resources.
	ServiceNamespaceSageMaker = "sagemaker"

	// ScalableDimensionDesiredCopyCount is the capacity attribute scaled on an
	// inference component: the number of model copies it runs.
	ScalableDimensionDesiredCopyCount = "sagemaker:inference-component:DesiredCopyCount"

	// inferenceComponentResourcePrefix is prepended to the inference
	// component name to build its resource ID.
	inferenceComponentResourcePrefix = "inference-component/"
)

// Identity is the tuple which uniquely addresses a scalable dimension of a
// resource within the provider. All operations issued by an Orchestrator use
// exactly one Identity.
type Identity struct {
	ServiceNamespace  string
	ResourceID        string
	ScalableDimension string
}

// InferenceComponentIdentity derives the Identity of the desired copy count
// of the named inference component. The ResourceID is deterministic, so the
// same component name always addresses the same scalable target.
func InferenceComponentIdentity(componentName string) Identity {
	return Identity{
		ServiceNamespace:  ServiceNamespaceSageMaker,
		ResourceID:        inferenceComponentResourcePrefix + componentName,
		ScalableDimension: ScalableDimensionDesiredCopyCount,
	}
}

// String returns a log friendly representation of the identity.
func (i Identity) String() string {
	return i.ServiceNamespace + "/" + i.ResourceID + "/" + i.ScalableDimension
}
