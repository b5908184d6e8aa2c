// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scaling

import (
	"context"
	"maps"
)

// ScalableTarget declares a resource dimension and its capacity bounds to
// the provider. It only exists as the parameters of a Register call; the
// provider holds the durable record.
type ScalableTarget struct {
	client Client

	Identity
	MinCapacity int32
	MaxCapacity int32
	Tags        map[string]string
}

// NewScalableTarget returns a ScalableTarget which registers through client.
func NewScalableTarget(client Client, id Identity, minCapacity, maxCapacity int32, tags map[string]string) *ScalableTarget {
	return &ScalableTarget{
		client:      client,
		Identity:    id,
		MinCapacity: minCapacity,
		MaxCapacity: maxCapacity,
		Tags:        maps.Clone(tags),
	}
}

// Register registers the target, or updates the capacity bounds of an
// already registered target. It performs a single call and any provider
// error is returned as is.
func (s *ScalableTarget) Register(ctx context.Context) error {
	req := RegisterScalableTargetRequest{
		ServiceNamespace:  s.ServiceNamespace,
		ResourceID:        s.ResourceID,
		ScalableDimension: s.ScalableDimension,
		MinCapacity:       s.MinCapacity,
		MaxCapacity:       s.MaxCapacity,
		Tags:              s.Tags,
	}

	if err := s.client.RegisterScalableTarget(ctx, &req); err != nil {
		return toProviderError(OpRegisterScalableTarget, s.Identity, err)
	}
	return nil
}
