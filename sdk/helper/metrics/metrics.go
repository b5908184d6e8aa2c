// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"sync/atomic"
	"time"

	m "github.com/armon/go-metrics"
)

// defaultLabels are the label set that should be applied to every data point
// emitted. Use an atomic value so that we protect against concurrent access in
// situations where the default labels are being updated after telemetry
// initialization.
var defaultLabels atomic.Value

// Label is a wrapper around m.Label so callers don't have to juggle importing
// both packages when emitting metrics.
type Label = m.Label

// SetDefaultLabels sets defaultLabels with the configured default set of
// labels.
func SetDefaultLabels(labels []Label) { defaultLabels.Store(labels) }

// loadDefaultLabels returns the stored default labels. Metrics may be emitted
// before telemetry is configured, in tests for example, so an unset value is
// treated as an empty set.
func loadDefaultLabels() []Label {
	l, _ := defaultLabels.Load().([]Label)
	return l
}

// SetGaugeWithLabels wraps m.SetGaugeWithLabels and appends the default
// labels to the passed labels on the emitted metric.
func SetGaugeWithLabels(key []string, val float32, labels []Label) {
	m.SetGaugeWithLabels(key, val, append(labels, loadDefaultLabels()...))
}

// MeasureSinceWithLabels wraps m.MeasureSinceWithLabels and appends the
// default labels to the passed labels on the emitted metric.
func MeasureSinceWithLabels(key []string, start time.Time, labels []Label) {
	m.MeasureSinceWithLabels(key, start, append(labels, loadDefaultLabels()...))
}

// IncrCounterWithLabels wraps m.IncrCounterWithLabels and appends the default
// labels to the passed labels on the emitted metric.
func IncrCounterWithLabels(key []string, val float32, labels []Label) {
	m.IncrCounterWithLabels(key, val, append(labels, loadDefaultLabels()...))
}
