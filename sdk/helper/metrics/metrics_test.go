// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	m "github.com/armon/go-metrics"
	"github.com/stretchr/testify/assert"
)

var (
	testResourceLabels = []Label{{Name: "resource_id", Value: "inference-component/llm-v1"}}
	testDefaultLabels  = []Label{{Name: "deployment", Value: "staging"}}
)

func Test_loadDefaultLabels(t *testing.T) {

	// Reset the package level value so we test the unset path.
	defaultLabels = atomic.Value{}
	assert.Nil(t, loadDefaultLabels())

	SetDefaultLabels(testDefaultLabels)
	assert.ElementsMatch(t, testDefaultLabels, loadDefaultLabels())

	SetDefaultLabels(nil)
	assert.Nil(t, loadDefaultLabels())
}

func Test_SetGaugeWithLabels(t *testing.T) {
	testCases := []struct {
		inputLabels   []Label
		defaultLabels []Label
		name          string
	}{
		{
			inputLabels:   testResourceLabels,
			defaultLabels: nil,
			name:          "no default labels",
		},
		{
			inputLabels:   testResourceLabels,
			defaultLabels: testDefaultLabels,
			name:          "default labels",
		},
	}

	key := []string{"scaling", "target", "max_capacity"}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sink := setupTestSink()
			SetDefaultLabels(tc.defaultLabels)

			SetGaugeWithLabels(key, 6, tc.inputLabels)

			intervals := sink.Data()
			if len(intervals) > 1 {
				t.Skip("detected interval crossing")
			}

			g, ok := intervals[0].Gauges[generateExpectedName(key, tc.defaultLabels, tc.inputLabels)]
			assert.True(t, ok, tc.name)
			assert.Equal(t, float32(6), g.Value, tc.name)
			assert.ElementsMatch(t, mergeLabelSets(tc.defaultLabels, tc.inputLabels), g.Labels, tc.name)
		})
	}
}

func Test_MeasureSinceWithLabels(t *testing.T) {
	testCases := []struct {
		inputLabels   []Label
		defaultLabels []Label
		name          string
	}{
		{
			inputLabels:   nil,
			defaultLabels: nil,
			name:          "no labels",
		},
		{
			inputLabels:   testResourceLabels,
			defaultLabels: testDefaultLabels,
			name:          "default labels and input labels",
		},
	}

	key := []string{"scaling", "setup"}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sink := setupTestSink()
			SetDefaultLabels(tc.defaultLabels)

			MeasureSinceWithLabels(key, time.Now().Add(-time.Second), tc.inputLabels)

			intervals := sink.Data()
			if len(intervals) > 1 {
				t.Skip("detected interval crossing")
			}

			sample, ok := intervals[0].Samples[generateExpectedName(key, tc.defaultLabels, tc.inputLabels)]
			assert.True(t, ok, tc.name)
			assert.NotZero(t, sample.Sum, tc.name)
			assert.ElementsMatch(t, mergeLabelSets(tc.defaultLabels, tc.inputLabels), sample.Labels, tc.name)
		})
	}
}

func Test_IncrCounterWithLabels(t *testing.T) {
	sink := setupTestSink()
	SetDefaultLabels(testDefaultLabels)

	key := []string{"scaling", "error"}
	labels := []Label{{Name: "operation", Value: "PutScalingPolicy"}}

	IncrCounterWithLabels(key, 1, labels)
	IncrCounterWithLabels(key, 1, labels)

	intervals := sink.Data()
	if len(intervals) > 1 {
		t.Skip("detected interval crossing")
	}

	counter, ok := intervals[0].Counters[generateExpectedName(key, testDefaultLabels, labels)]
	assert.True(t, ok)
	assert.Equal(t, float64(2), counter.Sum)
	assert.Equal(t, 2, counter.Count)
}

func setupTestSink() *m.InmemSink {
	inMem := m.NewInmemSink(1000000*time.Hour, 2000000*time.Hour)
	cfg := m.DefaultConfig("")
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	_, _ = m.NewGlobal(cfg, inMem)
	return inMem
}

func generateExpectedName(key []string, defaultLabels, additionalLabels []Label) string {
	expectedName := strings.Join(key, ".")
	for _, l := range additionalLabels {
		expectedName = fmt.Sprintf("%s;%s=%s", expectedName, l.Name, l.Value)
	}
	for _, l := range defaultLabels {
		expectedName = fmt.Sprintf("%s;%s=%s", expectedName, l.Name, l.Value)
	}
	return expectedName
}

func mergeLabelSets(a, b []Label) []Label {
	var out []Label
	out = append(out, a...)
	out = append(out, b...)
	return out
}
