// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStringFlag(t *testing.T) {
	sv := new(StringFlag)
	assert.Nil(t, sv.Set("foo"))
	assert.Nil(t, sv.Set("bar"))
	assert.Equal(t, []string{"foo", "bar"}, []string(*sv))
	assert.Equal(t, "foo,bar", sv.String())
}

func TestFuncDurationVar(t *testing.T) {
	var dur time.Duration

	sv := FuncDurationVar(func(d time.Duration) error {
		dur = d
		return nil
	})

	assert.Nil(t, sv.Set("200s"))
	assert.Equal(t, 200*time.Second, dur)
	assert.Equal(t, "", sv.String())
	assert.False(t, sv.IsBoolFlag())
	assert.Error(t, sv.Set("soon"))
}

func TestFuncIntVar(t *testing.T) {
	var called bool
	var out int

	sv := FuncIntVar(func(i int) error {
		called = true
		out = i
		return nil
	})

	assert.Nil(t, sv.Set("0"))
	assert.True(t, called)
	assert.Equal(t, 0, out)

	assert.Error(t, sv.Set("six"))
}

func TestFuncFloatVar(t *testing.T) {
	var out float64

	sv := FuncFloatVar(func(f float64) error {
		out = f
		return nil
	})

	assert.Nil(t, sv.Set("4.5"))
	assert.Equal(t, 4.5, out)
	assert.Error(t, sv.Set("four"))
}

func TestFuncMapStringStringVar(t *testing.T) {
	testCases := []struct {
		input       string
		expectedMap map[string]string
		expectError bool
		name        string
	}{
		{
			input:       "team=ml-platform",
			expectedMap: map[string]string{"team": "ml-platform"},
			name:        "simple pair",
		},
		{
			input:       "expr=a=b",
			expectedMap: map[string]string{"expr": "a=b"},
			name:        "value containing separator",
		},
		{
			input:       "team=",
			expectedMap: map[string]string{"team": ""},
			name:        "empty value",
		},
		{
			input:       "team",
			expectedMap: map[string]string{},
			expectError: true,
			name:        "missing separator",
		},
		{
			input:       "=ml",
			expectedMap: map[string]string{},
			expectError: true,
			name:        "missing key",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := map[string]string{}
			sv := FuncMapStringStringVar(func(k, v string) error {
				out[k] = v
				return nil
			})

			err := sv.Set(tc.input)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expectedMap, out)
		})
	}
}

func TestFuncBoolVar(t *testing.T) {
	var out *bool
	bv := FuncBoolVar(func(b bool) error {
		out = &b
		return nil
	})

	assert.True(t, bv.IsBoolFlag())
	assert.NoError(t, bv.Set("false"))
	assert.NotNil(t, out)
	assert.False(t, *out)

	assert.NoError(t, bv.Set("true"))
	assert.True(t, *out)

	assert.Error(t, bv.Set("maybe"))
}
