// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_GetHumanVersion(t *testing.T) {
	testCases := []struct {
		inputCommit          string
		inputDescribe        string
		inputVersion         string
		inputPrerelease      string
		inputVersionMetadata string
		expectedOutput       string
	}{
		{
			inputCommit:          "9f2c1ab+CHANGES",
			inputDescribe:        "",
			inputVersion:         "0.1.0",
			inputPrerelease:      "dev",
			inputVersionMetadata: "",
			expectedOutput:       "v0.1.0-dev (9f2c1ab+CHANGES)",
		},
		{
			inputCommit:          "9f2c1ab",
			inputDescribe:        "",
			inputVersion:         "0.2.0",
			inputPrerelease:      "rc1",
			inputVersionMetadata: "",
			expectedOutput:       "v0.2.0-rc1 (9f2c1ab)",
		},
		{
			inputCommit:          "",
			inputDescribe:        "",
			inputVersion:         "0.2.0",
			inputPrerelease:      "",
			inputVersionMetadata: "",
			expectedOutput:       "v0.2.0-dev",
		},
		{
			inputCommit:          "9f2c1ab",
			inputDescribe:        "v0.2.0-rc1",
			inputVersion:         "0.2.0",
			inputPrerelease:      "rc1",
			inputVersionMetadata: "",
			expectedOutput:       "v0.2.0-rc1 (9f2c1ab)",
		},
		{
			inputCommit:          "9f2c1ab",
			inputDescribe:        "v1.0.0",
			inputVersion:         "1.0.0",
			inputPrerelease:      "",
			inputVersionMetadata: "",
			expectedOutput:       "v1.0.0",
		},
		{
			inputCommit:          "9f2c1ab",
			inputDescribe:        "v1.0.0",
			inputVersion:         "1.0.0",
			inputPrerelease:      "",
			inputVersionMetadata: "fips",
			expectedOutput:       "v1.0.0+fips",
		},
	}

	for _, tc := range testCases {
		GitCommit = tc.inputCommit
		GitDescribe = tc.inputDescribe
		Version = tc.inputVersion
		VersionPrerelease = tc.inputPrerelease
		VersionMetadata = tc.inputVersionMetadata
		assert.Equal(t, tc.expectedOutput, GetHumanVersion())
	}
}
