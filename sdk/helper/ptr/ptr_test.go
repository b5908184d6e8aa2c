// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package ptr

import (
	"testing"

	"github.com/shoenig/test/must"
)

func Test_Of(t *testing.T) {

	s := "hello"
	sPtr := Of(s)

	must.Eq(t, s, *sPtr)

	b := "bye"
	sPtr = &b
	must.NotEq(t, s, *sPtr)
}

func Test_ValueOr(t *testing.T) {
	must.Eq(t, 5.0, ValueOr(nil, 5.0))
	must.Eq(t, 0.0, ValueOr(Of(0.0), 5.0))
	must.Eq(t, int32(3), ValueOr(Of(int32(3)), 1))
}
