// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package error

import (
	"errors"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
)

// MultiErrorFunc is a helper to convert the standard multierror output into
// something a little more friendly to consoles.
func MultiErrorFunc(err []error) string {
	points := make([]string, len(err))
	for i, err := range err {
		points[i] = err.Error()
	}
	return strings.Join(points, ", ")
}

// FormattedMultiError wraps any non-nil multierrors with the multiErrorFunc.
// It is safe to call in cases where the err may or may not be nil and will
// overwrite the existing formatter.
func FormattedMultiError(err *multierror.Error) error {
	if err != nil {
		err.ErrorFormat = MultiErrorFunc
	}
	return err.ErrorOrNil()
}

// ErrorCoder is an error which carries a remote API error code. Both the AWS
// smithy.APIError and the scaling.ProviderError implement it.
type ErrorCoder interface {
	Error() string
	ErrorCode() string
}

// APIErrIs attempts to coerce err into an ErrorCoder to check its error
// code. Failing that, it will look for str in the error string. If code=="" it
// will be ignored, same for str=="".
func APIErrIs(err error, code string, str string) bool {
	if err == nil {
		return false
	}
	if code != "" {
		var ec ErrorCoder
		if errors.As(err, &ec) {
			return ec.ErrorCode() == code
		}
	}
	return str != "" && strings.Contains(err.Error(), str)
}
