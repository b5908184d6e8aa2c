// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scaling

import (
	"errors"
	"fmt"
	"strings"

	errHelper "github.com/llm-twin/ic-autoscaler/sdk/helper/error"
)

// Provider error codes this package and its clients need to recognise.
const (
	ErrCodeObjectNotFound       = "ObjectNotFoundException"
	ErrCodeValidation           = "ValidationException"
	ErrCodeConcurrentUpdate     = "ConcurrentUpdateException"
	ErrCodeFailedResourceAccess = "FailedResourceAccessException"
)

// ConfigurationError is returned when the orchestrator configuration is
// invalid. It is detected before any provider call is made and retrying
// without changing the configuration will not succeed.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid autoscaling configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ProviderError is returned when the provider rejects or fails a single
// operation.
type ProviderError struct {

	// Op is the provider operation which failed.
	Op Operation

	// ResourceID identifies the scalable resource the operation targeted.
	ResourceID string

	// Code and Message are the provider's error code and message. Code is
	// empty when the failure did not originate from the provider API, such
	// as a cancelled context or a transport error.
	Code    string
	Message string

	// Err is the underlying error, if any.
	Err error
}

// NewProviderError builds a ProviderError from a provider code and message.
// The operation and resource ID are filled in by the orchestrator when not
// set by the client.
func NewProviderError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

func (e *ProviderError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s failed", e.Op)
	if e.ResourceID != "" {
		fmt.Fprintf(&b, " for %s", e.ResourceID)
	}

	switch {
	case e.Code != "" && e.Message != "":
		fmt.Fprintf(&b, ": %s: %s", e.Code, e.Message)
	case e.Message != "":
		fmt.Fprintf(&b, ": %s", e.Message)
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	case e.Code != "":
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	return b.String()
}

// ErrorCode returns the provider error code.
func (e *ProviderError) ErrorCode() string { return e.Code }

func (e *ProviderError) Unwrap() error { return e.Err }

// IsCode reports whether err is, or wraps, a provider error with the given
// code.
func IsCode(err error, code string) bool {
	return errHelper.APIErrIs(err, code, "")
}

// CleanupError aggregates the failures of the independent cleanup steps. It
// holds at most one error per step.
type CleanupError struct {
	Errors []*ProviderError
}

func (e *CleanupError) Error() string {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return fmt.Sprintf("failed to clean up autoscaling: %s", errHelper.MultiErrorFunc(errs))
}

// Unwrap allows errors.Is and errors.As to inspect every step failure.
func (e *CleanupError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Failed returns the provider error of the named step, or nil if that step
// succeeded.
func (e *CleanupError) Failed(op Operation) *ProviderError {
	for _, err := range e.Errors {
		if err.Op == op {
			return err
		}
	}
	return nil
}

func (e *CleanupError) append(err *ProviderError) {
	e.Errors = append(e.Errors, err)
}

func (e *CleanupError) errorOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// toProviderError converts an error returned by a Client into a
// ProviderError attributed to op and id. Provider codes and messages are
// preserved untouched.
func toProviderError(op Operation, id Identity, err error) *ProviderError {

	var pErr *ProviderError
	if errors.As(err, &pErr) {
		out := *pErr
		if out.Op == "" {
			out.Op = op
		}
		if out.ResourceID == "" {
			out.ResourceID = id.ResourceID
		}
		return &out
	}

	var coder errHelper.ErrorCoder
	if errors.As(err, &coder) {
		return &ProviderError{Op: op, ResourceID: id.ResourceID, Code: coder.ErrorCode(), Err: err}
	}
	return &ProviderError{Op: op, ResourceID: id.ResourceID, Err: err}
}
