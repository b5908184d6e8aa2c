// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flag

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StringFlag implements the flag.Value interface and allows multiple calls to
// the same variable to append a list.
type StringFlag []string

func (s *StringFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *StringFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// FuncDurationVar is a type of flag that accepts a function, converts the
// user's value to a duration, and then calls the given function.
type FuncDurationVar func(d time.Duration) error

func (f FuncDurationVar) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	return f(v)
}
func (f FuncDurationVar) String() string   { return "" }
func (f FuncDurationVar) IsBoolFlag() bool { return false }

// FuncIntVar is a type of flag that accepts a function, converts the user's
// value to an int, and then calls the given function. It allows callers to
// tell an explicit zero apart from an unset flag.
type FuncIntVar func(i int) error

func (f FuncIntVar) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	return f(v)
}
func (f FuncIntVar) String() string { return "" }

// FuncFloatVar is a type of flag that accepts a function, converts the user's
// value to a float64, and then calls the given function.
type FuncFloatVar func(f float64) error

func (f FuncFloatVar) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	return f(v)
}
func (f FuncFloatVar) String() string { return "" }

// FuncMapStringStringVar is a type of flag that accepts a function, parses
// the user's value as a single key=value pair, and then calls the given
// function. It can be passed multiple times.
type FuncMapStringStringVar func(k, v string) error

func (f FuncMapStringStringVar) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("%q should be in <key>=<value> format", s)
	}
	return f(k, v)
}
func (f FuncMapStringStringVar) String() string { return "" }

// FuncBoolVar is a boolean flag that accepts a function, so callers can tell
// an explicit false apart from an unset flag.
type FuncBoolVar func(b bool) error

func (f FuncBoolVar) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("%q is not a boolean", s)
	}
	return f(v)
}
func (f FuncBoolVar) String() string   { return "" }
func (f FuncBoolVar) IsBoolFlag() bool { return true }
