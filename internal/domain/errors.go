package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnect  = errors.New("connect failed")
	ErrNotFound = errors.New("session artifacts not found")
	ErrParse    = errors.New("row parse failed")
)

// ConnectError is a transport failure or non-success status on a request the walk
// cannot proceed without.
type ConnectError struct {
	URL    string
	Status int
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("connect %s: unexpected status %d", e.URL, e.Status)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool { return target == ErrConnect }

// NotFoundError means the page loaded but none of the expected session artifacts
// were present, which usually signals an upstream layout change.
type NotFoundError struct {
	URL     string
	Missing []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.URL, strings.Join(e.Missing, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ParseError drops a single row.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("field %s: invalid value %q", e.Field, e.Value)
	}
	return fmt.Sprintf("field %s: invalid value %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }
