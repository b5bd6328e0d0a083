// Package status defines the status codes a call can terminate with.
//
// A Status travels the pipe as the body of an Error frame and doubles as a
// regular Go error inside the process, so dispatch handlers can return one
// directly from Call.
package status

import (
	"errors"
	"fmt"
)

// Code classifies why a call could not produce (more) data.
type Code uint8

const (
	OK                Code = 0
	InvalidArgument   Code = 1
	NotFound          Code = 2
	Internal          Code = 3
	ResourceExhausted Code = 4
	Unavailable       Code = 5
	Canceled          Code = 6
	DeadlineExceeded  Code = 7
)

var codeNames = map[Code]string{
	OK:                "ok",
	InvalidArgument:   "invalid_argument",
	NotFound:          "not_found",
	Internal:          "internal",
	ResourceExhausted: "resource_exhausted",
	Unavailable:       "unavailable",
	Canceled:          "canceled",
	DeadlineExceeded:  "deadline_exceeded",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", uint8(c))
}

// Status is the terminal outcome of a call: a code plus a human-readable
// message. It implements error.
type Status struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// New creates a Status with the given code and message.
func New(code Code, message string) *Status {
	return &Status{Code: code, Message: message}
}

// Newf creates a Status with a formatted message.
func Newf(code Code, format string, args ...any) *Status {
	return &Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

// FromError coerces an arbitrary error into a Status. A nil error yields
// nil. An error that is (or wraps) a *Status is returned as-is; anything
// else becomes an Internal status carrying the error text.
func FromError(err error) *Status {
	if err == nil {
		return nil
	}
	var st *Status
	if errors.As(err, &st) {
		return st
	}
	return &Status{Code: Internal, Message: err.Error()}
}
