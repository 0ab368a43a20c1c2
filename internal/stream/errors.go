// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"strconv"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents a failed chat request or stream.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int // set for ErrTypeStatus
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches another ClientError of the same type, so the sentinels below
// work with errors.Is.
func (e *ClientError) Is(target error) bool {
	var t *ClientError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && t.Cause == nil && t.StatusCode == 0
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeTransport
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeDecode
	ErrTypeStalled
	ErrTypeCanceled
)

// String returns a short label used in logs.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeTransport:
		return "transport"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeStatus:
		return "status"
	case ErrTypeDecode:
		return "decode"
	case ErrTypeStalled:
		return "stalled"
	case ErrTypeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrTransport = &ClientError{Type: ErrTypeTransport, Message: "chat server unreachable"}
	ErrTimeout   = &ClientError{Type: ErrTypeTimeout, Message: "timed out waiting for response headers"}
	ErrStatus    = &ClientError{Type: ErrTypeStatus, Message: "chat server returned an error status"}
	ErrDecode    = &ClientError{Type: ErrTypeDecode, Message: "reply is not valid UTF-8"}
	ErrStalled   = &ClientError{Type: ErrTypeStalled, Message: "reply stream stalled"}
	ErrCanceled  = &ClientError{Type: ErrTypeCanceled, Message: "request canceled"}
)

// errStalled is the cancellation cause installed by the idle watchdog.
var errStalled = errors.New("no data received within idle timeout")

func statusError(code int, status string) *ClientError {
	return &ClientError{
		Type:       ErrTypeStatus,
		Message:    "chat request failed: " + status,
		StatusCode: code,
	}
}

func decodeError(cause error, offset int64) *ClientError {
	return &ClientError{
		Type:    ErrTypeDecode,
		Message: "invalid UTF-8 near byte " + strconv.FormatInt(offset, 10),
		Cause:   cause,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// TypeOf returns the category of err, or ErrTypeUnknown when err is not a
// ClientError.
func TypeOf(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeUnknown
}

// IsStatus checks if the server answered with a non-success status.
func IsStatus(err error) bool {
	return TypeOf(err) == ErrTypeStatus
}

// IsDecode checks if the reply contained invalid UTF-8.
func IsDecode(err error) bool {
	return TypeOf(err) == ErrTypeDecode
}

// IsStalled checks if the idle watchdog aborted the stream.
func IsStalled(err error) bool {
	return TypeOf(err) == ErrTypeStalled
}

// IsCanceled checks if the caller's context ended the request.
func IsCanceled(err error) bool {
	return TypeOf(err) == ErrTypeCanceled
}

// IsTimeout checks if the connect timeout expired.
func IsTimeout(err error) bool {
	return TypeOf(err) == ErrTypeTimeout
}
