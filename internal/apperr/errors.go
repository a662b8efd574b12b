// Package apperr holds the failure kinds of the refresh pipeline. Callers
// classify them with errors.As.
package apperr

import (
	"errors"
	"fmt"
)

// NetworkError is a transport-level failure: dial, timeout, cancelled request.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx answer from the upstream API.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: API returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: API returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// DecodeError means a response body did not have the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode error: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MalformedRecordError points at a single asteroid object that is missing a
// required field or carries it with the wrong type.
type MalformedRecordError struct {
	Date   string
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed asteroid record %s[%d]: field %q %s", e.Date, e.Index, e.Field, e.Reason)
}

// Kind returns a short label for logs and metrics.
func Kind(err error) string {
	if err == nil {
		return "none"
	}
	var (
		netErr    *NetworkError
		remoteErr *RemoteError
		decodeErr *DecodeError
		recErr    *MalformedRecordError
	)
	switch {
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &remoteErr):
		return "remote"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &recErr):
		return "malformed_record"
	default:
		return "internal"
	}
}
