// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package federation

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrNoMembers indicates an attempt to build a federation without
	// members.
	ErrNoMembers ErrorCode = iota

	// ErrDuplicateMember indicates two members sharing a key.
	ErrDuplicateMember

	// ErrIncompleteFederation indicates an attempt to build a federation
	// from a pending federation with too few members.
	ErrIncompleteFederation

	// ErrScript indicates that the federation's redeem script could not
	// be built or failed validation.
	ErrScript

	// ErrInvalidKey indicates a public key that cannot be parsed.
	ErrInvalidKey

	// ErrSerialization indicates malformed serialized members.
	ErrSerialization

	// ErrUnknownKind indicates an unsupported federation kind.
	ErrUnknownKind

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrNoMembers:            "ErrNoMembers",
	ErrDuplicateMember:      "ErrDuplicateMember",
	ErrIncompleteFederation: "ErrIncompleteFederation",
	ErrScript:               "ErrScript",
	ErrInvalidKey:           "ErrInvalidKey",
	ErrSerialization:        "ErrSerialization",
	ErrUnknownKind:          "ErrUnknownKind",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error for all errors arising while building or decoding
// federations.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

func fedError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode reports whether err is an Error with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == c
}
