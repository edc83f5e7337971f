// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package erpscript

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrInvalidCSVValue indicates a relative timelock outside of
	// (0, MaxCSVValue].
	ErrInvalidCSVValue ErrorCode = iota

	// ErrInvalidThreshold indicates a number of required signatures that
	// cannot be met by the given keys.
	ErrInvalidThreshold

	// ErrInvalidRedeemScript indicates that a key list does not form a
	// standard bare multisig script.
	ErrInvalidRedeemScript

	// ErrScriptSizeExceeded indicates that the resulting redeem script
	// is larger than a P2SH redeem script may be.
	ErrScriptSizeExceeded

	// ErrScriptBuild indicates a failure assembling the script.
	ErrScriptBuild

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidCSVValue:     "ErrInvalidCSVValue",
	ErrInvalidThreshold:    "ErrInvalidThreshold",
	ErrInvalidRedeemScript: "ErrInvalidRedeemScript",
	ErrScriptSizeExceeded:  "ErrScriptSizeExceeded",
	ErrScriptBuild:         "ErrScriptBuild",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is the error returned for every redeem script that cannot be built.
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

func scriptError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsInvalidScript reports whether err, or any error it wraps, was raised
// because a redeem script could not be built.
func IsInvalidScript(err error) bool {
	var e Error
	return errors.As(err, &e)
}

// IsErrorCode reports whether err is an Error with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == c
}
