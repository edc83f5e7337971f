// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fedmgr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrIllegalArgument indicates a governance call with an unknown
	// function, a wrong number of arguments or an unparsable key.
	// Votes convert it into CodeGeneric.
	ErrIllegalArgument ErrorCode = iota

	// ErrVerification indicates a federation script could not be built
	// or failed validation.  It points at a configuration defect and
	// aborts the enclosing execution.
	ErrVerification

	// ErrNoRetiringFederation indicates a migration was requested while
	// no federation is retiring, or the retiring federation holds no
	// funds.
	ErrNoRetiringFederation

	// ErrMigrationDust indicates the migration output would be dust
	// after paying the fee.
	ErrMigrationDust

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrIllegalArgument:      "ErrIllegalArgument",
	ErrVerification:         "ErrVerification",
	ErrNoRetiringFederation: "ErrNoRetiringFederation",
	ErrMigrationDust:        "ErrMigrationDust",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can happen during federation
// management.
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

func managerError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode reports whether err is an Error with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == c
}
