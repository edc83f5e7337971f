// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fedmgr

import "fmt"

// Code is the outcome of a governance call.  Failures are expected results
// reported to the caller, not errors.
type Code int

// CodeSuccess and CodeGeneric are shared by every call.
const (
	CodeSuccess Code = 1
	CodeGeneric Code = -10
)

// Failure codes of create.
const (
	CreatePendingExists      Code = -1
	CreateAwaitingActivation Code = -2
	CreateRetiringHoldsFunds Code = -3
)

// Failure codes of add and add-multi.
const (
	AddNoPending    Code = -1
	AddDuplicateKey Code = -2
)

// Failure codes of commit.
const (
	CommitNoPending    Code = -1
	CommitIncomplete   Code = -2
	CommitHashMismatch Code = -3
)

// Failure codes of rollback.
const (
	RollbackNoPending Code = -1
)

// String returns the code as a human-readable value.
func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeGeneric:
		return "generic error"
	default:
		return fmt.Sprintf("failure %d", int(c))
	}
}
