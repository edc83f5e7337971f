// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package quorum

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// CallSpec is the unit being voted on: a function name and its ordered
// arguments.
type CallSpec struct {
	Function string
	Args     [][]byte
}

// NewCallSpec returns a CallSpec holding copies of the given arguments.
func NewCallSpec(function string, args ...[]byte) CallSpec {
	spec := CallSpec{Function: function, Args: make([][]byte, len(args))}
	for i, arg := range args {
		spec.Args[i] = append([]byte(nil), arg...)
	}
	return spec
}

// Equal reports whether both specs name the same function with the same
// arguments.
func (s CallSpec) Equal(other CallSpec) bool {
	if s.Function != other.Function || len(s.Args) != len(other.Args) {
		return false
	}
	for i := range s.Args {
		if !bytes.Equal(s.Args[i], other.Args[i]) {
			return false
		}
	}
	return true
}

// Hash returns a digest identifying the call.  Calls are equal iff their
// hashes are.
func (s CallSpec) Hash() chainhash.Hash {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = wire.WriteVarString(&buf, 0, s.Function)
	_ = wire.WriteVarInt(&buf, 0, uint64(len(s.Args)))
	for _, arg := range s.Args {
		_ = wire.WriteVarBytes(&buf, 0, arg)
	}
	return chainhash.HashH(buf.Bytes())
}

// String returns the call as function(arg1,arg2,...) with hex arguments.
func (s CallSpec) String() string {
	args := make([]string, len(s.Args))
	for i, arg := range s.Args {
		args[i] = hex.EncodeToString(arg)
	}
	return s.Function + "(" + strings.Join(args, ",") + ")"
}
