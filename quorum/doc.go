// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package quorum implements the weighted voting primitive used to govern the
bridge federation.

An Authorizer holds an ordered list of authorized public keys and a quorum
Rule (ONE, MAJORITY or ALL).  An Election accumulates at most one vote per
authorized key for every distinct CallSpec, and reports the first CallSpec
whose vote count satisfies the authorizer's rule as the winner.

Neither type is safe for concurrent use; governance calls are executed one
at a time while a block is processed.
*/
package quorum
