// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package quorum

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Rule is the quorum rule an Authorizer enforces.
type Rule uint8

const (
	// RuleOne is met by a single authorized signer.
	RuleOne Rule = iota

	// RuleMajority is met by strictly more than half of the authorized
	// signers.
	RuleMajority

	// RuleAll is met only when every authorized signer agrees.
	RuleAll
)

// String returns the rule as a human-readable name.
func (r Rule) String() string {
	switch r {
	case RuleOne:
		return "ONE"
	case RuleMajority:
		return "MAJORITY"
	case RuleAll:
		return "ALL"
	default:
		return fmt.Sprintf("Unknown Rule (%d)", int(r))
	}
}

// Voter identifies an authorized signer by its compressed public key.
type Voter [btcec.PubKeyBytesLenCompressed]byte

// NewVoter returns the Voter for the given public key.
func NewVoter(pubKey *btcec.PublicKey) Voter {
	var v Voter
	copy(v[:], pubKey.SerializeCompressed())
	return v
}

// String returns the hex encoding of the voter's key.
func (v Voter) String() string {
	return hex.EncodeToString(v[:])
}

// Authorizer decides whether a set of signers satisfies a quorum rule over a
// fixed list of authorized keys.
type Authorizer struct {
	keys []Voter
	rule Rule
}

// NewAuthorizer returns an Authorizer over the given keys.  Duplicate keys
// are collapsed so they cannot be counted twice.
func NewAuthorizer(keys []*btcec.PublicKey, rule Rule) *Authorizer {
	a := &Authorizer{rule: rule}
	seen := make(map[Voter]struct{}, len(keys))
	for _, k := range keys {
		v := NewVoter(k)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		a.keys = append(a.keys, v)
	}
	return a
}

// Rule returns the authorizer's quorum rule.
func (a *Authorizer) Rule() Rule {
	return a.rule
}

// NumKeys returns the number of authorized keys.
func (a *Authorizer) NumKeys() int {
	return len(a.keys)
}

// Keys returns a copy of the authorized keys in their configured order.
func (a *Authorizer) Keys() []Voter {
	keys := make([]Voter, len(a.keys))
	copy(keys, a.keys)
	return keys
}

// RequiredVotes returns how many distinct authorized signers are needed to
// meet the quorum rule.
func (a *Authorizer) RequiredVotes() int {
	switch a.rule {
	case RuleOne:
		return 1
	case RuleMajority:
		return len(a.keys)/2 + 1
	default:
		return len(a.keys)
	}
}

// MeetsQuorum reports whether count distinct authorized signers satisfy the
// quorum rule.  An authorizer without keys never reaches a quorum, not even
// under RuleAll.
func (a *Authorizer) MeetsQuorum(count int) bool {
	if len(a.keys) == 0 {
		return false
	}
	return count >= a.RequiredVotes()
}

// IsMember reports whether the voter is one of the authorized keys.
func (a *Authorizer) IsMember(v Voter) bool {
	for _, k := range a.keys {
		if k == v {
			return true
		}
	}
	return false
}

// IsAuthorized reports whether the intersection of signers with the
// authorized keys satisfies the quorum rule.  Repeated signers count once.
func (a *Authorizer) IsAuthorized(signers []Voter) bool {
	matched := make(map[Voter]struct{}, len(signers))
	for _, s := range signers {
		if a.IsMember(s) {
			matched[s] = struct{}{}
		}
	}
	return a.MeetsQuorum(len(matched))
}
