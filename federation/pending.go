// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package federation

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcbridge/activation"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MinMembers is the number of members a pending federation needs before it
// can be committed.
const MinMembers = 2

// PendingFederation is a proposal for the next federation, built one member
// at a time.  Values are immutable; AddMember returns a new proposal.
type PendingFederation struct {
	members []Member
}

// NewPendingFederation returns a proposal holding the given members in
// order.
func NewPendingFederation(members []Member) *PendingFederation {
	return &PendingFederation{members: append([]Member(nil), members...)}
}

// Members returns a copy of the members in the order they were added.
func (p *PendingFederation) Members() []Member {
	return append([]Member(nil), p.members...)
}

// Size returns the number of members.
func (p *PendingFederation) Size() int {
	return len(p.members)
}

// AddMember returns a new proposal with m appended.  Callers must check
// ConflictsWith first; duplicates are not removed.
func (p *PendingFederation) AddMember(m Member) *PendingFederation {
	members := make([]Member, len(p.members), len(p.members)+1)
	copy(members, p.members)
	return &PendingFederation{members: append(members, m)}
}

// ConflictsWith reports whether any member already holds one of m's keys
// in the same role.
func (p *PendingFederation) ConflictsWith(m Member) bool {
	for _, existing := range p.members {
		if existing.SharesKeyWith(m) {
			return true
		}
	}
	return false
}

// HasKey reports whether any member holds key in the given role.
func (p *PendingFederation) HasKey(role KeyRole, key *btcec.PublicKey) bool {
	for _, m := range p.members {
		if m.PublicKey(role).IsEqual(key) {
			return true
		}
	}
	return false
}

// IsComplete reports whether the proposal has enough members to be
// committed.
func (p *PendingFederation) IsComplete() bool {
	return len(p.members) >= MinMembers
}

// Hash returns the digest a commit vote must name.  It covers every key of
// every member in order.
func (p *PendingFederation) Hash() chainhash.Hash {
	return chainhash.DoubleHashH(SerializeMembers(p.members))
}

// KindFor returns the kind of federation committed at the given forks.
func KindFor(forks activation.ForBlock) Kind {
	switch {
	case forks.IsActive(activation.P2shErpFederation):
		return P2shErp
	case forks.IsActive(activation.ErpFederation):
		return NonStandardErp
	default:
		return Standard
	}
}

// BuildFederation turns the proposal into a federation created at the given
// block.  The kind is picked from the forks active at that block.
func (p *PendingFederation) BuildFederation(creationTime time.Time,
	creationHeight int64, c *Constants,
	forks activation.ForBlock) (*Federation, error) {

	if !p.IsComplete() {
		str := fmt.Sprintf("pending federation has %d members, "+
			"need %d", len(p.members), MinMembers)
		return nil, fedError(ErrIncompleteFederation, str, nil)
	}
	return New(KindFor(forks), p.members, creationTime, creationHeight, c)
}
