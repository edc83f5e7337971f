// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package quorum

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Ballot is the set of voters that cast one exact CallSpec, in the order the
// votes were cast.
type Ballot struct {
	Spec   CallSpec
	Voters []Voter
}

func (b *Ballot) hasVoted(v Voter) bool {
	for _, voter := range b.Voters {
		if voter == v {
			return true
		}
	}
	return false
}

// Election tracks the votes cast for every CallSpec and the current winner.
type Election struct {
	authorizer *Authorizer
	ballots    []*Ballot
	index      map[chainhash.Hash]*Ballot
	winner     fn.Option[CallSpec]
}

// NewElection returns an Election over previously recorded ballots.  Votes
// from keys the authorizer does not know are dropped.  If a ballot already
// satisfies the quorum rule, the first such ballot becomes the winner.
func NewElection(authorizer *Authorizer, ballots []Ballot) *Election {
	e := &Election{
		authorizer: authorizer,
		index:      make(map[chainhash.Hash]*Ballot),
		winner:     fn.None[CallSpec](),
	}
	for _, b := range ballots {
		for _, v := range b.Voters {
			e.record(b.Spec, v)
		}
	}
	for _, b := range e.ballots {
		if e.authorizer.MeetsQuorum(len(b.Voters)) {
			e.winner = fn.Some(b.Spec)
			break
		}
	}
	return e
}

// Authorizer returns the authorizer the election counts votes with.
func (e *Election) Authorizer() *Authorizer {
	return e.authorizer
}

func (e *Election) record(spec CallSpec, voter Voter) bool {
	if !e.authorizer.IsMember(voter) {
		return false
	}
	h := spec.Hash()
	b, ok := e.index[h]
	if !ok {
		b = &Ballot{Spec: spec}
		e.index[h] = b
		e.ballots = append(e.ballots, b)
	}
	if b.hasVoted(voter) {
		return false
	}
	b.Voters = append(b.Voters, voter)
	return true
}

// Vote records voter's vote for spec.  It returns false without changing
// anything if the voter is not authorized or already voted for this exact
// spec.  When the vote brings spec to quorum and no winner is pending, spec
// becomes the winner.
func (e *Election) Vote(spec CallSpec, voter Voter) bool {
	if !e.record(spec, voter) {
		return false
	}
	if e.winner.IsNone() &&
		e.authorizer.MeetsQuorum(len(e.index[spec.Hash()].Voters)) {

		e.winner = fn.Some(spec)
	}
	return true
}

// Winner returns the call that reached quorum, if any.
func (e *Election) Winner() fn.Option[CallSpec] {
	return e.winner
}

// Voters returns the voters that cast spec.
func (e *Election) Voters(spec CallSpec) []Voter {
	b, ok := e.index[spec.Hash()]
	if !ok {
		return nil
	}
	voters := make([]Voter, len(b.Voters))
	copy(voters, b.Voters)
	return voters
}

// Ballots returns a copy of every ballot in the order the calls were first
// voted for.
func (e *Election) Ballots() []Ballot {
	ballots := make([]Ballot, 0, len(e.ballots))
	for _, b := range e.ballots {
		voters := make([]Voter, len(b.Voters))
		copy(voters, b.Voters)
		ballots = append(ballots, Ballot{Spec: b.Spec, Voters: voters})
	}
	return ballots
}

// ClearWinners removes the winner marker together with the winning ballot,
// so the same spec cannot win again from stale votes.  Votes for other specs
// are kept.
func (e *Election) ClearWinners() {
	e.winner.WhenSome(func(spec CallSpec) {
		h := spec.Hash()
		delete(e.index, h)
		for i, b := range e.ballots {
			if b.Spec.Hash() == h {
				e.ballots = append(e.ballots[:i], e.ballots[i+1:]...)
				break
			}
		}
	})
	e.winner = fn.None[CallSpec]()
}

// Clear removes every vote and the winner.
func (e *Election) Clear() {
	e.ballots = nil
	e.index = make(map[chainhash.Hash]*Ballot)
	e.winner = fn.None[CallSpec]()
}
