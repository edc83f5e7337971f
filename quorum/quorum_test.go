// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package quorum

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// testKeys returns n deterministic public keys.
func testKeys(n int) []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, n)
	for i := range keys {
		seed := chainhash.HashB([]byte(fmt.Sprintf("voter%d", i)))
		_, keys[i] = btcec.PrivKeyFromBytes(seed)
	}
	return keys
}

func voters(keys []*btcec.PublicKey) []Voter {
	vs := make([]Voter, len(keys))
	for i, k := range keys {
		vs[i] = NewVoter(k)
	}
	return vs
}

func TestAuthorizerRules(t *testing.T) {
	t.Parallel()

	keys := testKeys(5)
	all := voters(keys)
	outsider := NewVoter(testKeys(6)[5])

	tests := []struct {
		name    string
		rule    Rule
		signers []Voter
		want    bool
	}{
		{"one none", RuleOne, nil, false},
		{"one outsider", RuleOne, []Voter{outsider}, false},
		{"one match", RuleOne, all[:1], true},
		{"majority two of five", RuleMajority, all[:2], false},
		{"majority three of five", RuleMajority, all[:3], true},
		{"majority repeated signer", RuleMajority,
			[]Voter{all[0], all[0], all[1]}, false},
		{"majority with outsiders", RuleMajority,
			[]Voter{all[0], all[1], outsider}, false},
		{"all but one", RuleAll, all[:4], false},
		{"all", RuleAll, all, true},
		{"all plus outsider", RuleAll, append(all, outsider), true},
	}
	for _, test := range tests {
		a := NewAuthorizer(keys, test.rule)
		require.Equal(t, test.want, a.IsAuthorized(test.signers), test.name)
	}
}

// TestMajorityIsStrict checks the majority threshold for even and odd
// authorized set sizes.
func TestMajorityIsStrict(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 8; n++ {
		a := NewAuthorizer(testKeys(n), RuleMajority)
		for matches := 0; matches <= n; matches++ {
			want := matches > n/2
			require.Equal(t, want, a.MeetsQuorum(matches),
				"n=%d matches=%d", n, matches)
		}
	}
}

func TestAuthorizerDuplicateKeys(t *testing.T) {
	t.Parallel()

	keys := testKeys(2)
	a := NewAuthorizer(append(keys, keys[0]), RuleAll)
	require.Equal(t, 2, a.NumKeys())
	require.True(t, a.IsAuthorized(voters(keys)))
}

func TestAuthorizerKeys(t *testing.T) {
	t.Parallel()

	keys := testKeys(3)
	a := NewAuthorizer([]*btcec.PublicKey{keys[2], keys[0], keys[2],
		keys[1]}, RuleMajority)
	want := []Voter{NewVoter(keys[2]), NewVoter(keys[0]), NewVoter(keys[1])}
	require.Equal(t, want, a.Keys())

	got := a.Keys()
	got[0] = Voter{}
	require.Equal(t, want, a.Keys())
}

func TestEmptyAuthorizer(t *testing.T) {
	t.Parallel()

	for _, rule := range []Rule{RuleOne, RuleMajority, RuleAll} {
		a := NewAuthorizer(nil, rule)
		require.False(t, a.MeetsQuorum(0), "%v", rule)
		require.False(t, a.IsAuthorized(nil), "%v", rule)
		require.False(t, a.IsAuthorized(voters(testKeys(1))), "%v",
			rule)
	}
}

func TestElectionVote(t *testing.T) {
	t.Parallel()

	keys := voters(testKeys(3))
	e := NewElection(NewAuthorizer(testKeys(3), RuleMajority), nil)

	spec := NewCallSpec("create")
	other := NewCallSpec("rollback")

	require.True(t, e.Vote(spec, keys[0]))
	require.False(t, e.Vote(spec, keys[0]), "double vote")
	require.True(t, e.Winner().IsNone())

	require.True(t, e.Vote(other, keys[1]))
	require.True(t, e.Winner().IsNone())

	require.True(t, e.Vote(spec, keys[1]))
	require.True(t, e.Winner().IsSome())
	e.Winner().WhenSome(func(w CallSpec) {
		require.True(t, w.Equal(spec))
	})

	// A second spec reaching quorum does not replace the pending winner.
	require.True(t, e.Vote(other, keys[2]))
	e.Winner().WhenSome(func(w CallSpec) {
		require.True(t, w.Equal(spec))
	})

	require.Equal(t, []Voter{keys[0], keys[1]}, e.Voters(spec))
}

func TestElectionRejectsOutsider(t *testing.T) {
	t.Parallel()

	e := NewElection(NewAuthorizer(testKeys(3), RuleOne), nil)
	outsider := NewVoter(testKeys(4)[3])
	require.False(t, e.Vote(NewCallSpec("create"), outsider))
	require.Empty(t, e.Ballots())
}

func TestElectionClear(t *testing.T) {
	t.Parallel()

	keys := voters(testKeys(3))
	e := NewElection(NewAuthorizer(testKeys(3), RuleMajority), nil)
	spec := NewCallSpec("add", []byte{1, 2, 3})
	other := NewCallSpec("rollback")

	e.Vote(spec, keys[0])
	e.Vote(other, keys[2])
	e.Vote(spec, keys[1])
	require.True(t, e.Winner().IsSome())

	e.ClearWinners()
	require.True(t, e.Winner().IsNone())
	require.Nil(t, e.Voters(spec))
	require.Equal(t, []Voter{keys[2]}, e.Voters(other))

	e.Clear()
	require.Empty(t, e.Ballots())
	require.True(t, e.Winner().IsNone())
}

func TestNewElectionRestoresWinner(t *testing.T) {
	t.Parallel()

	keys := voters(testKeys(3))
	auth := NewAuthorizer(testKeys(3), RuleMajority)
	spec := NewCallSpec("commit", make([]byte, 32))

	e := NewElection(auth, []Ballot{
		{Spec: NewCallSpec("create"), Voters: keys[:1]},
		{Spec: spec, Voters: keys[1:]},
	})
	require.True(t, e.Winner().IsSome())
	require.Len(t, e.Ballots(), 2)
}

func TestCallSpecIdentity(t *testing.T) {
	t.Parallel()

	a := NewCallSpec("add", []byte{1}, []byte{2, 3})
	b := NewCallSpec("add", []byte{1, 2}, []byte{3})
	c := NewCallSpec("add", []byte{1}, []byte{2, 3})

	require.False(t, a.Equal(b))
	require.NotEqual(t, a.Hash(), b.Hash())
	require.True(t, a.Equal(c))
	require.Equal(t, a.Hash(), c.Hash())
	require.Equal(t, "add(01,0203)", a.String())
}
