// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fedmgr

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcbridge/activation"
	"github.com/btcsuite/btcbridge/federation"
	"github.com/btcsuite/btcbridge/fedstore"
	"github.com/btcsuite/btcbridge/quorum"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
)

// Governance function names.
const (
	FnCreate   = "create"
	FnAdd      = "add"
	FnAddMulti = "add-multi"
	FnCommit   = "commit"
	FnRollback = "rollback"
)

// ChangeSupport drives federation changes: it checks votes against the
// change authorizer, tallies them in the stored election and performs the
// winning change.
type ChangeSupport struct {
	*Support
	authorizer *quorum.Authorizer
}

// NewChangeSupport returns a change driver over support.  Only keys of
// authorizer may vote.
func NewChangeSupport(support *Support,
	authorizer *quorum.Authorizer) *ChangeSupport {

	return &ChangeSupport{Support: support, authorizer: authorizer}
}

// change is a parsed governance call.  check reports the outcome the call
// would have without changing anything; execute performs it and is only
// called after check returned CodeSuccess.
type change interface {
	check(c *ChangeSupport) (Code, error)
	execute(c *ChangeSupport) error
}

// parseCall turns spec into a change.  Malformed calls fail with
// ErrIllegalArgument.
func (c *ChangeSupport) parseCall(spec quorum.CallSpec) (change, error) {
	wantArgs := func(n int) error {
		if len(spec.Args) != n {
			str := fmt.Sprintf("%s takes %d arguments, got %d",
				spec.Function, n, len(spec.Args))
			return managerError(ErrIllegalArgument, str, nil)
		}
		return nil
	}
	multiKey := c.store.Forks().IsActive(activation.MultiKeyFederation)

	switch spec.Function {
	case FnCreate:
		return createChange{}, wantArgs(0)

	case FnAdd:
		if multiKey {
			return nil, managerError(ErrIllegalArgument,
				"add is replaced by add-multi", nil)
		}
		if err := wantArgs(1); err != nil {
			return nil, err
		}
		key, err := parseKey(spec.Args[0])
		if err != nil {
			return nil, err
		}
		return addChange{federation.NewSingleKeyMember(key)}, nil

	case FnAddMulti:
		if !multiKey {
			return nil, managerError(ErrIllegalArgument,
				"add-multi is not active", nil)
		}
		if err := wantArgs(3); err != nil {
			return nil, err
		}
		var keys [3]*btcec.PublicKey
		for i, arg := range spec.Args {
			key, err := parseKey(arg)
			if err != nil {
				return nil, err
			}
			keys[i] = key
		}
		return addChange{federation.NewMember(keys[0], keys[1],
			keys[2])}, nil

	case FnCommit:
		if err := wantArgs(1); err != nil {
			return nil, err
		}
		hash, err := chainhash.NewHash(spec.Args[0])
		if err != nil {
			return nil, managerError(ErrIllegalArgument,
				"invalid proposal hash", err)
		}
		return commitChange{*hash}, nil

	case FnRollback:
		return rollbackChange{}, wantArgs(0)

	default:
		str := fmt.Sprintf("unknown function %q", spec.Function)
		return nil, managerError(ErrIllegalArgument, str, nil)
	}
}

func parseKey(b []byte) (*btcec.PublicKey, error) {
	key, err := federation.ParsePublicKey(b)
	if err != nil {
		return nil, managerError(ErrIllegalArgument,
			"invalid public key", err)
	}
	return key, nil
}

// Simulate returns the outcome spec would have without changing any state.
func (c *ChangeSupport) Simulate(spec quorum.CallSpec) (Code, error) {
	ch, err := c.parseCall(spec)
	if err != nil {
		return CodeGeneric, err
	}
	return ch.check(c)
}

// Apply performs spec if its checks pass and returns the outcome.
func (c *ChangeSupport) Apply(spec quorum.CallSpec) (Code, error) {
	ch, err := c.parseCall(spec)
	if err != nil {
		return CodeGeneric, err
	}
	return c.apply(ch)
}

func (c *ChangeSupport) apply(ch change) (Code, error) {
	code, err := ch.check(c)
	if err != nil || code != CodeSuccess {
		return code, err
	}
	if err := ch.execute(c); err != nil {
		return CodeGeneric, err
	}
	return CodeSuccess, nil
}

// isFatal reports whether err must abort the enclosing execution rather than
// be reported as CodeGeneric.
func isFatal(err error) bool {
	var storeErr fedstore.Error
	return IsErrorCode(err, ErrVerification) || errors.As(err, &storeErr)
}

// Vote casts signer's vote for spec.  Calls that are malformed, come from
// keys outside the authorizer or repeat an earlier vote return CodeGeneric.
// A call whose checks fail returns their code and records nothing.  When
// the vote completes a quorum the winning call is performed once and its
// outcome returned.  The winner is cleared whether or not it succeeds.
//
// Store and verification faults are returned as errors together with
// CodeGeneric; the caller must then discard the execution.
func (c *ChangeSupport) Vote(spec quorum.CallSpec,
	signer *btcec.PublicKey) (Code, error) {

	ch, err := c.parseCall(spec)
	if err != nil {
		log.Debugf("Rejecting vote %v: %v", spec, err)
		return CodeGeneric, nil
	}

	voter := quorum.NewVoter(signer)
	if !c.authorizer.IsMember(voter) {
		log.Debugf("Rejecting vote %v from unauthorized key %v", spec,
			voter)
		return CodeGeneric, nil
	}

	code, err := ch.check(c)
	if err != nil {
		return CodeGeneric, err
	}
	if code != CodeSuccess {
		log.Debugf("Vote %v from %v fails with %v", spec, voter, code)
		return code, nil
	}

	election, err := c.store.Election(c.authorizer)
	if err != nil {
		return CodeGeneric, err
	}
	if !election.Vote(spec, voter) {
		log.Debugf("Duplicate vote %v from %v", spec, voter)
		return CodeGeneric, nil
	}

	winner := election.Winner().UnwrapOr(quorum.CallSpec{})
	if election.Winner().IsNone() {
		log.Debugf("Recorded vote %v from %v", spec, voter)
		return CodeSuccess, nil
	}

	log.Infof("Federation change %v reached quorum", winner)
	result, err := c.applyWinner(winner)
	election.ClearWinners()
	if err != nil {
		if isFatal(err) {
			return CodeGeneric, err
		}
		log.Warnf("Federation change %v failed: %v", winner, err)
		return CodeGeneric, nil
	}
	return result, nil
}

func (c *ChangeSupport) applyWinner(winner quorum.CallSpec) (Code, error) {
	ch, err := c.parseCall(winner)
	if err != nil {
		return CodeGeneric, err
	}
	return c.apply(ch)
}

// Create starts an empty federation proposal.
func (c *ChangeSupport) Create() (Code, error) {
	return c.apply(createChange{})
}

// AddMember appends m to the federation proposal.
func (c *ChangeSupport) AddMember(m federation.Member) (Code, error) {
	return c.apply(addChange{m})
}

// Commit turns the federation proposal with the given hash into the new
// federation.
func (c *ChangeSupport) Commit(hash chainhash.Hash) (Code, error) {
	return c.apply(commitChange{hash})
}

// Rollback discards the federation proposal.
func (c *ChangeSupport) Rollback() (Code, error) {
	return c.apply(rollbackChange{})
}

func (c *ChangeSupport) pending() (*federation.PendingFederation, error) {
	p, err := c.store.PendingFederation()
	return p.UnwrapOr(nil), err
}

func (c *ChangeSupport) clearElection() error {
	election, err := c.store.Election(c.authorizer)
	if err != nil {
		return err
	}
	election.Clear()
	return nil
}

type createChange struct{}

func (createChange) check(c *ChangeSupport) (Code, error) {
	pending, err := c.pending()
	if err != nil {
		return CodeGeneric, err
	}
	if pending != nil {
		return CreatePendingExists, nil
	}

	awaiting, err := c.AwaitingActivation()
	if err != nil {
		return CodeGeneric, err
	}
	if awaiting {
		return CreateAwaitingActivation, nil
	}

	retiring, err := c.RetiringFederation()
	if err != nil {
		return CodeGeneric, err
	}
	if retiring.IsSome() {
		utxos, err := c.store.OldFederationUTXOs()
		if err != nil {
			return CodeGeneric, err
		}
		if len(utxos) > 0 {
			return CreateRetiringHoldsFunds, nil
		}
	}
	return CodeSuccess, nil
}

func (createChange) execute(c *ChangeSupport) error {
	c.store.SetPendingFederation(federation.NewPendingFederation(nil))
	log.Infof("Created pending federation at height %d", c.block.Height)
	return c.clearElection()
}

type addChange struct {
	member federation.Member
}

func (a addChange) check(c *ChangeSupport) (Code, error) {
	// Pending federations are stored with bitcoin keys only until
	// members may carry distinct keys.
	multiKey := c.store.Forks().IsActive(activation.MultiKeyFederation)
	if !multiKey && !a.member.IsSingleKey() {
		return CodeGeneric, managerError(ErrIllegalArgument,
			"members must use a single key", nil)
	}

	pending, err := c.pending()
	if err != nil {
		return CodeGeneric, err
	}
	if pending == nil {
		return AddNoPending, nil
	}
	if pending.ConflictsWith(a.member) {
		return AddDuplicateKey, nil
	}
	return CodeSuccess, nil
}

func (a addChange) execute(c *ChangeSupport) error {
	pending, err := c.pending()
	if err != nil {
		return err
	}
	c.store.SetPendingFederation(pending.AddMember(a.member))
	log.Infof("Added member %v to pending federation", a.member)
	return nil
}

type commitChange struct {
	hash chainhash.Hash
}

func (cc commitChange) check(c *ChangeSupport) (Code, error) {
	pending, err := c.pending()
	if err != nil {
		return CodeGeneric, err
	}
	switch {
	case pending == nil:
		return CommitNoPending, nil
	case !pending.IsComplete():
		return CommitIncomplete, nil
	case pending.Hash() != cc.hash:
		return CommitHashMismatch, nil
	}
	return CodeSuccess, nil
}

func (cc commitChange) execute(c *ChangeSupport) error {
	pending, err := c.pending()
	if err != nil {
		return err
	}
	active, err := c.ActiveFederation()
	if err != nil {
		return err
	}

	forks := c.store.Forks()
	next, err := pending.BuildFederation(c.block.Time, c.block.Height,
		c.params.FederationConstants(), forks)
	if err != nil {
		return managerError(ErrVerification, "unable to build "+
			"committed federation", err)
	}

	// The outgoing federation keeps custody of the funds it holds until
	// they are migrated.
	utxos, err := c.store.NewFederationUTXOs()
	if err != nil {
		return err
	}
	c.store.SetOldFederationUTXOs(utxos)
	c.store.SetNewFederationUTXOs(nil)

	c.store.SetOldFederation(active)
	c.store.SetNewFederation(next)
	c.store.SetPendingFederation(nil)

	if forks.IsActive(activation.RetiredScriptTracking) {
		c.store.SetNextFederationCreationHeight(c.block.Height)
		c.store.SetLastRetiredFederationP2SHScript(
			active.DefaultP2SHScript())
	}

	log.Infof("Committed federation %v at height %d, retiring %v",
		next.Address(), c.block.Height, active.Address())
	log.Tracef("Committed federation: %v", newLogClosure(func() string {
		return spew.Sdump(next.Members())
	}))

	return c.clearElection()
}

type rollbackChange struct{}

func (rollbackChange) check(c *ChangeSupport) (Code, error) {
	pending, err := c.pending()
	if err != nil {
		return CodeGeneric, err
	}
	if pending == nil {
		return RollbackNoPending, nil
	}
	return CodeSuccess, nil
}

func (rollbackChange) execute(c *ChangeSupport) error {
	c.store.SetPendingFederation(nil)
	log.Infof("Rolled back pending federation at height %d",
		c.block.Height)
	return c.clearElection()
}
