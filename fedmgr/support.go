// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fedmgr

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcbridge/federation"
	"github.com/btcsuite/btcbridge/fedstore"
	"github.com/btcsuite/btcbridge/netparams"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ActiveReference names the stored slot the active federation comes from.
type ActiveReference uint8

const (
	ActiveGenesis ActiveReference = iota
	ActiveNew
	ActiveOld
)

// String returns the reference as a human-readable name.
func (r ActiveReference) String() string {
	switch r {
	case ActiveGenesis:
		return "genesis"
	case ActiveNew:
		return "new"
	case ActiveOld:
		return "old"
	default:
		return fmt.Sprintf("Unknown ActiveReference (%d)", int(r))
	}
}

// RetiringReference names the stored slot the retiring federation comes
// from.
type RetiringReference uint8

const (
	RetiringNone RetiringReference = iota
	RetiringOld
)

// String returns the reference as a human-readable name.
func (r RetiringReference) String() string {
	switch r {
	case RetiringNone:
		return "none"
	case RetiringOld:
		return "old"
	default:
		return fmt.Sprintf("Unknown RetiringReference (%d)", int(r))
	}
}

// Block identifies the sidechain block a call executes in.
type Block struct {
	Height int64
	Time   time.Time
}

// Support resolves which federation is active and which is retiring at the
// execution block.  Nothing is cached beyond what the store caches; every
// answer is derived from the stored slots on each call.
type Support struct {
	store  *fedstore.Provider
	params *netparams.Params
	block  Block
}

// NewSupport returns a resolver over store executing at block.
func NewSupport(store *fedstore.Provider, params *netparams.Params,
	block Block) *Support {

	return &Support{store: store, params: params, block: block}
}

// Store returns the provider the resolver reads from.
func (s *Support) Store() *fedstore.Provider {
	return s.store
}

// Block returns the execution block.
func (s *Support) Block() Block {
	return s.block
}

// isActive reports whether f is old enough to take custody.
func (s *Support) isActive(f *federation.Federation) bool {
	age := s.block.Height - f.CreationHeight()
	return age >= s.params.ActivationAge(s.store.Forks())
}

// slots returns the new and old federations, or nil for absent slots.
func (s *Support) slots() (*federation.Federation, *federation.Federation,
	error) {

	newFed, err := s.store.NewFederation()
	if err != nil {
		return nil, nil, err
	}
	oldFed, err := s.store.OldFederation()
	if err != nil {
		return nil, nil, err
	}
	return newFed.UnwrapOr(nil), oldFed.UnwrapOr(nil), nil
}

// References returns the slots the active and retiring federations are
// read from.
func (s *Support) References() (ActiveReference, RetiringReference, error) {
	newFed, oldFed, err := s.slots()
	if err != nil {
		return ActiveGenesis, RetiringNone, err
	}

	switch {
	case newFed == nil:
		return ActiveGenesis, RetiringNone, nil
	case oldFed == nil:
		return ActiveNew, RetiringNone, nil
	case s.isActive(newFed):
		return ActiveNew, RetiringOld, nil
	default:
		return ActiveOld, RetiringNone, nil
	}
}

// AwaitingActivation reports whether a committed federation exists that is
// not yet old enough to replace the previous one.
func (s *Support) AwaitingActivation() (bool, error) {
	newFed, oldFed, err := s.slots()
	if err != nil {
		return false, err
	}
	return newFed != nil && oldFed != nil && !s.isActive(newFed), nil
}

// ActiveFederation returns the federation currently holding custody.
func (s *Support) ActiveFederation() (*federation.Federation, error) {
	active, _, err := s.References()
	if err != nil {
		return nil, err
	}

	switch active {
	case ActiveNew:
		f, err := s.store.NewFederation()
		return f.UnwrapOr(nil), err
	case ActiveOld:
		f, err := s.store.OldFederation()
		return f.UnwrapOr(nil), err
	default:
		return s.params.GenesisFederation(), nil
	}
}

// RetiringFederation returns the federation handing over custody, if any.
func (s *Support) RetiringFederation() (fn.Option[*federation.Federation],
	error) {

	_, retiring, err := s.References()
	if err != nil || retiring == RetiringNone {
		return fn.None[*federation.Federation](), err
	}
	return s.store.OldFederation()
}

// ActiveFederationAddress returns the P2SH address funds are pegged into.
func (s *Support) ActiveFederationAddress() (*btcutil.AddressScriptHash,
	error) {

	f, err := s.ActiveFederation()
	if err != nil {
		return nil, err
	}
	return f.Address(), nil
}

// RetiringFederationAddress returns the P2SH address of the retiring
// federation, if any.
func (s *Support) RetiringFederationAddress() (
	fn.Option[*btcutil.AddressScriptHash], error) {

	retiring, err := s.RetiringFederation()
	if err != nil {
		return fn.None[*btcutil.AddressScriptHash](), err
	}
	return fn.MapOption(func(f *federation.Federation) *btcutil.AddressScriptHash {
		return f.Address()
	})(retiring), nil
}

// IsFederationAddress reports whether addr belongs to the active or the
// retiring federation.
func (s *Support) IsFederationAddress(addr btcutil.Address) (bool, error) {
	active, err := s.ActiveFederation()
	if err != nil {
		return false, err
	}
	if addr.EncodeAddress() == active.Address().EncodeAddress() {
		return true, nil
	}

	retiring, err := s.RetiringFederation()
	if err != nil {
		return false, err
	}
	f := retiring.UnwrapOr(nil)
	return f != nil && addr.EncodeAddress() == f.Address().EncodeAddress(),
		nil
}

// ActiveFederatorPublicKey returns the key with the given role of the
// member at index of the active federation.
func (s *Support) ActiveFederatorPublicKey(index int,
	role federation.KeyRole) (*btcec.PublicKey, error) {

	f, err := s.ActiveFederation()
	if err != nil {
		return nil, err
	}
	return memberKey(f.Members(), index, role)
}

// RetiringFederatorPublicKey is ActiveFederatorPublicKey for the retiring
// federation.  It fails with ErrNoRetiringFederation when none is retiring.
func (s *Support) RetiringFederatorPublicKey(index int,
	role federation.KeyRole) (*btcec.PublicKey, error) {

	retiring, err := s.RetiringFederation()
	if err != nil {
		return nil, err
	}
	f := retiring.UnwrapOr(nil)
	if f == nil {
		return nil, managerError(ErrNoRetiringFederation,
			"no federation is retiring", nil)
	}
	return memberKey(f.Members(), index, role)
}

// PendingFederation returns the federation proposal, if any.
func (s *Support) PendingFederation() (fn.Option[*federation.PendingFederation],
	error) {

	return s.store.PendingFederation()
}

// PendingFederationHash returns the hash a commit vote must carry.
func (s *Support) PendingFederationHash() (fn.Option[chainhash.Hash], error) {
	pending, err := s.store.PendingFederation()
	if err != nil {
		return fn.None[chainhash.Hash](), err
	}
	return fn.MapOption(func(p *federation.PendingFederation) chainhash.Hash {
		return p.Hash()
	})(pending), nil
}

// PendingFederatorPublicKey returns the key with the given role of the
// pending member at index.
func (s *Support) PendingFederatorPublicKey(index int,
	role federation.KeyRole) (*btcec.PublicKey, error) {

	pending, err := s.store.PendingFederation()
	if err != nil {
		return nil, err
	}
	p := pending.UnwrapOr(nil)
	if p == nil {
		return nil, managerError(ErrIllegalArgument,
			"no pending federation", nil)
	}
	return memberKey(p.Members(), index, role)
}

func memberKey(members []federation.Member, index int,
	role federation.KeyRole) (*btcec.PublicKey, error) {

	if index < 0 || index >= len(members) {
		str := fmt.Sprintf("member index %d out of range [0, %d)",
			index, len(members))
		return nil, managerError(ErrIllegalArgument, str, nil)
	}
	return members[index].PublicKey(role), nil
}
