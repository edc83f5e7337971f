// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fedstore

import (
	"fmt"

	"github.com/btcsuite/btcbridge/activation"
	"github.com/btcsuite/btcbridge/federation"
	"github.com/btcsuite/btcbridge/netparams"
	"github.com/btcsuite/btcbridge/quorum"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Key names for the values stored in the federation namespace.
var (
	newFederationKey                = []byte("newFederation")
	oldFederationKey                = []byte("oldFederation")
	pendingFederationKey            = []byte("pendingFederation")
	newFederationFormatVersionKey   = []byte("newFederationFormatVersion")
	oldFederationFormatVersionKey   = []byte("oldFederationFormatVersion")
	pendingFederationFormatVerKey   = []byte("pendingFederationFormatVersion")
	newFederationUTXOsKey           = []byte("newFederationBtcUTXOs")
	newFederationUTXOsTestnetV2Key  = []byte("newFedBtcUTXOsForTestnet")
	newFederationUTXOsTestnetV3Key  = []byte("newFedBtcUTXOsForTestnetPostHop")
	oldFederationUTXOsKey           = []byte("oldFederationBtcUTXOs")
	federationElectionKey           = []byte("federationElection")
	nextFederationCreationHeightKey = []byte("nextFederationCreationBlockHeight")
	lastRetiredP2SHScriptKey        = []byte("lastRetiredFederationP2SHScript")
)

// NamespaceKey is the top level bucket the federation state lives in.
var NamespaceKey = []byte("fedstore")

// slot caches one stored value for the lifetime of a Provider.  A loaded
// slot holding None means the key is absent.
type slot[T any] struct {
	value  fn.Option[T]
	loaded bool
	dirty  bool
}

func (s *slot[T]) get(load func() (fn.Option[T], error)) (fn.Option[T], error) {
	if s.loaded {
		return s.value, nil
	}
	v, err := load()
	if err != nil {
		return fn.None[T](), err
	}
	s.value = v
	s.loaded = true
	return v, nil
}

func (s *slot[T]) set(v fn.Option[T]) {
	s.value = v
	s.loaded = true
	s.dirty = true
}

// optionOf returns None for a nil pointer and Some otherwise.
func optionOf[T any](v *T) fn.Option[*T] {
	if v == nil {
		return fn.None[*T]()
	}
	return fn.Some(v)
}

// Provider gives typed, cached access to the federation state stored in a
// single bucket.  A Provider belongs to one database transaction: values
// are read lazily on first access, every later read returns the cached
// value, and Save writes back only what was changed.  Providers are not safe
// for concurrent use.
type Provider struct {
	ns     walletdb.ReadWriteBucket
	params *netparams.Params
	forks  activation.ForBlock

	newFederation     slot[*federation.Federation]
	oldFederation     slot[*federation.Federation]
	pendingFederation slot[*federation.PendingFederation]
	newUTXOs          slot[[]UTXO]
	oldUTXOs          slot[[]UTXO]
	nextCreation      slot[int64]
	lastRetiredScript slot[[]byte]
	election          *quorum.Election
}

// New returns a provider over ns.  The forks decide which codecs and keys are
// used.
func New(ns walletdb.ReadWriteBucket, params *netparams.Params,
	forks activation.ForBlock) *Provider {

	return &Provider{ns: ns, params: params, forks: forks}
}

// Namespace returns the federation bucket of tx, creating it if needed.
func Namespace(tx walletdb.ReadWriteTx) (walletdb.ReadWriteBucket, error) {
	if ns := tx.ReadWriteBucket(NamespaceKey); ns != nil {
		return ns, nil
	}
	ns, err := tx.CreateTopLevelBucket(NamespaceKey)
	if err != nil {
		return nil, storeError(ErrDatabase, "failed to create "+
			"federation namespace", err)
	}
	return ns, nil
}

// Forks returns the activation view the provider was created with.
func (p *Provider) Forks() activation.ForBlock {
	return p.forks
}

// Params returns the network the provider decodes federations for.
func (p *Provider) Params() *netparams.Params {
	return p.params
}

func (p *Provider) readVersion(key []byte) (fn.Option[FormatVersion], error) {
	v := p.ns.Get(key)
	if v == nil {
		return fn.None[FormatVersion](), nil
	}
	n, err := deserializeUint32(v)
	if err != nil {
		return fn.None[FormatVersion](), err
	}
	return fn.Some(FormatVersion(n)), nil
}

func (p *Provider) loadFederation(key,
	versionKey []byte) (fn.Option[*federation.Federation], error) {

	none := fn.None[*federation.Federation]()

	v := p.ns.Get(key)
	if v == nil {
		return none, nil
	}
	version, err := p.readVersion(versionKey)
	if err != nil {
		return none, err
	}

	c := p.params.FederationConstants()
	var f *federation.Federation
	kind, known := version.UnwrapOr(FormatLegacy).kind()
	if known {
		f, err = deserializeMemberFederation(v, kind, c)
	} else {
		f, err = deserializeLegacyFederation(v, c)
	}
	if err != nil {
		return none, err
	}

	log.Tracef("Loaded %s (%v): %v", key, version.UnwrapOr(FormatLegacy),
		f)
	return fn.Some(f), nil
}

func (p *Provider) saveFederation(key, versionKey []byte,
	value fn.Option[*federation.Federation]) error {

	if value.IsNone() {
		if err := p.delete(key); err != nil {
			return err
		}
		return p.delete(versionKey)
	}
	f := value.UnwrapOr(nil)

	version, versioned := formatFor(f,
		p.forks.IsActive(activation.MultiKeyFederation))

	var (
		data []byte
		err  error
	)
	if versioned {
		data, err = serializeMemberFederation(f)
		if err != nil {
			return storeError(ErrSerialization, "failed to "+
				"serialize federation", err)
		}
		err = p.put(versionKey, serializeUint32(uint32(version)))
	} else {
		data = serializeLegacyFederation(f)
		err = p.delete(versionKey)
	}
	if err != nil {
		return err
	}
	return p.put(key, data)
}

func (p *Provider) put(key, value []byte) error {
	if err := p.ns.Put(key, value); err != nil {
		str := fmt.Sprintf("failed to store %s", key)
		return storeError(ErrDatabase, str, err)
	}
	return nil
}

func (p *Provider) delete(key []byte) error {
	if err := p.ns.Delete(key); err != nil {
		str := fmt.Sprintf("failed to delete %s", key)
		return storeError(ErrDatabase, str, err)
	}
	return nil
}

// NewFederation returns the most recently committed federation, if any.
func (p *Provider) NewFederation() (fn.Option[*federation.Federation], error) {
	return p.newFederation.get(func() (fn.Option[*federation.Federation],
		error) {

		return p.loadFederation(newFederationKey,
			newFederationFormatVersionKey)
	})
}

// SetNewFederation replaces the committed federation.  A nil federation
// removes it.
func (p *Provider) SetNewFederation(f *federation.Federation) {
	p.newFederation.set(optionOf(f))
}

// OldFederation returns the federation replaced by the last commit, if any.
func (p *Provider) OldFederation() (fn.Option[*federation.Federation], error) {
	return p.oldFederation.get(func() (fn.Option[*federation.Federation],
		error) {

		return p.loadFederation(oldFederationKey,
			oldFederationFormatVersionKey)
	})
}

// SetOldFederation replaces the previous federation.  A nil federation
// removes it.
func (p *Provider) SetOldFederation(f *federation.Federation) {
	p.oldFederation.set(optionOf(f))
}

// PendingFederation returns the federation proposal, if any.
func (p *Provider) PendingFederation() (
	fn.Option[*federation.PendingFederation], error) {

	return p.pendingFederation.get(func() (
		fn.Option[*federation.PendingFederation], error) {

		none := fn.None[*federation.PendingFederation]()
		v := p.ns.Get(pendingFederationKey)
		if v == nil {
			return none, nil
		}
		version, err := p.readVersion(pendingFederationFormatVerKey)
		if err != nil {
			return none, err
		}
		pending, err := deserializePendingFederation(v,
			version.IsSome())
		if err != nil {
			return none, err
		}
		return fn.Some(pending), nil
	})
}

// SetPendingFederation replaces the federation proposal.  A nil proposal
// removes it.
func (p *Provider) SetPendingFederation(pending *federation.PendingFederation) {
	p.pendingFederation.set(optionOf(pending))
}

func (p *Provider) savePendingFederation() error {
	pending := p.pendingFederation.value.UnwrapOr(nil)
	if pending == nil {
		if err := p.delete(pendingFederationKey); err != nil {
			return err
		}
		return p.delete(pendingFederationFormatVerKey)
	}

	multiKey := p.forks.IsActive(activation.MultiKeyFederation)
	if multiKey {
		err := p.put(pendingFederationFormatVerKey,
			serializeUint32(uint32(FormatStandardMultiKey)))
		if err != nil {
			return err
		}
	} else if err := p.delete(pendingFederationFormatVerKey); err != nil {
		return err
	}
	return p.put(pendingFederationKey,
		serializePendingFederation(pending, multiKey))
}

// newUTXOsKey returns the key of the committed federation's UTXO list.  The
// test network moved the list twice.
func (p *Provider) newUTXOsKey() []byte {
	if p.params.Net != wire.TestNet3 {
		return newFederationUTXOsKey
	}
	switch {
	case p.forks.IsActive(activation.TestnetUtxoKeyV3):
		return newFederationUTXOsTestnetV3Key
	case p.forks.IsActive(activation.TestnetUtxoKeyV2):
		return newFederationUTXOsTestnetV2Key
	default:
		return newFederationUTXOsKey
	}
}

func (p *Provider) loadUTXOs(key []byte) (fn.Option[[]UTXO], error) {
	v := p.ns.Get(key)
	if v == nil {
		return fn.Some([]UTXO{}), nil
	}
	utxos, err := deserializeUTXOs(v)
	if err != nil {
		return fn.None[[]UTXO](), err
	}
	return fn.Some(utxos), nil
}

func copyUTXOs(utxos []UTXO) []UTXO {
	c := make([]UTXO, len(utxos))
	copy(c, utxos)
	return c
}

// NewFederationUTXOs returns the outputs owned by the active federation.
// An absent list is empty.
func (p *Provider) NewFederationUTXOs() ([]UTXO, error) {
	utxos, err := p.newUTXOs.get(func() (fn.Option[[]UTXO], error) {
		return p.loadUTXOs(p.newUTXOsKey())
	})
	if err != nil {
		return nil, err
	}
	return copyUTXOs(utxos.UnwrapOr(nil)), nil
}

// SetNewFederationUTXOs replaces the outputs owned by the active federation.
func (p *Provider) SetNewFederationUTXOs(utxos []UTXO) {
	p.newUTXOs.set(fn.Some(copyUTXOs(utxos)))
}

// OldFederationUTXOs returns the outputs still owned by the retiring
// federation.  An absent list is empty.
func (p *Provider) OldFederationUTXOs() ([]UTXO, error) {
	utxos, err := p.oldUTXOs.get(func() (fn.Option[[]UTXO], error) {
		return p.loadUTXOs(oldFederationUTXOsKey)
	})
	if err != nil {
		return nil, err
	}
	return copyUTXOs(utxos.UnwrapOr(nil)), nil
}

// SetOldFederationUTXOs replaces the outputs owned by the retiring
// federation.
func (p *Provider) SetOldFederationUTXOs(utxos []UTXO) {
	p.oldUTXOs.set(fn.Some(copyUTXOs(utxos)))
}

// Election returns the federation change election.  It is created empty when
// nothing was stored.  The returned election is saved back on Save, so votes
// recorded on it persist.
func (p *Provider) Election(authorizer *quorum.Authorizer) (*quorum.Election,
	error) {

	if p.election != nil {
		return p.election, nil
	}

	var ballots []quorum.Ballot
	if v := p.ns.Get(federationElectionKey); v != nil {
		var err error
		ballots, err = deserializeElection(v)
		if err != nil {
			return nil, err
		}
	}
	p.election = quorum.NewElection(authorizer, ballots)
	return p.election, nil
}

// NextFederationCreationHeight returns the creation height of the last
// committed federation, recorded once retired script tracking is active.
func (p *Provider) NextFederationCreationHeight() (fn.Option[int64], error) {
	return p.nextCreation.get(func() (fn.Option[int64], error) {
		v := p.ns.Get(nextFederationCreationHeightKey)
		if v == nil {
			return fn.None[int64](), nil
		}
		h, err := deserializeInt64(v)
		if err != nil {
			return fn.None[int64](), err
		}
		return fn.Some(h), nil
	})
}

// SetNextFederationCreationHeight records the creation height of the last
// committed federation.
func (p *Provider) SetNextFederationCreationHeight(height int64) {
	p.nextCreation.set(fn.Some(height))
}

// LastRetiredFederationP2SHScript returns the output script of the last
// federation retired by a commit.
func (p *Provider) LastRetiredFederationP2SHScript() (fn.Option[[]byte],
	error) {

	return p.lastRetiredScript.get(func() (fn.Option[[]byte], error) {
		v := p.ns.Get(lastRetiredP2SHScriptKey)
		if v == nil {
			return fn.None[[]byte](), nil
		}
		return fn.Some(append([]byte(nil), v...)), nil
	})
}

// SetLastRetiredFederationP2SHScript records the output script of the
// federation retired by a commit.
func (p *Provider) SetLastRetiredFederationP2SHScript(script []byte) {
	p.lastRetiredScript.set(fn.Some(append([]byte(nil), script...)))
}

// Save writes every changed value to the bucket.  Values that were only
// read are not written.  The election is written whenever it was accessed,
// since callers mutate it in place.
func (p *Provider) Save() error {
	if p.newFederation.dirty {
		err := p.saveFederation(newFederationKey,
			newFederationFormatVersionKey, p.newFederation.value)
		if err != nil {
			return err
		}
	}
	if p.oldFederation.dirty {
		err := p.saveFederation(oldFederationKey,
			oldFederationFormatVersionKey, p.oldFederation.value)
		if err != nil {
			return err
		}
	}
	if p.pendingFederation.dirty {
		if err := p.savePendingFederation(); err != nil {
			return err
		}
	}
	if p.newUTXOs.dirty {
		err := p.put(p.newUTXOsKey(),
			serializeUTXOs(p.newUTXOs.value.UnwrapOr(nil)))
		if err != nil {
			return err
		}
	}
	if p.oldUTXOs.dirty {
		err := p.put(oldFederationUTXOsKey,
			serializeUTXOs(p.oldUTXOs.value.UnwrapOr(nil)))
		if err != nil {
			return err
		}
	}
	if p.election != nil {
		err := p.put(federationElectionKey,
			serializeElection(p.election.Ballots()))
		if err != nil {
			return err
		}
	}

	// The transition bookkeeping is only written once retired script
	// tracking is active.
	if p.forks.IsActive(activation.RetiredScriptTracking) {
		if p.nextCreation.dirty && p.nextCreation.value.IsSome() {
			h := p.nextCreation.value.UnwrapOr(0)
			err := p.put(nextFederationCreationHeightKey,
				serializeInt64(h))
			if err != nil {
				return err
			}
		}
		if p.lastRetiredScript.dirty &&
			p.lastRetiredScript.value.IsSome() {

			script := p.lastRetiredScript.value.UnwrapOr(nil)
			err := p.put(lastRetiredP2SHScriptKey, script)
			if err != nil {
				return err
			}
		}
	}

	p.newFederation.dirty = false
	p.oldFederation.dirty = false
	p.pendingFederation.dirty = false
	p.newUTXOs.dirty = false
	p.oldUTXOs.dirty = false
	p.nextCreation.dirty = false
	p.lastRetiredScript.dirty = false

	log.Debugf("Saved federation state at height %d", p.forks.Height())
	return nil
}
