// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package federation

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcbridge/erpscript"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Kind tags the redeem script a federation locks its funds with.
type Kind uint8

const (
	// Standard federations use a bare m-of-n multisig redeem script.
	Standard Kind = iota

	// NonStandardErp federations add an emergency branch built with the
	// erpscript.NonStandardErp variant.
	NonStandardErp

	// P2shErp federations add an emergency branch built with the
	// erpscript.P2shErp variant.
	P2shErp
)

// String returns the kind as a human-readable name.
func (k Kind) String() string {
	switch k {
	case Standard:
		return "standard"
	case NonStandardErp:
		return "non-standard-erp"
	case P2shErp:
		return "p2sh-erp"
	default:
		return fmt.Sprintf("Unknown Kind (%d)", int(k))
	}
}

// Constants are the network-wide values a federation's scripts depend on.
type Constants struct {
	// Net is the bitcoin network the federation's address belongs to.
	Net *chaincfg.Params

	// ErpKeys is the emergency key set of ERP federations.
	ErpKeys []*btcec.PublicKey

	// ErpActivationDelay is the CSV value, in blocks, after which the
	// emergency branch becomes spendable.
	ErpActivationDelay int64
}

// Federation is an immutable, fully formed committee.  Its redeem script
// and address are derived on construction.
type Federation struct {
	kind           Kind
	members        []Member
	creationTime   time.Time
	creationHeight int64
	net            *chaincfg.Params

	erpKeys         []*btcec.PublicKey
	activationDelay int64

	defaultRedeemScript []byte
	redeemScript        []byte
	address             *btcutil.AddressScriptHash
}

// New returns a federation of the given kind.  Members are sorted by key
// and must not share keys.  The emergency fields of c are ignored for
// standard federations.
func New(kind Kind, members []Member, creationTime time.Time,
	creationHeight int64, c *Constants) (*Federation, error) {

	if len(members) == 0 {
		return nil, fedError(ErrNoMembers, "federation has no members",
			nil)
	}
	if err := checkDistinct(members); err != nil {
		return nil, err
	}

	f := &Federation{
		kind:           kind,
		members:        sortMembers(members),
		creationTime:   time.UnixMilli(creationTime.UnixMilli()),
		creationHeight: creationHeight,
		net:            c.Net,
	}

	var err error
	f.defaultRedeemScript, err = erpscript.MultiSigScript(
		f.BtcPublicKeys(), f.NumSignaturesRequired(),
	)
	if err != nil {
		return nil, fedError(ErrScript, "unable to build "+
			"federation redeem script", err)
	}

	switch kind {
	case Standard:
		err = erpscript.ValidateStandardScript(f.defaultRedeemScript)
		if err != nil {
			return nil, fedError(ErrScript, "invalid federation "+
				"redeem script", err)
		}
		f.redeemScript = f.defaultRedeemScript

	case NonStandardErp, P2shErp:
		f.erpKeys = append([]*btcec.PublicKey(nil), c.ErpKeys...)
		f.activationDelay = c.ErpActivationDelay

		variant := erpscript.NonStandardErp
		if kind == P2shErp {
			variant = erpscript.P2shErp
		}
		f.redeemScript, err = variant.Build(
			f.BtcPublicKeys(), f.NumSignaturesRequired(),
			f.erpKeys, len(f.erpKeys)/2+1, f.activationDelay,
		)
		if err != nil {
			return nil, fedError(ErrScript, "unable to build "+
				"federation erp redeem script", err)
		}

	default:
		return nil, fedError(ErrUnknownKind, kind.String(), nil)
	}

	f.address, err = btcutil.NewAddressScriptHash(f.redeemScript, f.net)
	if err != nil {
		return nil, fedError(ErrScript, "unable to derive "+
			"federation address", err)
	}
	return f, nil
}

// NewStandard returns a standard multisig federation.
func NewStandard(members []Member, creationTime time.Time,
	creationHeight int64, net *chaincfg.Params) (*Federation, error) {

	return New(Standard, members, creationTime, creationHeight,
		&Constants{Net: net})
}

// Kind returns the federation's kind.
func (f *Federation) Kind() Kind {
	return f.kind
}

// Members returns a copy of the sorted members.
func (f *Federation) Members() []Member {
	members := make([]Member, len(f.members))
	copy(members, f.members)
	return members
}

// Size returns the number of members.
func (f *Federation) Size() int {
	return len(f.members)
}

// BtcPublicKeys returns the members' bitcoin keys in member order.
func (f *Federation) BtcPublicKeys() []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, len(f.members))
	for i, m := range f.members {
		keys[i] = m.BtcPublicKey()
	}
	return keys
}

// NumSignaturesRequired returns how many members must sign to spend
// through the default branch: a strict majority.
func (f *Federation) NumSignaturesRequired() int {
	return len(f.members)/2 + 1
}

// CreationTime returns the time of the block the federation was committed
// in, at millisecond precision.
func (f *Federation) CreationTime() time.Time {
	return f.creationTime
}

// CreationHeight returns the height of the block the federation was
// committed in.
func (f *Federation) CreationHeight() int64 {
	return f.creationHeight
}

// Net returns the bitcoin network parameters of the federation.
func (f *Federation) Net() *chaincfg.Params {
	return f.net
}

// ErpKeys returns the emergency keys, empty for standard federations.
func (f *Federation) ErpKeys() []*btcec.PublicKey {
	return append([]*btcec.PublicKey(nil), f.erpKeys...)
}

// ActivationDelay returns the emergency branch CSV value, zero for standard
// federations.
func (f *Federation) ActivationDelay() int64 {
	return f.activationDelay
}

// RedeemScript returns the script committed to by the federation address.
func (f *Federation) RedeemScript() []byte {
	return f.redeemScript
}

// Address returns the P2SH address of the redeem script.
func (f *Federation) Address() *btcutil.AddressScriptHash {
	return f.address
}

// P2SHScript returns the output script paying to the federation address.
func (f *Federation) P2SHScript() []byte {
	// Paying to a script hash address cannot fail.
	script, _ := txscript.PayToAddrScript(f.address)
	return script
}

// DefaultRedeemScript returns the bare multisig script of the members,
// without any emergency branch.
func (f *Federation) DefaultRedeemScript() []byte {
	return f.defaultRedeemScript
}

// DefaultP2SHScript returns the output script paying to the hash of the
// default redeem script.  It identifies spends of legacy outputs after the
// federation is retired.
func (f *Federation) DefaultP2SHScript() []byte {
	addr, err := btcutil.NewAddressScriptHash(f.defaultRedeemScript, f.net)
	if err != nil {
		return nil
	}
	script, _ := txscript.PayToAddrScript(addr)
	return script
}

// HasBtcPublicKey reports whether a member has key as its bitcoin key.
func (f *Federation) HasBtcPublicKey(key *btcec.PublicKey) bool {
	return f.MemberIndex(BtcKey, key) >= 0
}

// MemberIndex returns the index of the member holding key in the given
// role, or -1.
func (f *Federation) MemberIndex(role KeyRole, key *btcec.PublicKey) int {
	for i, m := range f.members {
		if m.PublicKey(role).IsEqual(key) {
			return i
		}
	}
	return -1
}

// Equal reports whether both federations have the same kind, members,
// creation time and height, network and redeem script.
func (f *Federation) Equal(other *Federation) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.kind != other.kind || len(f.members) != len(other.members) ||
		!f.creationTime.Equal(other.creationTime) ||
		f.creationHeight != other.creationHeight ||
		f.net.Name != other.net.Name {

		return false
	}
	for i := range f.members {
		if !f.members[i].Equal(other.members[i]) {
			return false
		}
	}
	return bytes.Equal(f.redeemScript, other.redeemScript)
}

// String returns a short description of the federation.
func (f *Federation) String() string {
	return fmt.Sprintf("%v federation %v (%d-of-%d, height %d)", f.kind,
		f.address.EncodeAddress(), f.NumSignaturesRequired(),
		len(f.members), f.creationHeight)
}
