// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package federation

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// KeyRole selects one of the three keys a member holds.
type KeyRole uint8

const (
	// BtcKey signs bitcoin transactions spending federation funds.
	BtcKey KeyRole = iota

	// SidechainKey identifies the member on the sidechain.
	SidechainKey

	// MultisigKey is used for sidechain multisig operations.
	MultisigKey
)

// String returns the role as a human-readable name.
func (r KeyRole) String() string {
	switch r {
	case BtcKey:
		return "btc"
	case SidechainKey:
		return "sidechain"
	case MultisigKey:
		return "multisig"
	default:
		return fmt.Sprintf("Unknown KeyRole (%d)", int(r))
	}
}

// Roles lists every key role in serialization order.
var Roles = [...]KeyRole{BtcKey, SidechainKey, MultisigKey}

// memberKeySize is the size of each serialized member key.
const memberKeySize = btcec.PubKeyBytesLenCompressed

// Member is a federator: the three public keys it participates with.
type Member struct {
	keys [3]*btcec.PublicKey
}

// NewMember returns a member holding the given keys.
func NewMember(btcKey, sidechainKey, multisigKey *btcec.PublicKey) Member {
	return Member{keys: [3]*btcec.PublicKey{btcKey, sidechainKey, multisigKey}}
}

// NewSingleKeyMember returns a member that uses key for every role, as
// members did before distinct keys were introduced.
func NewSingleKeyMember(key *btcec.PublicKey) Member {
	return NewMember(key, key, key)
}

// PublicKey returns the member's key for the role.
func (m Member) PublicKey(role KeyRole) *btcec.PublicKey {
	return m.keys[role]
}

// BtcPublicKey returns the member's bitcoin key.
func (m Member) BtcPublicKey() *btcec.PublicKey {
	return m.keys[BtcKey]
}

// SidechainPublicKey returns the member's sidechain key.
func (m Member) SidechainPublicKey() *btcec.PublicKey {
	return m.keys[SidechainKey]
}

// MultisigPublicKey returns the member's multisig key.
func (m Member) MultisigPublicKey() *btcec.PublicKey {
	return m.keys[MultisigKey]
}

// Equal reports whether both members hold the same keys in the same roles.
func (m Member) Equal(other Member) bool {
	for _, role := range Roles {
		if !m.keys[role].IsEqual(other.keys[role]) {
			return false
		}
	}
	return true
}

// IsSingleKey reports whether the member uses one key for every role.
func (m Member) IsSingleKey() bool {
	return m.keys[BtcKey].IsEqual(m.keys[SidechainKey]) &&
		m.keys[BtcKey].IsEqual(m.keys[MultisigKey])
}

// HasKey reports whether any of the member's keys equals key.
func (m Member) HasKey(key *btcec.PublicKey) bool {
	for _, k := range m.keys {
		if k.IsEqual(key) {
			return true
		}
	}
	return false
}

// SharesKeyWith reports whether the members have the same key in any role.
func (m Member) SharesKeyWith(other Member) bool {
	for _, role := range Roles {
		if m.keys[role].IsEqual(other.keys[role]) {
			return true
		}
	}
	return false
}

// String returns the member's keys in hex.
func (m Member) String() string {
	return fmt.Sprintf("btc=%x sidechain=%x multisig=%x",
		m.keys[BtcKey].SerializeCompressed(),
		m.keys[SidechainKey].SerializeCompressed(),
		m.keys[MultisigKey].SerializeCompressed())
}

// compareMembers orders members by bitcoin key, then sidechain key, then
// multisig key, comparing compressed serializations.
func compareMembers(a, b Member) int {
	for _, role := range Roles {
		c := bytes.Compare(a.keys[role].SerializeCompressed(),
			b.keys[role].SerializeCompressed())
		if c != 0 {
			return c
		}
	}
	return 0
}

// sortMembers returns a sorted copy of members.
func sortMembers(members []Member) []Member {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareMembers(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// checkDistinct returns an error if two members share a key.
func checkDistinct(members []Member) error {
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			if members[i].SharesKeyWith(members[j]) {
				str := fmt.Sprintf("members %d and %d share a key",
					i, j)
				return fedError(ErrDuplicateMember, str, nil)
			}
		}
	}
	return nil
}

// ParsePublicKey parses a serialized secp256k1 public key.
func ParsePublicKey(b []byte) (*btcec.PublicKey, error) {
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		str := fmt.Sprintf("invalid public key %x", b)
		return nil, fedError(ErrInvalidKey, str, err)
	}
	return key, nil
}

// WriteMembers serializes members with all three keys each.
//
// The format is:
//
//	<count varint><btc key 33><sidechain key 33><multisig key 33>...
func WriteMembers(w io.Writer, members []Member) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(members))); err != nil {
		return err
	}
	for _, m := range members {
		for _, role := range Roles {
			_, err := w.Write(m.keys[role].SerializeCompressed())
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadMembers deserializes members written by WriteMembers.
func ReadMembers(r io.Reader) ([]Member, error) {
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, fedError(ErrSerialization, "unable to read "+
			"member count", err)
	}
	if count > maxSerializedMembers {
		str := fmt.Sprintf("member count %d exceeds %d", count,
			maxSerializedMembers)
		return nil, fedError(ErrSerialization, str, nil)
	}

	members := make([]Member, 0, count)
	var buf [memberKeySize]byte
	for i := uint64(0); i < count; i++ {
		var keys [3]*btcec.PublicKey
		for _, role := range Roles {
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				str := fmt.Sprintf("short read of member %d "+
					"%v key", i, role)
				return nil, fedError(ErrSerialization, str, err)
			}
			keys[role], err = ParsePublicKey(buf[:])
			if err != nil {
				return nil, err
			}
		}
		members = append(members, Member{keys: keys})
	}
	return members, nil
}

// SerializeMembers returns the WriteMembers encoding of members.
func SerializeMembers(members []Member) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = WriteMembers(&buf, members)
	return buf.Bytes()
}

// maxSerializedMembers bounds the member count accepted when decoding.
const maxSerializedMembers = 1000
