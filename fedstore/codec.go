// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fedstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/btcsuite/btcbridge/federation"
	"github.com/btcsuite/btcbridge/quorum"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
)

// Big endian is the preferred byte order for fixed width integers.
var byteOrder = binary.BigEndian

// FormatVersion selects the codec a stored federation is decoded with.
// Absence of a stored version means FormatLegacy.
type FormatVersion uint32

const (
	// FormatLegacy stores only the members' bitcoin keys.  Decoded
	// federations are standard and use single key members.
	FormatLegacy FormatVersion = 0

	// FormatNonStandardErp stores full members; decoded federations are
	// federation.NonStandardErp.
	FormatNonStandardErp FormatVersion = 1

	// FormatP2shErp stores full members; decoded federations are
	// federation.P2shErp.
	FormatP2shErp FormatVersion = 2

	// FormatStandardMultiKey stores full members; decoded federations
	// are federation.Standard.
	FormatStandardMultiKey FormatVersion = 3
)

// String returns the format version as a human-readable name.
func (v FormatVersion) String() string {
	switch v {
	case FormatLegacy:
		return "legacy"
	case FormatNonStandardErp:
		return "non-standard-erp"
	case FormatP2shErp:
		return "p2sh-erp"
	case FormatStandardMultiKey:
		return "standard-multikey"
	default:
		return fmt.Sprintf("unknown format %d", uint32(v))
	}
}

// kind returns the federation kind decoded under the version.  Unknown
// versions are treated as legacy.
func (v FormatVersion) kind() (federation.Kind, bool) {
	switch v {
	case FormatNonStandardErp:
		return federation.NonStandardErp, true
	case FormatP2shErp:
		return federation.P2shErp, true
	case FormatStandardMultiKey:
		return federation.Standard, true
	default:
		return federation.Standard, false
	}
}

// formatFor returns the version a federation is stored with, and whether
// the version key is written at all.
func formatFor(f *federation.Federation, multiKey bool) (FormatVersion, bool) {
	switch f.Kind() {
	case federation.NonStandardErp:
		return FormatNonStandardErp, true
	case federation.P2shErp:
		return FormatP2shErp, true
	default:
		if multiKey {
			return FormatStandardMultiKey, true
		}
		return FormatLegacy, false
	}
}

func serializeUint32(v uint32) []byte {
	b := make([]byte, 4)
	byteOrder.PutUint32(b, v)
	return b
}

func deserializeUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		str := fmt.Sprintf("uint32: short read (expected 4 bytes, "+
			"read %v)", len(b))
		return 0, storeError(ErrSerialization, str, nil)
	}
	return byteOrder.Uint32(b), nil
}

func serializeInt64(v int64) []byte {
	b := make([]byte, 8)
	byteOrder.PutUint64(b, uint64(v))
	return b
}

func deserializeInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		str := fmt.Sprintf("int64: short read (expected 8 bytes, "+
			"read %v)", len(b))
		return 0, storeError(ErrSerialization, str, nil)
	}
	return int64(byteOrder.Uint64(b)), nil
}

// The legacy federation serialization format is:
//
//	[0:8]   Creation time, unix milliseconds (8 bytes)
//	[8:16]  Creation height (8 bytes)
//	[16:]   Varint key count followed by compressed bitcoin keys (33 bytes each)

func writeBtcKeys(w io.Writer, keys []*btcec.PublicKey) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := w.Write(k.SerializeCompressed()); err != nil {
			return err
		}
	}
	return nil
}

func readBtcKeys(r io.Reader) ([]*btcec.PublicKey, error) {
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if count > maxSerializedKeys {
		return nil, fmt.Errorf("key count %d exceeds %d", count,
			maxSerializedKeys)
	}
	keys := make([]*btcec.PublicKey, 0, count)
	var buf [btcec.PubKeyBytesLenCompressed]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		k, err := btcec.ParsePubKey(buf[:])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

const maxSerializedKeys = 1000

func serializeLegacyFederation(f *federation.Federation) []byte {
	var buf bytes.Buffer
	buf.Write(serializeInt64(f.CreationTime().UnixMilli()))
	buf.Write(serializeInt64(f.CreationHeight()))
	// Writes to a bytes.Buffer cannot fail.
	_ = writeBtcKeys(&buf, f.BtcPublicKeys())
	return buf.Bytes()
}

func deserializeLegacyFederation(v []byte,
	c *federation.Constants) (*federation.Federation, error) {

	if len(v) < 16 {
		str := fmt.Sprintf("legacy federation: short read (expected "+
			"at least 16 bytes, read %v)", len(v))
		return nil, storeError(ErrSerialization, str, nil)
	}
	creationMillis := int64(byteOrder.Uint64(v[0:8]))
	height := int64(byteOrder.Uint64(v[8:16]))

	keys, err := readBtcKeys(bytes.NewReader(v[16:]))
	if err != nil {
		return nil, storeError(ErrSerialization, "legacy federation keys", err)
	}
	members := make([]federation.Member, len(keys))
	for i, k := range keys {
		members[i] = federation.NewSingleKeyMember(k)
	}

	f, err := federation.New(federation.Standard, members,
		time.UnixMilli(creationMillis), height, c)
	if err != nil {
		return nil, storeError(ErrSerialization, "legacy federation", err)
	}
	return f, nil
}

// The member federation serialization is a TLV stream with the following
// records:
//
//	0: creation time, unix milliseconds (uint64)
//	1: creation height (uint64)
//	2: members, as written by federation.WriteMembers
const (
	typeCreationTime   tlv.Type = 0
	typeCreationHeight tlv.Type = 1
	typeMembers        tlv.Type = 2
)

func serializeMemberFederation(f *federation.Federation) ([]byte, error) {
	creationMillis := uint64(f.CreationTime().UnixMilli())
	height := uint64(f.CreationHeight())
	members := federation.SerializeMembers(f.Members())

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeCreationTime, &creationMillis),
		tlv.MakePrimitiveRecord(typeCreationHeight, &height),
		tlv.MakePrimitiveRecord(typeMembers, &members),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeMemberFederation(v []byte, kind federation.Kind,
	c *federation.Constants) (*federation.Federation, error) {

	var (
		creationMillis uint64
		height         uint64
		rawMembers     []byte
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeCreationTime, &creationMillis),
		tlv.MakePrimitiveRecord(typeCreationHeight, &height),
		tlv.MakePrimitiveRecord(typeMembers, &rawMembers),
	)
	if err != nil {
		return nil, storeError(ErrSerialization, "member federation", err)
	}

	parsed, err := stream.DecodeWithParsedTypes(bytes.NewReader(v))
	if err != nil {
		return nil, storeError(ErrSerialization, "member federation", err)
	}
	for _, typ := range []tlv.Type{typeCreationTime, typeCreationHeight,
		typeMembers} {

		if _, ok := parsed[typ]; !ok {
			str := fmt.Sprintf("member federation is missing "+
				"record %d", typ)
			return nil, storeError(ErrSerialization, str, nil)
		}
	}

	members, err := federation.ReadMembers(bytes.NewReader(rawMembers))
	if err != nil {
		return nil, storeError(ErrSerialization, "member federation", err)
	}

	f, err := federation.New(kind, members,
		time.UnixMilli(int64(creationMillis)), int64(height), c)
	if err != nil {
		return nil, storeError(ErrSerialization, "member federation", err)
	}
	return f, nil
}

// serializePendingFederation returns the members of p, with all keys when
// multiKey is set and with only the bitcoin keys otherwise.
func serializePendingFederation(p *federation.PendingFederation,
	multiKey bool) []byte {

	if multiKey {
		return federation.SerializeMembers(p.Members())
	}

	members := p.Members()
	keys := make([]*btcec.PublicKey, len(members))
	for i, m := range members {
		keys[i] = m.BtcPublicKey()
	}
	var buf bytes.Buffer
	_ = writeBtcKeys(&buf, keys)
	return buf.Bytes()
}

func deserializePendingFederation(v []byte,
	multiKey bool) (*federation.PendingFederation, error) {

	if multiKey {
		members, err := federation.ReadMembers(bytes.NewReader(v))
		if err != nil {
			return nil, storeError(ErrSerialization, "pending federation", err)
		}
		return federation.NewPendingFederation(members), nil
	}

	keys, err := readBtcKeys(bytes.NewReader(v))
	if err != nil {
		return nil, storeError(ErrSerialization, "pending federation keys", err)
	}
	members := make([]federation.Member, len(keys))
	for i, k := range keys {
		members[i] = federation.NewSingleKeyMember(k)
	}
	return federation.NewPendingFederation(members), nil
}

// UTXO is an unspent bitcoin output owned by a federation.
type UTXO struct {
	OutPoint wire.OutPoint
	Value    btcutil.Amount
	Height   int32
	PkScript []byte
}

// The canonical UTXO list serialization format is a varint count followed
// by, for each output:
//
//	[0:32]  Transaction hash (32 bytes)
//	[32:36] Output index (4 bytes)
//	[36:44] Amount (8 bytes)
//	[44:48] Block height (4 bytes)
//	[48:]   Varbytes output script

func serializeUTXOs(utxos []UTXO) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, 0, uint64(len(utxos)))
	var fixed [48]byte
	for _, u := range utxos {
		copy(fixed[0:32], u.OutPoint.Hash[:])
		byteOrder.PutUint32(fixed[32:36], u.OutPoint.Index)
		byteOrder.PutUint64(fixed[36:44], uint64(u.Value))
		byteOrder.PutUint32(fixed[44:48], uint32(u.Height))
		buf.Write(fixed[:])
		_ = wire.WriteVarBytes(&buf, 0, u.PkScript)
	}
	return buf.Bytes()
}

func deserializeUTXOs(v []byte) ([]UTXO, error) {
	r := bytes.NewReader(v)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, storeError(ErrSerialization, "utxo count", err)
	}
	// Each output takes at least 49 bytes.
	if count > uint64(len(v))/49 {
		str := fmt.Sprintf("utxo count %d exceeds serialized size %d",
			count, len(v))
		return nil, storeError(ErrSerialization, str, nil)
	}

	utxos := make([]UTXO, 0, count)
	var fixed [48]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, fixed[:]); err != nil {
			return nil, storeError(ErrSerialization, "utxo", err)
		}
		var u UTXO
		copy(u.OutPoint.Hash[:], fixed[0:32])
		u.OutPoint.Index = byteOrder.Uint32(fixed[32:36])
		u.Value = btcutil.Amount(byteOrder.Uint64(fixed[36:44]))
		u.Height = int32(byteOrder.Uint32(fixed[44:48]))
		u.PkScript, err = wire.ReadVarBytes(r, 0,
			wire.MaxMessagePayload, "pkscript")
		if err != nil {
			return nil, storeError(ErrSerialization, "utxo script", err)
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

// The election serialization format is a varint ballot count followed by,
// for each ballot: the varstring function name, a varint argument count,
// varbytes arguments, a varint voter count and the 33 byte voter keys.

func serializeElection(ballots []quorum.Ballot) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, 0, uint64(len(ballots)))
	for _, b := range ballots {
		_ = wire.WriteVarString(&buf, 0, b.Spec.Function)
		_ = wire.WriteVarInt(&buf, 0, uint64(len(b.Spec.Args)))
		for _, arg := range b.Spec.Args {
			_ = wire.WriteVarBytes(&buf, 0, arg)
		}
		_ = wire.WriteVarInt(&buf, 0, uint64(len(b.Voters)))
		for _, v := range b.Voters {
			buf.Write(v[:])
		}
	}
	return buf.Bytes()
}

func deserializeElection(v []byte) ([]quorum.Ballot, error) {
	r := bytes.NewReader(v)
	readCount := func(what string) (uint64, error) {
		n, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return 0, storeError(ErrSerialization, "election "+what, err)
		}
		if n > uint64(r.Len()) {
			str := fmt.Sprintf("election %s %d exceeds remaining "+
				"%d bytes", what, n, r.Len())
			return 0, storeError(ErrSerialization, str, nil)
		}
		return n, nil
	}

	nBallots, err := readCount("ballot count")
	if err != nil {
		return nil, err
	}
	ballots := make([]quorum.Ballot, 0, nBallots)
	for i := uint64(0); i < nBallots; i++ {
		var b quorum.Ballot
		b.Spec.Function, err = wire.ReadVarString(r, 0)
		if err != nil {
			return nil, storeError(ErrSerialization, "election function", err)
		}
		nArgs, err := readCount("argument count")
		if err != nil {
			return nil, err
		}
		b.Spec.Args = make([][]byte, nArgs)
		for j := range b.Spec.Args {
			b.Spec.Args[j], err = wire.ReadVarBytes(r, 0,
				wire.MaxMessagePayload, "argument")
			if err != nil {
				return nil, storeError(ErrSerialization,
					"election argument", err)
			}
		}
		nVoters, err := readCount("voter count")
		if err != nil {
			return nil, err
		}
		b.Voters = make([]quorum.Voter, nVoters)
		for j := range b.Voters {
			if _, err := io.ReadFull(r, b.Voters[j][:]); err != nil {
				return nil, storeError(ErrSerialization,
					"election voter", err)
			}
		}
		ballots = append(ballots, b)
	}
	return ballots, nil
}
