// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fedstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcbridge/activation"
	"github.com/btcsuite/btcbridge/federation"
	"github.com/btcsuite/btcbridge/netparams"
	"github.com/btcsuite/btcbridge/quorum"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	regtest = netparams.RegressionNetParams

	allForks = activation.AllActive().ForBlock(100)
	noForks  = activation.NewConfig(nil).ForBlock(100)
)

func testKey(seed string) *btcec.PublicKey {
	_, pub := btcec.PrivKeyFromBytes(chainhash.HashB([]byte(seed)))
	return pub
}

func testMembers(n int, prefix string) []federation.Member {
	members := make([]federation.Member, n)
	for i := range members {
		members[i] = federation.NewMember(
			testKey(fmt.Sprintf("%sbtc%d", prefix, i)),
			testKey(fmt.Sprintf("%ssidechain%d", prefix, i)),
			testKey(fmt.Sprintf("%smultisig%d", prefix, i)),
		)
	}
	return members
}

func singleKeyMembers(n int) []federation.Member {
	members := make([]federation.Member, n)
	for i := range members {
		members[i] = federation.NewSingleKeyMember(
			testKey(fmt.Sprintf("single%d", i)))
	}
	return members
}

func testFederation(t *testing.T, kind federation.Kind,
	members []federation.Member) *federation.Federation {

	t.Helper()

	f, err := federation.New(kind, members, time.UnixMilli(1700000000123),
		42, regtest.FederationConstants())
	require.NoError(t, err)
	return f
}

func setupDB(t *testing.T) walletdb.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "fed.db")
	db, err := walletdb.Create("bdb", dbPath, true, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func update(db walletdb.DB, params *netparams.Params, forks activation.ForBlock,
	f func(p *Provider) error) error {

	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := Namespace(tx)
		if err != nil {
			return err
		}
		return f(New(ns, params, forks))
	})
}

func rawGet(t *testing.T, db walletdb.DB, key []byte) []byte {
	t.Helper()

	var v []byte
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(NamespaceKey)
		if ns == nil {
			return nil
		}
		if raw := ns.Get(key); raw != nil {
			v = append([]byte{}, raw...)
		}
		return nil
	})
	require.NoError(t, err)
	return v
}

func rawPut(t *testing.T, db walletdb.DB, key, value []byte) {
	t.Helper()

	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := Namespace(tx)
		if err != nil {
			return err
		}
		return ns.Put(key, value)
	})
	require.NoError(t, err)
}

// TestFederationRoundTrip stores each kind of federation and checks it reads
// back equal from a fresh provider with the expected format version.
func TestFederationRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    federation.Kind
		members []federation.Member
		forks   activation.ForBlock
		version []byte
	}{{
		name:    "legacy standard",
		kind:    federation.Standard,
		members: singleKeyMembers(3),
		forks:   noForks,
		version: nil,
	}, {
		name:    "multikey standard",
		kind:    federation.Standard,
		members: testMembers(3, ""),
		forks:   allForks,
		version: []byte{0, 0, 0, 3},
	}, {
		name:    "non-standard erp",
		kind:    federation.NonStandardErp,
		members: testMembers(4, ""),
		forks:   allForks,
		version: []byte{0, 0, 0, 1},
	}, {
		name:    "p2sh erp",
		kind:    federation.P2shErp,
		members: testMembers(5, ""),
		forks:   allForks,
		version: []byte{0, 0, 0, 2},
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			db := setupDB(t)
			f := testFederation(t, test.kind, test.members)

			err := update(db, regtest, test.forks, func(p *Provider) error {
				p.SetNewFederation(f)
				p.SetOldFederation(f)
				return p.Save()
			})
			require.NoError(t, err)

			require.Equal(t, test.version,
				rawGet(t, db, newFederationFormatVersionKey))
			require.Equal(t, test.version,
				rawGet(t, db, oldFederationFormatVersionKey))

			err = update(db, regtest, test.forks, func(p *Provider) error {
				getters := []func() (
					fn.Option[*federation.Federation], error){

					p.NewFederation, p.OldFederation,
				}
				for _, get := range getters {
					got, err := get()
					require.NoError(t, err)
					require.True(t, got.IsSome())
					loaded := got.UnwrapOr(nil)
					require.True(t, f.Equal(loaded))
					require.Equal(t, test.kind, loaded.Kind())
					require.Equal(t, f.RedeemScript(),
						loaded.RedeemScript())
				}
				return nil
			})
			require.NoError(t, err)
		})
	}
}

// TestUnknownFormatVersion checks an unknown version decodes with the legacy
// codec.
func TestUnknownFormatVersion(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	f := testFederation(t, federation.Standard, singleKeyMembers(3))
	rawPut(t, db, newFederationKey, serializeLegacyFederation(f))
	rawPut(t, db, newFederationFormatVersionKey, serializeUint32(77))

	err := update(db, regtest, allForks, func(p *Provider) error {
		got, err := p.NewFederation()
		require.NoError(t, err)
		require.True(t, f.Equal(got.UnwrapOr(nil)))
		return nil
	})
	require.NoError(t, err)
}

// TestClearFederation checks that storing nothing deletes both the value and
// its format version.
func TestClearFederation(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	f := testFederation(t, federation.P2shErp, testMembers(3, ""))

	err := update(db, regtest, allForks, func(p *Provider) error {
		p.SetNewFederation(f)
		return p.Save()
	})
	require.NoError(t, err)
	require.NotNil(t, rawGet(t, db, newFederationKey))

	err = update(db, regtest, allForks, func(p *Provider) error {
		p.SetNewFederation(nil)
		got, err := p.NewFederation()
		require.NoError(t, err)
		require.True(t, got.IsNone())
		return p.Save()
	})
	require.NoError(t, err)
	require.Nil(t, rawGet(t, db, newFederationKey))
	require.Nil(t, rawGet(t, db, newFederationFormatVersionKey))
}

// TestPendingFederationCodecs checks the pending federation keeps every key
// after the multi-key fork and only the bitcoin keys before it.
func TestPendingFederationCodecs(t *testing.T) {
	t.Parallel()

	members := testMembers(3, "")

	t.Run("multikey", func(t *testing.T) {
		t.Parallel()

		db := setupDB(t)
		err := update(db, regtest, allForks, func(p *Provider) error {
			p.SetPendingFederation(
				federation.NewPendingFederation(members))
			return p.Save()
		})
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0, 0, 3},
			rawGet(t, db, pendingFederationFormatVerKey))

		err = update(db, regtest, allForks, func(p *Provider) error {
			got, err := p.PendingFederation()
			require.NoError(t, err)
			pending := got.UnwrapOr(nil)
			require.NotNil(t, pending)
			require.Equal(t, len(members), pending.Size())
			for i, m := range pending.Members() {
				require.True(t, m.Equal(members[i]))
			}
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("legacy", func(t *testing.T) {
		t.Parallel()

		db := setupDB(t)
		err := update(db, regtest, noForks, func(p *Provider) error {
			p.SetPendingFederation(
				federation.NewPendingFederation(members))
			return p.Save()
		})
		require.NoError(t, err)
		require.Nil(t, rawGet(t, db, pendingFederationFormatVerKey))

		err = update(db, regtest, noForks, func(p *Provider) error {
			got, err := p.PendingFederation()
			require.NoError(t, err)
			pending := got.UnwrapOr(nil)
			require.NotNil(t, pending)
			require.Equal(t, 3, pending.Size())
			for i, m := range pending.Members() {
				btcKey := members[i].BtcPublicKey()
				require.True(t, m.BtcPublicKey().IsEqual(btcKey))
				require.True(t, m.SidechainPublicKey().IsEqual(btcKey))
			}
			return nil
		})
		require.NoError(t, err)
	})
}

func testUTXOs() []UTXO {
	return []UTXO{{
		OutPoint: wire.OutPoint{Hash: chainhash.HashH([]byte("tx0")), Index: 1},
		Value:    btcutil.Amount(150000),
		Height:   700,
		PkScript: []byte{0xa9, 0x14, 0x01, 0x87},
	}, {
		OutPoint: wire.OutPoint{Hash: chainhash.HashH([]byte("tx1")), Index: 0},
		Value:    btcutil.Amount(2 * btcutil.SatoshiPerBitcoin),
		Height:   701,
		PkScript: []byte{0x00, 0x14},
	}}
}

// TestUTXOKeys checks the committed federation's UTXO list key follows the
// test network's key forks and stays fixed elsewhere.
func TestUTXOKeys(t *testing.T) {
	t.Parallel()

	testnet := netparams.TestNet3Params
	v2 := testnet.Activations.Height(activation.TestnetUtxoKeyV2)
	v3 := testnet.Activations.Height(activation.TestnetUtxoKeyV3)

	tests := []struct {
		name   string
		params *netparams.Params
		height int64
		key    []byte
	}{
		{"regtest", regtest, 1_000_000_000, newFederationUTXOsKey},
		{"testnet before hop", testnet, v2 - 1, newFederationUTXOsKey},
		{"testnet v2", testnet, v2, newFederationUTXOsTestnetV2Key},
		{"testnet v3", testnet, v3, newFederationUTXOsTestnetV3Key},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			db := setupDB(t)
			forks := test.params.Activations.ForBlock(test.height)
			err := update(db, test.params, forks, func(p *Provider) error {
				p.SetNewFederationUTXOs(testUTXOs())
				return p.Save()
			})
			require.NoError(t, err)
			require.NotNil(t, rawGet(t, db, test.key))

			err = update(db, test.params, forks, func(p *Provider) error {
				utxos, err := p.NewFederationUTXOs()
				require.NoError(t, err)
				require.Equal(t, testUTXOs(), utxos)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

// TestAbsentUTXOsAreEmpty checks missing lists read as empty and returned
// slices do not alias the cache.
func TestAbsentUTXOsAreEmpty(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	err := update(db, regtest, allForks, func(p *Provider) error {
		utxos, err := p.OldFederationUTXOs()
		require.NoError(t, err)
		require.Empty(t, utxos)

		p.SetOldFederationUTXOs(testUTXOs())
		utxos, err = p.OldFederationUTXOs()
		require.NoError(t, err)
		utxos[0].Value = 1

		again, err := p.OldFederationUTXOs()
		require.NoError(t, err)
		require.Equal(t, testUTXOs(), again)
		return nil
	})
	require.NoError(t, err)
}

// TestElectionPersists checks votes cast through one provider are visible to
// the next.
func TestElectionPersists(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	auth := regtest.ChangeAuthorizer()
	spec := quorum.NewCallSpec("add", []byte{0x02, 0x01})
	voter := quorum.NewVoter(regtest.ChangeAuthorizerKeys[0])

	err := update(db, regtest, allForks, func(p *Provider) error {
		election, err := p.Election(auth)
		require.NoError(t, err)
		require.True(t, election.Vote(spec, voter))
		return p.Save()
	})
	require.NoError(t, err)

	err = update(db, regtest, allForks, func(p *Provider) error {
		election, err := p.Election(auth)
		require.NoError(t, err)
		require.Equal(t, []quorum.Voter{voter}, election.Voters(spec))
		require.True(t, election.Winner().IsNone())

		same, err := p.Election(auth)
		require.NoError(t, err)
		require.Same(t, election, same)
		return nil
	})
	require.NoError(t, err)
}

// TestTransitionBookkeeping checks the retired federation values are only
// written once retired script tracking is active.
func TestTransitionBookkeeping(t *testing.T) {
	t.Parallel()

	script := []byte{0xa9, 0x14, 0x05, 0x87}

	db := setupDB(t)
	err := update(db, regtest, noForks, func(p *Provider) error {
		p.SetNextFederationCreationHeight(90)
		p.SetLastRetiredFederationP2SHScript(script)
		return p.Save()
	})
	require.NoError(t, err)
	require.Nil(t, rawGet(t, db, nextFederationCreationHeightKey))
	require.Nil(t, rawGet(t, db, lastRetiredP2SHScriptKey))

	err = update(db, regtest, allForks, func(p *Provider) error {
		p.SetNextFederationCreationHeight(90)
		p.SetLastRetiredFederationP2SHScript(script)
		return p.Save()
	})
	require.NoError(t, err)

	err = update(db, regtest, allForks, func(p *Provider) error {
		h, err := p.NextFederationCreationHeight()
		require.NoError(t, err)
		require.Equal(t, int64(90), h.UnwrapOr(0))

		s, err := p.LastRetiredFederationP2SHScript()
		require.NoError(t, err)
		require.Equal(t, script, s.UnwrapOr(nil))
		return nil
	})
	require.NoError(t, err)
}

// TestCorruptData checks undecodable values surface as ErrSerialization.
func TestCorruptData(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	rawPut(t, db, newFederationKey, []byte{0x01, 0x02})
	rawPut(t, db, oldFederationKey, []byte{0xff})
	rawPut(t, db, oldFederationFormatVersionKey, serializeUint32(2))
	rawPut(t, db, oldFederationUTXOsKey, []byte{0x05, 0x00})
	rawPut(t, db, federationElectionKey, []byte{0x01})

	err := update(db, regtest, allForks, func(p *Provider) error {
		_, err := p.NewFederation()
		require.True(t, IsErrorCode(err, ErrSerialization), err)

		_, err = p.OldFederation()
		require.True(t, IsErrorCode(err, ErrSerialization), err)

		_, err = p.OldFederationUTXOs()
		require.True(t, IsErrorCode(err, ErrSerialization), err)

		_, err = p.Election(regtest.ChangeAuthorizer())
		require.True(t, IsErrorCode(err, ErrSerialization), err)
		return nil
	})
	require.NoError(t, err)
}

type mockBucket struct {
	walletdb.ReadWriteBucket
	mock.Mock
}

func (b *mockBucket) Put(key, value []byte) error {
	return b.Called(key, value).Error(0)
}

func (b *mockBucket) Delete(key []byte) error {
	return b.Called(key).Error(0)
}

// TestSaveWritesOnlyChanges checks values that were only read are not
// written back.
func TestSaveWritesOnlyChanges(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	f := testFederation(t, federation.P2shErp, testMembers(3, ""))
	err := update(db, regtest, allForks, func(p *Provider) error {
		p.SetNewFederation(f)
		p.SetNewFederationUTXOs(testUTXOs())
		return p.Save()
	})
	require.NoError(t, err)

	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := Namespace(tx)
		require.NoError(t, err)

		bucket := &mockBucket{ReadWriteBucket: ns}
		p := New(bucket, regtest, allForks)

		_, err = p.NewFederation()
		require.NoError(t, err)
		_, err = p.NewFederationUTXOs()
		require.NoError(t, err)
		_, err = p.PendingFederation()
		require.NoError(t, err)
		require.NoError(t, p.Save())

		bucket.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
		bucket.AssertNotCalled(t, "Delete", mock.Anything)
		return nil
	})
	require.NoError(t, err)
}

// TestSaveDatabaseError checks write failures surface as ErrDatabase.
func TestSaveDatabaseError(t *testing.T) {
	t.Parallel()

	db := setupDB(t)
	errDiskFull := errors.New("disk full")

	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := Namespace(tx)
		require.NoError(t, err)

		bucket := &mockBucket{ReadWriteBucket: ns}
		bucket.On("Put", mock.Anything, mock.Anything).Return(errDiskFull)

		p := New(bucket, regtest, allForks)
		p.SetOldFederationUTXOs(testUTXOs())

		err = p.Save()
		require.True(t, IsErrorCode(err, ErrDatabase), err)
		require.ErrorIs(t, err, errDiskFull)
		bucket.AssertExpectations(t)
		return nil
	})
	require.NoError(t, err)
}

func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	for c := ErrorCode(0); c < lastErr; c++ {
		require.NotContains(t, c.String(), "Unknown")
	}
	require.Contains(t, lastErr.String(), "Unknown")
}
