// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fedmgr

import (
	"fmt"

	"github.com/btcsuite/btcbridge/federation"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

const (
	// maxSignaturePushSize is a push of a DER signature with its sighash
	// type byte.
	maxSignaturePushSize = 1 + 73

	// inputBaseSize is the outpoint and sequence of an input.
	inputBaseSize = 32 + 4 + 4

	// migrationTxVersion is the version of migration transactions.
	migrationTxVersion = 2
)

func pushDataSize(n int) int {
	switch {
	case n < txscript.OP_PUSHDATA1:
		return 1 + n
	case n <= 0xff:
		return 2 + n
	case n <= 0xffff:
		return 3 + n
	default:
		return 5 + n
	}
}

// spendInputSize returns the worst case serialize size of an input spending
// an output of f through its default branch.
func spendInputSize(f *federation.Federation) int {
	// OP_0 for the CHECKMULTISIG off-by-one, then the signatures and the
	// redeem script.
	sigScriptSize := 1 + f.NumSignaturesRequired()*maxSignaturePushSize +
		pushDataSize(len(f.RedeemScript()))

	// Emergency scripts need the branch selector.
	if f.Kind() != federation.Standard {
		sigScriptSize++
	}
	return inputBaseSize +
		wire.VarIntSerializeSize(uint64(sigScriptSize)) + sigScriptSize
}

// estimateMigrationSize returns the worst case serialize size of a
// transaction spending numInputs outputs of from to outputs.
func estimateMigrationSize(from *federation.Federation, numInputs int,
	outputs []*wire.TxOut) int {

	return 4 + // version
		wire.VarIntSerializeSize(uint64(numInputs)) +
		numInputs*spendInputSize(from) +
		wire.VarIntSerializeSize(uint64(len(outputs))) +
		txsizes.SumOutputSerializeSizes(outputs) +
		4 // lock time
}

// MigrationPacket returns an unsigned packet moving every output of the
// retiring federation to the active federation, paying relayFeePerKb.
// Inputs carry the retiring redeem script for the signers.
func (s *Support) MigrationPacket(relayFeePerKb btcutil.Amount) (*psbt.Packet,
	error) {

	retiring, err := s.RetiringFederation()
	if err != nil {
		return nil, err
	}
	from := retiring.UnwrapOr(nil)
	if from == nil {
		return nil, managerError(ErrNoRetiringFederation,
			"no federation is retiring", nil)
	}
	to, err := s.ActiveFederation()
	if err != nil {
		return nil, err
	}

	utxos, err := s.store.OldFederationUTXOs()
	if err != nil {
		return nil, err
	}
	if len(utxos) == 0 {
		return nil, managerError(ErrNoRetiringFederation,
			"retiring federation holds no funds", nil)
	}

	var (
		total     btcutil.Amount
		outpoints = make([]*wire.OutPoint, len(utxos))
		sequences = make([]uint32, len(utxos))
	)
	for i := range utxos {
		total += utxos[i].Value
		outpoints[i] = &utxos[i].OutPoint
		sequences[i] = wire.MaxTxInSequenceNum
	}

	output := wire.NewTxOut(0, to.P2SHScript())
	outputs := []*wire.TxOut{output}
	size := estimateMigrationSize(from, len(utxos), outputs)
	fee := txrules.FeeForSerializeSize(relayFeePerKb, size)

	value := total - fee
	if value <= 0 || txrules.IsDustAmount(value, len(output.PkScript),
		relayFeePerKb) {

		str := fmt.Sprintf("migrating %v with fee %v leaves dust",
			total, fee)
		return nil, managerError(ErrMigrationDust, str, nil)
	}
	output.Value = int64(value)

	packet, err := psbt.New(outpoints, outputs, migrationTxVersion, 0,
		sequences)
	if err != nil {
		return nil, err
	}
	for i := range packet.Inputs {
		packet.Inputs[i].RedeemScript = from.RedeemScript()
		packet.Inputs[i].SighashType = txscript.SigHashAll
	}

	log.Infof("Built migration of %d outputs (%v) from %v to %v, fee %v "+
		"for %d bytes", len(utxos), total, from.Address(), to.Address(),
		fee, size)

	return packet, nil
}
