// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package erpscript builds federation redeem scripts: the standard bare
// multisig script and the emergency recovery (ERP) scripts that add a
// CHECKSEQUENCEVERIFY gated branch spendable by a separate emergency key set.
//
// Every ERP variant produces the same opcode skeleton:
//
//	OP_NOTIF
//	  <default multisig without OP_CHECKMULTISIG>
//	OP_ELSE
//	  <csv> OP_CHECKSEQUENCEVERIFY OP_DROP
//	  <emergency multisig without OP_CHECKMULTISIG>
//	OP_ENDIF
//	OP_CHECKMULTISIG
//
// The variants differ in how the CSV value is serialized and in how strictly
// the inputs are validated.  Script bytes are consensus critical: a
// federation must always be rebuilt with the variant it was created with.
package erpscript

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

// MaxCSVValue is the largest relative timelock an ERP script accepts.  It
// is the largest value a two byte CSV push can hold.
const MaxCSVValue = 65535

// MaxScriptSize is the largest redeem script that can be spent through
// P2SH.
const MaxScriptSize = txscript.MaxScriptElementSize

// Variant selects the CSV encoding and validation rules.
type Variant uint8

const (
	// Legacy encodes the CSV value as a minimal signed little-endian
	// number and performs no validation of its own.
	Legacy Variant = iota

	// LegacyFixedCSV is the deprecated sibling of Legacy: it encodes the
	// CSV value as a two byte unsigned big-endian number and validates
	// both the multisig scripts and the CSV range.
	LegacyFixedCSV

	// NonStandardErp encodes the CSV value as a two byte unsigned
	// big-endian number and validates the multisig scripts, the CSV
	// range and the total script size.
	NonStandardErp

	// P2shErp encodes the CSV value as a minimal signed little-endian
	// number and validates like NonStandardErp.
	P2shErp
)

// String returns the variant as a human-readable name.
func (v Variant) String() string {
	switch v {
	case Legacy:
		return "Legacy"
	case LegacyFixedCSV:
		return "LegacyFixedCSV"
	case NonStandardErp:
		return "NonStandardErp"
	case P2shErp:
		return "P2shErp"
	default:
		return fmt.Sprintf("Unknown Variant (%d)", int(v))
	}
}

func (v Variant) validatesScripts() bool {
	return v != Legacy
}

func (v Variant) validatesSize() bool {
	return v == NonStandardErp || v == P2shErp
}

// MultiSigScript returns the bare multisig script requiring threshold of the
// given keys, in the given order.
func MultiSigScript(keys []*btcec.PublicKey, threshold int) ([]byte, error) {
	if threshold < 1 || threshold > len(keys) {
		str := fmt.Sprintf("cannot require %d signatures from %d keys",
			threshold, len(keys))
		return nil, scriptError(ErrInvalidThreshold, str, nil)
	}

	builder := txscript.NewScriptBuilder().AddInt64(int64(threshold))
	for _, key := range keys {
		builder.AddData(key.SerializeCompressed())
	}
	builder.AddInt64(int64(len(keys)))
	builder.AddOp(txscript.OP_CHECKMULTISIG)

	script, err := builder.Script()
	if err != nil {
		return nil, scriptError(ErrScriptBuild,
			"unable to build multisig script", err)
	}
	return script, nil
}

// ValidateMultiSigScript returns an error unless script is a standard bare
// multisig script.
func ValidateMultiSigScript(script []byte) error {
	ok, err := txscript.IsMultisigScript(script)
	if err != nil {
		return scriptError(ErrInvalidRedeemScript,
			"unable to parse multisig script", err)
	}
	if !ok {
		return scriptError(ErrInvalidRedeemScript,
			fmt.Sprintf("script %x is not a standard multisig", script),
			nil)
	}
	return nil
}

// ValidateStandardScript returns an error unless script is a standard bare
// multisig script that fits within MaxScriptSize.
func ValidateStandardScript(script []byte) error {
	if err := ValidateMultiSigScript(script); err != nil {
		return err
	}
	if len(script) > MaxScriptSize {
		str := fmt.Sprintf("multisig script is %d bytes, limit is %d",
			len(script), MaxScriptSize)
		return scriptError(ErrScriptSizeExceeded, str, nil)
	}
	return nil
}

// ValidateCSVValue returns an error unless 0 < csv <= MaxCSVValue.
func ValidateCSVValue(csv int64) error {
	if csv <= 0 || csv > MaxCSVValue {
		str := fmt.Sprintf("csv value %d must be in (0, %d]", csv,
			MaxCSVValue)
		return scriptError(ErrInvalidCSVValue, str, nil)
	}
	return nil
}

// EncodeCSV serializes csv the way the variant pushes it.
func (v Variant) EncodeCSV(csv int64) []byte {
	switch v {
	case LegacyFixedCSV, NonStandardErp:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(csv))
		return b[:]
	default:
		return signedLittleEndian(csv)
	}
}

// signedLittleEndian returns the minimal script number encoding of n.
func signedLittleEndian(n int64) []byte {
	if n == 0 {
		return nil
	}

	negative := n < 0
	abs := uint64(n)
	if negative {
		abs = uint64(-n)
	}

	var result []byte
	for abs > 0 {
		result = append(result, byte(abs&0xff))
		abs >>= 8
	}

	// The sign lives in the high bit of the last byte, so add a byte when
	// that bit is already taken by the magnitude.
	if result[len(result)-1]&0x80 != 0 {
		extra := byte(0x00)
		if negative {
			extra = 0x80
		}
		result = append(result, extra)
	} else if negative {
		result[len(result)-1] |= 0x80
	}
	return result
}

// Build returns the ERP redeem script for the default and emergency key
// sets.  The keys are used in the order given.
func (v Variant) Build(defaultKeys []*btcec.PublicKey, defaultThreshold int,
	emergencyKeys []*btcec.PublicKey, emergencyThreshold int,
	csv int64) ([]byte, error) {

	defaultScript, err := MultiSigScript(defaultKeys, defaultThreshold)
	if err != nil {
		return nil, err
	}
	emergencyScript, err := MultiSigScript(emergencyKeys, emergencyThreshold)
	if err != nil {
		return nil, err
	}

	if v.validatesScripts() {
		if err := ValidateMultiSigScript(defaultScript); err != nil {
			return nil, err
		}
		if err := ValidateMultiSigScript(emergencyScript); err != nil {
			return nil, err
		}
		if err := ValidateCSVValue(csv); err != nil {
			return nil, err
		}
	}

	// Both branches share the trailing OP_CHECKMULTISIG.
	defaultBody := defaultScript[:len(defaultScript)-1]
	emergencyBody := emergencyScript[:len(emergencyScript)-1]

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_NOTIF).
		AddOps(defaultBody).
		AddOp(txscript.OP_ELSE).
		AddData(v.EncodeCSV(csv)).
		AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		AddOp(txscript.OP_DROP).
		AddOps(emergencyBody).
		AddOp(txscript.OP_ENDIF).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
	if err != nil {
		return nil, scriptError(ErrScriptBuild,
			"unable to build erp redeem script", err)
	}

	if v.validatesSize() && len(script) > MaxScriptSize {
		str := fmt.Sprintf("%v redeem script is %d bytes, limit is %d",
			v, len(script), MaxScriptSize)
		return nil, scriptError(ErrScriptSizeExceeded, str, nil)
	}

	log.Tracef("Built %v redeem script (%d bytes, csv %d)", v,
		len(script), csv)

	return script, nil
}
