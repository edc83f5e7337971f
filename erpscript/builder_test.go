// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package erpscript

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func testKeys(prefix string, n int) []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, n)
	for i := range keys {
		seed := chainhash.HashB([]byte(fmt.Sprintf("%s%d", prefix, i)))
		_, keys[i] = btcec.PrivKeyFromBytes(seed)
	}
	return keys
}

// expectedScript assembles the ERP skeleton by hand.
func expectedScript(t *testing.T, defaultKeys []*btcec.PublicKey, m int,
	emergencyKeys []*btcec.PublicKey, em int, csvPush []byte) []byte {

	defaultScript, err := MultiSigScript(defaultKeys, m)
	require.NoError(t, err)
	emergencyScript, err := MultiSigScript(emergencyKeys, em)
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.WriteByte(txscript.OP_NOTIF)
	buf.Write(defaultScript[:len(defaultScript)-1])
	buf.WriteByte(txscript.OP_ELSE)
	buf.Write(csvPush)
	buf.WriteByte(txscript.OP_CHECKSEQUENCEVERIFY)
	buf.WriteByte(txscript.OP_DROP)
	buf.Write(emergencyScript[:len(emergencyScript)-1])
	buf.WriteByte(txscript.OP_ENDIF)
	buf.WriteByte(txscript.OP_CHECKMULTISIG)
	return buf.Bytes()
}

func TestBuildSkeleton(t *testing.T) {
	t.Parallel()

	defaultKeys := testKeys("fed", 5)
	emergencyKeys := testKeys("erp", 3)

	tests := []struct {
		variant Variant
		csv     int64
		push    []byte
	}{
		// 500 = 0x01f4.
		{Legacy, 500, []byte{0x02, 0xf4, 0x01}},
		{LegacyFixedCSV, 500, []byte{0x02, 0x01, 0xf4}},
		{NonStandardErp, 500, []byte{0x02, 0x01, 0xf4}},
		{P2shErp, 500, []byte{0x02, 0xf4, 0x01}},

		// 52704 = 0xcde0 needs a sign byte when little-endian signed.
		{Legacy, 52704, []byte{0x03, 0xe0, 0xcd, 0x00}},
		{NonStandardErp, 52704, []byte{0x02, 0xcd, 0xe0}},

		// Small values collapse to OP_N when pushed as a single byte.
		{P2shErp, 10, []byte{txscript.OP_10}},
		{NonStandardErp, 10, []byte{0x02, 0x00, 0x0a}},
	}
	for _, test := range tests {
		got, err := test.variant.Build(defaultKeys, 3, emergencyKeys,
			2, test.csv)
		require.NoError(t, err, "%v csv %d", test.variant, test.csv)

		want := expectedScript(t, defaultKeys, 3, emergencyKeys, 2,
			test.push)
		require.Equal(t, want, got, "%v csv %d", test.variant, test.csv)

		_, err = txscript.DisasmString(got)
		require.NoError(t, err)
	}
}

func TestNonStandardErpCSVIsTwoBytesBigEndian(t *testing.T) {
	t.Parallel()

	for _, csv := range []int64{1, 255, 256, 4000, MaxCSVValue} {
		b := NonStandardErp.EncodeCSV(csv)
		require.Len(t, b, 2)
		require.Equal(t, uint16(csv), uint16(b[0])<<8|uint16(b[1]))
	}
}

func TestSignedLittleEndian(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want []byte
	}{
		{0, nil},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x00}},
		{255, []byte{0xff, 0x00}},
		{256, []byte{0x00, 0x01}},
		{-1, []byte{0x81}},
		{-128, []byte{0x80, 0x80}},
		{65535, []byte{0xff, 0xff, 0x00}},
	}
	for _, test := range tests {
		require.Equal(t, test.want, signedLittleEndian(test.in),
			"value %d", test.in)
	}
}

func TestBuildInvalidCSV(t *testing.T) {
	t.Parallel()

	defaultKeys := testKeys("fed", 3)
	emergencyKeys := testKeys("erp", 2)

	for _, v := range []Variant{LegacyFixedCSV, NonStandardErp, P2shErp} {
		for _, csv := range []int64{0, -5, MaxCSVValue + 1} {
			_, err := v.Build(defaultKeys, 2, emergencyKeys, 2, csv)
			require.True(t, IsErrorCode(err, ErrInvalidCSVValue),
				"%v csv %d: %v", v, csv, err)
			require.True(t, IsInvalidScript(err))
		}

		_, err := v.Build(defaultKeys, 2, emergencyKeys, 2, MaxCSVValue)
		require.NoError(t, err, v.String())
	}

	// The legacy builder leaves range checks to its caller.
	_, err := Legacy.Build(defaultKeys, 2, emergencyKeys, 2, 0)
	require.NoError(t, err)
}

func TestBuildNonStandardMultisig(t *testing.T) {
	t.Parallel()

	// Seventeen keys cannot be expressed with small integer opcodes, so
	// the resulting script is not a standard multisig.
	tooMany := testKeys("fed", 17)
	emergencyKeys := testKeys("erp", 2)

	for _, v := range []Variant{LegacyFixedCSV, NonStandardErp, P2shErp} {
		_, err := v.Build(tooMany, 9, emergencyKeys, 2, 100)
		require.True(t, IsErrorCode(err, ErrInvalidRedeemScript),
			"%v: %v", v, err)

		_, err = v.Build(emergencyKeys, 2, tooMany, 9, 100)
		require.True(t, IsErrorCode(err, ErrInvalidRedeemScript),
			"%v: %v", v, err)
	}

	_, err := Legacy.Build(tooMany, 9, emergencyKeys, 2, 100)
	require.NoError(t, err)
}

func TestBuildInvalidThreshold(t *testing.T) {
	t.Parallel()

	keys := testKeys("fed", 3)
	_, err := NonStandardErp.Build(keys, 4, keys, 2, 100)
	require.True(t, IsErrorCode(err, ErrInvalidThreshold), "%v", err)

	_, err = NonStandardErp.Build(keys, 2, keys, 0, 100)
	require.True(t, IsErrorCode(err, ErrInvalidThreshold), "%v", err)
}

func TestBuildSizeLimit(t *testing.T) {
	t.Parallel()

	defaultKeys := testKeys("fed", 15)
	emergencyKeys := testKeys("erp", 4)

	for _, v := range []Variant{NonStandardErp, P2shErp} {
		_, err := v.Build(defaultKeys, 8, emergencyKeys, 3, 100)
		require.True(t, IsErrorCode(err, ErrScriptSizeExceeded),
			"%v: %v", v, err)
	}

	script, err := LegacyFixedCSV.Build(defaultKeys, 8, emergencyKeys, 3, 100)
	require.NoError(t, err)
	require.Greater(t, len(script), MaxScriptSize)
}

func TestMultiSigScript(t *testing.T) {
	t.Parallel()

	keys := testKeys("fed", 4)
	script, err := MultiSigScript(keys, 3)
	require.NoError(t, err)
	require.NoError(t, ValidateMultiSigScript(script))

	nKeys, nSigs, err := txscript.CalcMultiSigStats(script)
	require.NoError(t, err)
	require.Equal(t, 4, nKeys)
	require.Equal(t, 3, nSigs)

	err = ValidateMultiSigScript([]byte{txscript.OP_TRUE})
	require.True(t, IsErrorCode(err, ErrInvalidRedeemScript))
}

func TestValidateStandardScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		keys int
		code ErrorCode
		ok   bool
	}{
		{keys: 15, ok: true},
		{keys: 16, code: ErrScriptSizeExceeded},
		{keys: 17, code: ErrInvalidRedeemScript},
	}
	for _, test := range tests {
		script, err := MultiSigScript(testKeys("fed", test.keys),
			test.keys/2+1)
		require.NoError(t, err)

		err = ValidateStandardScript(script)
		if test.ok {
			require.NoError(t, err, "%d keys", test.keys)
			continue
		}
		require.True(t, IsErrorCode(err, test.code), "%d keys: %v",
			test.keys, err)
	}
}

// TestErrorCodeStringer tests that all error codes has a text
// representation.
func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	for c := ErrorCode(0); c < lastErr; c++ {
		require.NotContains(t, c.String(), "Unknown", "code %d", c)
	}
	require.Equal(t, "Unknown ErrorCode (65535)", ErrorCode(0xffff).String())
}
