// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package activation tracks the block heights at which consensus-relevant
// changes to the federation rules become active.
package activation

import "fmt"

// Fork identifies a height-gated rule change.
type Fork uint8

const (
	// MultiKeyFederation enables members carrying distinct bitcoin,
	// sidechain and multisig keys.  Before it, a member is a single key.
	MultiKeyFederation Fork = iota

	// ErpFederation makes committed federations carry an emergency
	// recovery branch (non-standard ERP redeem script).
	ErpFederation

	// P2shErpFederation makes committed federations use the P2SH ERP
	// redeem script.
	P2shErpFederation

	// TestnetUtxoKeyV2 relocates the testnet new federation UTXO set to
	// its second storage key.
	TestnetUtxoKeyV2

	// TestnetUtxoKeyV3 relocates the testnet new federation UTXO set to
	// its third storage key.
	TestnetUtxoKeyV3

	// ActivationAgeIncrease switches to the longer federation activation
	// age.
	ActivationAgeIncrease

	// RetiredScriptTracking records the transition height and the
	// outgoing federation's default P2SH script on commit.
	RetiredScriptTracking

	numForks
)

var forkStrings = map[Fork]string{
	MultiKeyFederation:    "MultiKeyFederation",
	ErpFederation:         "ErpFederation",
	P2shErpFederation:     "P2shErpFederation",
	TestnetUtxoKeyV2:      "TestnetUtxoKeyV2",
	TestnetUtxoKeyV3:      "TestnetUtxoKeyV3",
	ActivationAgeIncrease: "ActivationAgeIncrease",
	RetiredScriptTracking: "RetiredScriptTracking",
}

// String returns the Fork as a human-readable name.
func (f Fork) String() string {
	if s := forkStrings[f]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown Fork (%d)", int(f))
}

// Never is the activation height of a fork that is not scheduled.
const Never int64 = -1

// Config maps every fork to the height it activates at.  Forks missing from
// the map are never active.
type Config struct {
	heights map[Fork]int64
}

// NewConfig returns a Config with the given activation heights.
func NewConfig(heights map[Fork]int64) *Config {
	c := &Config{heights: make(map[Fork]int64, len(heights))}
	for f, h := range heights {
		c.heights[f] = h
	}
	return c
}

// AllActive returns a Config where every fork is active from genesis.
func AllActive() *Config {
	heights := make(map[Fork]int64, numForks)
	for f := Fork(0); f < numForks; f++ {
		heights[f] = 0
	}
	return NewConfig(heights)
}

// Height returns the activation height of the fork, or Never.
func (c *Config) Height(f Fork) int64 {
	h, ok := c.heights[f]
	if !ok {
		return Never
	}
	return h
}

// ForBlock returns the set of forks active at the given block height.
func (c *Config) ForBlock(height int64) ForBlock {
	var active uint64
	for f, h := range c.heights {
		if h != Never && height >= h {
			active |= 1 << f
		}
	}
	return ForBlock{height: height, active: active}
}

// ForBlock is an immutable view of the forks active at a single height.
type ForBlock struct {
	height int64
	active uint64
}

// Height returns the block height the view was taken at.
func (b ForBlock) Height() int64 {
	return b.height
}

// IsActive reports whether the fork is active.
func (b ForBlock) IsActive(f Fork) bool {
	return b.active&(1<<f) != 0
}
