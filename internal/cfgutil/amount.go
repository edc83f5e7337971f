// Copyright (c) 2015-2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// FeeRateFlag embeds a fee rate per kilobyte and implements the
// flags.Marshaler and Unmarshaler interfaces so it can be used as a config
// struct field.  Values are satoshis per kB, or bitcoin per kB when suffixed
// with "BTC/kB".
type FeeRateFlag struct {
	btcutil.Amount
}

// NewFeeRateFlag creates a FeeRateFlag with a default rate.
func NewFeeRateFlag(defaultValue btcutil.Amount) *FeeRateFlag {
	return &FeeRateFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (f *FeeRateFlag) MarshalFlag() (string, error) {
	return strconv.FormatInt(int64(f.Amount), 10), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (f *FeeRateFlag) UnmarshalFlag(value string) error {
	value = strings.TrimSpace(value)

	var rate btcutil.Amount
	if btc, ok := strings.CutSuffix(value, "BTC/kB"); ok {
		f64, err := strconv.ParseFloat(strings.TrimSpace(btc), 64)
		if err != nil {
			return err
		}
		rate, err = btcutil.NewAmount(f64)
		if err != nil {
			return err
		}
	} else {
		sat, err := strconv.ParseInt(strings.TrimSuffix(value, "sat/kB"),
			10, 64)
		if err != nil {
			return err
		}
		rate = btcutil.Amount(sat)
	}

	if rate <= 0 {
		return fmt.Errorf("fee rate must be positive, got %v", rate)
	}
	f.Amount = rate
	return nil
}
