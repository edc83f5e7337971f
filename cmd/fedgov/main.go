// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// fedgov is an operator tool for the bridge federation state.  It casts
// federation change votes, reports the active and retiring federations and
// builds migration packets against a local federation database.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/btcsuite/btcbridge/federation"
	"github.com/btcsuite/btcbridge/fedmgr"
	"github.com/btcsuite/btcbridge/fedstore"
	"github.com/btcsuite/btcbridge/internal/cfgutil"
	"github.com/btcsuite/btcbridge/quorum"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/jessevdk/go-flags"
)

func main() {
	parser := flags.NewParser(&cfg, flags.Default)

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"status", "Show the federations",
			"Show the active, retiring and pending federations.",
			&statusCommand{}},
		{"vote", "Cast a federation change vote",
			"Cast a vote for create, add, add-multi, commit or " +
				"rollback.  Arguments are hex encoded.",
			&voteCommand{}},
		{"fund", "Record an output paid to the active federation",
			"Record an output paid to the active federation.",
			&fundCommand{}},
		{"migrate", "Build a migration packet",
			"Build an unsigned PSBT moving the retiring " +
				"federation's funds to the active federation.",
			&migrateCommand{FeeRate: cfgutil.NewFeeRateFlag(
				txrules.DefaultRelayFeePerKb)}},
	}
	for _, c := range commands {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.data)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

type statusCommand struct{}

func (*statusCommand) Execute([]string) error {
	return cfg.run(func(c *fedmgr.ChangeSupport) error {
		activeRef, retiringRef, err := c.References()
		if err != nil {
			return err
		}
		active, err := c.ActiveFederation()
		if err != nil {
			return err
		}
		fmt.Printf("Active (%v): %v\n", activeRef, active)

		retiring, err := c.RetiringFederation()
		if err != nil {
			return err
		}
		retiring.WhenSome(func(f *federation.Federation) {
			fmt.Printf("Retiring (%v): %v\n", retiringRef, f)
		})

		pending, err := c.PendingFederation()
		if err != nil {
			return err
		}
		pending.WhenSome(func(p *federation.PendingFederation) {
			fmt.Printf("Pending: %d members, hash %v\n", p.Size(),
				p.Hash())
			for i, m := range p.Members() {
				fmt.Printf("  %d: %v\n", i, m)
			}
		})

		utxos, err := c.Store().NewFederationUTXOs()
		if err != nil {
			return err
		}
		oldUTXOs, err := c.Store().OldFederationUTXOs()
		if err != nil {
			return err
		}
		fmt.Printf("Outputs: %d active, %d retiring\n", len(utxos),
			len(oldUTXOs))
		return nil
	})
}

type voteCommand struct {
	Signer string `long:"signer" description:"Hex encoded public key of the voting authorizer" required:"true"`
	Args   struct {
		Function string   `positional-arg-name:"function" required:"yes"`
		Params   []string `positional-arg-name:"arg"`
	} `positional-args:"yes"`
}

func (v *voteCommand) Execute([]string) error {
	rawSigner, err := hex.DecodeString(v.Signer)
	if err != nil {
		return err
	}
	signer, err := federation.ParsePublicKey(rawSigner)
	if err != nil {
		return err
	}
	args := make([][]byte, len(v.Args.Params))
	for i, p := range v.Args.Params {
		args[i], err = hex.DecodeString(p)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	spec := quorum.NewCallSpec(v.Args.Function, args...)

	return cfg.run(func(c *fedmgr.ChangeSupport) error {
		code, err := c.Vote(spec, signer)
		if err != nil {
			return err
		}
		fmt.Printf("%v: %d (%v)\n", spec, int(code), code)
		return nil
	})
}

type fundCommand struct {
	TxID   string `long:"txid" description:"Hash of the funding transaction" required:"true"`
	Vout   uint32 `long:"vout" description:"Output index"`
	Amount int64  `long:"amount" description:"Output value in satoshis" required:"true"`
}

func (f *fundCommand) Execute([]string) error {
	hash, err := chainhash.NewHashFromStr(f.TxID)
	if err != nil {
		return err
	}
	if f.Amount <= 0 {
		return fmt.Errorf("invalid amount %d", f.Amount)
	}

	return cfg.run(func(c *fedmgr.ChangeSupport) error {
		active, err := c.ActiveFederation()
		if err != nil {
			return err
		}
		utxos, err := c.Store().NewFederationUTXOs()
		if err != nil {
			return err
		}
		outPoint := wire.OutPoint{Hash: *hash, Index: f.Vout}
		for _, u := range utxos {
			if u.OutPoint == outPoint {
				return fmt.Errorf("output %v already recorded",
					outPoint)
			}
		}
		utxos = append(utxos, fedstore.UTXO{
			OutPoint: outPoint,
			Value:    btcutil.Amount(f.Amount),
			Height:   int32(cfg.Height),
			PkScript: active.P2SHScript(),
		})
		c.Store().SetNewFederationUTXOs(utxos)

		log.Infof("Recorded %v paying %v to %v", outPoint,
			btcutil.Amount(f.Amount), active.Address())
		return nil
	})
}

type migrateCommand struct {
	FeeRate *cfgutil.FeeRateFlag `long:"feerate" description:"Fee rate in sat/kB, or BTC/kB with that suffix"`
}

func (m *migrateCommand) Execute([]string) error {
	return cfg.run(func(c *fedmgr.ChangeSupport) error {
		packet, err := c.MigrationPacket(m.FeeRate.Amount)
		if err != nil {
			return err
		}
		b64, err := packet.B64Encode()
		if err != nil {
			return err
		}
		fmt.Println(b64)
		return nil
	})
}
