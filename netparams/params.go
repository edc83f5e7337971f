// Copyright (c) 2013-2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcbridge/activation"
	"github.com/btcsuite/btcbridge/federation"
	"github.com/btcsuite/btcbridge/quorum"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Params is used to group the bridge parameters of a network together with
// the bitcoin network it pegs.
type Params struct {
	*chaincfg.Params

	// GenesisFederationKeys are the bitcoin keys of the federation that
	// custodies funds before any change is committed.
	GenesisFederationKeys []*btcec.PublicKey

	// GenesisFederationCreationTime is the creation time of the genesis
	// federation.
	GenesisFederationCreationTime time.Time

	// ChangeAuthorizerKeys may vote on federation changes.
	ChangeAuthorizerKeys []*btcec.PublicKey

	// ErpKeys and ErpActivationDelay define the emergency branch of ERP
	// federations.
	ErpKeys            []*btcec.PublicKey
	ErpActivationDelay int64

	// FederationActivationAgeLegacy is the number of blocks a committed
	// federation waits before becoming active.  FederationActivationAge
	// replaces it once activation.ActivationAgeIncrease is active.
	FederationActivationAgeLegacy int64
	FederationActivationAge       int64

	// Activations holds the fork heights of the network.
	Activations *activation.Config

	genesis *federation.Federation
}

// FederationConstants returns the values federation scripts are built with.
func (p *Params) FederationConstants() *federation.Constants {
	return &federation.Constants{
		Net:                p.Params,
		ErpKeys:            p.ErpKeys,
		ErpActivationDelay: p.ErpActivationDelay,
	}
}

// GenesisFederation returns the federation active before any change.
func (p *Params) GenesisFederation() *federation.Federation {
	return p.genesis
}

// ChangeAuthorizer returns the authorizer for federation change votes.  A
// strict majority of the authorizer keys must agree.
func (p *Params) ChangeAuthorizer() *quorum.Authorizer {
	return quorum.NewAuthorizer(p.ChangeAuthorizerKeys, quorum.RuleMajority)
}

// ActivationAge returns the number of blocks a new federation waits before
// becoming active under the given forks.
func (p *Params) ActivationAge(forks activation.ForBlock) int64 {
	if forks.IsActive(activation.ActivationAgeIncrease) {
		return p.FederationActivationAge
	}
	return p.FederationActivationAgeLegacy
}

// init derives the genesis federation.  It panics on invalid parameters
// since they are compiled in.
func (p *Params) init() *Params {
	members := make([]federation.Member, len(p.GenesisFederationKeys))
	for i, k := range p.GenesisFederationKeys {
		members[i] = federation.NewSingleKeyMember(k)
	}
	genesis, err := federation.NewStandard(members,
		p.GenesisFederationCreationTime, 0, p.Params)
	if err != nil {
		panic(fmt.Sprintf("invalid %s genesis federation: %v",
			p.Name, err))
	}
	p.genesis = genesis
	return p
}

func mustParseKeys(hexKeys ...string) []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, len(hexKeys))
	for i, h := range hexKeys {
		b, err := hex.DecodeString(h)
		if err != nil {
			panic(err)
		}
		keys[i], err = btcec.ParsePubKey(b)
		if err != nil {
			panic(err)
		}
	}
	return keys
}

// seededKeys derives public keys from the hash of each seed.  Only used for
// the regression test network, where the private keys are public knowledge.
func seededKeys(seeds ...string) []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, len(seeds))
	for i, s := range seeds {
		_, keys[i] = btcec.PrivKeyFromBytes(chainhash.HashB([]byte(s)))
	}
	return keys
}

// MainNetParams contains the bridge parameters of the main network.
var MainNetParams = (&Params{
	Params: &chaincfg.MainNetParams,
	GenesisFederationKeys: mustParseKeys(
		"0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
		"02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5",
		"02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9",
		"02e493dbf1c10d80f3581e4904930b1404cc6c13900ee0758474fa94abe8c4cd13",
		"022f8bde4d1a07209355b4a7250a5c5128e88b84bddc619ab7cba8d569b240efe4",
	),
	GenesisFederationCreationTime: time.Unix(1514948400, 0),
	ChangeAuthorizerKeys: mustParseKeys(
		"03fff97bd5755eeea420453a14355235d382f6472f8568a18b2f057a1460297556",
		"025cbdf0646e5db4eaa398f365f2ea7a0e3d419b7e0330e39ce92bddedcac4f9bc",
		"022f01e5e15cca351daff3843fb70f3c2f0a1bdd05e5af888a67784ef3e10a2a01",
	),
	ErpKeys: mustParseKeys(
		"03acd484e2f0c7f65309ad178a9f559abde09796974c57e714c35f110dfc27ccbe",
		"03a0434d9e47f3c86235477c7b1ae6ae5d3442d49b1943c2b752a68e2a47e247c7",
	),
	ErpActivationDelay:            52560,
	FederationActivationAgeLegacy: 18500,
	FederationActivationAge:       40320,
	Activations: activation.NewConfig(map[activation.Fork]int64{
		activation.MultiKeyFederation:    1591000,
		activation.ErpFederation:         3614800,
		activation.P2shErpFederation:     4598500,
		activation.RetiredScriptTracking: 4598500,
		activation.ActivationAgeIncrease: 5468000,
	}),
}).init()

// TestNet3Params contains the bridge parameters of the test network.
var TestNet3Params = (&Params{
	Params: &chaincfg.TestNet3Params,
	GenesisFederationKeys: mustParseKeys(
		"02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5",
		"02e493dbf1c10d80f3581e4904930b1404cc6c13900ee0758474fa94abe8c4cd13",
		"03fff97bd5755eeea420453a14355235d382f6472f8568a18b2f057a1460297556",
	),
	GenesisFederationCreationTime: time.Unix(1538967600, 0),
	ChangeAuthorizerKeys: mustParseKeys(
		"0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
		"02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9",
		"022f8bde4d1a07209355b4a7250a5c5128e88b84bddc619ab7cba8d569b240efe4",
	),
	ErpKeys: mustParseKeys(
		"025cbdf0646e5db4eaa398f365f2ea7a0e3d419b7e0330e39ce92bddedcac4f9bc",
		"022f01e5e15cca351daff3843fb70f3c2f0a1bdd05e5af888a67784ef3e10a2a01",
		"03acd484e2f0c7f65309ad178a9f559abde09796974c57e714c35f110dfc27ccbe",
	),
	ErpActivationDelay:            52560,
	FederationActivationAgeLegacy: 60,
	FederationActivationAge:       120,
	Activations: activation.NewConfig(map[activation.Fork]int64{
		activation.MultiKeyFederation:    0,
		activation.ErpFederation:         1798000,
		activation.TestnetUtxoKeyV2:      1798000,
		activation.TestnetUtxoKeyV3:      1914000,
		activation.P2shErpFederation:     2960000,
		activation.RetiredScriptTracking: 2960000,
		activation.ActivationAgeIncrease: 4015800,
	}),
}).init()

// RegressionNetParams contains the bridge parameters of the regression test
// network.  Every fork is active from genesis and the keys derive from
// well-known seeds.
var RegressionNetParams = (&Params{
	Params: &chaincfg.RegressionNetParams,
	GenesisFederationKeys: seededKeys(
		"federator1", "federator2", "federator3",
	),
	GenesisFederationCreationTime: time.Unix(1451606400, 0),
	ChangeAuthorizerKeys: seededKeys(
		"auth1", "auth2", "auth3",
	),
	ErpKeys: seededKeys(
		"erp1", "erp2", "erp3",
	),
	ErpActivationDelay:            500,
	FederationActivationAgeLegacy: 10,
	FederationActivationAge:       20,
	Activations: activation.NewConfig(map[activation.Fork]int64{
		activation.MultiKeyFederation:    0,
		activation.ErpFederation:         0,
		activation.P2shErpFederation:     0,
		activation.RetiredScriptTracking: 0,
		activation.ActivationAgeIncrease: 0,
	}),
}).init()

// ByName returns the parameters of the named network: mainnet, testnet or
// regtest.
func ByName(name string) (*Params, error) {
	switch name {
	case "mainnet", MainNetParams.Name:
		return MainNetParams, nil
	case "testnet", TestNet3Params.Name:
		return TestNet3Params, nil
	case "regtest", RegressionNetParams.Name:
		return RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}
