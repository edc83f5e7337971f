// Copyright (c) 2013-2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcbridge/fedmgr"
	"github.com/btcsuite/btcbridge/fedstore"
	"github.com/btcsuite/btcbridge/internal/cfgutil"
	"github.com/btcsuite/btcbridge/netparams"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

const (
	defaultLogLevel    = "info"
	defaultLogFilename = "fedgov.log"
	defaultNetwork     = "mainnet"
	dbFilename         = "fedgov.db"
	dbTimeout          = 10 * time.Second
)

var (
	defaultAppDataDir = btcutil.AppDataDir("fedgov", false)
	defaultLogDir     = filepath.Join(defaultAppDataDir, "logs")
)

// config defines the global options of every command.
type config struct {
	DataDir    string `short:"b" long:"datadir" description:"Directory to store the federation database"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	Network    string `short:"n" long:"network" description:"Bridge network {mainnet, testnet, regtest}"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical, off}"`
	Height     int64  `long:"height" description:"Height of the sidechain block the command executes in" required:"true"`
	BlockTime  int64  `long:"blocktime" description:"Unix time of the execution block (default: now)"`
}

var cfg = config{
	DataDir:    defaultAppDataDir,
	LogDir:     defaultLogDir,
	Network:    defaultNetwork,
	DebugLevel: defaultLogLevel,
}

// setup validates the global options and starts logging.
func (c *config) setup() (*netparams.Params, error) {
	params, err := netparams.ByName(c.Network)
	if err != nil {
		return nil, err
	}
	if err := checkHeight(c.Height); err != nil {
		return nil, err
	}

	c.DataDir = cfgutil.CleanAndExpandPath(c.DataDir)
	c.LogDir = cfgutil.CleanAndExpandPath(c.LogDir)

	logFile := filepath.Join(c.LogDir, params.Name, defaultLogFilename)
	if err := initLogRotator(logFile); err != nil {
		return nil, err
	}
	if err := setLogLevels(c.DebugLevel); err != nil {
		return nil, err
	}
	return params, nil
}

// checkHeight returns an error unless height fits the int32 heights UTXOs
// are recorded with.
func checkHeight(height int64) error {
	if height < 0 || height > math.MaxInt32 {
		return fmt.Errorf("block height %d out of range [0, %d]", height,
			math.MaxInt32)
	}
	return nil
}

func (c *config) block() fedmgr.Block {
	t := time.Now()
	if c.BlockTime != 0 {
		t = time.Unix(c.BlockTime, 0)
	}
	return fedmgr.Block{Height: c.Height, Time: t}
}

// openDB opens the network's federation database, creating it on first use.
func (c *config) openDB(params *netparams.Params) (walletdb.DB, error) {
	dbDir := filepath.Join(c.DataDir, params.Name)
	if err := os.MkdirAll(dbDir, 0700); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dbDir, dbFilename)

	exists, err := cfgutil.FileExists(dbPath)
	if err != nil {
		return nil, err
	}
	if exists {
		return walletdb.Open("bdb", dbPath, false, dbTimeout)
	}
	log.Infof("Creating federation database %s", dbPath)
	return walletdb.Create("bdb", dbPath, false, dbTimeout)
}

// run executes f in a single database transaction at the configured block
// and saves the federation state when f succeeds.
func (c *config) run(f func(*fedmgr.ChangeSupport) error) error {
	params, err := c.setup()
	if err != nil {
		return err
	}
	defer logRotator.Close()

	db, err := c.openDB(params)
	if err != nil {
		log.Errorf("Failed to open database: %v", err)
		return err
	}
	defer db.Close()

	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := fedstore.Namespace(tx)
		if err != nil {
			return err
		}
		forks := params.Activations.ForBlock(c.Height)
		store := fedstore.New(ns, params, forks)
		support := fedmgr.NewSupport(store, params, c.block())
		err = f(fedmgr.NewChangeSupport(support,
			params.ChangeAuthorizer()))
		if err != nil {
			return err
		}
		return store.Save()
	})
}
