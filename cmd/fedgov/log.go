// Copyright (c) 2013-2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcbridge/erpscript"
	"github.com/btcsuite/btcbridge/fedmgr"
	"github.com/btcsuite/btcbridge/fedstore"
	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem.  A single backend logger is created and all subsystem
// loggers created from it will write to the backend.  When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
//
// Loggers can not be used before the log rotator has been initialized with a
// log file.  This must be performed early during application startup by
// calling initLogRotator.
var (
	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs.  It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	log     = backendLog.Logger("FGOV")
	fmgrLog = backendLog.Logger("FMGR")
	fstoLog = backendLog.Logger("FSTO")
	erpsLog = backendLog.Logger("ERPS")
)

// Initialize package-global logger variables.
func init() {
	fedmgr.UseLogger(fmgrLog)
	fedstore.UseLogger(fstoLog)
	erpscript.UseLogger(erpsLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"FGOV": log,
	"FMGR": fmgrLog,
	"FSTO": fstoLog,
	"ERPS": erpsLog,
}

// initLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory.  It must be called before the
// package-global log rotater variables are used.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	logRotator = r
	return nil
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.  It returns an error for unknown levels.
func setLogLevels(logLevel string) error {
	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		return fmt.Errorf("invalid debug level %q", logLevel)
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
	return nil
}
