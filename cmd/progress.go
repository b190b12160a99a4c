// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/henols/firestarter-app/pkg/engine"
)

const progressBarWidth = 32

// progressPrinter renders an in-place progress bar on stderr. lastPhase
// tracks phase transitions so each phase gets its own line.
type progressPrinter struct {
	lastPhase engine.Phase
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{}
}

// Update is the engine's progress callback.
func (p *progressPrinter) Update(prog engine.Progress) {
	if prog.Phase == engine.PhaseComplete {
		p.finish()
		fmt.Fprintf(os.Stderr, "%s done in %.1fs\n", prog.Device, prog.Elapsed.Seconds())
		return
	}
	if p.lastPhase != "" && p.lastPhase != prog.Phase {
		fmt.Fprintln(os.Stderr)
	}
	p.lastPhase = prog.Phase

	if prog.Total <= 0 {
		fmt.Fprintf(os.Stderr, "\r%-11s 0x%04X", prog.Phase, prog.Address)
		return
	}

	filled := prog.BytesDone * progressBarWidth / prog.Total
	bar := ""
	for i := 0; i < progressBarWidth; i++ {
		if i < filled {
			bar += "="
		} else {
			bar += " "
		}
	}
	percent := prog.BytesDone * 100 / prog.Total
	rate := 0.0
	if s := prog.Elapsed.Seconds(); s > 0 {
		rate = float64(prog.BytesDone) / s
	}
	fmt.Fprintf(os.Stderr, "\r%-11s [%s] %3d%% %6d/%d bytes %7.0f B/s",
		prog.Phase, bar, percent, prog.BytesDone, prog.Total, rate)
}

// finish terminates the in-place line if one is open.
func (p *progressPrinter) finish() {
	if p.lastPhase != "" {
		fmt.Fprintln(os.Stderr)
		p.lastPhase = ""
	}
}

// cliLogger adapts the engine's logging hook to stdlib log, emitting debug
// records only in verbose mode.
type cliLogger struct{}

func (cliLogger) Debug(msg string, keysAndValues ...interface{}) {
	if verbose {
		log.Println(append([]interface{}{"DEBUG", msg}, keysAndValues...)...)
	}
}

func (cliLogger) Info(msg string, keysAndValues ...interface{}) {
	if verbose {
		log.Println(append([]interface{}{"INFO", msg}, keysAndValues...)...)
	}
}

func (cliLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Println(append([]interface{}{"ERROR", msg}, keysAndValues...)...)
}
