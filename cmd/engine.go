// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/henols/firestarter-app/pkg/engine"
	"github.com/henols/firestarter-app/pkg/rurp"
)

// withEngine runs fn against an engine over a freshly handshaked session.
// Ctrl-C cancels the context; the session is closed on every exit path.
func withEngine(fn func(ctx context.Context, eng *engine.Engine) error) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()
	if verbose {
		session.Trace = func(direction string, p *rurp.Packet) {
			log.Printf("%s %s", direction, rurp.FormatPacket(p))
		}
	}

	printer := newProgressPrinter()
	eng := engine.New(session, cat,
		engine.WithProgressFunc(printer.Update),
		engine.WithLogger(cliLogger{}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = fn(ctx, eng)
	printer.finish()
	if verbose {
		fmt.Fprintln(os.Stderr, session.Statistics().Summary())
	}
	return err
}

// parseNumber parses a decimal or 0x-prefixed hexadecimal argument.
func parseNumber(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}
