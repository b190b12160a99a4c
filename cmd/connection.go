// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"golang.org/x/term"

	"github.com/henols/firestarter-app/pkg/rurp"
)

// serialSettleDelay gives an Arduino time to come out of the reset that
// opening the port triggers, before the handshake is attempted.
const serialSettleDelay = 2 * time.Second

// openSerialPort opens a serial port configured for the programmer link.
func openSerialPort(name string, baud int) (rurp.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", name, err)
	}
	return port, nil
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection adapts a WebSocket bridge to the session's port
// interface, including read timeouts via the connection deadline.
type WebSocketConnection struct {
	conn        *websocket.Conn
	buf         []byte
	bufOffset   int
	readTimeout time.Duration
	closed      bool // Track if connection has failed/closed
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// Return immediately if connection is known to be closed
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	if w.readTimeout > 0 {
		if err := w.conn.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
			return 0, err
		}
	} else {
		if err := w.conn.SetReadDeadline(time.Time{}); err != nil {
			return 0, err
		}
	}

	// Read next message from WebSocket (non-recursive loop to avoid stack overflow)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// A deadline hit is a timeout, not a dead connection.
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				return 0, nil
			}
			// Mark connection as closed to prevent further read attempts
			w.closed = true
			return 0, err
		}

		// Only binary messages carry protocol frames
		if messageType != websocket.BinaryMessage {
			// Skip non-binary messages and continue loop
			continue
		}

		// Buffer the message and return what fits
		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetReadTimeout bounds subsequent Reads; zero blocks indefinitely.
func (w *WebSocketConnection) SetReadTimeout(t time.Duration) error {
	w.readTimeout = t
	return nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (rurp.Port, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("FIRESTARTER_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// candidatePorts lists serial ports likely to carry a programmer, most
// promising first. The remembered port from earlier sessions wins, then
// ports whose USB identity matches an Arduino or the usual clone bridges.
func candidatePorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerating serial ports: %v", err)
	}

	var likely, rest []string
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if isProgrammerVID(p.VID) {
			likely = append(likely, p.Name)
		} else {
			rest = append(rest, p.Name)
		}
	}

	candidates := append(likely, rest...)
	if remembered := loadSettings().Port; remembered != "" {
		for i, name := range candidates {
			if name == remembered {
				candidates = append([]string{name}, append(candidates[:i:i], candidates[i+1:]...)...)
				break
			}
		}
	}
	return candidates, nil
}

// isProgrammerVID reports whether the USB vendor id belongs to an Arduino
// or one of the serial bridge chips the clones ship with (FTDI, CH340).
func isProgrammerVID(vid string) bool {
	switch strings.ToUpper(vid) {
	case "2341", "2A03": // Arduino
		return true
	case "0403": // FTDI
		return true
	case "1A86": // CH340/CH341
		return true
	}
	return false
}

// openSession establishes a handshaked programmer session using the
// connection flags: an explicit --url or --port is used as given, otherwise
// the serial ports are probed in turn until a programmer answers.
func openSession() (*rurp.Session, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, err
		}
		return handshake(conn, wsURL)
	}

	if portName != "" {
		port, err := openSerialPort(portName, baudRate)
		if err != nil {
			return nil, err
		}
		time.Sleep(serialSettleDelay)
		return handshake(port, portName)
	}

	candidates, err := candidatePorts()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no serial ports found; specify one with --port")
	}

	var lastErr error
	for _, name := range candidates {
		if verbose {
			fmt.Fprintf(os.Stderr, "probing %s...\n", name)
		}
		port, err := openSerialPort(name, baudRate)
		if err != nil {
			lastErr = err
			continue
		}
		time.Sleep(serialSettleDelay)
		session, err := handshake(port, name)
		if err != nil {
			lastErr = err
			continue
		}
		rememberPort(name)
		return session, nil
	}
	return nil, fmt.Errorf("no programmer found on %d port(s): %v", len(candidates), lastErr)
}

// handshake wraps the port in a session and verifies the firmware answers.
// The port is closed on failure.
func handshake(port rurp.Port, name string) (*rurp.Session, error) {
	session := rurp.NewSession(port, name)
	if err := session.Handshake(); err != nil {
		session.Close()
		return nil, err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "programmer on %s: firmware %s, hardware %s\n",
			name, session.FirmwareVersion(), session.HardwareRevision())
	}
	return session, nil
}
