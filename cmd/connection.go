// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// ErrConnectionClosed is returned by reads on a WebSocket link after the
// bridge went away
var ErrConnectionClosed = errors.New("websocket connection closed")

// link is a byte stream to the device, described by String
type link interface {
	io.ReadWriteCloser
	fmt.Stringer
}

// serialLink is a serial port running 8N1
type serialLink struct {
	serial.Port
	name string
	baud int
}

func (l *serialLink) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", l.name, l.baud)
}

func openSerial(name string, baud int) (*serialLink, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return &serialLink{Port: port, name: name, baud: baud}, nil
}

// wsLink carries commands over a WebSocket bridge. Outgoing bytes are
// collected until an unescaped command separator and sent as one frame, so
// the bridge never sees a partial command. Incoming text and binary frames
// are read as one continuous stream.
type wsLink struct {
	conn *websocket.Conn
	url  string
	sep  messenger.Separators

	// Write side
	frame   []byte
	escaped bool
	ended   bool // frame holds a complete command; line endings may follow

	// Read side
	pending []byte
	closed  bool
}

func (l *wsLink) String() string {
	return "WebSocket: " + l.url
}

func (l *wsLink) Read(p []byte) (int, error) {
	if l.closed {
		return 0, ErrConnectionClosed
	}
	for len(l.pending) == 0 {
		kind, data, err := l.conn.ReadMessage()
		if err != nil {
			l.closed = true
			return 0, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			l.pending = data
		}
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (l *wsLink) Write(p []byte) (int, error) {
	for _, b := range p {
		if l.ended && b != '\r' && b != '\n' {
			if err := l.flush(); err != nil {
				return 0, err
			}
		}
		l.frame = append(l.frame, b)

		switch {
		case l.escaped:
			l.escaped = false
		case b == l.sep.Escape:
			l.escaped = true
		case b == l.sep.Command:
			l.ended = true
		}
	}
	if l.ended {
		if err := l.flush(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// flush sends the collected command as one binary frame
func (l *wsLink) flush() error {
	frame := l.frame
	l.frame = l.frame[:0]
	l.ended = false
	if len(frame) == 0 {
		return nil
	}
	return l.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Close drops any partial command and closes the socket
func (l *wsLink) Close() error {
	l.frame = l.frame[:0]
	return l.conn.Close()
}

// dialWebSocket connects to a ws:// or wss:// bridge, with HTTP Basic auth
// when a username is given
func dialWebSocket(rawURL, username, password string, insecure bool, sep messenger.Separators) (*wsLink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecure}
	}

	header := http.Header{}
	if username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		header.Set("Authorization", "Basic "+token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return &wsLink{conn: conn, url: rawURL, sep: sep}, nil
}

// linkPassword returns HERALD_PASSWORD, or prompts for it on stderr
func linkPassword() (string, error) {
	if pw := os.Getenv("HERALD_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// openLink opens the transport selected by --url or --port
func openLink(sep messenger.Separators) (link, error) {
	switch {
	case wsURL != "":
		var password string
		if wsUsername != "" {
			pw, err := linkPassword()
			if err != nil {
				return nil, err
			}
			password = pw
		}
		return dialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify, sep)

	case portName != "":
		return openSerial(portName, baudRate)

	default:
		return nil, fmt.Errorf("either --port or --url must be specified")
	}
}

// openChannel opens the selected transport and starts reading it into a
// messenger channel. The returned string describes the connection.
func openChannel(sep messenger.Separators) (*messenger.StreamChannel, string, error) {
	l, err := openLink(sep)
	if err != nil {
		return nil, "", err
	}
	return messenger.NewStreamChannel(l, 0), l.String(), nil
}
