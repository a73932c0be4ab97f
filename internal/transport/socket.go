// Package transport provides the broker's TCP bind/listen/accept/send/recv
// facade. It wraps net.Listener/net.Conn with the deadline-driven read
// pattern the teacher uses in node/p2p_runtime.go's PeerSession (a
// bufio.Reader over the raw conn, a bounded read deadline set before every
// read, and a net.Error.Timeout() check that turns an expired deadline into
// "no data yet" rather than a hard failure) instead of a select-based
// multiplexer, since net.Conn offers no native readiness channel.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"flagbroker.dev/broker/internal/wire"
)

// Listener accepts TCP connections on a bound address.
type Listener struct {
	ln net.Listener
}

// Listen binds and starts listening on addr (host:port or :port).
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until a peer connects or the listener is closed.
func (l *Listener) Accept() (*Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return newConn(c), nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Conn is one accepted peer socket: a buffered reader over the raw
// connection plus an optional transport cipher (see cipher.go), kept
// entirely transparent to internal/session and internal/game, which only
// see the Send/Recv/Addr surface below.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	cipher Cipher
}

func newConn(c net.Conn) *Conn {
	return &Conn{raw: c, reader: bufio.NewReader(c)}
}

// Dial connects to a broker as a peer client.
func Dial(addr string) (*Conn, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return newConn(c), nil
}

// SetCipher installs an optional symmetric transport cipher, keyed by a
// prior out-of-band handshake. It is transparent to every caller above this
// package, matching spec.md §6's "this is transparent to the core" clause.
func (c *Conn) SetCipher(ciph Cipher) {
	c.cipher = ciph
}

// Addr returns the remote peer's address string.
func (c *Conn) Addr() string {
	if c.raw == nil {
		return ""
	}
	return c.raw.RemoteAddr().String()
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// ErrTimeout is returned by ReadChunk when the deadline elapses with no
// data available — the "re-check stop" tick required by spec.md §4.4/§5,
// not a fatal condition.
var ErrTimeout = errors.New("transport: read timeout")

// ReadChunk performs a single bounded read, returning up to maxBytes of
// ciphertext-or-plaintext (cipher applied transparently if installed). It
// blocks for at most timeout before returning ErrTimeout, which callers use
// as their 1-second multiplex tick (spec.md §4.4 step 2).
//
// When a Cipher is installed, each Read is decrypted as its own record,
// which assumes the sender's writes arrive record-aligned (true for the
// reference peer client and for loopback tests). The cipher is an external
// collaborator per spec.md §1, not a core guarantee; a production-grade
// installation would length-prefix ciphertext records independently of the
// plaintext frame header.
func (c *Conn) ReadChunk(maxBytes int, timeout time.Duration) ([]byte, error) {
	if err := c.raw.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, maxBytes)
	n, err := c.reader.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrTimeout
		}
		return nil, err
	}
	out := buf[:n]
	if c.cipher != nil {
		out, err = c.cipher.Decrypt(out)
		if err != nil {
			return nil, fmt.Errorf("transport: decrypt: %w", err)
		}
	}
	return out, nil
}

// Send frames seg with wire.EmitOne and writes it whole, applying the
// installed cipher (if any) before the write.
func (c *Conn) Send(seg wire.Segment) error {
	encoded, err := wire.EmitOne(seg.Type, seg.Data)
	if err != nil {
		return fmt.Errorf("transport: emit: %w", err)
	}
	if c.cipher != nil {
		encoded, err = c.cipher.Encrypt(encoded)
		if err != nil {
			return fmt.Errorf("transport: encrypt: %w", err)
		}
	}
	if err := c.raw.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	_, err = c.raw.Write(encoded)
	return err
}

const writeDeadline = 5 * time.Second
