// SPDX-License-Identifier: Apache-2.0

// Package frame provides timed stream sockets with length-prefixed message
// framing. Every blocking operation takes a timeout; passing 0 uses the
// connection default. Timeouts are reported as TimeoutErr, distinct from a
// broken transport (BrokenErr) and from a clean peer close (ClosedErr), so
// callers can poll cooperatively instead of blocking forever.
package frame

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"
)

var (
	DialErr         = errors.New("unable to connect")
	TimeoutErr      = errors.New("operation timed out")
	BrokenErr       = errors.New("connection broken")
	ClosedErr       = errors.New("connection closed by peer")
	FramingErr      = errors.New("invalid length prefix")
	InsufficientErr = errors.New("not enough data received")
)

const (
	DefaultTimeout      = time.Second * 10
	DefaultChunkTimeout = time.Second * 60
	DefaultTolerance    = 1

	prefixSize = 4
	chunkSize  = 4096
)

// Options configures a Conn. The zero value (or nil) selects the defaults.
type Options struct {
	// Timeout is the default timeout for Send, Recv and the frame length
	// prefix read.
	Timeout time.Duration

	// ChunkTimeout is the per-chunk timeout used while a frame payload is
	// being received. It is deliberately longer than Timeout: framed
	// payloads may be large and slow to arrive in full.
	ChunkTimeout time.Duration

	// Tolerance is the number of consecutive chunk timeouts tolerated while
	// receiving a frame payload before the transfer is abandoned.
	Tolerance int
}

func (options *Options) timeout() time.Duration {
	if options == nil || options.Timeout <= 0 {
		return DefaultTimeout
	}
	return options.Timeout
}

func (options *Options) chunkTimeout() time.Duration {
	if options == nil || options.ChunkTimeout <= 0 {
		return DefaultChunkTimeout
	}
	return options.ChunkTimeout
}

func (options *Options) tolerance() int {
	if options == nil || options.Tolerance <= 0 {
		return DefaultTolerance
	}
	return options.Tolerance
}

// Conn wraps a stream connection with timed and framed I/O.
type Conn struct {
	conn         net.Conn
	timeout      time.Duration
	chunkTimeout time.Duration
	tolerance    int
}

func New(conn net.Conn, options *Options) *Conn {
	return &Conn{
		conn:         conn,
		timeout:      options.timeout(),
		chunkTimeout: options.chunkTimeout(),
		tolerance:    options.tolerance(),
	}
}

// Dial connects to address on the given stream network ("tcp" or "unix").
func Dial(network string, address string, options *Options) (*Conn, error) {
	conn, err := net.DialTimeout(network, address, options.timeout())
	if err != nil {
		return nil, errors.Join(DialErr, err)
	}
	return New(conn, options), nil
}

// Send writes p once, blocking at most timeout for the connection to become
// writable. It returns the number of bytes written; callers needing to send
// more than one chunk must loop.
func (c *Conn) Send(p []byte, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return 0, errors.Join(BrokenErr, err)
	}
	n, err := c.conn.Write(p)
	if err != nil {
		if isTimeout(err) {
			return n, TimeoutErr
		}
		return n, errors.Join(BrokenErr, err)
	}
	return n, nil
}

// Recv reads at most max bytes, blocking at most timeout for data to arrive.
// A clean close by the peer is reported as ClosedErr, never as an empty read.
func (c *Conn) Recv(max int, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Join(BrokenErr, err)
	}
	buf := make([]byte, max)
	n, err := c.conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ClosedErr
		}
		if isTimeout(err) {
			return nil, TimeoutErr
		}
		return nil, errors.Join(BrokenErr, err)
	}
	return buf[:n], nil
}

// SendFrame writes p as one frame: a 4-byte big-endian length prefix followed
// by the payload, in chunks of at most 4096 bytes.
func (c *Conn) SendFrame(p []byte, timeout time.Duration) error {
	framed := make([]byte, prefixSize+len(p))
	binary.BigEndian.PutUint32(framed, uint32(len(p)))
	copy(framed[prefixSize:], p)
	sent := 0
	for sent < len(framed) {
		end := min(sent+chunkSize, len(framed))
		n, err := c.Send(framed[sent:end], timeout)
		sent += n
		if err != nil {
			return err
		}
	}
	return nil
}

// RecvFrame reads one frame. The timeout applies to the length prefix only;
// payload chunks use the connection's chunk timeout, and a single consecutive
// chunk timeout is retried before the transfer fails with InsufficientErr.
// A peer close before the prefix is ClosedErr; a peer close mid-payload is
// always fatal.
func (c *Conn) RecvFrame(timeout time.Duration) ([]byte, error) {
	prefix, err := c.Recv(prefixSize, timeout)
	if err != nil {
		return nil, err
	}
	if len(prefix) != prefixSize {
		return nil, FramingErr
	}
	length := int(binary.BigEndian.Uint32(prefix))
	payload := make([]byte, 0, length)
	timeouts := 0
	for len(payload) < length {
		chunk, err := c.Recv(min(chunkSize, length-len(payload)), c.chunkTimeout)
		if err != nil {
			if errors.Is(err, TimeoutErr) {
				if timeouts >= c.tolerance {
					return nil, InsufficientErr
				}
				timeouts++
				continue
			}
			if errors.Is(err, ClosedErr) {
				return nil, errors.Join(BrokenErr, io.ErrUnexpectedEOF)
			}
			return nil, err
		}
		payload = append(payload, chunk...)
		timeouts = 0
	}
	return payload, nil
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
