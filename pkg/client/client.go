// SPDX-License-Identifier: Apache-2.0

// Package client implements the proxy side of the RPC protocol: one
// persistent connection, one in-flight call at a time, lazy reconnect.
//
// Every failure surfaces as one of three kinds. CommunicationErr means the
// connection was invalidated and the next call will reconnect. RemoteErr
// means the server rejected or failed the call while the connection stayed
// usable. MarshalingErr means local serialization failed, also keeping the
// connection.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	logging "github.com/loopholelabs/logging/types"

	"github.com/monocall/monocall/pkg/codec"
	"github.com/monocall/monocall/pkg/frame"
	"github.com/monocall/monocall/pkg/wire"
)

var (
	OptionsErr       = errors.New("invalid options")
	CommunicationErr = errors.New("communication error")
	RemoteErr        = errors.New("remote error")
	MarshalingErr    = errors.New("marshaling error")
)

type Client struct {
	mu        sync.Mutex
	network   string
	address   string
	conn      *frame.Conn
	connected bool

	codec       codec.Codec
	logger      logging.Logger
	callTimeout time.Duration
	connOptions *frame.Options
}

// New creates a proxy and connects immediately, failing with
// CommunicationErr if the server is unreachable.
func New(options *Options) (*Client, error) {
	if !validOptions(options) {
		return nil, OptionsErr
	}
	c := &Client{
		network:     options.Network,
		address:     options.Address,
		codec:       options.Codec,
		logger:      options.Logger.SubLogger("client"),
		callTimeout: options.CallTimeout,
		connOptions: options.Conn,
	}
	if c.network == "" {
		c.network = DefaultNetwork
	}
	if c.codec == nil {
		c.codec = codec.Default
	}
	if c.callTimeout <= 0 {
		c.callTimeout = DefaultCallTimeout
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetAddress changes the server address used by the next connection attempt.
// The connection currently established, if any, is unaffected.
func (c *Client) SetAddress(address string) {
	c.mu.Lock()
	c.address = address
	c.mu.Unlock()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	err := c.conn.Close()
	c.connected = false
	if err != nil {
		return errors.Join(CommunicationErr, err)
	}
	return nil
}

func (c *Client) connect() error {
	conn, err := frame.Dial(c.network, c.address, c.connOptions)
	if err != nil {
		return errors.Join(CommunicationErr, err)
	}
	c.conn = conn
	c.connected = true
	return nil
}

// disconnect invalidates the connection without surfacing secondary errors.
func (c *Client) disconnect() {
	_ = c.conn.Close()
	c.connected = false
}

// Call invokes the remote function name with the given positional arguments
// and returns its result. Calls on one proxy are mutually exclusive; a
// concurrent caller blocks until the in-flight call completes.
func (c *Client) Call(name string, args ...any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		if err := c.connect(); err != nil {
			return nil, err
		}
	}

	tuple := make([]any, len(args))
	copy(tuple, args)
	input, err := c.codec.Marshal(tuple)
	if err != nil {
		return nil, errors.Join(MarshalingErr, err)
	}

	if err = c.conn.SendFrame(wire.PerformFrame(name), 0); err != nil {
		c.logger.Info().Err(err).Msg("unable to send request")
		c.disconnect()
		return nil, errors.Join(CommunicationErr, err)
	}

	response, err := c.recvAck("server did not respond to request")
	if err != nil {
		return nil, err
	}
	if verb, payload := wire.Parse(response); verb == wire.Nack {
		return nil, errors.Join(RemoteErr, errors.New(string(payload)))
	}

	if err = c.conn.SendFrame(input, 0); err != nil {
		c.logger.Info().Err(err).Msg("unable to send input")
		c.disconnect()
		return nil, errors.Join(CommunicationErr, err)
	}

	response, err = c.recvAck("server did not acknowledge input")
	if err != nil {
		return nil, err
	}
	switch verb, payload := wire.Parse(response); verb {
	case wire.Nack:
		return nil, errors.Join(RemoteErr, errors.New(string(payload)))
	case wire.Exception:
		return nil, c.remoteException(payload)
	}

	// A slow call is the server's problem, not the connection's: a timeout
	// here keeps the connection and reports a remote error.
	result, err := c.conn.RecvFrame(c.callTimeout)
	if err != nil {
		if errors.Is(err, frame.TimeoutErr) {
			return nil, errors.Join(RemoteErr, errors.New("timeout while performing remote call"))
		}
		if errors.Is(err, frame.ClosedErr) {
			c.disconnect()
			return nil, errors.Join(CommunicationErr, errors.New("connection closed by server"))
		}
		c.logger.Info().Err(err).Msg("unable to receive result")
		c.disconnect()
		return nil, errors.Join(CommunicationErr, err)
	}

	switch verb, payload := wire.Parse(result); verb {
	case wire.Exception:
		return nil, c.remoteException(payload)
	case wire.Result:
		value, err := c.codec.Unmarshal(payload)
		if err != nil {
			return nil, errors.Join(MarshalingErr, err)
		}
		return value, nil
	default:
		return nil, errors.Join(RemoteErr, errors.New("unexpected response from server"))
	}
}

// recvAck waits for a step-level response frame, mapping transport failures
// to CommunicationErr and invalidating the connection.
func (c *Client) recvAck(failure string) ([]byte, error) {
	response, err := c.conn.RecvFrame(0)
	if err != nil {
		if errors.Is(err, frame.ClosedErr) {
			c.disconnect()
			return nil, errors.Join(CommunicationErr, errors.New("connection closed by server"))
		}
		c.logger.Info().Err(err).Msg(failure)
		c.disconnect()
		return nil, errors.Join(CommunicationErr, err)
	}
	return response, nil
}

// remoteException re-raises a server-side error carried as data. An
// undecodable payload downgrades to a generic remote error.
func (c *Client) remoteException(payload []byte) error {
	value, err := c.codec.Unmarshal(payload)
	if err != nil {
		return errors.Join(RemoteErr, errors.New("unknown exception raised on server"))
	}
	if remote, ok := value.(error); ok {
		return errors.Join(RemoteErr, remote)
	}
	return errors.Join(RemoteErr, fmt.Errorf("%v", value))
}
