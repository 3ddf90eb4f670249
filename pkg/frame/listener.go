// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"errors"
	"net"
	"sync/atomic"
	"time"
)

var (
	ListenErr         = errors.New("unable to listen")
	AcceptErr         = errors.New("unable to accept")
	ListenerClosedErr = errors.New("listener closed")
	CloseErr          = errors.New("unable to close listener")
)

const (
	stateListening = iota
	stateClosed
)

type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// Listener is a passive socket whose Accept blocks for a bounded interval,
// so an accept loop can observe a shutdown flag between polls.
type Listener struct {
	listener deadlineListener
	options  *Options
	state    atomic.Uint32
}

// Listen opens a listening socket on the given stream network ("tcp" or
// "unix"). Accepted connections inherit options.
func Listen(network string, address string, options *Options) (*Listener, error) {
	netListener, err := net.Listen(network, address)
	if err != nil {
		return nil, errors.Join(ListenErr, err)
	}
	listener, ok := netListener.(deadlineListener)
	if !ok {
		_ = netListener.Close()
		return nil, errors.Join(ListenErr, errors.New("network does not support accept deadlines"))
	}
	lis := &Listener{
		listener: listener,
		options:  options,
	}
	lis.state.Store(stateListening)
	return lis, nil
}

// Accept waits at most timeout for an incoming connection and returns it
// wrapped as a Conn. Reaching the timeout is reported as TimeoutErr so the
// caller can re-poll.
func (lis *Listener) Accept(timeout time.Duration) (*Conn, error) {
	if lis.state.Load() != stateListening {
		return nil, ListenerClosedErr
	}
	if timeout <= 0 {
		timeout = lis.options.timeout()
	}
	if err := lis.listener.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Join(AcceptErr, err)
	}
	conn, err := lis.listener.Accept()
	if err != nil {
		if isTimeout(err) {
			return nil, TimeoutErr
		}
		if lis.state.Load() == stateClosed {
			return nil, ListenerClosedErr
		}
		return nil, errors.Join(AcceptErr, err)
	}
	return New(conn, lis.options), nil
}

func (lis *Listener) Addr() net.Addr {
	return lis.listener.Addr()
}

func (lis *Listener) Close() error {
	if lis.state.CompareAndSwap(stateListening, stateClosed) {
		if err := lis.listener.Close(); err != nil {
			return errors.Join(CloseErr, err)
		}
	}
	return nil
}
