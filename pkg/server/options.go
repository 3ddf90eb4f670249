// SPDX-License-Identifier: Apache-2.0

package server

import (
	"time"

	logging "github.com/loopholelabs/logging/types"

	"github.com/monocall/monocall/pkg/codec"
	"github.com/monocall/monocall/pkg/frame"
	"github.com/monocall/monocall/pkg/registry"
)

const (
	DefaultNetwork      = "tcp"
	DefaultPollInterval = time.Second
)

type Options struct {
	// Network is the stream network to listen on, "tcp" or "unix".
	// Defaults to "tcp".
	Network string

	// Address to listen on. An empty address or port 0 binds an ephemeral
	// port, exposed via Server.Addr.
	Address string

	// Registry holds the callable functions. It must be fully populated
	// before New is called; workers read it without locking.
	Registry *registry.Registry

	// Logger is required.
	Logger logging.Logger

	// Codec marshals results and exceptions and unmarshals argument tuples.
	// Defaults to codec.Default.
	Codec codec.Codec

	// PollInterval bounds every blocking wait in the accept loop and in each
	// worker's command wait, so the shutdown flag is observed promptly.
	// Defaults to one second.
	PollInterval time.Duration

	// Conn tunes the framed transport of accepted connections.
	Conn *frame.Options

	// RateLimit caps PERFORM requests per second across all connections; an
	// over-limit request is NACKed and the connection stays open. Zero
	// disables limiting.
	RateLimit float64

	// RateBurst is the limiter burst size, defaulting to 1 when RateLimit
	// is set.
	RateBurst int
}

func validOptions(options *Options) bool {
	return options != nil && options.Registry != nil && options.Logger != nil
}
