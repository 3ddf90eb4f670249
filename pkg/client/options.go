// SPDX-License-Identifier: Apache-2.0

package client

import (
	"time"

	logging "github.com/loopholelabs/logging/types"

	"github.com/monocall/monocall/pkg/codec"
	"github.com/monocall/monocall/pkg/frame"
)

const (
	DefaultNetwork = "tcp"

	// DefaultCallTimeout bounds the wait for the final result of a remote
	// call.
	DefaultCallTimeout = time.Second * 600
)

type Options struct {
	// Network is the stream network to dial, "tcp" or "unix". Defaults to
	// "tcp".
	Network string

	// Address of the server. Required.
	Address string

	// Logger is required.
	Logger logging.Logger

	// Codec marshals argument tuples and unmarshals results and exceptions.
	// It must match the server's codec. Defaults to codec.Default.
	Codec codec.Codec

	// CallTimeout is the maximum wait for a remote call's result. Defaults
	// to DefaultCallTimeout. A call exceeding it fails with a remote error;
	// the connection is kept.
	CallTimeout time.Duration

	// Conn tunes the framed transport.
	Conn *frame.Options
}

func validOptions(options *Options) bool {
	return options != nil && options.Address != "" && options.Logger != nil
}
