// SPDX-License-Identifier: Apache-2.0

// Package codec defines the serializer used to carry argument tuples, return
// values and error objects on the wire. Implementations must round-trip all
// three; failures on either direction are reported as a marshaling error kind
// so callers can tell them apart from transport faults.
package codec

import (
	"errors"
)

var (
	MarshalErr   = errors.New("unable to marshal value")
	UnmarshalErr = errors.New("unable to unmarshal value")
)

type Codec interface {
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// Default is the codec used when an options struct leaves Codec unset.
var Default Codec = &Polyglot{}
