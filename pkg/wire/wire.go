// SPDX-License-Identifier: Apache-2.0

// Package wire defines the command layer carried inside frames. The protocol
// has a single request verb, PERFORM, answered step by step with ACK, NACK,
// EXCEPTION or RESULT. The argument tuple travels as a raw payload frame
// with no verb.
package wire

import (
	"bytes"
)

type Verb uint8

const (
	// Unknown marks a frame that carries no recognized verb.
	Unknown Verb = iota
	Perform
	Ack
	Nack
	Exception
	Result
)

var (
	performPrefix   = []byte("PERFORM ")
	ackMessage      = []byte("ACK")
	nackPrefix      = []byte("NACK ")
	exceptionPrefix = []byte("EXCEPTION ")
	resultPrefix    = []byte("RESULT ")
)

func PerformFrame(name string) []byte {
	return append(append([]byte(nil), performPrefix...), name...)
}

func AckFrame() []byte {
	return append([]byte(nil), ackMessage...)
}

func NackFrame(reason string) []byte {
	return append(append([]byte(nil), nackPrefix...), reason...)
}

func ExceptionFrame(serialized []byte) []byte {
	return append(append([]byte(nil), exceptionPrefix...), serialized...)
}

func ResultFrame(serialized []byte) []byte {
	return append(append([]byte(nil), resultPrefix...), serialized...)
}

// Parse classifies a frame and returns the payload following the verb: the
// function name for Perform, the reason for Nack, the serialized value for
// Exception and Result, nil for Ack and Unknown.
func Parse(frame []byte) (Verb, []byte) {
	switch {
	case bytes.HasPrefix(frame, performPrefix):
		return Perform, frame[len(performPrefix):]
	case bytes.Equal(frame, ackMessage):
		return Ack, nil
	case bytes.HasPrefix(frame, nackPrefix):
		return Nack, frame[len(nackPrefix):]
	case bytes.HasPrefix(frame, exceptionPrefix):
		return Exception, frame[len(exceptionPrefix):]
	case bytes.HasPrefix(frame, resultPrefix):
		return Result, frame[len(resultPrefix):]
	default:
		return Unknown, nil
	}
}
