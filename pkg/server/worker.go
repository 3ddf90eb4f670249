// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	logging "github.com/loopholelabs/logging/types"

	"github.com/monocall/monocall/pkg/frame"
	"github.com/monocall/monocall/pkg/registry"
	"github.com/monocall/monocall/pkg/wire"
)

// worker owns one accepted connection for its lifetime and drives the server
// half of the protocol: PERFORM in, ACK/NACK/EXCEPTION/RESULT out, strictly
// alternating, one call at a time.
type worker struct {
	id     uuid.UUID
	conn   *frame.Conn
	server *Server
	logger logging.Logger
}

func newWorker(id uuid.UUID, conn *frame.Conn, server *Server) *worker {
	return &worker{
		id:     id,
		conn:   conn,
		server: server,
		logger: server.logger.SubLogger("worker"),
	}
}

func (w *worker) run() {
	defer w.server.workerWg.Done()
	w.logger.Debug().Str("worker", w.id.String()).Str("remote", w.conn.RemoteAddr().String()).Msg("worker spawned")
	for !w.server.shuttingDown() {
		cmd, err := w.conn.RecvFrame(w.server.pollInterval)
		if err != nil {
			if errors.Is(err, frame.TimeoutErr) {
				continue
			}
			if errors.Is(err, frame.ClosedErr) {
				w.logger.Debug().Str("worker", w.id.String()).Msg("connection closed by peer")
			} else {
				w.logger.Debug().Str("worker", w.id.String()).Err(err).Msg("connection broken")
			}
			break
		}
		verb, payload := wire.Parse(cmd)
		if verb != wire.Perform {
			// single-verb protocol: anything else falls through to the
			// next poll
			continue
		}
		if !w.perform(string(payload)) {
			break
		}
	}
	w.logger.Debug().Str("worker", w.id.String()).Msg("worker leaving")
	w.disconnect()
}

// disconnect deregisters the worker and closes its socket. Secondary errors
// from the close are ignored; both steps tolerate repetition.
func (w *worker) disconnect() {
	w.server.removeWorker(w.id)
	_ = w.conn.Close()
}

// perform runs one call exchange. It returns false only when the connection
// is deemed broken; protocol-level rejections (NACK, EXCEPTION) keep the
// connection open.
func (w *worker) perform(name string) bool {
	if w.server.limiter != nil && !w.server.limiter.Allow() {
		return w.send(wire.NackFrame("rate limit exceeded"))
	}

	fn, found := w.server.registry.Lookup(name)
	if !found {
		return w.send(wire.NackFrame(fmt.Sprintf("function (%s) does not exist", name)))
	}
	if !w.send(wire.AckFrame()) {
		return false
	}

	intent, hasIntent := w.server.registry.Intent(name)
	if hasIntent {
		w.signalIntent(intent, false)
	}

	// The client is expected to follow through once ACKed, so the argument
	// wait uses the full default timeout rather than the poll interval.
	input, err := w.conn.RecvFrame(0)
	if err != nil {
		w.logger.Debug().Str("worker", w.id.String()).Err(err).Msg("client did not send input")
		if hasIntent {
			w.signalIntent(intent, true)
		}
		return false
	}

	value, err := w.server.codec.Unmarshal(input)
	if err != nil {
		w.logger.Debug().Str("worker", w.id.String()).Err(err).Msg("unable to unmarshal input")
		if hasIntent {
			w.signalIntent(intent, true)
		}
		return w.sendException(err)
	}
	args, ok := value.([]any)
	if !ok {
		if hasIntent {
			w.signalIntent(intent, true)
		}
		return w.send(wire.NackFrame("argument must be a tuple"))
	}
	if !w.send(wire.AckFrame()) {
		return false
	}

	result, callErr := call(fn, args)
	if callErr != nil {
		return w.sendException(callErr)
	}

	serialized, err := w.server.codec.Marshal(result)
	if err != nil {
		w.logger.Debug().Str("worker", w.id.String()).Err(err).Msg("unable to marshal result")
		return w.sendException(err)
	}
	return w.send(wire.ResultFrame(serialized))
}

func (w *worker) send(payload []byte) bool {
	if err := w.conn.SendFrame(payload, 0); err != nil {
		w.logger.Debug().Str("worker", w.id.String()).Err(err).Msg("unable to send response")
		return false
	}
	return true
}

// sendException transmits an application-level error as data. The connection
// stays open unless the send itself fails.
func (w *worker) sendException(callErr error) bool {
	serialized, err := w.server.codec.Marshal(callErr)
	if err != nil {
		w.logger.Debug().Str("worker", w.id.String()).Err(err).Msg("unable to marshal exception")
		return false
	}
	return w.send(wire.ExceptionFrame(serialized))
}

// signalIntent notifies the paired intent hook. The hook is best-effort: its
// result, error and any panic never affect the main call.
func (w *worker) signalIntent(intent registry.Function, failed bool) {
	defer func() {
		_ = recover()
	}()
	_, _ = intent(failed)
}

// call invokes the target, converting a panic into the call's error so a
// misbehaving function cannot take the worker down.
func call(fn registry.Function, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(args...)
}
