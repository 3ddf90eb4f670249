// SPDX-License-Identifier: Apache-2.0

// Package server implements the connection manager and the per-connection
// workers of the RPC protocol. Each accepted connection is owned end-to-end
// by exactly one worker; workers share only the function registry and the
// live-worker set. Shutdown is cooperative: the accept loop and every worker
// poll with a bounded interval and check the shutdown flag between polls.
package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	logging "github.com/loopholelabs/logging/types"
	"golang.org/x/time/rate"

	"github.com/monocall/monocall/pkg/codec"
	"github.com/monocall/monocall/pkg/frame"
	"github.com/monocall/monocall/pkg/registry"
)

var (
	OptionsErr = errors.New("invalid options")
	CreateErr  = errors.New("unable to create server")
	CloseErr   = errors.New("unable to close server")
)

type Server struct {
	listener     *frame.Listener
	registry     *registry.Registry
	codec        codec.Codec
	logger       logging.Logger
	pollInterval time.Duration
	limiter      *rate.Limiter

	workersMu sync.Mutex
	workers   map[uuid.UUID]*worker

	shutdown atomic.Bool
	stopped  chan struct{}
	workerWg sync.WaitGroup
}

// New creates a server and starts its accept loop. The registry must already
// hold every function the server will expose.
func New(options *Options) (*Server, error) {
	if !validOptions(options) {
		return nil, OptionsErr
	}
	network := options.Network
	if network == "" {
		network = DefaultNetwork
	}
	listener, err := frame.Listen(network, options.Address, options.Conn)
	if err != nil {
		return nil, errors.Join(CreateErr, err)
	}
	s := &Server{
		listener:     listener,
		registry:     options.Registry,
		codec:        options.Codec,
		logger:       options.Logger.SubLogger("server"),
		pollInterval: options.PollInterval,
		workers:      make(map[uuid.UUID]*worker),
		stopped:      make(chan struct{}),
	}
	if s.codec == nil {
		s.codec = codec.Default
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if options.RateLimit > 0 {
		burst := options.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(options.RateLimit), burst)
	}
	go s.accept()
	return s, nil
}

// Addr returns the bound listening address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop requests shutdown without waiting for the accept loop to exit.
func (s *Server) Stop() {
	s.shutdown.Store(true)
}

// Shutdown requests shutdown and blocks until the accept loop has exited.
// Workers already past their command wait finish their current call.
func (s *Server) Shutdown() {
	s.shutdown.Store(true)
	<-s.stopped
}

// Close tears the server down: it requests shutdown, closes the listening
// socket and waits for the accept loop and all workers to exit. The server
// is permanently unusable afterwards.
func (s *Server) Close() error {
	s.shutdown.Store(true)
	err := s.listener.Close()
	<-s.stopped
	s.workerWg.Wait()
	if err != nil {
		return errors.Join(CloseErr, err)
	}
	return nil
}

func (s *Server) accept() {
	s.logger.Info().Str("address", s.Addr()).Msg("accepting connections")
	for !s.shutdown.Load() {
		conn, err := s.listener.Accept(s.pollInterval)
		if err != nil {
			if errors.Is(err, frame.TimeoutErr) {
				continue
			}
			if !errors.Is(err, frame.ListenerClosedErr) {
				s.logger.Error().Err(err).Msg("unable to accept connection")
			}
			break
		}
		w := newWorker(uuid.New(), conn, s)
		s.addWorker(w)
		s.workerWg.Add(1)
		go w.run()
	}
	s.logger.Info().Msg("accept loop exited")
	close(s.stopped)
}

func (s *Server) shuttingDown() bool {
	return s.shutdown.Load()
}

func (s *Server) addWorker(w *worker) {
	s.workersMu.Lock()
	s.workers[w.id] = w
	s.workersMu.Unlock()
}

// removeWorker is idempotent: a worker may attempt removal more than once on
// partial-failure paths.
func (s *Server) removeWorker(id uuid.UUID) {
	s.workersMu.Lock()
	delete(s.workers, id)
	s.workersMu.Unlock()
}
