// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/loopholelabs/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/monocall/monocall/pkg/codec"
	"github.com/monocall/monocall/pkg/registry"
	"github.com/monocall/monocall/pkg/server"
)

func testRegistry(t *testing.T) *registry.Registry {
	r := registry.New()
	err := r.Register("add", func(args ...any) (any, error) {
		return args[0].(int64) + args[1].(int64), nil
	})
	require.NoError(t, err)
	err = r.Register("fail", func(args ...any) (any, error) {
		return nil, errors.New("kaput")
	})
	require.NoError(t, err)
	err = r.Register("explode", func(args ...any) (any, error) {
		panic("unreachable state")
	})
	require.NoError(t, err)
	err = r.Register("slow", func(args ...any) (any, error) {
		time.Sleep(time.Millisecond * 20)
		return args[0], nil
	})
	require.NoError(t, err)
	return r
}

func testServer(t *testing.T, r *registry.Registry) *server.Server {
	s, err := server.New(&server.Options{
		Address:      "127.0.0.1:0",
		Registry:     r,
		Logger:       logging.Test(t, logging.Zerolog, t.Name()),
		PollInterval: time.Millisecond * 25,
	})
	require.NoError(t, err)
	return s
}

func testClient(t *testing.T, s *server.Server, options *Options) *Client {
	if options == nil {
		options = &Options{}
	}
	options.Address = s.Addr()
	if options.Logger == nil {
		options.Logger = logging.Test(t, logging.Zerolog, t.Name())
	}
	c, err := New(options)
	require.NoError(t, err)
	return c
}

func TestOptions(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, OptionsErr)

	_, err = New(&Options{Address: "127.0.0.1:9"})
	require.ErrorIs(t, err, OptionsErr)
}

func TestConnectFailure(t *testing.T) {
	_, err := New(&Options{
		Address: "127.0.0.1:1",
		Logger:  logging.Test(t, logging.Zerolog, t.Name()),
	})
	require.ErrorIs(t, err, CommunicationErr)
}

func TestUnknownFunction(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := testServer(t, testRegistry(t))
	c := testClient(t, s, nil)

	_, err := c.Call("nope")
	require.ErrorIs(t, err, RemoteErr)
	assert.ErrorContains(t, err, "function (nope) does not exist")
	assert.NotErrorIs(t, err, CommunicationErr)

	// the rejection leaves the connection usable
	result, err := c.Call("add", 40, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)

	require.NoError(t, c.Close())
	require.NoError(t, s.Close())
}

func TestRemoteException(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := testServer(t, testRegistry(t))
	c := testClient(t, s, nil)

	_, err := c.Call("fail")
	require.ErrorIs(t, err, RemoteErr)
	assert.ErrorContains(t, err, "kaput")

	result, err := c.Call("add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result)

	require.NoError(t, c.Close())
	require.NoError(t, s.Close())
}

func TestPanicPropagation(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := testServer(t, testRegistry(t))
	c := testClient(t, s, nil)

	_, err := c.Call("explode")
	require.ErrorIs(t, err, RemoteErr)
	assert.ErrorContains(t, err, "panic")

	result, err := c.Call("add", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result)

	require.NoError(t, c.Close())
	require.NoError(t, s.Close())
}

func TestMarshalingError(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := testServer(t, testRegistry(t))
	c := testClient(t, s, nil)

	// the call aborts locally, before any network traffic
	_, err := c.Call("add", struct{}{})
	require.ErrorIs(t, err, MarshalingErr)

	result, err := c.Call("add", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result)

	require.NoError(t, c.Close())
	require.NoError(t, s.Close())
}

func TestPeerCloseReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := testRegistry(t)
	first := testServer(t, r)
	c := testClient(t, first, nil)

	result, err := c.Call("add", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result)

	require.NoError(t, first.Close())

	_, err = c.Call("add", 1, 1)
	require.ErrorIs(t, err, CommunicationErr)

	// the next call reconnects on its own once a server is reachable again
	second := testServer(t, r)
	c.SetAddress(second.Addr())

	result, err = c.Call("add", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result)

	require.NoError(t, c.Close())
	require.NoError(t, second.Close())
}

func TestCallTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := testRegistry(t)
	err := r.Register("hang", func(args ...any) (any, error) {
		time.Sleep(time.Millisecond * 300)
		return nil, nil
	})
	require.NoError(t, err)

	s := testServer(t, r)
	c := testClient(t, s, &Options{CallTimeout: time.Millisecond * 50})

	// an overlong call is a remote failure, not a transport one
	_, err = c.Call("hang")
	require.ErrorIs(t, err, RemoteErr)
	assert.NotErrorIs(t, err, CommunicationErr)

	require.NoError(t, c.Close())
	require.NoError(t, s.Close())
}

func TestConcurrentCallsSerialize(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := testServer(t, testRegistry(t))
	c := testClient(t, s, nil)

	const callers = 8
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			result, err := c.Call("slow", n)
			assert.NoError(t, err)
			assert.Equal(t, n, result)
		}(int64(i))
	}
	wg.Wait()

	// one call at a time: total latency is at least the sum of the delays
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond*20*callers)

	require.NoError(t, c.Close())
	require.NoError(t, s.Close())
}

func TestJSONCodec(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := registry.New()
	err := r.Register("add", func(args ...any) (any, error) {
		return args[0].(float64) + args[1].(float64), nil
	})
	require.NoError(t, err)

	s, err := server.New(&server.Options{
		Address:      "127.0.0.1:0",
		Registry:     r,
		Logger:       logging.Test(t, logging.Zerolog, t.Name()),
		Codec:        &codec.JSON{},
		PollInterval: time.Millisecond * 25,
	})
	require.NoError(t, err)

	c := testClient(t, s, &Options{Codec: &codec.JSON{}})

	result, err := c.Call("add", 2.5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, float64(3), result)

	require.NoError(t, c.Close())
	require.NoError(t, s.Close())
}
