// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Run("Perform", func(t *testing.T) {
		verb, payload := Parse(PerformFrame("add"))
		assert.Equal(t, Perform, verb)
		assert.Equal(t, "add", string(payload))
	})

	t.Run("Ack", func(t *testing.T) {
		verb, payload := Parse(AckFrame())
		assert.Equal(t, Ack, verb)
		assert.Nil(t, payload)
	})

	t.Run("Nack", func(t *testing.T) {
		verb, payload := Parse(NackFrame("no such function"))
		assert.Equal(t, Nack, verb)
		assert.Equal(t, "no such function", string(payload))
	})

	t.Run("Exception", func(t *testing.T) {
		verb, payload := Parse(ExceptionFrame([]byte{1, 2, 3}))
		assert.Equal(t, Exception, verb)
		assert.Equal(t, []byte{1, 2, 3}, payload)
	})

	t.Run("Result", func(t *testing.T) {
		verb, payload := Parse(ResultFrame([]byte{4, 5}))
		assert.Equal(t, Result, verb)
		assert.Equal(t, []byte{4, 5}, payload)
	})

	t.Run("Unknown", func(t *testing.T) {
		verb, payload := Parse([]byte("HELLO"))
		assert.Equal(t, Unknown, verb)
		assert.Nil(t, payload)

		// a bare ACK with trailing bytes is not a recognized command
		verb, _ = Parse([]byte("ACKNOWLEDGE"))
		assert.Equal(t, Unknown, verb)
	})
}
