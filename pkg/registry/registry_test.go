// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLookup(t *testing.T) {
	r := New()

	err := r.Register("add", func(args ...any) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	fn, ok := r.Lookup("add")
	require.True(t, ok)
	assert.NotNil(t, fn)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	fn := func(args ...any) (any, error) {
		return nil, nil
	}

	require.NoError(t, r.Register("add", fn))
	err := r.Register("add", fn)
	require.ErrorIs(t, err, DuplicateErr)
}

func TestRegisterInvalid(t *testing.T) {
	r := New()

	err := r.Register("", func(args ...any) (any, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, InvalidErr)

	err = r.Register("add", nil)
	require.ErrorIs(t, err, InvalidErr)
}

func TestIntent(t *testing.T) {
	r := New()
	fn := func(args ...any) (any, error) {
		return nil, nil
	}

	require.NoError(t, r.Register("fetch", fn))
	_, ok := r.Intent("fetch")
	assert.False(t, ok)

	require.NoError(t, r.Register("fetch"+IntentSuffix, fn))
	intent, ok := r.Intent("fetch")
	require.True(t, ok)
	assert.NotNil(t, intent)
}
