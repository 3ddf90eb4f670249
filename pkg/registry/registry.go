// SPDX-License-Identifier: Apache-2.0

// Package registry holds the server-side table of callable functions. The
// table is append-only: registration happens before the server starts
// accepting connections, after which workers share it for reads without
// locking.
package registry

import (
	"errors"
	"fmt"
)

var (
	DuplicateErr = errors.New("function name already registered")
	InvalidErr   = errors.New("invalid registration")
)

// IntentSuffix marks a registered entry as the intent hook for the function
// it is paired with. A hook registered under "<name>_intent" is invoked with
// a single bool argument before the arguments for "<name>" finish arriving:
// false signals intent, true signals a failure after intent. Its result and
// error are discarded.
const IntentSuffix = "_intent"

// Function is a callable exposed for remote invocation. Arguments are the
// deserialized positional tuple sent by the client.
type Function func(args ...any) (any, error)

type Registry struct {
	functions map[string]Function
}

func New() *Registry {
	return &Registry{
		functions: make(map[string]Function),
	}
}

// Register adds fn under name. Registering a name twice is a configuration
// error, not a replace.
func (r *Registry) Register(name string, fn Function) error {
	if name == "" || fn == nil {
		return InvalidErr
	}
	if _, ok := r.functions[name]; ok {
		return errors.Join(DuplicateErr, fmt.Errorf("name %q", name))
	}
	r.functions[name] = fn
	return nil
}

// Lookup returns the function registered under name. Absence is an expected
// outcome, not an error.
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// Intent returns the intent hook paired with name, if one is registered.
func (r *Registry) Intent(name string) (Function, bool) {
	return r.Lookup(name + IntentSuffix)
}
