// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/json"
	"errors"
)

// errorKey is the reserved object key used to carry error values, which JSON
// cannot represent natively.
const errorKey = "__error__"

// JSON is an alternative codec for callers that need a readable wire format.
// JSON numbers decode as float64; use Polyglot when integer kinds matter.
type JSON struct{}

func (j *JSON) Marshal(value any) ([]byte, error) {
	data, err := json.Marshal(wrapErrors(value))
	if err != nil {
		return nil, errors.Join(MarshalErr, err)
	}
	return data, nil
}

func (j *JSON) Unmarshal(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, errors.Join(UnmarshalErr, err)
	}
	return unwrapErrors(value), nil
}

func wrapErrors(value any) any {
	switch v := value.(type) {
	case error:
		return map[string]any{errorKey: v.Error()}
	case []any:
		wrapped := make([]any, len(v))
		for i, element := range v {
			wrapped[i] = wrapErrors(element)
		}
		return wrapped
	case map[string]any:
		wrapped := make(map[string]any, len(v))
		for key, element := range v {
			wrapped[key] = wrapErrors(element)
		}
		return wrapped
	default:
		return value
	}
}

func unwrapErrors(value any) any {
	switch v := value.(type) {
	case []any:
		for i, element := range v {
			v[i] = unwrapErrors(element)
		}
		return v
	case map[string]any:
		if message, ok := v[errorKey].(string); ok && len(v) == 1 {
			return errors.New(message)
		}
		for key, element := range v {
			v[key] = unwrapErrors(element)
		}
		return v
	default:
		return value
	}
}
