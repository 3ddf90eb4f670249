// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"

	"github.com/loopholelabs/polyglot/v2"
)

const (
	kindNil uint8 = iota
	kindBool
	kindInt64
	kindUint64
	kindFloat64
	kindString
	kindBytes
	kindTuple
	kindMap
	kindError
)

// Polyglot is the default codec. Values are kind-tagged and encoded with
// polyglot's typed encoder, so integer kinds survive a round trip and error
// values travel as data.
type Polyglot struct{}

func (p *Polyglot) Marshal(value any) ([]byte, error) {
	buf := polyglot.GetBuffer()
	defer polyglot.PutBuffer(buf)
	if err := p.encode(buf, value); err != nil {
		return nil, err
	}
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return data, nil
}

func (p *Polyglot) Unmarshal(data []byte) (any, error) {
	d := polyglot.Decoder(data)
	return p.decode(d)
}

func (p *Polyglot) encode(buf *polyglot.Buffer, value any) error {
	e := polyglot.Encoder(buf)
	switch v := value.(type) {
	case nil:
		e.Uint8(kindNil)
	case bool:
		e.Uint8(kindBool).Bool(v)
	case int:
		e.Uint8(kindInt64).Int64(int64(v))
	case int8:
		e.Uint8(kindInt64).Int64(int64(v))
	case int16:
		e.Uint8(kindInt64).Int64(int64(v))
	case int32:
		e.Uint8(kindInt64).Int64(int64(v))
	case int64:
		e.Uint8(kindInt64).Int64(v)
	case uint:
		e.Uint8(kindUint64).Uint64(uint64(v))
	case uint8:
		e.Uint8(kindUint64).Uint64(uint64(v))
	case uint16:
		e.Uint8(kindUint64).Uint64(uint64(v))
	case uint32:
		e.Uint8(kindUint64).Uint64(uint64(v))
	case uint64:
		e.Uint8(kindUint64).Uint64(v)
	case float32:
		e.Uint8(kindFloat64).Float64(float64(v))
	case float64:
		e.Uint8(kindFloat64).Float64(v)
	case string:
		e.Uint8(kindString).String(v)
	case []byte:
		e.Uint8(kindBytes).Bytes(v)
	case []any:
		e.Uint8(kindTuple).Uint32(uint32(len(v)))
		for _, element := range v {
			if err := p.encode(buf, element); err != nil {
				return err
			}
		}
	case map[string]any:
		e.Uint8(kindMap).Uint32(uint32(len(v)))
		for key, element := range v {
			polyglot.Encoder(buf).String(key)
			if err := p.encode(buf, element); err != nil {
				return err
			}
		}
	case error:
		e.Uint8(kindError).Error(v)
	default:
		return errors.Join(MarshalErr, fmt.Errorf("unsupported type %T", value))
	}
	return nil
}

func (p *Polyglot) decode(d *polyglot.BufferDecoder) (any, error) {
	kind, err := d.Uint8()
	if err != nil {
		return nil, errors.Join(UnmarshalErr, err)
	}
	switch kind {
	case kindNil:
		return nil, nil
	case kindBool:
		v, err := d.Bool()
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		return v, nil
	case kindInt64:
		v, err := d.Int64()
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		return v, nil
	case kindUint64:
		v, err := d.Uint64()
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		return v, nil
	case kindFloat64:
		v, err := d.Float64()
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		return v, nil
	case kindString:
		v, err := d.String()
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		return v, nil
	case kindBytes:
		v, err := d.Bytes(nil)
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		return v, nil
	case kindTuple:
		length, err := d.Uint32()
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		tuple := make([]any, length)
		for i := range tuple {
			if tuple[i], err = p.decode(d); err != nil {
				return nil, err
			}
		}
		return tuple, nil
	case kindMap:
		length, err := d.Uint32()
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		m := make(map[string]any, length)
		for i := uint32(0); i < length; i++ {
			key, err := d.String()
			if err != nil {
				return nil, errors.Join(UnmarshalErr, err)
			}
			if m[key], err = p.decode(d); err != nil {
				return nil, err
			}
		}
		return m, nil
	case kindError:
		v, err := d.Error()
		if err != nil {
			return nil, errors.Join(UnmarshalErr, err)
		}
		return v, nil
	default:
		return nil, errors.Join(UnmarshalErr, fmt.Errorf("unknown kind %d", kind))
	}
}
