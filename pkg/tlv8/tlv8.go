// Package tlv8 - tag/length/value encoding with 8-bit tag and 8-bit length
// fields. Values longer than 255 bytes are split into consecutive records
// with the same tag and merged back on read.
package tlv8

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

var ErrTruncated = errors.New("tlv8: truncated")

func Marshal(v any) ([]byte, error) {
	value := reflect.ValueOf(v)
	if value.Kind() == reflect.Pointer {
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, errors.New("tlv8: not implemented: " + value.Kind().String())
	}
	return appendStruct(nil, value)
}

func appendStruct(b []byte, value reflect.Value) ([]byte, error) {
	valueType := value.Type()

	for i := 0; i < value.NumField(); i++ {
		s, ok := valueType.Field(i).Tag.Lookup("tlv8")
		if !ok {
			continue
		}

		tag, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}

		if b, err = appendValue(b, byte(tag), value.Field(i)); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func appendValue(b []byte, tag byte, value reflect.Value) ([]byte, error) {
	switch value.Kind() {
	case reflect.Uint8:
		return append(b, tag, 1, byte(value.Uint())), nil

	case reflect.String:
		return appendRecords(b, tag, []byte(value.String())), nil

	case reflect.Slice:
		if value.Type().Elem().Kind() != reflect.Uint8 {
			break
		}
		if value.IsNil() {
			return b, nil // absent optional field
		}
		return appendRecords(b, tag, value.Bytes()), nil
	}

	return nil, errors.New("tlv8: not implemented: " + value.Kind().String())
}

func appendRecords(b []byte, tag byte, v []byte) []byte {
	for len(v) > 255 {
		b = append(b, tag, 255)
		b = append(b, v[:255]...)
		v = v[255:]
	}
	b = append(b, tag, byte(len(v)))
	return append(b, v...)
}

func Unmarshal(data []byte, v any) error {
	value := reflect.ValueOf(v)
	if value.Kind() != reflect.Pointer {
		return errors.New("tlv8: value should be pointer: " + value.Kind().String())
	}

	value = value.Elem()
	if value.Kind() != reflect.Struct {
		return errors.New("tlv8: not implemented: " + value.Kind().String())
	}

	return unmarshalStruct(data, value)
}

func unmarshalStruct(b []byte, value reflect.Value) error {
	for len(b) > 0 {
		if len(b) < 2 {
			return ErrTruncated
		}

		t := b[0]
		l := int(b[1])

		var v []byte
		for {
			if len(b) < 2+l {
				return fmt.Errorf("%w: T=%d L=%d", ErrTruncated, t, l)
			}

			v = append(v, b[2:2+l]...)
			b = b[2+l:]

			// size 255 and same tag - continue big payload
			if l < 255 || len(b) < 2 || b[0] != t {
				break
			}

			l = int(b[1])
		}

		field, ok := structField(value, strconv.Itoa(int(t)))
		if !ok {
			continue // unknown tags from the peer are skipped
		}

		if err := setValue(v, field); err != nil {
			return err
		}
	}

	return nil
}

func setValue(v []byte, value reflect.Value) error {
	switch value.Kind() {
	case reflect.Uint8:
		if len(v) != 1 {
			return errors.New("tlv8: wrong size: " + value.Type().Name())
		}
		value.SetUint(uint64(v[0]))

	case reflect.String:
		value.SetString(value.String() + string(v))

	case reflect.Slice:
		if kind := value.Type().Elem().Kind(); kind != reflect.Uint8 {
			return errors.New("tlv8: not implemented: " + kind.String())
		}
		value.SetBytes(append(value.Bytes(), v...))

	default:
		return errors.New("tlv8: not implemented: " + value.Kind().String())
	}

	return nil
}

func structField(value reflect.Value, tag string) (reflect.Value, bool) {
	valueType := value.Type()

	for i := 0; i < value.NumField(); i++ {
		if s, ok := valueType.Field(i).Tag.Lookup("tlv8"); ok && s == tag {
			return value.Field(i), true
		}
	}

	return reflect.Value{}, false
}
