// Package opack - Apple OPACK serialization (self-describing tagged binary
// format with back-reference deduplication of encoded forms)
package opack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

var (
	ErrTruncated  = errors.New("opack: truncated")
	ErrUnknownTag = errors.New("opack: unknown tag")
	ErrBadBackref = errors.New("opack: bad backref")
)

// Dict - ordered string-keyed map. Some peer validators are order-sensitive
// on nested identity dictionaries, so insertion order survives a round-trip.
type Dict []Item

type Item struct {
	Key   string
	Value any
}

func (d Dict) Get(key string) any {
	for _, it := range d {
		if it.Key == key {
			return it.Value
		}
	}
	return nil
}

func (d Dict) GetDict(key string) Dict {
	v, _ := d.Get(key).(Dict)
	return v
}

func (d Dict) GetBytes(key string) []byte {
	v, _ := d.Get(key).([]byte)
	return v
}

func (d Dict) GetInt(key string) (int64, bool) {
	v, ok := d.Get(key).(int64)
	return v, ok
}

func (d *Dict) Set(key string, value any) {
	for i, it := range *d {
		if it.Key == key {
			(*d)[i].Value = value
			return
		}
	}
	*d = append(*d, Item{key, value})
}

// UUID - 16-byte literal with the dedicated 0x05 tag
type UUID [16]byte

func Marshal(v any) ([]byte, error) {
	e := &encoder{}
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func Unmarshal(b []byte) (any, error) {
	d := &decoder{b: b}
	v, err := d.decode()
	if err != nil {
		return nil, err
	}
	if d.pos != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrUnknownTag, len(b)-d.pos)
	}
	return v, nil
}

type encoder struct {
	buf  []byte
	pool [][]byte // encoded forms in order of first emission
}

// emit writes enc, replacing it with a back-reference when the exact same
// bytes were emitted before. Single-byte encodings are never pooled.
func (e *encoder) emit(enc []byte) {
	if len(enc) < 2 {
		e.buf = append(e.buf, enc...)
		return
	}
	for i, prev := range e.pool {
		if bytes.Equal(prev, enc) {
			e.buf = appendBackref(e.buf, uint64(i))
			return
		}
	}
	e.pool = append(e.pool, enc)
	e.buf = append(e.buf, enc...)
}

func appendBackref(b []byte, idx uint64) []byte {
	switch {
	case idx <= 0x20:
		return append(b, 0xA0+byte(idx))
	case idx <= 0xFF:
		return append(b, 0xC1, byte(idx))
	case idx <= 0xFFFF:
		return binary.LittleEndian.AppendUint16(append(b, 0xC2), uint16(idx))
	case idx <= 0xFFFFFFFF:
		return binary.LittleEndian.AppendUint32(append(b, 0xC3), uint32(idx))
	default:
		return binary.LittleEndian.AppendUint64(append(b, 0xC4), idx)
	}
}

func (e *encoder) encode(v any) error {
	switch v := v.(type) {
	case nil:
		e.emit([]byte{0x04})
	case bool:
		if v {
			e.emit([]byte{0x01})
		} else {
			e.emit([]byte{0x02})
		}
	case int:
		return e.encodeUint(uint64(v), v < 0)
	case int8:
		return e.encodeUint(uint64(v), v < 0)
	case int16:
		return e.encodeUint(uint64(v), v < 0)
	case int32:
		return e.encodeUint(uint64(v), v < 0)
	case int64:
		return e.encodeUint(uint64(v), v < 0)
	case uint:
		return e.encodeUint(uint64(v), false)
	case uint8:
		return e.encodeUint(uint64(v), false)
	case uint16:
		return e.encodeUint(uint64(v), false)
	case uint32:
		return e.encodeUint(uint64(v), false)
	case uint64:
		return e.encodeUint(v, false)
	case float32:
		enc := make([]byte, 5)
		enc[0] = 0x35
		binary.LittleEndian.PutUint32(enc[1:], math.Float32bits(v))
		e.emit(enc)
	case float64:
		enc := make([]byte, 9)
		enc[0] = 0x36
		binary.LittleEndian.PutUint64(enc[1:], math.Float64bits(v))
		e.emit(enc)
	case string:
		e.emit(appendString(nil, v))
	case []byte:
		e.emit(appendData(nil, v))
	case UUID:
		e.emit(append([]byte{0x05}, v[:]...))
	case uuid.UUID:
		e.emit(append([]byte{0x05}, v[:]...))
	case []any:
		return e.encodeArray(v)
	case []string:
		a := make([]any, len(v))
		for i, s := range v {
			a[i] = s
		}
		return e.encodeArray(a)
	case Dict:
		return e.encodeDict(v)
	case map[string]any:
		return e.encodeDict(sorted(v))
	default:
		return fmt.Errorf("opack: unsupported type %T", v)
	}
	return nil
}

func (e *encoder) encodeUint(v uint64, negative bool) error {
	if negative {
		return fmt.Errorf("opack: negative integer %d", int64(v))
	}
	switch {
	case v <= 0x27:
		e.emit([]byte{0x08 + byte(v)})
	case v <= 0xFF:
		e.emit([]byte{0x30, byte(v)})
	case v <= 0xFFFF:
		e.emit(binary.LittleEndian.AppendUint16([]byte{0x31}, uint16(v)))
	case v <= 0xFFFFFFFF:
		e.emit(binary.LittleEndian.AppendUint32([]byte{0x32}, uint32(v)))
	default:
		e.emit(binary.LittleEndian.AppendUint64([]byte{0x33}, v))
	}
	return nil
}

func appendString(b []byte, s string) []byte {
	n := len(s)
	switch {
	case n <= 0x20:
		b = append(b, 0x40+byte(n))
	case n <= 0xFF:
		b = append(b, 0x61, byte(n))
	case n <= 0xFFFF:
		b = binary.LittleEndian.AppendUint16(append(b, 0x62), uint16(n))
	case n <= 0xFFFFFF:
		b = append(b, 0x63, byte(n), byte(n>>8), byte(n>>16))
	default:
		b = binary.LittleEndian.AppendUint32(append(b, 0x64), uint32(n))
	}
	return append(b, s...)
}

func appendData(b, v []byte) []byte {
	n := len(v)
	switch {
	case n <= 0x20:
		b = append(b, 0x70+byte(n))
	case n <= 0xFF:
		b = append(b, 0x91, byte(n))
	case n <= 0xFFFF:
		b = binary.LittleEndian.AppendUint16(append(b, 0x92), uint16(n))
	case n <= 0xFFFFFFFF:
		b = binary.LittleEndian.AppendUint32(append(b, 0x93), uint32(n))
	default:
		b = binary.LittleEndian.AppendUint64(append(b, 0x94), uint64(n))
	}
	return append(b, v...)
}

// Containers occupy a slot in the pool before their children so that
// child indices line up between encoder and decoder. The single-byte header
// entry itself can never match a later multi-byte encoding.
func (e *encoder) encodeArray(v []any) error {
	if len(v) == 0 {
		e.buf = append(e.buf, 0xD0)
		return nil
	}

	sentinel := len(v) >= 0x0F
	if sentinel {
		e.pool = append(e.pool, []byte{0xDF})
		e.buf = append(e.buf, 0xDF)
	} else {
		header := 0xD0 + byte(len(v))
		e.pool = append(e.pool, []byte{header})
		e.buf = append(e.buf, header)
	}

	for _, item := range v {
		if err := e.encode(item); err != nil {
			return err
		}
	}

	if sentinel {
		e.buf = append(e.buf, 0x03)
	}
	return nil
}

func (e *encoder) encodeDict(v Dict) error {
	if len(v) == 0 {
		e.buf = append(e.buf, 0xE0)
		return nil
	}

	sentinel := len(v) >= 0x0F
	if sentinel {
		e.pool = append(e.pool, []byte{0xEF})
		e.buf = append(e.buf, 0xEF)
	} else {
		header := 0xE0 + byte(len(v))
		e.pool = append(e.pool, []byte{header})
		e.buf = append(e.buf, header)
	}

	for _, item := range v {
		if err := e.encode(item.Key); err != nil {
			return err
		}
		if err := e.encode(item.Value); err != nil {
			return err
		}
	}

	if sentinel {
		e.buf = append(e.buf, 0x03)
	}
	return nil
}

func sorted(m map[string]any) Dict {
	d := make(Dict, 0, len(m))
	for k := range m {
		d = append(d, Item{Key: k})
	}
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j].Key < d[j-1].Key; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
	for i, it := range d {
		d[i].Value = m[it.Key]
	}
	return d
}

// hole marks a container slot in the reference list while its children are
// still being decoded
type hole struct{}

type decoder struct {
	b    []byte
	pos  int
	refs []any
}

func (d *decoder) take(n int) ([]byte, error) {
	if len(d.b)-d.pos < n {
		return nil, ErrTruncated
	}
	v := d.b[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

func (d *decoder) takeUint(n int) (uint64, error) {
	b, err := d.take(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// keep mirrors the encoder pool: remember every value whose encoding was
// longer than one byte
func (d *decoder) keep(start int, v any) any {
	if d.pos-start > 1 {
		d.refs = append(d.refs, v)
	}
	return v
}

func (d *decoder) decode() (any, error) {
	start := d.pos

	tag, err := d.take(1)
	if err != nil {
		return nil, err
	}

	switch t := tag[0]; {
	case t == 0x01:
		return true, nil
	case t == 0x02:
		return false, nil
	case t == 0x04:
		return nil, nil

	case t == 0x05:
		b, err := d.take(16)
		if err != nil {
			return nil, err
		}
		var u UUID
		copy(u[:], b)
		return d.keep(start, u), nil

	case t == 0x06:
		v, err := d.takeUint(8)
		if err != nil {
			return nil, err
		}
		return d.keep(start, int64(v)), nil

	case t >= 0x08 && t <= 0x2F:
		return int64(t - 0x08), nil

	case t >= 0x30 && t <= 0x33:
		v, err := d.takeUint(1 << (t - 0x30))
		if err != nil {
			return nil, err
		}
		if v > math.MaxInt64 {
			return d.keep(start, v), nil
		}
		return d.keep(start, int64(v)), nil

	case t == 0x35:
		v, err := d.takeUint(4)
		if err != nil {
			return nil, err
		}
		return d.keep(start, math.Float32frombits(uint32(v))), nil

	case t == 0x36:
		v, err := d.takeUint(8)
		if err != nil {
			return nil, err
		}
		return d.keep(start, math.Float64frombits(v)), nil

	case t >= 0x40 && t <= 0x60:
		b, err := d.take(int(t - 0x40))
		if err != nil {
			return nil, err
		}
		return d.keep(start, string(b)), nil

	case t >= 0x61 && t <= 0x64:
		n, err := d.takeUint(int(t-0x61) + 1)
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return nil, err
		}
		return d.keep(start, string(b)), nil

	case t >= 0x70 && t <= 0x90:
		b, err := d.take(int(t - 0x70))
		if err != nil {
			return nil, err
		}
		return d.keep(start, append([]byte(nil), b...)), nil

	case t >= 0x91 && t <= 0x94:
		n, err := d.takeUint(1 << (t - 0x91))
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return nil, err
		}
		return d.keep(start, append([]byte(nil), b...)), nil

	case t >= 0xD0 && t <= 0xDF:
		return d.decodeArray(int(t & 0x0F))

	case t >= 0xE0 && t <= 0xEF:
		return d.decodeDict(int(t & 0x0F))

	case t >= 0xA0 && t <= 0xC0:
		return d.ref(uint64(t - 0xA0))

	case t >= 0xC1 && t <= 0xC4:
		idx, err := d.takeUint(1 << (t - 0xC1))
		if err != nil {
			return nil, err
		}
		return d.ref(idx)

	default:
		return nil, fmt.Errorf("%w 0x%02X at %d", ErrUnknownTag, t, start)
	}
}

func (d *decoder) ref(idx uint64) (any, error) {
	if idx >= uint64(len(d.refs)) {
		return nil, fmt.Errorf("%w %d of %d", ErrBadBackref, idx, len(d.refs))
	}
	v := d.refs[idx]
	if _, ok := v.(hole); ok {
		return nil, fmt.Errorf("%w %d: unfinished container", ErrBadBackref, idx)
	}
	return v, nil
}

func (d *decoder) sentinelDone() (bool, error) {
	if d.pos >= len(d.b) {
		return false, ErrTruncated
	}
	if d.b[d.pos] == 0x03 {
		d.pos++
		return true, nil
	}
	return false, nil
}

func (d *decoder) decodeArray(count int) (any, error) {
	if count == 0 {
		return []any{}, nil
	}

	slot := len(d.refs)
	d.refs = append(d.refs, hole{})

	var out []any
	if count == 0x0F {
		for {
			done, err := d.sentinelDone()
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
			v, err := d.decode()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	} else {
		out = make([]any, 0, count)
		for i := 0; i < count; i++ {
			v, err := d.decode()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}

	d.refs[slot] = out
	return out, nil
}

func (d *decoder) decodeDict(count int) (any, error) {
	if count == 0 {
		return Dict{}, nil
	}

	slot := len(d.refs)
	d.refs = append(d.refs, hole{})

	var out Dict
	for i := 0; count == 0x0F || i < count; i++ {
		if count == 0x0F {
			done, err := d.sentinelDone()
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
		}
		k, err := d.decode()
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("opack: map key %T is not a string", k)
		}
		v, err := d.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, Item{key, v})
	}

	d.refs[slot] = out
	return out, nil
}
