package opack

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSmallInt(t *testing.T) {
	b, err := Marshal(7)
	require.Nil(t, err)
	require.Equal(t, []byte{0x0F}, b)

	b, err = Marshal(0)
	require.Nil(t, err)
	require.Equal(t, []byte{0x08}, b)

	b, err = Marshal(40)
	require.Nil(t, err)
	require.Equal(t, []byte{0x30, 0x28}, b)
}

func TestIntWidths(t *testing.T) {
	tests := map[uint64][]byte{
		0x27:        {0x2F},
		0x28:        {0x30, 0x28},
		0xFF:        {0x30, 0xFF},
		0x100:       {0x31, 0x00, 0x01},
		0xFFFF:      {0x31, 0xFF, 0xFF},
		0x10000:     {0x32, 0x00, 0x00, 0x01, 0x00},
		0xFFFFFFFF:  {0x32, 0xFF, 0xFF, 0xFF, 0xFF},
		0x100000000: {0x33, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00},
	}
	for v, enc := range tests {
		b, err := Marshal(v)
		require.Nil(t, err)
		require.Equal(t, enc, b)

		dec, err := Unmarshal(b)
		require.Nil(t, err)
		require.Equal(t, int64(v), dec)
	}
}

func TestBackref(t *testing.T) {
	b, err := Marshal([]any{"abc", "abc"})
	require.Nil(t, err)
	// index 0 is the array header, which is not pooled for matching
	require.Equal(t, []byte{0xD2, 0x43, 'a', 'b', 'c', 0xA1}, b)

	v, err := Unmarshal(b)
	require.Nil(t, err)
	require.Equal(t, []any{"abc", "abc"}, v)
}

func TestBackrefDict(t *testing.T) {
	d := Dict{
		{"_i", "_systemInfo"},
		{"_x", int64(123)},
		{"_c", Dict{{"_i", "_systemInfo"}}},
	}
	b, err := Marshal(d)
	require.Nil(t, err)

	v, err := Unmarshal(b)
	require.Nil(t, err)
	require.Equal(t, d, v)

	// second "_i" and "_systemInfo" are single-byte references
	plain, err := Marshal(Dict{{"_i", "_systemInfo"}})
	require.Nil(t, err)
	require.Less(t, len(b), 2*len(plain)+10)
}

func TestContainerCounts(t *testing.T) {
	for _, n := range []int{14, 15, 16} {
		arr := make([]any, n)
		for i := range arr {
			arr[i] = int64(i)
		}

		b, err := Marshal(arr)
		require.Nil(t, err)

		if n < 15 {
			require.Equal(t, byte(0xD0+n), b[0])
		} else {
			require.Equal(t, byte(0xDF), b[0])
			require.Equal(t, byte(0x03), b[len(b)-1])
		}

		v, err := Unmarshal(b)
		require.Nil(t, err)
		require.Equal(t, arr, v)
	}
}

func TestRoundTrip(t *testing.T) {
	src := Dict{
		{"null", nil},
		{"bool", true},
		{"int", int64(1234)},
		{"float32", float32(1.5)},
		{"float64", 1000.0},
		{"string", "hello"},
		{"bytes", []byte{1, 2, 3}},
		{"uuid", UUID{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}},
		{"array", []any{int64(1), "two", []byte{3}}},
		{"dict", Dict{{"nested", "value"}}},
		{"long", strings.Repeat("x", 300)},
	}

	b, err := Marshal(src)
	require.Nil(t, err)

	v, err := Unmarshal(b)
	require.Nil(t, err)
	require.Equal(t, src, v)
}

func TestForcedFloat(t *testing.T) {
	// integral values typed float64 must keep the 0x36 tag
	b, err := Marshal(1000.0)
	require.Nil(t, err)
	require.Equal(t, byte(0x36), b[0])
	require.Len(t, b, 9)

	v, err := Unmarshal(b)
	require.Nil(t, err)
	require.Equal(t, 1000.0, v)
}

func TestStringWidths(t *testing.T) {
	for _, n := range []int{0, 0x20, 0x21, 0xFF, 0x100, 0x10000} {
		s := strings.Repeat("a", n)
		b, err := Marshal(s)
		require.Nil(t, err)

		v, err := Unmarshal(b)
		require.Nil(t, err)
		require.Equal(t, s, v)
	}
}

func TestTruncated(t *testing.T) {
	b, err := Marshal(Dict{{"key", "value"}})
	require.Nil(t, err)

	for i := 1; i < len(b); i++ {
		_, err = Unmarshal(b[:i])
		require.NotNil(t, err)
	}
}

func TestUnknownTag(t *testing.T) {
	_, err := Unmarshal([]byte{0x07})
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestBadBackref(t *testing.T) {
	_, err := Unmarshal([]byte{0xA5})
	require.ErrorIs(t, err, ErrBadBackref)
}
