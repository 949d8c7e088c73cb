package tlv8

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	type Struct struct {
		Byte   byte   `tlv8:"6"`
		String string `tlv8:"1"`
		Slice  []byte `tlv8:"3"`
	}

	src := Struct{
		Byte:   1,
		String: "abc",
		Slice:  []byte{1, 2, 3},
	}

	b, err := Marshal(src)
	require.Nil(t, err)

	var dst Struct
	err = Unmarshal(b, &dst)
	require.Nil(t, err)

	require.Equal(t, src, dst)
}

func TestPairSetupStart(t *testing.T) {
	src := struct {
		Method byte `tlv8:"0"`
		State  byte `tlv8:"6"`
	}{
		Method: 0,
		State:  1,
	}

	b, err := Marshal(src)
	require.Nil(t, err)
	require.Equal(t, []byte{0x00, 0x01, 0x00, 0x06, 0x01, 0x01}, b)
}

func TestFragmentation(t *testing.T) {
	src := struct {
		PublicKey []byte `tlv8:"3"`
	}{
		PublicKey: bytes.Repeat([]byte{0xAA}, 300),
	}

	b, err := Marshal(src)
	require.Nil(t, err)

	exp := []byte{0x03, 0xFF}
	exp = append(exp, bytes.Repeat([]byte{0xAA}, 255)...)
	exp = append(exp, 0x03, 0x2D)
	exp = append(exp, bytes.Repeat([]byte{0xAA}, 45)...)
	require.Equal(t, exp, b)

	var dst struct {
		PublicKey []byte `tlv8:"3"`
	}
	err = Unmarshal(b, &dst)
	require.Nil(t, err)
	require.Equal(t, src.PublicKey, dst.PublicKey)
}

func TestFragmentBoundaries(t *testing.T) {
	for _, n := range []int{0, 1, 254, 255, 256, 510, 511} {
		src := struct {
			Data []byte `tlv8:"5"`
		}{
			Data: bytes.Repeat([]byte{0x42}, n),
		}

		b, err := Marshal(src)
		require.Nil(t, err)

		records := n / 255
		if n%255 != 0 || n == 0 {
			records++
		}
		require.Len(t, b, n+2*records, "n=%d", n)

		var dst struct {
			Data []byte `tlv8:"5"`
		}
		err = Unmarshal(b, &dst)
		require.Nil(t, err)

		if n == 0 {
			require.Empty(t, dst.Data)
		} else {
			require.Equal(t, src.Data, dst.Data)
		}
	}
}

func TestSkipUnknownTag(t *testing.T) {
	b := []byte{0x13, 0x01, 0xFF, 0x06, 0x01, 0x02}

	var dst struct {
		State byte `tlv8:"6"`
	}
	err := Unmarshal(b, &dst)
	require.Nil(t, err)
	require.Equal(t, byte(2), dst.State)
}

func TestTruncated(t *testing.T) {
	var dst struct {
		Data []byte `tlv8:"5"`
	}
	err := Unmarshal([]byte{0x05, 0x10, 0x01}, &dst)
	require.ErrorIs(t, err, ErrTruncated)
}
