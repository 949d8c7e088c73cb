package rti

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

// deviceArchive mimics what the Apple TV sends back from _tiStart
func deviceArchive(t *testing.T, sessionUUID uuid.UUID, text any) []byte {
	archive := map[string]any{
		"$version":  100000,
		"$archiver": archiverName,
		"$top": map[string]any{
			"sessionUUID":   plist.UID(1),
			"documentState": plist.UID(2),
		},
		"$objects": []any{
			"$null",
			sessionUUID[:],
			map[string]any{"docSt": plist.UID(3)},
			map[string]any{"contextBeforeInput": plist.UID(4)},
			text,
		},
	}

	buf := &bytes.Buffer{}
	err := plist.NewEncoderForFormat(buf, plist.BinaryFormat).Encode(archive)
	require.Nil(t, err)
	return buf.Bytes()
}

func TestParseSession(t *testing.T) {
	id := uuid.New()

	session, err := ParseSession(deviceArchive(t, id, "hello"))
	require.Nil(t, err)
	require.Equal(t, id, session.UUID)
	require.Equal(t, "hello", session.Text)
}

func TestParseSessionNoText(t *testing.T) {
	id := uuid.New()

	// a non-string at the text path is treated as empty text
	session, err := ParseSession(deviceArchive(t, id, uint64(5)))
	require.Nil(t, err)
	require.Equal(t, id, session.UUID)
	require.Equal(t, "", session.Text)
}

func TestParseSessionNSUUID(t *testing.T) {
	id := uuid.New()

	archive := map[string]any{
		"$version":  100000,
		"$archiver": archiverName,
		"$top":      map[string]any{"sessionUUID": plist.UID(1)},
		"$objects": []any{
			"$null",
			map[string]any{"$class": plist.UID(2), "NS.uuidbytes": id[:]},
			map[string]any{"$classname": "NSUUID", "$classes": []any{"NSUUID", "NSObject"}},
		},
	}
	buf := &bytes.Buffer{}
	err := plist.NewEncoderForFormat(buf, plist.BinaryFormat).Encode(archive)
	require.Nil(t, err)

	session, err := ParseSession(buf.Bytes())
	require.Nil(t, err)
	require.Equal(t, id, session.UUID)
	require.Equal(t, "", session.Text)
}

func TestParseSessionMissingUUID(t *testing.T) {
	archive := map[string]any{
		"$version":  100000,
		"$archiver": archiverName,
		"$top":      map[string]any{},
		"$objects":  []any{"$null"},
	}
	buf := &bytes.Buffer{}
	err := plist.NewEncoderForFormat(buf, plist.BinaryFormat).Encode(archive)
	require.Nil(t, err)

	_, err = ParseSession(buf.Bytes())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestParseGarbage(t *testing.T) {
	_, err := ParseSession([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NotNil(t, err)
}

func TestInputPayload(t *testing.T) {
	id := uuid.New()

	data, err := InputPayload(id, "abc")
	require.Nil(t, err)

	var archive map[string]any
	_, err = plist.Unmarshal(data, &archive)
	require.Nil(t, err)

	require.Equal(t, archiverName, archive["$archiver"])

	objects := archive["$objects"].([]any)
	top := archive["$top"].(map[string]any)

	root := resolve(top["root"], objects).(map[string]any)
	nsu := resolve(root["targetSessionUUID"], objects).(map[string]any)
	require.Equal(t, id[:], resolve(nsu["NS.uuidbytes"], objects))

	ko := resolve(root["keyboardOutput"], objects).(map[string]any)
	require.Equal(t, "abc", resolve(ko["insertionText"], objects))

	cls := resolve(root["$class"], objects).(map[string]any)
	require.Equal(t, "RTITextOperations", cls["$classname"])
}

func TestClearPayload(t *testing.T) {
	id := uuid.New()

	data, err := ClearPayload(id)
	require.Nil(t, err)

	var archive map[string]any
	_, err = plist.Unmarshal(data, &archive)
	require.Nil(t, err)

	objects := archive["$objects"].([]any)
	top := archive["$top"].(map[string]any)

	root := resolve(top["root"], objects).(map[string]any)
	require.Equal(t, "", resolve(root["textToAssert"], objects))
}
