// Package rti builds and parses the NSKeyedArchiver payloads of the Remote
// Text Input sub-protocol. Only the shapes RTI actually uses are supported:
// a binary property list with a $objects table and UID cross-references.
package rti

import (
	"bytes"
	"errors"

	"github.com/google/uuid"
	"howett.net/plist"
)

const archiverName = "RTIKeyedArchiver"

var ErrNoSession = errors.New("rti: archive without session uuid")

// Session - state extracted from a device-sent RTI archive
type Session struct {
	UUID uuid.UUID
	Text string // contextBeforeInput, empty when absent
}

// ParseSession extracts the session UUID and the current text. The text
// path is walked leniently: a missing or non-string node yields "".
func ParseSession(data []byte) (*Session, error) {
	var archive map[string]any
	if _, err := plist.Unmarshal(data, &archive); err != nil {
		return nil, err
	}

	objects, _ := archive["$objects"].([]any)
	top, _ := archive["$top"].(map[string]any)
	if objects == nil || top == nil {
		return nil, errors.New("rti: not a keyed archive")
	}

	session := &Session{}

	raw := uuidBytes(resolve(top["sessionUUID"], objects), objects)
	if len(raw) != 16 {
		return nil, ErrNoSession
	}
	copy(session.UUID[:], raw)

	session.Text, _ = walk(top, objects, "documentState", "docSt", "contextBeforeInput").(string)

	return session, nil
}

// resolve follows UID references into the $objects table.
func resolve(v any, objects []any) any {
	for {
		uid, ok := v.(plist.UID)
		if !ok {
			return v
		}
		if int(uid) >= len(objects) {
			return nil
		}
		v = objects[uid]
	}
}

// walk resolves a $top path, replacing every UID hop by its object before
// the next lookup.
func walk(node map[string]any, objects []any, path ...string) any {
	var v any = node
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = resolve(m[key], objects)
	}
	return v
}

// uuidBytes accepts both a raw 16-byte value and an archived NSUUID.
func uuidBytes(v any, objects []any) []byte {
	switch v := v.(type) {
	case []byte:
		return v
	case map[string]any:
		b, _ := resolve(v["NS.uuidbytes"], objects).([]byte)
		return b
	}
	return nil
}

// InputPayload archives a text operation inserting text into the session.
func InputPayload(sessionUUID uuid.UUID, text string) ([]byte, error) {
	return marshal([]any{
		"$null",
		map[string]any{
			"$class":            plist.UID(7),
			"targetSessionUUID": plist.UID(2),
			"keyboardOutput":    plist.UID(4),
		},
		nsuuid(sessionUUID),
		classDesc("NSUUID"),
		map[string]any{
			"$class":        plist.UID(6),
			"insertionText": plist.UID(5),
		},
		text,
		classDesc("TIKeyboardOutput"),
		classDesc("RTITextOperations"),
	})
}

// ClearPayload archives a text operation asserting empty text for the
// session.
func ClearPayload(sessionUUID uuid.UUID) ([]byte, error) {
	return marshal([]any{
		"$null",
		map[string]any{
			"$class":            plist.UID(5),
			"targetSessionUUID": plist.UID(2),
			"textToAssert":      plist.UID(4),
		},
		nsuuid(sessionUUID),
		classDesc("NSUUID"),
		"",
		classDesc("RTITextOperations"),
	})
}

func marshal(objects []any) ([]byte, error) {
	archive := map[string]any{
		"$version":  100000,
		"$archiver": archiverName,
		"$top":      map[string]any{"root": plist.UID(1)},
		"$objects":  objects,
	}

	buf := &bytes.Buffer{}
	if err := plist.NewEncoderForFormat(buf, plist.BinaryFormat).Encode(archive); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nsuuid(u uuid.UUID) map[string]any {
	return map[string]any{
		"$class":       plist.UID(3),
		"NS.uuidbytes": u[:],
	}
}

func classDesc(name string) map[string]any {
	return map[string]any{
		"$classname": name,
		"$classes":   []any{name, "NSObject"},
	}
}
