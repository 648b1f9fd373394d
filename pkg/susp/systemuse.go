// Package susp implements the System Use Sharing Protocol (SUSP 1.12)
// envelope that Rock Ridge fields ride inside a directory record's System
// Use field (spec §4.3). It knows nothing about what any particular entry
// type means; pkg/rockridge builds POSIX semantics on top of it.
package susp

import (
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"io"
)

// EntryType is the two-character SUSP/Rock Ridge signature word (e.g. "CE",
// "NM", "PX").
type EntryType string

const (
	ContinuationArea         EntryType = "CE"
	PaddingField             EntryType = "PD"
	SharingProtocolIndicator EntryType = "SP"
	AreaTerminator           EntryType = "ST"
	ExtensionReference       EntryType = "ER"
	ExtensionSelector        EntryType = "ES"
)

// Entry is one decoded System Use Entry: a two-byte signature, one-byte
// total length (header + payload), one-byte version, and a payload.
type Entry struct {
	Signature EntryType
	Version   uint8
	Payload   []byte
}

// Len returns the on-disc length of the entry (4-byte header + payload).
func (e *Entry) Len() int { return 4 + len(e.Payload) }

// Marshal encodes the entry in its on-disc SUSP form.
func (e *Entry) Marshal() []byte {
	out := make([]byte, e.Len())
	copy(out[0:2], e.Signature)
	out[2] = byte(e.Len())
	out[3] = e.Version
	copy(out[4:], e.Payload)
	return out
}

// unmarshalOne decodes a single entry at the front of data, returning the
// entry and the number of bytes it consumed.
func unmarshalOne(data []byte) (*Entry, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("susp: entry header truncated: %d bytes remain", len(data))
	}
	length := int(data[2])
	if length < 4 {
		return nil, 0, fmt.Errorf("susp: entry %q declares length %d < 4", data[0:2], length)
	}
	if length > len(data) {
		return nil, 0, fmt.Errorf("susp: entry %q declares length %d, only %d bytes remain", data[0:2], length, len(data))
	}
	e := &Entry{
		Signature: EntryType(data[0:2]),
		Version:   data[3],
		Payload:   append([]byte(nil), data[4:length]...),
	}
	return e, length, nil
}

// Entries is the decoded, in-order sequence of System Use Entries that
// follow a directory record, with any "CE" continuation areas already
// inlined (spec §4.3, §9 "SUSP overflow").
type Entries []*Entry

// Marshal concatenates entries back into their on-disc form without
// re-splitting into continuation areas; callers that need the fields to
// fit within the 254-byte record cap use pkg/planner to decide what moves
// into a CE area first.
func (e Entries) Marshal() []byte {
	var out []byte
	for _, entry := range e {
		out = append(out, entry.Marshal()...)
	}
	return out
}

// Find returns the first entry with the given signature, or nil.
func (e Entries) Find(sig EntryType) *Entry {
	for _, entry := range e {
		if entry.Signature == sig {
			return entry
		}
	}
	return nil
}

// FindAll returns every entry with the given signature, in order.
func (e Entries) FindAll(sig EntryType) []*Entry {
	var out []*Entry
	for _, entry := range e {
		if entry.Signature == sig {
			out = append(out, entry)
		}
	}
	return out
}

// ParseEntries decodes the System Use field of a directory record,
// following any "CE" continuation-area references by reading further
// sectors from source. A visited set guards against the circular
// references spec §7 treats as InvalidISO rather than an infinite loop.
func ParseEntries(data []byte, source io.ReaderAt) (Entries, error) {
	return parseEntries(data, source, map[uint32]bool{})
}

func parseEntries(data []byte, source io.ReaderAt, visited map[uint32]bool) (Entries, error) {
	var out Entries
	for len(data) > 0 {
		if data[0] == 0x00 {
			break
		}
		entry, n, err := unmarshalOne(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]

		if entry.Signature == ContinuationArea {
			ce, err := DecodeContinuationEntry(entry)
			if err != nil {
				return nil, err
			}
			if visited[ce.BlockLocation] {
				return nil, fmt.Errorf("susp: circular CE reference at block %d", ce.BlockLocation)
			}
			visited[ce.BlockLocation] = true

			buf := make([]byte, ce.Length)
			off := int64(ce.BlockLocation)*consts.ISO9660_SECTOR_SIZE + int64(ce.Offset)
			if _, err := source.ReadAt(buf, off); err != nil {
				return nil, fmt.Errorf("susp: reading CE area at %d: %w", off, err)
			}
			continued, err := parseEntries(buf, source, visited)
			if err != nil {
				return nil, err
			}
			out = append(out, continued...)
			continue
		}

		if entry.Signature == AreaTerminator {
			break
		}
		out = append(out, entry)
	}
	return out, nil
}
