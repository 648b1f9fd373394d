package directory

import (
	"fmt"
	"io"
	"time"

	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/rockridge"
	"github.com/bgrewell/iso-forge/pkg/susp"
)

// Identifier bytes for the two special directory entries every directory
// carries (ECMA-119 9.1.11).
const (
	SelfIdentifier   = "\x00"
	ParentIdentifier = "\x01"
)

// DirectoryRecord is one ECMA-119 9.1 directory record: the on-disc
// representation of a single directory entry in one namespace (spec §3
// Directory Records). Rock Ridge annotations, when present, live in
// RockRidge rather than being split across ad-hoc fields.
type DirectoryRecord struct {
	ExtendedAttributeRecordLength uint8
	LocationOfExtent              uint32
	DataLength                    uint32
	RecordingDateAndTime          time.Time
	FileFlags                     *FileFlags
	FileUnitSize                  uint8
	InterleaveGapSize             uint8
	VolumeSequenceNumber          uint16
	FileIdentifier                string
	Joliet                        bool
	SystemUseEntries              susp.Entries
	RockRidge                     *rockridge.Attributes
}

// Len returns the on-disc record length, including the pad byte an
// even-length identifier requires before the System Use field begins
// (ECMA-119 9.1.12).
func (dr *DirectoryRecord) Len() int {
	ident := dr.encodedIdentifier()
	total := 33 + len(ident)
	if len(ident)%2 == 0 {
		total++
	}
	total += len(dr.SystemUseEntries.Marshal())
	if total%2 != 0 {
		total++
	}
	return total
}

func (dr *DirectoryRecord) encodedIdentifier() []byte {
	if dr.FileIdentifier == SelfIdentifier || dr.FileIdentifier == ParentIdentifier {
		return []byte(dr.FileIdentifier)
	}
	if dr.Joliet {
		b, err := encoding.EncodeUCS2BE(dr.FileIdentifier)
		if err != nil {
			return []byte(dr.FileIdentifier)
		}
		return b
	}
	return []byte(dr.FileIdentifier)
}

// Marshal encodes the record, padding the System Use field so the overall
// length is even (ECMA-119 9.1.12). Callers whose System Use content
// exceeds the 254-byte record cap must have already moved the overflow
// into a CE continuation area before calling Marshal; see pkg/planner.
func (dr *DirectoryRecord) Marshal() ([]byte, error) {
	ident := dr.encodedIdentifier()
	length := 33 + len(ident)
	pad := len(ident)%2 == 0 // ECMA-119 9.1.12: padding byte when identifier length is even
	if pad {
		length++
	}
	suData := dr.SystemUseEntries.Marshal()
	length += len(suData)
	if length > 254 {
		return nil, fmt.Errorf("directory: record for %q is %d bytes, exceeds 254-byte cap", dr.FileIdentifier, length)
	}
	if length%2 != 0 {
		length++ // SUSP padding byte; ECMA-119 requires even overall length
	}

	out := make([]byte, length)
	out[0] = byte(length)
	out[1] = dr.ExtendedAttributeRecordLength
	encoding.WriteInt32LSBMSB(out[2:10], int32(dr.LocationOfExtent))
	encoding.WriteInt32LSBMSB(out[10:18], int32(dr.DataLength))
	rdt, err := encoding.EncodeDirectoryTime(dr.RecordingDateAndTime)
	if err != nil {
		return nil, fmt.Errorf("directory: recording time: %w", err)
	}
	copy(out[18:25], rdt)
	flags := &FileFlags{}
	if dr.FileFlags != nil {
		flags = dr.FileFlags
	}
	out[25] = flags.Marshal()
	out[26] = dr.FileUnitSize
	out[27] = dr.InterleaveGapSize
	encoding.WriteInt16LSBMSB(out[28:32], int16(dr.VolumeSequenceNumber))
	out[32] = byte(len(ident))
	copy(out[33:33+len(ident)], ident)

	offset := 33 + len(ident)
	if pad {
		out[offset] = 0
		offset++
	}
	copy(out[offset:], suData)
	return out, nil
}

// Unmarshal decodes a DirectoryRecord from the start of data. source is
// used to resolve "CE" System Use continuation areas (spec §9).
func (dr *DirectoryRecord) Unmarshal(data []byte, source io.ReaderAt) error {
	if len(data) < 33 {
		return fmt.Errorf("directory: record data too short: %d bytes", len(data))
	}
	length := int(data[0])
	if length < 33 || length > len(data) {
		return fmt.Errorf("directory: record declares length %d, have %d bytes", length, len(data))
	}
	data = data[:length]

	dr.ExtendedAttributeRecordLength = data[1]
	loc, err := encoding.UnmarshalUint32LSBMSB(data[2:10])
	if err != nil {
		return fmt.Errorf("directory: location of extent: %w", err)
	}
	dr.LocationOfExtent = loc
	size, err := encoding.UnmarshalUint32LSBMSB(data[10:18])
	if err != nil {
		return fmt.Errorf("directory: data length: %w", err)
	}
	dr.DataLength = size
	rdt, err := encoding.DecodeDirectoryTime(data[18:25])
	if err != nil {
		return fmt.Errorf("directory: recording time: %w", err)
	}
	dr.RecordingDateAndTime = rdt

	flags := &FileFlags{}
	flags.Set(data[25])
	dr.FileFlags = flags
	dr.FileUnitSize = data[26]
	dr.InterleaveGapSize = data[27]
	seq, err := encoding.UnmarshalInt16LSBMSB(data[28:32])
	if err != nil {
		return fmt.Errorf("directory: volume sequence number: %w", err)
	}
	dr.VolumeSequenceNumber = uint16(seq)

	idLen := int(data[32])
	if 33+idLen > len(data) {
		return fmt.Errorf("directory: file identifier extends beyond record")
	}
	raw := data[33 : 33+idLen]
	switch {
	case idLen == 1 && raw[0] == 0x00:
		dr.FileIdentifier = SelfIdentifier
	case idLen == 1 && raw[0] == 0x01:
		dr.FileIdentifier = ParentIdentifier
	case dr.Joliet:
		name, err := encoding.DecodeUCS2BE(raw)
		if err != nil {
			return fmt.Errorf("directory: joliet identifier: %w", err)
		}
		dr.FileIdentifier = name
	default:
		dr.FileIdentifier = string(raw)
	}

	suStart := 33 + idLen
	if idLen%2 == 0 {
		suStart++ // padding byte
	}
	if suStart < length {
		entries, err := susp.ParseEntries(data[suStart:length], source)
		if err != nil {
			return fmt.Errorf("directory: system use entries: %w", err)
		}
		dr.SystemUseEntries = entries
		attrs, err := rockridge.ParseAttributes(entries)
		if err != nil {
			return fmt.Errorf("directory: rock ridge attributes: %w", err)
		}
		if attrs.Posix != nil || attrs.Name != "" || len(attrs.Symlink) > 0 || attrs.Relocated {
			dr.RockRidge = attrs
		}
	}
	return nil
}
