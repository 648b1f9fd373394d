// Package path implements the ECMA-119 9.4 Path Table: a flat,
// breadth-first (level-order) index of every directory's name, parent, and extent location, recorded
// twice per volume in each byte order (spec §3 Path Table).
package path

import (
	"encoding/binary"
	"fmt"
)

// ByteOrder selects which of the two required on-disc copies a
// PathTableRecord is being encoded for (ECMA-119 9.4: "L Path Table" is
// little-endian, "M Path Table" is big-endian).
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// PathTableRecord is a single ECMA-119 9.4 path table entry.
type PathTableRecord struct {
	DirectoryIdentifierLength     byte
	ExtendedAttributeRecordLength byte
	LocationOfExtent              uint32
	ParentDirectoryNumber         uint16
	DirectoryIdentifier           string
}

// Len returns the on-disc length of the record, including the pad byte an
// odd-length identifier requires (ECMA-119 9.4.9).
func (ptr *PathTableRecord) Len() int {
	n := 8 + len(ptr.DirectoryIdentifier)
	if len(ptr.DirectoryIdentifier)%2 != 0 {
		n++
	}
	return n
}

// Marshal encodes the record in the requested byte order.
func (ptr *PathTableRecord) Marshal(order ByteOrder) []byte {
	out := make([]byte, ptr.Len())
	out[0] = byte(len(ptr.DirectoryIdentifier))
	out[1] = ptr.ExtendedAttributeRecordLength
	bo := byteOrderCodec(order)
	bo.PutUint32(out[2:6], ptr.LocationOfExtent)
	bo.PutUint16(out[6:8], ptr.ParentDirectoryNumber)
	copy(out[8:], ptr.DirectoryIdentifier)
	return out
}

// Unmarshal decodes a PathTableRecord at the front of data in the given
// byte order, returning the number of bytes consumed.
func (ptr *PathTableRecord) Unmarshal(data []byte, order ByteOrder) (int, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("path: record header truncated: %d bytes", len(data))
	}
	idLen := int(data[0])
	ptr.DirectoryIdentifierLength = data[0]
	ptr.ExtendedAttributeRecordLength = data[1]
	bo := byteOrderCodec(order)
	ptr.LocationOfExtent = bo.Uint32(data[2:6])
	ptr.ParentDirectoryNumber = bo.Uint16(data[6:8])

	end := 8 + idLen
	if end > len(data) {
		return 0, fmt.Errorf("path: directory identifier out of range: end=%d, have=%d", end, len(data))
	}
	ptr.DirectoryIdentifier = string(data[8:end])

	consumed := end
	if idLen%2 != 0 {
		consumed++
	}
	return consumed, nil
}

func byteOrderCodec(order ByteOrder) binary.ByteOrder {
	if order == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Table is the full, ordered sequence of path table records for one
// namespace (spec §3 Path Table: "records ordered by directory level, then
// by parent, then by identifier").
type Table []*PathTableRecord

// Marshal encodes the whole table in the given byte order.
func (t Table) Marshal(order ByteOrder) []byte {
	var out []byte
	for _, rec := range t {
		out = append(out, rec.Marshal(order)...)
	}
	return out
}

// Unmarshal decodes size bytes of data as a path table in the given byte
// order.
func Unmarshal(data []byte, size int, order ByteOrder) (Table, error) {
	if size > len(data) {
		return nil, fmt.Errorf("path: table size %d exceeds data length %d", size, len(data))
	}
	data = data[:size]
	var table Table
	for len(data) > 0 {
		rec := &PathTableRecord{}
		n, err := rec.Unmarshal(data, order)
		if err != nil {
			return nil, err
		}
		table = append(table, rec)
		data = data[n:]
	}
	return table, nil
}
