// Package udf implements the ECMA-167 2.60 structures needed for a
// "UDF-bridge" disc: an ISO9660 image that also carries a minimal, valid
// UDF file system over the same extents, so UDF-only readers can mount it
// (spec §3 UDF structures, §4.1 `new(udf bool)`). It is a codec package,
// not an independent image format; the shared directory content lives in
// pkg/filesystem and pkg/planner assigns the extents these descriptors
// point at.
package udf

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/encoding"
)

// TagIdentifier names a descriptor's type (ECMA-167 3/7.2.1).
type TagIdentifier uint16

const (
	TagPrimaryVolumeDescriptor         TagIdentifier = 1
	TagAnchorVolumeDescriptorPointer   TagIdentifier = 2
	TagVolumeDescriptorPointer         TagIdentifier = 3
	TagImplementationUseVolumeDescriptor TagIdentifier = 4
	TagPartitionDescriptor             TagIdentifier = 5
	TagLogicalVolumeDescriptor         TagIdentifier = 6
	TagUnallocatedSpaceDescriptor      TagIdentifier = 7
	TagTerminatingDescriptor           TagIdentifier = 8
	TagLogicalVolumeIntegrityDescriptor TagIdentifier = 9
	TagFileSetDescriptor               TagIdentifier = 256
	TagFileIdentifierDescriptor        TagIdentifier = 257
	TagFileEntry                       TagIdentifier = 261
)

// SectorSize is the fixed UDF block size this bridge subset assumes; it
// matches the ISO9660 sector size so both file systems share extents
// without re-blocking (spec §3 UDF structures).
const SectorSize = 2048

// Tag is the 16-byte descriptor tag prefixing every UDF descriptor
// (ECMA-167 3/7.2).
type Tag struct {
	Identifier     TagIdentifier
	Version        uint16
	SerialNumber   uint16
	Location       uint32
}

const tagLen = 16

// marshalTag writes the tag header for a descriptor whose full encoded body
// is full (tag included, tag bytes zeroed) and returns the completed bytes
// with checksum and CRC filled in.
func marshalTag(t Tag, body []byte) []byte {
	binary.LittleEndian.PutUint16(body[0:2], uint16(t.Identifier))
	binary.LittleEndian.PutUint16(body[2:4], t.Version)
	body[4] = 0 // checksum placeholder
	body[5] = 0 // reserved
	binary.LittleEndian.PutUint16(body[6:8], t.SerialNumber)
	crc := encoding.CRC16IBM3740(body[tagLen:])
	binary.LittleEndian.PutUint16(body[8:10], crc)
	binary.LittleEndian.PutUint16(body[10:12], uint16(len(body)-tagLen))
	binary.LittleEndian.PutUint32(body[12:16], t.Location)
	var sum byte
	for i := 0; i < tagLen; i++ {
		if i == 4 {
			continue
		}
		sum += body[i]
	}
	body[4] = sum
	return body
}

func unmarshalTag(data []byte) (Tag, []byte, error) {
	if len(data) < tagLen {
		return Tag{}, nil, fmt.Errorf("udf: tag truncated: %d bytes", len(data))
	}
	var sum byte
	for i := 0; i < tagLen; i++ {
		if i == 4 {
			continue
		}
		sum += data[i]
	}
	if sum != data[4] {
		return Tag{}, nil, fmt.Errorf("udf: tag checksum mismatch")
	}
	crcLen := int(binary.LittleEndian.Uint16(data[10:12]))
	if len(data) < tagLen+crcLen {
		return Tag{}, nil, fmt.Errorf("udf: descriptor body truncated: need %d, have %d", crcLen, len(data)-tagLen)
	}
	wantCRC := binary.LittleEndian.Uint16(data[8:10])
	gotCRC := encoding.CRC16IBM3740(data[tagLen : tagLen+crcLen])
	if wantCRC != gotCRC {
		return Tag{}, nil, fmt.Errorf("udf: descriptor CRC mismatch")
	}
	t := Tag{
		Identifier:   TagIdentifier(binary.LittleEndian.Uint16(data[0:2])),
		Version:      binary.LittleEndian.Uint16(data[2:4]),
		SerialNumber: binary.LittleEndian.Uint16(data[6:8]),
		Location:     binary.LittleEndian.Uint32(data[12:16]),
	}
	return t, data[tagLen : tagLen+crcLen], nil
}

// ExtentAD is a UDF (length, location) extent descriptor (ECMA-167 3/7.1).
type ExtentAD struct {
	Length   uint32
	Location uint32
}

func (e ExtentAD) marshal(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], e.Length)
	binary.LittleEndian.PutUint32(dst[4:8], e.Location)
}

func unmarshalExtentAD(data []byte) ExtentAD {
	return ExtentAD{
		Length:   binary.LittleEndian.Uint32(data[0:4]),
		Location: binary.LittleEndian.Uint32(data[4:8]),
	}
}

// dstring encodes a UDF "dstring": a fixed-width field whose last byte is
// the number of significant bytes that precede it (ECMA-167 1/7.2.12).
func encodeDString(s string, width int) []byte {
	out := make([]byte, width)
	n := len(s)
	if n > width-1 {
		n = width - 1
	}
	copy(out, s[:n])
	out[width-1] = byte(n)
	return out
}

func decodeDString(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	n := int(data[len(data)-1])
	if n > len(data)-1 {
		n = len(data) - 1
	}
	return string(data[:n])
}

// AnchorVolumeDescriptorPointer (AVDP) locates the Main and Reserve Volume
// Descriptor Sequences. Spec §3 requires it at the fixed locations 256,
// N-256 and N-1, where N is the volume size in sectors.
type AnchorVolumeDescriptorPointer struct {
	MainVDS    ExtentAD
	ReserveVDS ExtentAD
}

func (a *AnchorVolumeDescriptorPointer) Marshal(location uint32) []byte {
	body := make([]byte, tagLen+16)
	a.MainVDS.marshal(body[tagLen : tagLen+8])
	a.ReserveVDS.marshal(body[tagLen+8 : tagLen+16])
	return marshalTag(Tag{Identifier: TagAnchorVolumeDescriptorPointer, Version: 2, Location: location}, body)
}

func UnmarshalAnchorVolumeDescriptorPointer(data []byte) (*AnchorVolumeDescriptorPointer, error) {
	tag, body, err := unmarshalTag(data)
	if err != nil {
		return nil, fmt.Errorf("udf: AVDP: %w", err)
	}
	if tag.Identifier != TagAnchorVolumeDescriptorPointer {
		return nil, fmt.Errorf("udf: expected AVDP tag, got %d", tag.Identifier)
	}
	if len(body) < 16 {
		return nil, fmt.Errorf("udf: AVDP body truncated")
	}
	return &AnchorVolumeDescriptorPointer{
		MainVDS:    unmarshalExtentAD(body[0:8]),
		ReserveVDS: unmarshalExtentAD(body[8:16]),
	}, nil
}

// PrimaryVolumeDescriptor is the UDF PVD (ECMA-167 3/10.1), distinct from
// the ISO9660 PVD pkg/descriptor encodes.
type PrimaryVolumeDescriptor struct {
	VolumeDescriptorSequenceNumber uint32
	PrimaryVolumeDescriptorNumber  uint32
	VolumeIdentifier               string
	VolumeSequenceNumber           uint16
	MaxVolumeSequenceNumber        uint16
	InterchangeLevel               uint16
	MaxInterchangeLevel            uint16
	CharacterSetList               uint32
	MaxCharacterSetList            uint32
	VolumeSetIdentifier            string
}

func (p *PrimaryVolumeDescriptor) Marshal(location uint32) []byte {
	body := make([]byte, tagLen+512-tagLen) // fixed 512-byte descriptor
	b := body[tagLen:]
	binary.LittleEndian.PutUint32(b[0:4], p.VolumeDescriptorSequenceNumber)
	binary.LittleEndian.PutUint32(b[4:8], p.PrimaryVolumeDescriptorNumber)
	copy(b[8:40], encodeDString(p.VolumeIdentifier, 32))
	binary.LittleEndian.PutUint16(b[40:42], p.VolumeSequenceNumber)
	binary.LittleEndian.PutUint16(b[42:44], p.MaxVolumeSequenceNumber)
	binary.LittleEndian.PutUint16(b[44:46], p.InterchangeLevel)
	binary.LittleEndian.PutUint16(b[46:48], p.MaxInterchangeLevel)
	binary.LittleEndian.PutUint32(b[48:52], p.CharacterSetList)
	binary.LittleEndian.PutUint32(b[52:56], p.MaxCharacterSetList)
	copy(b[56:184], encodeDString(p.VolumeSetIdentifier, 128))
	return marshalTag(Tag{Identifier: TagPrimaryVolumeDescriptor, Version: 2, Location: location}, body)
}

func UnmarshalPrimaryVolumeDescriptor(data []byte) (*PrimaryVolumeDescriptor, error) {
	tag, body, err := unmarshalTag(data)
	if err != nil {
		return nil, fmt.Errorf("udf: PVD: %w", err)
	}
	if tag.Identifier != TagPrimaryVolumeDescriptor {
		return nil, fmt.Errorf("udf: expected PVD tag, got %d", tag.Identifier)
	}
	if len(body) < 184 {
		return nil, fmt.Errorf("udf: PVD body truncated")
	}
	return &PrimaryVolumeDescriptor{
		VolumeDescriptorSequenceNumber: binary.LittleEndian.Uint32(body[0:4]),
		PrimaryVolumeDescriptorNumber:  binary.LittleEndian.Uint32(body[4:8]),
		VolumeIdentifier:               decodeDString(body[8:40]),
		VolumeSequenceNumber:           binary.LittleEndian.Uint16(body[40:42]),
		MaxVolumeSequenceNumber:        binary.LittleEndian.Uint16(body[42:44]),
		InterchangeLevel:               binary.LittleEndian.Uint16(body[44:46]),
		MaxInterchangeLevel:            binary.LittleEndian.Uint16(body[46:48]),
		CharacterSetList:               binary.LittleEndian.Uint32(body[48:52]),
		MaxCharacterSetList:            binary.LittleEndian.Uint32(body[52:56]),
		VolumeSetIdentifier:            decodeDString(body[56:184]),
	}, nil
}

// PartitionDescriptor describes the single partition this bridge subset
// publishes (ECMA-167 3/10.5).
type PartitionDescriptor struct {
	VolumeDescriptorSequenceNumber uint32
	PartitionNumber                uint16
	PartitionStartingLocation      uint32
	PartitionLength                uint32
}

func (p *PartitionDescriptor) Marshal(location uint32) []byte {
	body := make([]byte, tagLen+120)
	b := body[tagLen:]
	binary.LittleEndian.PutUint32(b[0:4], p.VolumeDescriptorSequenceNumber)
	binary.LittleEndian.PutUint16(b[4:6], 1) // partition flags: allocated
	binary.LittleEndian.PutUint16(b[6:8], p.PartitionNumber)
	binary.LittleEndian.PutUint32(b[88:92], p.PartitionStartingLocation)
	binary.LittleEndian.PutUint32(b[92:96], p.PartitionLength)
	return marshalTag(Tag{Identifier: TagPartitionDescriptor, Version: 2, Location: location}, body)
}

func UnmarshalPartitionDescriptor(data []byte) (*PartitionDescriptor, error) {
	tag, body, err := unmarshalTag(data)
	if err != nil {
		return nil, fmt.Errorf("udf: partition descriptor: %w", err)
	}
	if tag.Identifier != TagPartitionDescriptor {
		return nil, fmt.Errorf("udf: expected partition descriptor tag, got %d", tag.Identifier)
	}
	if len(body) < 96 {
		return nil, fmt.Errorf("udf: partition descriptor body truncated")
	}
	return &PartitionDescriptor{
		VolumeDescriptorSequenceNumber: binary.LittleEndian.Uint32(body[0:4]),
		PartitionNumber:                binary.LittleEndian.Uint16(body[6:8]),
		PartitionStartingLocation:      binary.LittleEndian.Uint32(body[88:92]),
		PartitionLength:                binary.LittleEndian.Uint32(body[92:96]),
	}, nil
}

// LogicalVolumeDescriptor ties the partition into a logical volume and
// names the File Set Descriptor's location (ECMA-167 3/10.6).
type LogicalVolumeDescriptor struct {
	VolumeDescriptorSequenceNumber uint32
	LogicalVolumeIdentifier        string
	LogicalBlockSize               uint32
	IntegritySequence              ExtentAD
	FileSetDescriptorLocation      ExtentAD // long_ad: partition ref implied to be partition 0
}

func (l *LogicalVolumeDescriptor) Marshal(location uint32) []byte {
	body := make([]byte, tagLen+440)
	b := body[tagLen:]
	binary.LittleEndian.PutUint32(b[0:4], l.VolumeDescriptorSequenceNumber)
	copy(b[4:68], make([]byte, 64)) // character set, omitted (OSTA CS0 not modeled)
	copy(b[68:196], encodeDString(l.LogicalVolumeIdentifier, 128))
	binary.LittleEndian.PutUint32(b[196:200], l.LogicalBlockSize)
	l.IntegritySequence.marshal(b[408:416])
	binary.LittleEndian.PutUint32(b[416:420], l.FileSetDescriptorLocation.Length)
	binary.LittleEndian.PutUint32(b[420:424], l.FileSetDescriptorLocation.Location)
	return marshalTag(Tag{Identifier: TagLogicalVolumeDescriptor, Version: 2, Location: location}, body)
}

func UnmarshalLogicalVolumeDescriptor(data []byte) (*LogicalVolumeDescriptor, error) {
	tag, body, err := unmarshalTag(data)
	if err != nil {
		return nil, fmt.Errorf("udf: logical volume descriptor: %w", err)
	}
	if tag.Identifier != TagLogicalVolumeDescriptor {
		return nil, fmt.Errorf("udf: expected logical volume descriptor tag, got %d", tag.Identifier)
	}
	if len(body) < 424 {
		return nil, fmt.Errorf("udf: logical volume descriptor body truncated")
	}
	return &LogicalVolumeDescriptor{
		VolumeDescriptorSequenceNumber: binary.LittleEndian.Uint32(body[0:4]),
		LogicalVolumeIdentifier:        decodeDString(body[68:196]),
		LogicalBlockSize:               binary.LittleEndian.Uint32(body[196:200]),
		IntegritySequence:              unmarshalExtentAD(body[408:416]),
		FileSetDescriptorLocation: ExtentAD{
			Length:   binary.LittleEndian.Uint32(body[416:420]),
			Location: binary.LittleEndian.Uint32(body[420:424]),
		},
	}, nil
}

// UnallocatedSpaceDescriptor reports free extents; this bridge subset
// always publishes zero of them (ECMA-167 3/10.8).
type UnallocatedSpaceDescriptor struct {
	VolumeDescriptorSequenceNumber uint32
}

func (u *UnallocatedSpaceDescriptor) Marshal(location uint32) []byte {
	body := make([]byte, tagLen+8)
	binary.LittleEndian.PutUint32(body[tagLen:tagLen+4], u.VolumeDescriptorSequenceNumber)
	return marshalTag(Tag{Identifier: TagUnallocatedSpaceDescriptor, Version: 2, Location: location}, body)
}

// TerminatingDescriptor closes a descriptor sequence (ECMA-167 3/10.9).
type TerminatingDescriptor struct{}

func (t *TerminatingDescriptor) Marshal(location uint32) []byte {
	body := make([]byte, tagLen)
	return marshalTag(Tag{Identifier: TagTerminatingDescriptor, Version: 2, Location: location}, body)
}

// LogicalVolumeIntegrityDescriptor records the volume's open/closed
// integrity state and next unique ID (ECMA-167 3/10.10). This bridge
// subset writes it once, already closed (Close), since add/rm operations
// happen entirely before write (spec §5 "write" is the only point volumes
// reach disc).
type LogicalVolumeIntegrityDescriptor struct {
	Open          bool
	NextUniqueID  uint64
	NumberOfFiles uint32
	NumberOfDirs  uint32
}

const (
	integrityOpen   uint32 = 1
	integrityClosed uint32 = 0
)

func (l *LogicalVolumeIntegrityDescriptor) Marshal(location uint32) []byte {
	body := make([]byte, tagLen+80)
	b := body[tagLen:]
	state := integrityClosed
	if l.Open {
		state = integrityOpen
	}
	binary.LittleEndian.PutUint32(b[32:36], state)
	binary.LittleEndian.PutUint64(b[40:48], l.NextUniqueID)
	binary.LittleEndian.PutUint32(b[48:52], 0) // number of partitions
	binary.LittleEndian.PutUint32(b[52:56], 0) // LVID implementation use length
	binary.LittleEndian.PutUint32(b[68:72], l.NumberOfFiles)
	binary.LittleEndian.PutUint32(b[72:76], l.NumberOfDirs)
	return marshalTag(Tag{Identifier: TagLogicalVolumeIntegrityDescriptor, Version: 2, Location: location}, body)
}

// LongAD is a long allocation descriptor: (length, location, partition
// reference) (ECMA-167 4/14.14.2).
type LongAD struct {
	Length           uint32
	Location         uint32
	PartitionNumber  uint16
}

func (l LongAD) marshal(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], l.Length)
	binary.LittleEndian.PutUint32(dst[4:8], l.Location)
	binary.LittleEndian.PutUint16(dst[8:10], l.PartitionNumber)
}

func unmarshalLongAD(data []byte) LongAD {
	return LongAD{
		Length:          binary.LittleEndian.Uint32(data[0:4]),
		Location:        binary.LittleEndian.Uint32(data[4:8]),
		PartitionNumber: binary.LittleEndian.Uint16(data[8:10]),
	}
}

// FileSetDescriptor roots the file system: it names the logical volume and
// points at the root directory's File Entry (ECMA-167 4/14.1).
type FileSetDescriptor struct {
	LogicalVolumeIdentifier string
	FileSetNumber           uint32
	RootDirectoryICB        LongAD
}

func (f *FileSetDescriptor) Marshal(location uint32) []byte {
	body := make([]byte, tagLen+512-tagLen)
	b := body[tagLen:]
	copy(b[36:164], encodeDString(f.LogicalVolumeIdentifier, 128))
	binary.LittleEndian.PutUint32(b[212:216], f.FileSetNumber)
	f.RootDirectoryICB.marshal(b[400:416])
	return marshalTag(Tag{Identifier: TagFileSetDescriptor, Version: 2, Location: location}, body)
}

func UnmarshalFileSetDescriptor(data []byte) (*FileSetDescriptor, error) {
	tag, body, err := unmarshalTag(data)
	if err != nil {
		return nil, fmt.Errorf("udf: file set descriptor: %w", err)
	}
	if tag.Identifier != TagFileSetDescriptor {
		return nil, fmt.Errorf("udf: expected file set descriptor tag, got %d", tag.Identifier)
	}
	if len(body) < 416 {
		return nil, fmt.Errorf("udf: file set descriptor body truncated")
	}
	return &FileSetDescriptor{
		LogicalVolumeIdentifier: decodeDString(body[36:164]),
		FileSetNumber:           binary.LittleEndian.Uint32(body[212:216]),
		RootDirectoryICB:        unmarshalLongAD(body[400:416]),
	}, nil
}

// ICBTag classifies a File Entry's content (ECMA-167 4/14.6).
type FileType uint8

const (
	FileTypeUnspecified FileType = 0
	FileTypeDirectory   FileType = 4
	FileTypeRegular     FileType = 5
	FileTypeSymlink     FileType = 12
)

// FileEntry is a UDF ICB (Information Control Block) describing one file's
// metadata and the location of its content (ECMA-167 4/14.9). This bridge
// subset only ever embeds its allocation descriptors inline (short_ad),
// since every mapped file is a single contiguous extent.
type FileEntry struct {
	UID              uint32
	GID              uint32
	Permissions      uint32
	FileLinkCount    uint16
	Type             FileType
	InformationLength uint64
	ExtentLength     uint32
	ExtentLocation   uint32
}

const shortADLen = 8

func (f *FileEntry) Marshal(location uint32) []byte {
	const fixed = 176
	body := make([]byte, tagLen+fixed+shortADLen)
	b := body[tagLen:]
	binary.LittleEndian.PutUint16(b[0:2], 0)            // ICB tag priorType reserved
	binary.LittleEndian.PutUint16(b[18:20], uint16(f.Type))
	binary.LittleEndian.PutUint32(b[20:24], f.UID)
	binary.LittleEndian.PutUint32(b[24:28], f.GID)
	binary.LittleEndian.PutUint32(b[28:32], f.Permissions)
	binary.LittleEndian.PutUint16(b[32:34], f.FileLinkCount)
	binary.LittleEndian.PutUint64(b[56:64], f.InformationLength)
	binary.LittleEndian.PutUint32(b[168:172], uint32(shortADLen)) // allocation descriptors length
	ad := b[fixed : fixed+shortADLen]
	binary.LittleEndian.PutUint32(ad[0:4], f.ExtentLength)
	binary.LittleEndian.PutUint32(ad[4:8], f.ExtentLocation)
	return marshalTag(Tag{Identifier: TagFileEntry, Version: 2, Location: location}, body)
}

func UnmarshalFileEntry(data []byte) (*FileEntry, error) {
	tag, body, err := unmarshalTag(data)
	if err != nil {
		return nil, fmt.Errorf("udf: file entry: %w", err)
	}
	if tag.Identifier != TagFileEntry {
		return nil, fmt.Errorf("udf: expected file entry tag, got %d", tag.Identifier)
	}
	const fixed = 176
	if len(body) < fixed+shortADLen {
		return nil, fmt.Errorf("udf: file entry body truncated")
	}
	ad := body[fixed : fixed+shortADLen]
	return &FileEntry{
		Type:              FileType(binary.LittleEndian.Uint16(body[18:20])),
		UID:               binary.LittleEndian.Uint32(body[20:24]),
		GID:               binary.LittleEndian.Uint32(body[24:28]),
		Permissions:       binary.LittleEndian.Uint32(body[28:32]),
		FileLinkCount:     binary.LittleEndian.Uint16(body[32:34]),
		InformationLength: binary.LittleEndian.Uint64(body[56:64]),
		ExtentLength:      binary.LittleEndian.Uint32(ad[0:4]),
		ExtentLocation:    binary.LittleEndian.Uint32(ad[4:8]),
	}, nil
}

// FileIdentifierDescriptor names one directory child and references its
// File Entry (ECMA-167 4/14.4).
type FileIdentifierDescriptor struct {
	FileVersionNumber uint16
	Characteristics   uint8
	ICB               LongAD
	Identifier        string // empty for the "parent" self-reference entry
}

const (
	FileCharacteristicHidden   uint8 = 1 << 0
	FileCharacteristicDirectory uint8 = 1 << 1
	FileCharacteristicDeleted  uint8 = 1 << 2
	FileCharacteristicParent   uint8 = 1 << 3
)

func (f *FileIdentifierDescriptor) Marshal(location uint32) []byte {
	idBytes := []byte{}
	if f.Identifier != "" {
		idBytes = append([]byte{8}, []byte(f.Identifier)...) // CS0 compression ID 8: 8-bit
	}
	const fixed = 38
	padded := idBytes
	for len(padded)%4 != 0 {
		padded = append(padded, 0)
	}
	body := make([]byte, tagLen+fixed+len(padded))
	b := body[tagLen:]
	binary.LittleEndian.PutUint16(b[0:2], f.FileVersionNumber)
	b[2] = f.Characteristics
	b[3] = byte(len(idBytes))
	f.ICB.marshal(b[4:20])
	binary.LittleEndian.PutUint16(b[20:22], 0) // implementation use length
	copy(b[fixed:], padded)
	return marshalTag(Tag{Identifier: TagFileIdentifierDescriptor, Version: 2, Location: location}, body)
}

func UnmarshalFileIdentifierDescriptor(data []byte) (*FileIdentifierDescriptor, int, error) {
	tag, body, err := unmarshalTag(data)
	if err != nil {
		return nil, 0, fmt.Errorf("udf: file identifier descriptor: %w", err)
	}
	if tag.Identifier != TagFileIdentifierDescriptor {
		return nil, 0, fmt.Errorf("udf: expected file identifier descriptor tag, got %d", tag.Identifier)
	}
	const fixed = 38
	if len(body) < fixed {
		return nil, 0, fmt.Errorf("udf: file identifier descriptor body truncated")
	}
	idLen := int(body[3])
	total := fixed + idLen
	for total%4 != 0 {
		total++
	}
	if len(body) < total {
		return nil, 0, fmt.Errorf("udf: file identifier descriptor name truncated")
	}
	fid := &FileIdentifierDescriptor{
		FileVersionNumber: binary.LittleEndian.Uint16(body[0:2]),
		Characteristics:   body[2],
		ICB:               unmarshalLongAD(body[4:20]),
	}
	if idLen > 1 {
		fid.Identifier = string(body[fixed+1 : fixed+idLen])
	}
	return fid, tagLen + total, nil
}
