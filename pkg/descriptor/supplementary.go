package descriptor

import (
	"fmt"
	"time"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/path"
)

// JolietEscapeLevel1/2/3 are the Joliet UCS-2 escape sequences this
// descriptor's EscapeSequences field carries, selecting which BMP subset
// identifiers are restricted to (spec §4.3 Joliet).
var (
	JolietEscapeLevel1 = [3]byte{0x25, 0x2F, 0x40}
	JolietEscapeLevel2 = [3]byte{0x25, 0x2F, 0x43}
	JolietEscapeLevel3 = [3]byte{0x25, 0x2F, 0x45}
)

// SupplementaryVolumeDescriptor is the ECMA-119 8.5 Supplementary Volume
// Descriptor. This implementation's only consumer is the Joliet extension
// (spec §4.3): identifiers are encoded as UCS-2BE rather than d-characters.
type SupplementaryVolumeDescriptor struct {
	VolumeDescriptorHeader
	SupplementaryVolumeDescriptorBody
}

type SupplementaryVolumeDescriptorBody struct {
	VolumeFlags                       byte
	SystemIdentifier                  string
	VolumeIdentifier                  string
	EscapeSequences                   [32]byte
	VolumeSpaceSize                   uint32
	VolumeSetSize                     uint16
	VolumeSequenceNumber              uint16
	LogicalBlockSize                  uint16
	PathTableSize                     uint32
	LocationOfTypeLPathTable          uint32
	LocationOfOptionalTypeLPathTable  uint32
	LocationOfTypeMPathTable          uint32
	LocationOfOptionalTypeMPathTable  uint32
	RootDirectoryRecord               *directory.DirectoryRecord
	VolumeSetIdentifier               string
	PublisherIdentifier               string
	DataPreparerIdentifier            string
	ApplicationIdentifier             string
	CopyrightFileIdentifier           string
	AbstractFileIdentifier            string
	BibliographicFileIdentifier       string
	VolumeCreationDateAndTime         time.Time
	VolumeModificationDateAndTime     time.Time
	VolumeExpirationDateAndTime       time.Time
	VolumeEffectiveDateAndTime        time.Time
	FileStructureVersion              uint8
	ApplicationUse                    [consts.ISO9660_APPLICATION_USE_SIZE]byte
}

func marshalJolietString(s string, width int) []byte {
	b, err := encoding.EncodeUCS2BE(s)
	if err != nil {
		b = nil
	}
	out := make([]byte, width)
	n := len(b)
	if n > width {
		n = width - n%2
	}
	copy(out, b[:n])
	for i := n; i+1 < width; i += 2 {
		out[i], out[i+1] = 0x00, 0x20
	}
	return out
}

// Marshal encodes the descriptor into its fixed 2048-byte on-disc form.
func (d *SupplementaryVolumeDescriptor) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	out[0] = byte(VolumeDescriptorSupplementary)
	copy(out[1:6], consts.ISO9660_STD_IDENTIFIER)
	out[6] = 1
	out[7] = d.VolumeFlags

	copy(out[8:40], encoding.MarshalString(d.SystemIdentifier, 32))
	copy(out[40:72], marshalJolietString(d.VolumeIdentifier, 32))
	copy(out[88:120], d.EscapeSequences[:])
	encoding.WriteInt32LSBMSB(out[80:88], int32(d.VolumeSpaceSize))
	encoding.WriteInt16LSBMSB(out[120:124], int16(d.VolumeSetSize))
	encoding.WriteInt16LSBMSB(out[124:128], int16(d.VolumeSequenceNumber))
	encoding.WriteInt16LSBMSB(out[128:132], int16(d.LogicalBlockSize))
	encoding.WriteInt32LSBMSB(out[132:140], int32(d.PathTableSize))
	putLE32(out[140:144], d.LocationOfTypeLPathTable)
	putLE32(out[144:148], d.LocationOfOptionalTypeLPathTable)
	putBE32(out[148:152], d.LocationOfTypeMPathTable)
	putBE32(out[152:156], d.LocationOfOptionalTypeMPathTable)

	if d.RootDirectoryRecord != nil {
		rootBytes, err := d.RootDirectoryRecord.Marshal()
		if err != nil {
			return out, fmt.Errorf("descriptor: joliet root directory record: %w", err)
		}
		if len(rootBytes) > 34 {
			rootBytes = rootBytes[:34]
		}
		copy(out[156:190], rootBytes)
	}

	copy(out[190:318], marshalJolietString(d.VolumeSetIdentifier, 128))
	copy(out[318:446], marshalJolietString(d.PublisherIdentifier, 128))
	copy(out[446:574], marshalJolietString(d.DataPreparerIdentifier, 128))
	copy(out[574:702], marshalJolietString(d.ApplicationIdentifier, 128))
	copy(out[702:739], encoding.MarshalString(d.CopyrightFileIdentifier, 37))
	copy(out[739:776], encoding.MarshalString(d.AbstractFileIdentifier, 37))
	copy(out[776:813], encoding.MarshalString(d.BibliographicFileIdentifier, 37))

	copy(out[813:830], encoding.EncodeVolumeDescriptorTime(d.VolumeCreationDateAndTime))
	copy(out[830:847], encoding.EncodeVolumeDescriptorTime(d.VolumeModificationDateAndTime))
	copy(out[847:864], encoding.EncodeVolumeDescriptorTime(d.VolumeExpirationDateAndTime))
	copy(out[864:881], encoding.EncodeVolumeDescriptorTime(d.VolumeEffectiveDateAndTime))

	fsv := d.FileStructureVersion
	if fsv == 0 {
		fsv = 1
	}
	out[881] = fsv
	copy(out[883:883+len(d.ApplicationUse)], d.ApplicationUse[:])

	return out, nil
}

// Unmarshal decodes a Supplementary Volume Descriptor sector.
func (d *SupplementaryVolumeDescriptor) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte, source ReaderAt) error {
	if VolumeDescriptorType(data[0]) != VolumeDescriptorSupplementary {
		return fmt.Errorf("descriptor: expected supplementary volume descriptor type, got %d", data[0])
	}
	d.VolumeDescriptorType = VolumeDescriptorType(data[0])
	d.StandardIdentifier = string(data[1:6])
	d.VolumeDescriptorVersion = data[6]
	d.VolumeFlags = data[7]

	d.SystemIdentifier = trimTrailingSpace(string(data[8:40]))
	copy(d.EscapeSequences[:], data[88:120])

	jolietName, err := decodeJolietField(data[40:72])
	if err != nil {
		return fmt.Errorf("descriptor: joliet volume identifier: %w", err)
	}
	d.VolumeIdentifier = jolietName

	spaceSize, err := encoding.UnmarshalUint32LSBMSB(data[80:88])
	if err != nil {
		return fmt.Errorf("descriptor: volume space size: %w", err)
	}
	d.VolumeSpaceSize = spaceSize

	setSize, err := encoding.UnmarshalInt16LSBMSB(data[120:124])
	if err != nil {
		return fmt.Errorf("descriptor: volume set size: %w", err)
	}
	d.VolumeSetSize = uint16(setSize)

	seqNum, err := encoding.UnmarshalInt16LSBMSB(data[124:128])
	if err != nil {
		return fmt.Errorf("descriptor: volume sequence number: %w", err)
	}
	d.VolumeSequenceNumber = uint16(seqNum)

	blockSize, err := encoding.UnmarshalInt16LSBMSB(data[128:132])
	if err != nil {
		return fmt.Errorf("descriptor: logical block size: %w", err)
	}
	d.LogicalBlockSize = uint16(blockSize)

	tableSize, err := encoding.UnmarshalUint32LSBMSB(data[132:140])
	if err != nil {
		return fmt.Errorf("descriptor: path table size: %w", err)
	}
	d.PathTableSize = tableSize

	d.LocationOfTypeLPathTable = getLE32(data[140:144])
	d.LocationOfOptionalTypeLPathTable = getLE32(data[144:148])
	d.LocationOfTypeMPathTable = getBE32(data[148:152])
	d.LocationOfOptionalTypeMPathTable = getBE32(data[152:156])

	root := &directory.DirectoryRecord{Joliet: true}
	if err := root.Unmarshal(data[156:190], source); err != nil {
		return fmt.Errorf("descriptor: joliet root directory record: %w", err)
	}
	d.RootDirectoryRecord = root

	if d.VolumeSetIdentifier, err = decodeJolietField(data[190:318]); err != nil {
		return fmt.Errorf("descriptor: joliet volume set identifier: %w", err)
	}
	if d.PublisherIdentifier, err = decodeJolietField(data[318:446]); err != nil {
		return fmt.Errorf("descriptor: joliet publisher identifier: %w", err)
	}
	if d.DataPreparerIdentifier, err = decodeJolietField(data[446:574]); err != nil {
		return fmt.Errorf("descriptor: joliet data preparer identifier: %w", err)
	}
	if d.ApplicationIdentifier, err = decodeJolietField(data[574:702]); err != nil {
		return fmt.Errorf("descriptor: joliet application identifier: %w", err)
	}
	d.CopyrightFileIdentifier = trimTrailingSpace(string(data[702:739]))
	d.AbstractFileIdentifier = trimTrailingSpace(string(data[739:776]))
	d.BibliographicFileIdentifier = trimTrailingSpace(string(data[776:813]))

	if t, err := encoding.DecodeVolumeDescriptorTime(data[813:830]); err == nil {
		d.VolumeCreationDateAndTime = t
	}
	if t, err := encoding.DecodeVolumeDescriptorTime(data[830:847]); err == nil {
		d.VolumeModificationDateAndTime = t
	}
	if t, err := encoding.DecodeVolumeDescriptorTime(data[847:864]); err == nil {
		d.VolumeExpirationDateAndTime = t
	}
	if t, err := encoding.DecodeVolumeDescriptorTime(data[864:881]); err == nil {
		d.VolumeEffectiveDateAndTime = t
	}
	d.FileStructureVersion = data[881]
	copy(d.ApplicationUse[:], data[883:883+len(d.ApplicationUse)])

	return nil
}

// PathTables returns the decoded L and M path tables for this descriptor.
func (d *SupplementaryVolumeDescriptorBody) PathTables(source ReaderAt) (path.Table, path.Table, error) {
	lBuf := make([]byte, d.PathTableSize)
	if _, err := source.ReadAt(lBuf, int64(d.LocationOfTypeLPathTable)*consts.ISO9660_SECTOR_SIZE); err != nil {
		return nil, nil, fmt.Errorf("descriptor: reading joliet L path table: %w", err)
	}
	lTable, err := path.Unmarshal(lBuf, int(d.PathTableSize), path.LittleEndian)
	if err != nil {
		return nil, nil, fmt.Errorf("descriptor: decoding joliet L path table: %w", err)
	}

	mBuf := make([]byte, d.PathTableSize)
	if _, err := source.ReadAt(mBuf, int64(d.LocationOfTypeMPathTable)*consts.ISO9660_SECTOR_SIZE); err != nil {
		return nil, nil, fmt.Errorf("descriptor: reading joliet M path table: %w", err)
	}
	mTable, err := path.Unmarshal(mBuf, int(d.PathTableSize), path.BigEndian)
	if err != nil {
		return nil, nil, fmt.Errorf("descriptor: decoding joliet M path table: %w", err)
	}
	return lTable, mTable, nil
}

func decodeJolietField(data []byte) (string, error) {
	s, err := encoding.DecodeUCS2BE(data)
	if err != nil {
		return "", err
	}
	i := len(s)
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	return s[:i], nil
}
