package descriptor

import (
	"fmt"
	"time"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/path"
)

const (
	// PRIMARY_RESERVED_FIELD2_SIZE is the reserved-for-future-use region
	// from BP 1396 to BP 2048 (ECMA-119 8.4).
	PRIMARY_RESERVED_FIELD2_SIZE = 653
)

// PrimaryVolumeDescriptor is the mandatory ECMA-119 8.4 Primary Volume
// Descriptor: every ISO9660 volume carries exactly one (spec §3 Volume
// Descriptors).
type PrimaryVolumeDescriptor struct {
	VolumeDescriptorHeader
	PrimaryVolumeDescriptorBody
}

type PrimaryVolumeDescriptorBody struct {
	SystemIdentifier                  string
	VolumeIdentifier                  string
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

// Marshal encodes the descriptor into its fixed 2048-byte on-disc form.
func (d *PrimaryVolumeDescriptor) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	out[0] = byte(VolumeDescriptorPrimary)
	copy(out[1:6], consts.ISO9660_STD_IDENTIFIER)
	out[6] = 1 // volume descriptor version

	copy(out[8:40], encoding.MarshalString(d.SystemIdentifier, 32))
	copy(out[40:72], encoding.MarshalString(d.VolumeIdentifier, 32))
	encoding.WriteInt32LSBMSB(out[80:88], int32(d.VolumeSpaceSize))
	encoding.WriteInt16LSBMSB(out[120:124], int16(d.VolumeSetSize))
	encoding.WriteInt16LSBMSB(out[124:128], int16(d.VolumeSequenceNumber))
	encoding.WriteInt16LSBMSB(out[128:132], int16(d.LogicalBlockSize))
	encoding.WriteInt32LSBMSB(out[132:140], int32(d.PathTableSize))

	// Path table locations are LE-only/BE-only, not both-byte-order; use
	// the raw layout ECMA-119 7.3.1/7.3.2 specifies.
	putLE32(out[140:144], d.LocationOfTypeLPathTable)
	putLE32(out[144:148], d.LocationOfOptionalTypeLPathTable)
	putBE32(out[148:152], d.LocationOfTypeMPathTable)
	putBE32(out[152:156], d.LocationOfOptionalTypeMPathTable)

	if d.RootDirectoryRecord != nil {
		rootBytes, err := d.RootDirectoryRecord.Marshal()
		if err != nil {
			return out, fmt.Errorf("descriptor: root directory record: %w", err)
		}
		if len(rootBytes) > 34 {
			rootBytes = rootBytes[:34]
		}
		copy(out[156:190], rootBytes)
	}

	copy(out[190:318], encoding.MarshalString(d.VolumeSetIdentifier, 128))
	copy(out[318:446], encoding.MarshalString(d.PublisherIdentifier, 128))
	copy(out[446:574], encoding.MarshalString(d.DataPreparerIdentifier, 128))
	copy(out[574:702], encoding.MarshalString(d.ApplicationIdentifier, 128))
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

// ReaderAt is the minimal interface Unmarshal needs to resolve the root
// directory record's Rock Ridge continuation areas.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Unmarshal decodes a Primary Volume Descriptor sector.
func (d *PrimaryVolumeDescriptor) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte, source ReaderAt) error {
	if VolumeDescriptorType(data[0]) != VolumeDescriptorPrimary {
		return fmt.Errorf("descriptor: expected primary volume descriptor type, got %d", data[0])
	}
	d.VolumeDescriptorType = VolumeDescriptorType(data[0])
	d.StandardIdentifier = string(data[1:6])
	d.VolumeDescriptorVersion = data[6]

	d.SystemIdentifier = trimTrailingSpace(string(data[8:40]))
	d.VolumeIdentifier = trimTrailingSpace(string(data[40:72]))

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

	root := &directory.DirectoryRecord{}
	if err := root.Unmarshal(data[156:190], source); err != nil {
		return fmt.Errorf("descriptor: root directory record: %w", err)
	}
	d.RootDirectoryRecord = root

	d.VolumeSetIdentifier = trimTrailingSpace(string(data[190:318]))
	d.PublisherIdentifier = trimTrailingSpace(string(data[318:446]))
	d.DataPreparerIdentifier = trimTrailingSpace(string(data[446:574]))
	d.ApplicationIdentifier = trimTrailingSpace(string(data[574:702]))
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

// PathTables returns the decoded L and M path tables for this descriptor
// by reading them from source.
func (d *PrimaryVolumeDescriptorBody) PathTables(source ReaderAt) (path.Table, path.Table, error) {
	lBuf := make([]byte, d.PathTableSize)
	if _, err := source.ReadAt(lBuf, int64(d.LocationOfTypeLPathTable)*consts.ISO9660_SECTOR_SIZE); err != nil {
		return nil, nil, fmt.Errorf("descriptor: reading L path table: %w", err)
	}
	lTable, err := path.Unmarshal(lBuf, int(d.PathTableSize), path.LittleEndian)
	if err != nil {
		return nil, nil, fmt.Errorf("descriptor: decoding L path table: %w", err)
	}

	mBuf := make([]byte, d.PathTableSize)
	if _, err := source.ReadAt(mBuf, int64(d.LocationOfTypeMPathTable)*consts.ISO9660_SECTOR_SIZE); err != nil {
		return nil, nil, fmt.Errorf("descriptor: reading M path table: %w", err)
	}
	mTable, err := path.Unmarshal(mBuf, int(d.PathTableSize), path.BigEndian)
	if err != nil {
		return nil, nil, fmt.Errorf("descriptor: decoding M path table: %w", err)
	}
	return lTable, mTable, nil
}

func trimTrailingSpace(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	return s[:i]
}

func putLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func putBE32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

func getLE32(data []byte) uint32 {
	return uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
}

func getBE32(data []byte) uint32 {
	return uint32(data[3]) | uint32(data[2])<<8 | uint32(data[1])<<16 | uint32(data[0])<<24
}
