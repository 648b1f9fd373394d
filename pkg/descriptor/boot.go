package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/encoding"
)

const (
	// BOOT_SYSTEM_USE_SIZE is the size of a sector minus the 71-byte
	// header every Boot Record carries (ECMA-119 8.2).
	BOOT_SYSTEM_USE_SIZE = consts.ISO9660_SECTOR_SIZE - 71

	// ElToritoBootSystemIdentifier is the fixed a-character string that
	// marks a Boot Record as an El Torito catalog pointer ("Bootable CD-ROM
	// Format" 1.0 §2.1).
	ElToritoBootSystemIdentifier = "EL TORITO SPECIFICATION"
)

// BootRecordDescriptor is the ECMA-119 8.2 Boot Record. Its only use in
// this module is carrying the El Torito boot catalog's location (spec §4.2
// El Torito, §4.1 add_eltorito).
type BootRecordDescriptor struct {
	VolumeDescriptorHeader
	BootRecordBody
}

type BootRecordBody struct {
	BootSystemIdentifier string
	BootIdentifier        string
	BootSystemUse         [BOOT_SYSTEM_USE_SIZE]byte
}

// BootCatalogLocation returns the LBA El Torito's boot catalog pointer
// names (the first 4 bytes of the Boot System Use field).
func (d *BootRecordBody) BootCatalogLocation() uint32 {
	return binary.LittleEndian.Uint32(d.BootSystemUse[0:4])
}

// SetBootCatalogLocation writes the boot catalog pointer.
func (d *BootRecordBody) SetBootCatalogLocation(lba uint32) {
	binary.LittleEndian.PutUint32(d.BootSystemUse[0:4], lba)
}

// Marshal encodes the descriptor into its fixed 2048-byte on-disc form.
func (d *BootRecordDescriptor) Marshal() ([consts.ISO9660_SECTOR_SIZE]byte, error) {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	out[0] = byte(VolumeDescriptorBootRecord)
	copy(out[1:6], consts.ISO9660_STD_IDENTIFIER)
	out[6] = 1
	copy(out[7:39], encoding.MarshalString(d.BootSystemIdentifier, 32))
	copy(out[39:71], encoding.MarshalString(d.BootIdentifier, 32))
	copy(out[71:], d.BootSystemUse[:])
	return out, nil
}

// Unmarshal decodes a Boot Record Volume Descriptor sector.
func (d *BootRecordDescriptor) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	if VolumeDescriptorType(data[0]) != VolumeDescriptorBootRecord {
		return fmt.Errorf("descriptor: expected boot record type, got %d", data[0])
	}
	d.VolumeDescriptorType = VolumeDescriptorType(data[0])
	d.StandardIdentifier = string(data[1:6])
	d.VolumeDescriptorVersion = data[6]
	d.BootSystemIdentifier = trimTrailingSpace(string(data[7:39]))
	d.BootIdentifier = trimTrailingSpace(string(data[39:71]))
	copy(d.BootSystemUse[:], data[71:])
	return nil
}
