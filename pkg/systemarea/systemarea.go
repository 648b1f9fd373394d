// Package systemarea implements the ECMA-119 System Area (the 16 reserved
// blocks preceding the Volume Descriptor Set) and the isohybrid MBR
// prelude that replaces its first 512 bytes when add_isohybrid is used
// (spec §3 "Isohybrid MBR", §4.1 add_isohybrid).
package systemarea

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/consts"
)

// Size is the full 32 KiB system area (16 sectors x 2048 bytes).
const Size = consts.ISO9660_SYSTEM_AREA_SECTORS * consts.ISO9660_SECTOR_SIZE

// SystemArea is the raw byte image of the system area; in a plain ISO9660
// image it is all zero, and add_isohybrid overwrites its first 512 bytes
// with an MBR (spec §4.2 "System area ... optionally prefixed by the
// isohybrid MBR").
type SystemArea [Size]byte

// partitionEntry is one 16-byte MBR partition table entry (standard PC
// BIOS layout, used verbatim by syslinux's isohybrid convention).
type partitionEntry struct {
	Bootable  byte
	StartCHS  [3]byte
	Type      byte
	EndCHS    [3]byte
	StartLBA  uint32
	SectorCnt uint32
}

func (p partitionEntry) marshal(dst []byte) {
	dst[0] = p.Bootable
	copy(dst[1:4], p.StartCHS[:])
	dst[4] = p.Type
	copy(dst[5:8], p.EndCHS[:])
	binary.LittleEndian.PutUint32(dst[8:12], p.StartLBA)
	binary.LittleEndian.PutUint32(dst[12:16], p.SectorCnt)
}

// chs encodes a cylinder/head/sector address for the given LBA under the
// fixed syslinux isohybrid geometry (64 heads x 32 sectors/track), capping
// at cylinder 1023, head 63, sector 32 (the last cylinder, head and sector
// of that geometry) once a disc exceeds what CHS can address.
func chs(lba uint32) [3]byte {
	const heads = consts.ISOHYBRID_HEADS
	const sectorsPerTrack = consts.ISOHYBRID_SECTORS
	cylinder := lba / (heads * sectorsPerTrack)
	head := (lba / sectorsPerTrack) % heads
	sector := lba%sectorsPerTrack + 1

	if cylinder > 1023 {
		cylinder = 1023
		head = heads - 1
		sector = sectorsPerTrack
	}
	return [3]byte{
		byte(head),
		byte(sector&0x3F) | byte((cylinder>>2)&0xC0),
		byte(cylinder & 0xFF),
	}
}

// MBR describes the isohybrid partition table add_isohybrid installs.
type MBR struct {
	// TotalSectors512 is the image's total length in 512-byte sectors,
	// used as the single data partition's size: the whole ISO image
	// aliased as a block device (spec §3 "Isohybrid MBR").
	TotalSectors512 uint32
	// Mac requests the additional UEFI/Mac partition entry required by
	// add_isohybrid(mac=true) (spec §4.1).
	Mac bool
}

// Marshal encodes the 512-byte MBR prelude: a partition table with one
// entry aliasing the whole ISO content starting at LBA 0, and the 0x55AA
// boot signature (spec §4.1 add_isohybrid, §8 scenario 6). The boot code
// area (offsets 0-0x1BD) is left zero; it is filled by whatever El Torito
// boot loader the image itself carries, not by this package.
func (m *MBR) Marshal() ([512]byte, error) {
	var out [512]byte
	if m.TotalSectors512 == 0 {
		return out, fmt.Errorf("systemarea: isohybrid MBR requires a non-zero total sector count")
	}

	entries := []partitionEntry{{
		Bootable:  0x80,
		StartCHS:  chs(1),
		Type:      0x17, // hidden NTFS-style type, syslinux's convention for the aliased CD partition
		EndCHS:    chs(m.TotalSectors512 - 1),
		StartLBA:  0,
		SectorCnt: m.TotalSectors512,
	}}
	if m.Mac {
		// A second partition of type 0xEF (EFI System) describing the
		// same extent lets EFI firmware see the El Torito EFI image as
		// a partition without a GPT (spec §4.1 add_isohybrid "with mac").
		entries = append(entries, partitionEntry{
			Bootable:  0x00,
			StartCHS:  chs(1),
			Type:      0xEF,
			EndCHS:    chs(m.TotalSectors512 - 1),
			StartLBA:  0,
			SectorCnt: m.TotalSectors512,
		})
	}

	const tableOffset = 0x1BE
	for i, e := range entries {
		if i >= 4 {
			break
		}
		e.marshal(out[tableOffset+i*16 : tableOffset+i*16+16])
	}
	out[510] = 0x55
	out[511] = 0xAA
	return out, nil
}

// ValidateInitialBootEntry checks the boot_load_size=4 / signature
// requirement add_isohybrid places on the El Torito initial entry's boot
// file (spec §4.1 add_isohybrid: validates the initial boot entry against
// a fixed load size and signature offset).
func ValidateInitialBootEntry(bootFile []byte, loadSizeBlocks uint16) error {
	if loadSizeBlocks != 4 {
		return fmt.Errorf("systemarea: isohybrid requires boot_load_size=4, got %d", loadSizeBlocks)
	}
	end := int(consts.ISOHYBRID_SIGNATURE_OFFSET) + len(consts.ISOHYBRID_SIGNATURE)
	if len(bootFile) < end {
		return fmt.Errorf("systemarea: boot file too short for isohybrid signature check")
	}
	sig := bootFile[consts.ISOHYBRID_SIGNATURE_OFFSET:end]
	for i, b := range consts.ISOHYBRID_SIGNATURE {
		if sig[i] != b {
			return fmt.Errorf("systemarea: boot file missing isohybrid signature at offset 0x%x", consts.ISOHYBRID_SIGNATURE_OFFSET)
		}
	}
	return nil
}

// InstallMBR overwrites area's first 512 bytes with mbr's encoding.
func InstallMBR(area *SystemArea, mbr *MBR) error {
	enc, err := mbr.Marshal()
	if err != nil {
		return err
	}
	copy(area[:512], enc[:])
	return nil
}

// RemoveMBR zeroes area's first 512 bytes, reverting to a plain ISO9660
// system area (spec §4.1 rm_isohybrid).
func RemoveMBR(area *SystemArea) {
	var zero [512]byte
	copy(area[:512], zero[:])
}
