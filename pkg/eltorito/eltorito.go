package eltorito

import (
	"encoding/binary"
	"fmt"
	"github.com/bgrewell/iso-forge/pkg/consts"
	"io"
	"os"
	"path/filepath"
)

const (
	elToritoSector           = 0x11                        // Logical sector 17, where the El-Torito boot record sits
	elToritoDefaultCatalog   = "BOOT.CAT"                  // Default catalog name for non-Rock Ridge filesystems
	elToritoDefaultCatalogRR = "boot.catalog"              // Default catalog name for Rock Ridge filesystems
	InvalidCatalog           = "Invalid El-Torito Catalog" // Error message for invalid catalogs
	MissingEntry             = "Missing Boot Entry"        // Error message for missing entries
)

// Platform represents the target booting system for an El-Torito bootable ISO.
type Platform uint8

const (
	BIOS Platform = 0x0  // Classic PC-BIOS x86
	PPC  Platform = 0x1  // PowerPC
	Mac  Platform = 0x2  // Macintosh systems
	EFI  Platform = 0xef // Extensible Firmware Interface (EFI)
)

// Emulation represents the emulation mode used for booting.
type Emulation uint8

const (
	NoEmulation        Emulation = 0x0 // No emulation (default)
	Floppy12Emulation  Emulation = 0x1 // Emulate a 1.2 MB floppy
	Floppy144Emulation Emulation = 0x2 // Emulate a 1.44 MB floppy
	Floppy288Emulation Emulation = 0x3 // Emulate a 2.88 MB floppy
	HardDiskEmulation  Emulation = 0x4 // Emulate a hard disk
)

func emulationToString(emulation Emulation) string {
	switch emulation {
	case NoEmulation:
		return "NoEmul"
	case Floppy12Emulation:
		return "1.2MFloppy"
	case Floppy144Emulation:
		return "1.44MFloppy"
	case Floppy288Emulation:
		return "2.88MFloppy"
	case HardDiskEmulation:
		return "HardDisk"
	default:
		return "Unknown"
	}
}

// PartitionType represents the type of partition in the boot image.
type PartitionType byte

// List of one-byte MBR partition type codes
const (
	Empty         PartitionType = 0x00
	Fat12         PartitionType = 0x01
	XenixRoot     PartitionType = 0x02
	XenixUsr      PartitionType = 0x03
	Fat16         PartitionType = 0x04
	ExtendedCHS   PartitionType = 0x05
	Fat16b        PartitionType = 0x06
	NTFS          PartitionType = 0x07
	CommodoreFAT  PartitionType = 0x08
	Fat32CHS      PartitionType = 0x0b
	Fat32LBA      PartitionType = 0x0c
	Fat16bLBA     PartitionType = 0x0e
	ExtendedLBA   PartitionType = 0x0f
	Linux         PartitionType = 0x83
	LinuxExtended PartitionType = 0x85
	LinuxLVM      PartitionType = 0x8e
	Iso9660       PartitionType = 0x96
	MacOSXUFS     PartitionType = 0xa8
	MacOSXBoot    PartitionType = 0xab
	HFS           PartitionType = 0xaf
	Solaris8Boot  PartitionType = 0xbe
	GPTProtective PartitionType = 0xef
	EFISystem     PartitionType = 0xef
	VMWareFS      PartitionType = 0xfb
	VMWareSwap    PartitionType = 0xfc
)

// BlockCount represents the number of 512-byte blocks.
type BlockCount uint16

// SectorOffset represents an offset in 2048-byte sectors.
type SectorOffset uint32

// ElTorito represents the El-Torito boot structure for a disk.
type ElTorito struct {
	BootCatalog     string           // Path to the boot catalog file
	HideBootCatalog bool             // Whether to hide the boot catalog in the filesystem
	Entries         []*ElToritoEntry // List of El-Torito boot entries
	Platform        Platform         // Target platform for booting
}

// ElToritoEntry represents a single entry in an El-Torito boot catalog.
type ElToritoEntry struct {
	Platform      Platform      // Target platform
	Emulation     Emulation     // Emulation mode
	BootFile      string        // Path to the boot file
	HideBootFile  bool          // Whether to hide the boot file in the filesystem
	LoadSegment   uint16        // Open segment address
	PartitionType PartitionType // Partition type of the boot file
	BootInfoTable bool          // Patch a boot_info_table into the boot file at write time (spec §4.1)
	// LoadSizeOverride pins the catalog entry's emulated-sector-count
	// field (boot_load_size) to a caller-chosen value instead of
	// deriving it from the boot file's actual byte length - isohybrid
	// images require exactly 4 regardless of file size (spec §4.1
	// add_isohybrid, §8 scenario 6).
	LoadSizeOverride uint16
	size             BlockCount   // Size of the boot file in 512-byte blocks
	location         SectorOffset // Location of the boot file in 2048-byte sectors
}

// ValidationEntry represents the validation entry at the start of the boot catalog.
type ValidationEntry struct {
	Platform    Platform // Target platform
	Identifier  string   // Identifier string
	Checksum    uint16   // Validation checksum
	KeyByte55AA uint16   // Fixed 0x55AA marker
}

// SectionHeader represents a header for grouping entries in the boot catalog.
type SectionHeader struct {
	Indicator byte     // Indicator byte (0x90 or 0x91 for the last section)
	Platform  Platform // Target platform
	Entries   uint16   // Number of entries in the section
}

// SelectionCriteria represents optional vendor-specific selection criteria.
type SelectionCriteria struct {
	Type       byte   // Selection criteria type
	VendorData []byte // Vendor-specific data
}

// Size returns the boot file's length in 512-byte blocks.
func (e *ElToritoEntry) Size() BlockCount { return e.size }

// Location returns the boot file's starting logical sector.
func (e *ElToritoEntry) Location() SectorOffset { return e.location }

// SetExtent records where the boot file landed once the extent planner has
// assigned it an LBA (spec §5, "boot catalog + boot images are ordinary
// content streams the planner assigns extents to like any other file").
func (e *ElToritoEntry) SetExtent(location SectorOffset, sizeBytes int64) {
	e.location = location
	if e.LoadSizeOverride != 0 {
		e.size = BlockCount(e.LoadSizeOverride)
		return
	}
	blocks := sizeBytes / 512
	if sizeBytes%512 != 0 {
		blocks++
	}
	e.size = BlockCount(blocks)
}

// BootInfoTableSize is the length of the patch add_eltorito writes at
// offset 8 of a boot file when the caller requests boot_info_table patching
// (spec §4.1 add_eltorito, "optional boot_info_table patch").
const BootInfoTableSize = 56

// BootInfoTable is the 64-byte (8-byte header skipped + 56-byte body)
// structure some bootloaders (isolinux) expect patched into their own
// image at offset 0x08.
type BootInfoTable struct {
	PVDLocation   uint32 // LBA of the Primary Volume Descriptor, always 16
	BootFileLBA   uint32 // LBA the boot file itself was written at
	BootFileBytes uint32 // length of the boot file in bytes
	Checksum      uint32 // sum of every 32-bit LE word in the file after this table
}

// ComputeBootInfoTableChecksum sums every 32-bit little-endian word in
// bootFile from offset 0x40 to end-of-file, the region isolinux itself
// checksums (spec §4.4).
func ComputeBootInfoTableChecksum(bootFile []byte) uint32 {
	var sum uint32
	for off := 0x40; off+4 <= len(bootFile); off += 4 {
		sum += binary.LittleEndian.Uint32(bootFile[off : off+4])
	}
	return sum
}

// PatchBootInfoTable writes the boot_info_table in place at offset 8 of
// bootFile. bootFile must already be at least 64 bytes long.
func PatchBootInfoTable(bootFile []byte, pvdLBA, bootFileLBA uint32) error {
	if len(bootFile) < 8+BootInfoTableSize {
		return fmt.Errorf("eltorito: boot file too short (%d bytes) for boot_info_table", len(bootFile))
	}
	checksum := ComputeBootInfoTableChecksum(bootFile)
	binary.LittleEndian.PutUint32(bootFile[8:12], pvdLBA)
	binary.LittleEndian.PutUint32(bootFile[12:16], bootFileLBA)
	binary.LittleEndian.PutUint32(bootFile[16:20], uint32(len(bootFile)))
	binary.LittleEndian.PutUint32(bootFile[20:24], checksum)
	return nil
}

// MarshalBinary encodes the boot catalog: validation entry, the default
// (first) entry, then one section header + entries per remaining platform
// group, in the order Entries was populated (spec §4.1 add_eltorito).
func (et *ElTorito) MarshalBinary() ([]byte, error) {
	if len(et.Entries) == 0 {
		return nil, fmt.Errorf("eltorito: no boot entries to marshal")
	}
	out := make([]byte, 0, 32*(2+len(et.Entries)))
	out = append(out, marshalValidationEntry(et.Platform)...)
	out = append(out, marshalCatalogEntry(et.Entries[0])...)

	rest := et.Entries[1:]
	for i := 0; i < len(rest); {
		platform := rest[i].Platform
		j := i
		for j < len(rest) && rest[j].Platform == platform {
			j++
		}
		indicator := byte(0x90)
		if j == len(rest) {
			indicator = 0x91
		}
		header := make([]byte, 32)
		header[0] = indicator
		header[1] = byte(platform)
		binary.LittleEndian.PutUint16(header[2:4], uint16(j-i))
		out = append(out, header...)
		for _, e := range rest[i:j] {
			out = append(out, marshalCatalogEntry(e)...)
		}
		i = j
	}
	return out, nil
}

func marshalValidationEntry(platform Platform) []byte {
	data := make([]byte, 32)
	data[0] = 0x01
	data[1] = byte(platform)
	copy(data[4:28], "")
	data[0x1E] = 0x55
	data[0x1F] = 0xAA
	var checksum uint16
	for i := 0; i < 32; i += 2 {
		checksum += binary.LittleEndian.Uint16(data[i : i+2])
	}
	binary.LittleEndian.PutUint16(data[28:30], uint16(0)-checksum)
	return data
}

func marshalCatalogEntry(e *ElToritoEntry) []byte {
	data := make([]byte, 32)
	data[0] = 0x88 // bootable
	data[1] = byte(e.Emulation)
	binary.LittleEndian.PutUint16(data[2:4], uint16(e.LoadSegment))
	data[4] = byte(e.PartitionType)
	binary.LittleEndian.PutUint16(data[6:8], uint16(e.size))
	binary.LittleEndian.PutUint32(data[8:12], uint32(e.location))
	return data
}

// ExtractBootImages extracts all bootable images to the specified directory.
func (et *ElTorito) ExtractBootImages(ra io.ReaderAt, outputDir string) error {
	for i, entry := range et.Entries {
		// Skip non-bootable entries
		if entry.size == 0 || entry.location == 0 {
			continue
		}

		// Create the file name
		filename := fmt.Sprintf("%d-Boot-%s.img", i+1, emulationToString(entry.Emulation))
		outputPath := filepath.Join(outputDir, filename)

		// Open the output file for writing
		outFile, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", outputPath, err)
		}
		defer outFile.Close()

		// Read the boot image data
		startOffset := int64(entry.location) * int64(consts.ISO9660_SECTOR_SIZE)
		data := make([]byte, int64(entry.size)*512) // Size is in 512-byte blocks
		if _, err := ra.ReadAt(data, startOffset); err != nil {
			return fmt.Errorf("failed to read boot image at offset %d: %w", startOffset, err)
		}

		// Write the data to the file
		if _, err := outFile.Write(data); err != nil {
			return fmt.Errorf("failed to write boot image to file %s: %w", outputPath, err)
		}

		// Save the boot file path in the entry
		entry.BootFile = outputPath
	}
	return nil
}

// UnmarshalBinary decodes an El-Torito Boot Catalog from binary form
func (et *ElTorito) UnmarshalBinary(data []byte) error {
	if len(data) < 32 {
		return fmt.Errorf("Boot Catalog: data too short")
	}

	// Parse Validation Entry
	if err := parseValidationEntry(data[:32]); err != nil {
		return fmt.Errorf("Boot Catalog: invalid Validation Entry: %w", err)
	}

	// Parse Boot Entries
	platform := Platform(data[1])
	sectionCount := 0
	for offset := 32; offset < len(data); offset += 32 {
		entryData := data[offset : offset+32]

		// Check for End of Catalog
		if entryData[0] == 0x00 {
			break
		}

		// Handle Section Headers
		if entryData[0] == 0x90 || entryData[0] == 0x91 {
			sectionCount = int(binary.LittleEndian.Uint16(entryData[2:4]))
			platform = Platform(entryData[1])
			continue
		}

		// Parse Section Entries
		if sectionCount > 0 {
			entry := parseSectionEntry(entryData)
			entry.Platform = platform
			et.Entries = append(et.Entries, entry)
			sectionCount--
			continue
		}

		// Parse Initial/Default Entry
		entry := parseInitialEntry(entryData)
		entry.Platform = Platform(data[1])
		et.Entries = append(et.Entries, entry)
	}
	return nil
}

func parseInitialEntry(data []byte) *ElToritoEntry {
	return &ElToritoEntry{
		Emulation:     Emulation(data[1]),
		LoadSegment:   binary.LittleEndian.Uint16(data[2:4]),
		PartitionType: PartitionType(data[4]),
		size:          BlockCount(binary.LittleEndian.Uint16(data[6:8])),
		location:      SectorOffset(binary.LittleEndian.Uint32(data[8:12])),
	}
}

func parseSectionEntry(data []byte) *ElToritoEntry {
	return &ElToritoEntry{
		Emulation:     Emulation(data[1]),
		LoadSegment:   binary.LittleEndian.Uint16(data[2:4]),
		PartitionType: PartitionType(data[4]),
		size:          BlockCount(binary.LittleEndian.Uint16(data[6:8])),
		location:      SectorOffset(binary.LittleEndian.Uint32(data[8:12])),
	}
}

func parseValidationEntry(data []byte) error {
	if len(data) < 32 {
		return fmt.Errorf("Validation Entry: data too short")
	}
	if data[0] != 0x01 {
		return fmt.Errorf("Validation Entry: invalid header ID %x", data[0])
	}
	checksum := uint16(0)
	for i := 0; i < 32; i += 2 {
		checksum += binary.LittleEndian.Uint16(data[i : i+2])
	}
	if checksum != 0 {
		return fmt.Errorf("Validation Entry: checksum invalid")
	}
	if data[0x1E] != 0x55 || data[0x1F] != 0xAA {
		return fmt.Errorf("Validation Entry: invalid key bytes %x%x", data[0x1E], data[0x1F])
	}
	return nil
}
