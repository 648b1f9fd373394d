package consts

const (
	// Number of system area sectors.
	ISO9660_SYSTEM_AREA_SECTORS = 16

	// Standard ISO9660 identifier.
	ISO9660_STD_IDENTIFIER = "CD001"

	// ISO9660 volume descriptor version (always 1).
	ISO9660_VOLUME_DESC_VERSION = 1

	// ISO9660 default sector size.
	ISO9660_SECTOR_SIZE = 2048

	// ISO9660 volume descriptor header size
	ISO9660_VOLUME_DESC_HEADER_SIZE = 7

	// ISO9660 application use area size
	ISO9660_APPLICATION_USE_SIZE = 512

	// JOLIET level 1, 2, and 3 escape sequences.
	JOLIET_LEVEL_1_ESCAPE = "%/@"
	JOLIET_LEVEL_2_ESCAPE = "%/C"
	JOLIET_LEVEL_3_ESCAPE = "%/E"

	// El Torito bootable cdrom system identifier.
	EL_TORITO_BOOT_SYSTEM_ID = "EL TORITO SPECIFICATION"

	// a-characters set which are specified in the International Reference Version at the following positions.
	//   | 2/0 - 2/2
	//   | 2/5 - 2/15
	//   | 3/0 - 3/15
	//   | 4/1 - 4/15
	//   | 5/0 - 5/10
	//   | 5/15
	A_CHARACTERS = " !\"%&'()*+,-./0123456789:;<=>?ABCDEFGHIJKLMNOPQRSTUVWXYZ_"

	// c-characters set which are the coded graphic character sets identified by the escape sequences in a Joliet SVD.
	// | All code points between (00)(00) and (00)(1F), inclusive. (Control Characters)
	// | (00)(2A) '*'(Asterisk)
	// | (00)(2F) '/' (Forward Slash)
	// | (00)(3A) ':' (Colon)
	// | (00)(3B) ';' (Semicolon)
	// | (00)(3F) '?' (Question Mark)
	// | (00)(5C) '\' (Backslash)

	// a1-characters set which are a subset of the c-characters. This subset shall be subject to agreement between the
	// originator and the recipient of the volume.

	// d-characters: 37 characters in the following positions of the International Reference Version
	// | 3/0 - 3/9
	// | 4/1 - 5/10
	// | 5/15
	D_CHARACTERS = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_"

	// Separators allowed by ISO9660 0x2E and 0x3B.
	ISO9660_SEPARATOR_1 = "."
	ISO9660_SEPARATOR_2 = ";"

	// ISO9660 Filler 0x20 (space)
	ISO9660_FILLER = " "

	// Standard UDF Identifier
	UDF_STD_IDENTIFIER = "BEA01"

	// UDF default sector size.
	UDF_SECTOR_SIZE = 2048

	// UDF bridge volume recognition identifiers, in the order they must appear
	// starting at LBA 16 of the Volume Recognition Sequence.
	UDF_VRS_BEA01 = "BEA01"
	UDF_VRS_NSR02 = "NSR02"
	UDF_VRS_TEA01 = "TEA01"

	// d1-characters are the d-characters permitted in a Supplementary/Joliet
	// Volume Descriptor once an a1/d1 escape sequence has been designated. In
	// the common case (no alternate graphic set negotiated) they equal
	// D_CHARACTERS; kept distinct so validation call sites document intent.
	D1_CHARACTERS = D_CHARACTERS

	// ISO9660 directory record identifiers reserved for "." and "..".
	ISO9660_CURRENT_DIR_IDENTIFIER = "\x00"
	ISO9660_PARENT_DIR_IDENTIFIER  = "\x01"

	// Maximum length, in bytes, of a single directory record (the SUSP/Rock
	// Ridge overflow boundary named in spec §4.1/§9).
	ISO9660_MAX_DIRECTORY_RECORD_LEN = 254

	// Interchange-level-dependent identifier length limits (ECMA-119 7.5).
	ISO9660_LEVEL1_NAME_LEN = 8
	ISO9660_LEVEL1_EXT_LEN  = 3
	ISO9660_LEVEL2_NAME_LEN = 8
	ISO9660_LEVEL2_EXT_LEN  = 3
	ISO9660_LEVEL3_NAME_LEN = 30
	ISO9660_MAX_DEPTH       = 8
	ISO9660_MAX_PATH_LEN    = 255

	// Joliet identifiers are UCS-2BE, so byte length is always twice the
	// character count; the limit below is in UCS-2BE code units.
	JOLIET_MAX_IDENTIFIER_UNITS = 64

	// Rock Ridge extension version identifiers (IEEE P1282 / SUSP 1.12).
	ROCKRIDGE_109_IDENTIFIER = "RRIP_1991A"
	ROCKRIDGE_112_IDENTIFIER = "IEEE_P1282"
	SUSP_IDENTIFIER          = "RRIP_1991A"

	// El Torito boot catalog constants (§4.1 add_eltorito, §8 scenario 5/6).
	EL_TORITO_VALIDATION_HEADER_ID = 0x01
	EL_TORITO_BOOTABLE             = 0x88
	EL_TORITO_NOT_BOOTABLE         = 0x00
	EL_TORITO_KEY_BYTE_1           = 0x55
	EL_TORITO_KEY_BYTE_2           = 0xAA

	// Floppy emulation sizes, in bytes, accepted by add_eltorito (§4.1).
	FLOPPY_1200K_SIZE = 1200 * 1024
	FLOPPY_1440K_SIZE = 1440 * 1024
	FLOPPY_2880K_SIZE = 2880 * 1024

	// Isohybrid MBR geometry used by syslinux (§6 External interfaces).
	ISOHYBRID_HEADS   = 64
	ISOHYBRID_SECTORS = 32

	// Offset within an El Torito boot file of the boot information table
	// patched by the writer (spec §4.1, §4.4).
	EL_TORITO_BOOT_INFO_TABLE_OFFSET = 0x08

	// Offset and signature of the isolinux boot-info-table validation field
	// checked by add_isohybrid (spec §4.1).
	ISOHYBRID_SIGNATURE_OFFSET = 0x40
)

var ISOHYBRID_SIGNATURE = [4]byte{0xfb, 0xc0, 0x78, 0x70}

// ISOType identifies the top-level filesystem flavor an Image was opened or
// created as. UDF-only images are out of scope (spec §1 Non-goals); this
// exists to distinguish an ISO9660 image from one published in UDF-bridge
// mode for callers inspecting Image.Type().
type ISOType int

const (
	ISOTypeISO9660 ISOType = iota
	ISOTypeUDFBridge
)

func (t ISOType) String() string {
	if t == ISOTypeUDFBridge {
		return "udf-bridge"
	}
	return "iso9660"
}
