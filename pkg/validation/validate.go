// Package validation implements the per-namespace naming and structural
// rules from spec §4.1: ISO9660 identifier character sets and interchange
// levels, Joliet length limits, Rock Ridge POSIX names, and UDF d-string
// identifiers.
package validation

import (
	"fmt"
	"strings"

	"github.com/bgrewell/iso-forge/pkg/consts"
)

// InterchangeLevel is the ISO9660 compliance profile governing identifier
// length and character set (spec §6, `new(interchange_level ...)`).
type InterchangeLevel int

const (
	Level1 InterchangeLevel = 1
	Level2 InterchangeLevel = 2
	Level3 InterchangeLevel = 3
	Level4 InterchangeLevel = 4
)

// ValidInterchangeLevel reports whether level is one of the four profiles
// spec §6 allows for `new`.
func ValidInterchangeLevel(level int) bool {
	return level >= 1 && level <= 4
}

// ValidISO9660FileIdentifier validates a file identifier against the
// allowed character set, one '.', exactly one ';' followed by a 1-32767
// version number, and the interchange-level length rule (spec §4.1).
//
// At level 4 the restrictive 8.3 rule is lifted; the only remaining bound
// is the total directory-record identifier length.
func ValidISO9660FileIdentifier(identifier string, level InterchangeLevel) error {
	semi := strings.LastIndexByte(identifier, ';')
	if semi < 0 {
		return fmt.Errorf("file identifier %q missing required ';' version separator", identifier)
	}
	name := identifier[:semi]
	version := identifier[semi+1:]

	if err := validVersion(version); err != nil {
		return fmt.Errorf("file identifier %q: %w", identifier, err)
	}

	dot := strings.IndexByte(name, '.')
	var base, ext string
	if dot < 0 {
		base = name
	} else {
		if strings.IndexByte(name[dot+1:], '.') >= 0 {
			return fmt.Errorf("file identifier %q has more than one '.'", identifier)
		}
		base, ext = name[:dot], name[dot+1:]
	}

	if !validateIdentifierRune(base) || !validateIdentifierRune(ext) {
		return fmt.Errorf("file identifier %q uses characters outside d-characters/_", identifier)
	}

	switch level {
	case Level1, Level2:
		if len(base) > consts.ISO9660_LEVEL1_NAME_LEN {
			return fmt.Errorf("file identifier %q: name exceeds %d characters at level %d", identifier, consts.ISO9660_LEVEL1_NAME_LEN, level)
		}
		if len(ext) > consts.ISO9660_LEVEL1_EXT_LEN {
			return fmt.Errorf("file identifier %q: extension exceeds %d characters at level %d", identifier, consts.ISO9660_LEVEL1_EXT_LEN, level)
		}
	case Level3:
		if len(base)+len(ext) > consts.ISO9660_LEVEL3_NAME_LEN {
			return fmt.Errorf("file identifier %q exceeds %d characters at level 3", identifier, consts.ISO9660_LEVEL3_NAME_LEN)
		}
	case Level4:
		// no 8.3 restriction; only the record-length bound applies.
	default:
		return fmt.Errorf("unsupported interchange level %d", level)
	}

	if len(identifier) > consts.ISO9660_MAX_PATH_LEN {
		return fmt.Errorf("file identifier %q exceeds max length %d", identifier, consts.ISO9660_MAX_PATH_LEN)
	}
	return nil
}

// ValidISO9660DirIdentifier validates a directory identifier: the special
// single-byte "." (0x00) and ".." (0x01) identifiers are always allowed;
// otherwise the d-characters set applies with the same length rule as file
// base names.
func ValidISO9660DirIdentifier(identifier string, level InterchangeLevel) error {
	if len(identifier) == 1 && (identifier[0] == 0x00 || identifier[0] == 0x01) {
		return nil
	}
	if !validateIdentifierRune(identifier) {
		return fmt.Errorf("directory identifier %q uses characters outside d-characters/_", identifier)
	}
	limit := consts.ISO9660_LEVEL1_NAME_LEN
	if level == Level3 {
		limit = consts.ISO9660_LEVEL3_NAME_LEN
	} else if level == Level4 {
		limit = consts.ISO9660_MAX_PATH_LEN
	}
	if len(identifier) > limit {
		return fmt.Errorf("directory identifier %q exceeds %d characters at level %d", identifier, limit, level)
	}
	return nil
}

// ValidDepth enforces the ISO9660 directory-nesting limit (8 levels,
// spec §4.1) and the level-4 total-path-length bound of 255 bytes.
func ValidDepth(depth int, totalPathBytes int, level InterchangeLevel) error {
	if depth > consts.ISO9660_MAX_DEPTH {
		return fmt.Errorf("directory depth %d exceeds ISO9660 limit of %d", depth, consts.ISO9660_MAX_DEPTH)
	}
	if level == Level4 && totalPathBytes > consts.ISO9660_MAX_PATH_LEN {
		return fmt.Errorf("path length %d exceeds level 4 limit of %d bytes", totalPathBytes, consts.ISO9660_MAX_PATH_LEN)
	}
	return nil
}

// ValidJolietIdentifier enforces the Joliet length limit: at most 64 UCS-2BE
// code units (spec §4.1). Content validity (BMP-only) is enforced by
// encoding.EncodeUCS2BE at marshal time.
func ValidJolietIdentifier(identifier string) error {
	if n := len([]rune(identifier)); n > consts.JOLIET_MAX_IDENTIFIER_UNITS {
		return fmt.Errorf("joliet identifier %q exceeds %d UCS-2BE code units (got %d)", identifier, consts.JOLIET_MAX_IDENTIFIER_UNITS, n)
	}
	return nil
}

// ValidRockRidgeName enforces the Rock Ridge POSIX name limit of 248 bytes
// (spec §3 Namespace facet).
func ValidRockRidgeName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("rock ridge name must not be empty")
	}
	if len(name) > 248 {
		return fmt.Errorf("rock ridge name %q exceeds 248 bytes", name)
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("rock ridge name %q must not contain '/'", name)
	}
	return nil
}

// ValidUDFIdentifier enforces the UDF d-string length limit of 255 bytes
// (spec §3 UDF structures).
func ValidUDFIdentifier(identifier string) error {
	if len(identifier) > 255 {
		return fmt.Errorf("udf identifier %q exceeds 255 bytes", identifier)
	}
	return nil
}

func validVersion(version string) error {
	if len(version) == 0 {
		return fmt.Errorf("empty version field")
	}
	n := 0
	for _, r := range version {
		if r < '0' || r > '9' {
			return fmt.Errorf("version %q is not numeric", version)
		}
		n = n*10 + int(r-'0')
	}
	if n < 1 || n > 32767 {
		return fmt.Errorf("version %d out of range [1,32767]", n)
	}
	return nil
}

// validateIdentifierRune checks each rune in identifier against the
// d-characters/d1-characters set plus the underscore already folded into
// D_CHARACTERS.
func validateIdentifierRune(identifier string) bool {
	for _, r := range identifier {
		if !strings.ContainsRune(consts.D_CHARACTERS, r) {
			return false
		}
	}
	return true
}
