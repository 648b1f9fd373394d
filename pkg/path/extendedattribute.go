package path

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/encoding"
)

// ExtendedAttributeRecord is the optional ECMA-119 9.5 record a directory
// record's BP2 ("extended attribute record length") points at. This
// implementation decodes it for interchange fidelity but does not expose a
// way to author one; spec §6's mutation API has no extended-attribute
// parameter.
type ExtendedAttributeRecord struct {
	OwnerIdentifier                uint32
	GroupIdentifier                uint32
	Permissions                    uint16
	RecordFormat                   uint8
	RecordAttributes               uint8
	RecordLength                   uint32
	SystemUseIdentifier            [32]byte
	SystemUse                      [64]byte
	ExtendedAttributeRecordVersion uint8
	LengthOfEscapeSequences        uint8
	LengthOfApplicationUse         uint32
	ApplicationUse                 []byte
	EscapeSequences                []byte
}

// Unmarshal parses the given data into the ExtendedAttributeRecord struct.
func (ear *ExtendedAttributeRecord) Unmarshal(data []byte) error {
	if len(data) < 250 {
		return fmt.Errorf("path: extended attribute record too short: %d bytes", len(data))
	}

	owner, err := encoding.UnmarshalUint32LSBMSB(data[0:8])
	if err != nil {
		return fmt.Errorf("path: extended attribute owner id: %w", err)
	}
	ear.OwnerIdentifier = owner
	group, err := encoding.UnmarshalUint32LSBMSB(data[8:16])
	if err != nil {
		return fmt.Errorf("path: extended attribute group id: %w", err)
	}
	ear.GroupIdentifier = group
	ear.Permissions = binary.BigEndian.Uint16(data[16:18])

	ear.RecordFormat = data[94]
	ear.RecordAttributes = data[95]
	ear.RecordLength = binary.LittleEndian.Uint32(data[96:100])

	copy(ear.SystemUseIdentifier[:], data[100:132])
	copy(ear.SystemUse[:], data[132:196])

	ear.ExtendedAttributeRecordVersion = data[196]
	ear.LengthOfEscapeSequences = data[197]
	ear.LengthOfApplicationUse = binary.LittleEndian.Uint32(data[246:250])

	appUseEnd := 250 + uint64(ear.LengthOfApplicationUse)
	if appUseEnd > uint64(len(data)) {
		return fmt.Errorf("path: application use slice out of range: end=%d, len(data)=%d", appUseEnd, len(data))
	}
	ear.ApplicationUse = append([]byte(nil), data[250:appUseEnd]...)

	escEnd := appUseEnd + uint64(ear.LengthOfEscapeSequences)
	if escEnd > uint64(len(data)) {
		return fmt.Errorf("path: escape sequences slice out of range: end=%d, len(data)=%d", escEnd, len(data))
	}
	ear.EscapeSequences = append([]byte(nil), data[appUseEnd:escEnd]...)

	return nil
}
