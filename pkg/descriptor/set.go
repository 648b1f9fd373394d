package descriptor

import "github.com/bgrewell/iso-forge/pkg/consts"

// VolumeDescriptorSet is the decoded Volume Descriptor Sequence (ECMA-119
// 6.2.1, spec §3 Volume Descriptors): one mandatory Primary descriptor, any
// number of Supplementary descriptors (one per Joliet/enhanced namespace),
// at most one Boot Record, and the Set Terminator that ends the sequence.
type VolumeDescriptorSet struct {
	Primary       *PrimaryVolumeDescriptor
	ExtraPrimary  []*PrimaryVolumeDescriptor
	Supplementary []*SupplementaryVolumeDescriptor
	Boot          *BootRecordDescriptor
	Terminator    *VolumeDescriptorSetTerminator
}

// VolumeDescriptorSetTerminator is the ECMA-119 8.3 descriptor that closes
// the Volume Descriptor Sequence.
type VolumeDescriptorSetTerminator struct {
	VolumeDescriptorHeader
}

func (t *VolumeDescriptorSetTerminator) Marshal() [consts.ISO9660_SECTOR_SIZE]byte {
	var out [consts.ISO9660_SECTOR_SIZE]byte
	out[0] = byte(VolumeDescriptorTypeTerminator)
	copy(out[1:6], consts.ISO9660_STD_IDENTIFIER)
	out[6] = 1
	return out
}

func (t *VolumeDescriptorSetTerminator) Unmarshal(data [consts.ISO9660_SECTOR_SIZE]byte) error {
	t.VolumeDescriptorType = VolumeDescriptorType(data[0])
	t.StandardIdentifier = string(data[1:6])
	t.VolumeDescriptorVersion = data[6]
	return nil
}
