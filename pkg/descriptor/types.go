package descriptor

// VolumeDescriptorType is the single type byte that opens every volume
// descriptor sector (ECMA-119 8.1): it is what a reader switches on while
// walking the Volume Descriptor Sequence.
type VolumeDescriptorType uint8

const (
	VolumeDescriptorBootRecord     VolumeDescriptorType = 0
	VolumeDescriptorPrimary        VolumeDescriptorType = 1
	VolumeDescriptorSupplementary  VolumeDescriptorType = 2
	VolumeDescriptorPartition      VolumeDescriptorType = 3
	VolumeDescriptorTypeTerminator VolumeDescriptorType = 255
)
