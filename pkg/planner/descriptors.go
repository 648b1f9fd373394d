package planner

import (
	"time"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/option"
)

// buildDescriptors assembles the Volume Descriptor Set (spec §3 "Volume
// descriptors"): the Primary Volume Descriptor, an optional Boot Record
// pointing at the El Torito catalog, an optional Supplementary (Joliet)
// Volume Descriptor, and the Set Terminator, in the canonical order the
// Writer streams them in (spec §4.2 layout order item 2: "PVD(s), Boot
// Record, SVD, ..., Terminator"). vdsStart is not used: every field this
// set needs is self-describing (path table sizes/locations, root
// directory extents), not a function of where the set itself landed.
func (p *planner) buildDescriptors(vdsStart uint32) error {
	opts := p.in.Options
	if opts == nil {
		opts = option.DefaultCreateOptions()
	}
	t := p.in.Tree

	pvd, err := p.buildPrimaryDescriptor(t, opts)
	if err != nil {
		return err
	}

	set := &descriptor.VolumeDescriptorSet{Primary: pvd}

	if p.in.DuplicatePVD {
		// Byte-identical copy (spec §4.1 duplicate_pvd: "both must remain
		// byte-identical"); a shallow struct copy shares the same
		// RootDirectoryRecord pointer and encodes to the same bytes.
		dup := *pvd
		set.ExtraPrimary = append(set.ExtraPrimary, &dup)
	}

	if p.layout.BootCatalog != nil {
		boot := &descriptor.BootRecordDescriptor{
			BootRecordBody: descriptor.BootRecordBody{
				BootSystemIdentifier: descriptor.ElToritoBootSystemIdentifier,
			},
		}
		boot.SetBootCatalogLocation(p.layout.BootCatalogExtent.Location)
		set.Boot = boot
	}

	if p.joliet {
		svd, err := p.buildSupplementaryDescriptor(t, opts)
		if err != nil {
			return err
		}
		set.Supplementary = append(set.Supplementary, svd)
	}

	set.Terminator = &descriptor.VolumeDescriptorSetTerminator{}
	p.layout.Descriptors = set
	_ = vdsStart
	return nil
}

func (p *planner) buildPrimaryDescriptor(t *filesystem.Tree, opts *option.CreateOptions) (*descriptor.PrimaryVolumeDescriptor, error) {
	root := t.Root(filesystem.ISO)
	if root == filesystem.NilNode {
		return nil, isoerr.Internal("planner: no ISO root to describe")
	}
	records, err := p.buildRecords(filesystem.ISO, root, false)
	if err != nil {
		return nil, err
	}

	pt := p.layout.PathTables[filesystem.ISO]
	now := time.Now()

	appUse := opts.ApplicationUse
	maxAppUse := consts.ISO9660_APPLICATION_USE_SIZE
	if opts.XA {
		maxAppUse = 141
	}
	if len(appUse) > maxAppUse {
		appUse = appUse[:maxAppUse]
	}
	var appUseArr [consts.ISO9660_APPLICATION_USE_SIZE]byte
	copy(appUseArr[:], appUse)

	pvd := &descriptor.PrimaryVolumeDescriptor{
		PrimaryVolumeDescriptorBody: descriptor.PrimaryVolumeDescriptorBody{
			SystemIdentifier:                 opts.SystemIdentifier,
			VolumeIdentifier:                 opts.VolumeIdentifier,
			VolumeSpaceSize:                  p.layout.TotalSectors,
			VolumeSetSize:                    maxUint16(opts.SetSize, 1),
			VolumeSequenceNumber:             maxUint16(opts.SequenceNumber, 1),
			LogicalBlockSize:                 consts.ISO9660_SECTOR_SIZE,
			PathTableSize:                    pt.PathTableSize,
			LocationOfTypeLPathTable:         pt.LExtent.Location,
			LocationOfTypeMPathTable:         pt.MExtent.Location,
			RootDirectoryRecord:              records[0],
			VolumeSetIdentifier:              opts.VolumeSetIdentifier,
			FileStructureVersion:             1,
			VolumeCreationDateAndTime:        now,
			VolumeModificationDateAndTime:    now,
			ApplicationUse:                   appUseArr,
		},
	}
	return pvd, nil
}

func (p *planner) buildSupplementaryDescriptor(t *filesystem.Tree, opts *option.CreateOptions) (*descriptor.SupplementaryVolumeDescriptor, error) {
	root := t.Root(filesystem.Joliet)
	if root == filesystem.NilNode {
		return nil, isoerr.Internal("planner: joliet enabled but no joliet root")
	}
	records, err := p.buildRecords(filesystem.Joliet, root, false)
	if err != nil {
		return nil, err
	}

	pt := p.layout.PathTables[filesystem.Joliet]
	now := time.Now()

	var escape [32]byte
	switch opts.Joliet {
	case option.JolietLevel1:
		copy(escape[:], descriptor.JolietEscapeLevel1[:])
	case option.JolietLevel2:
		copy(escape[:], descriptor.JolietEscapeLevel2[:])
	default:
		copy(escape[:], descriptor.JolietEscapeLevel3[:])
	}

	svd := &descriptor.SupplementaryVolumeDescriptor{
		SupplementaryVolumeDescriptorBody: descriptor.SupplementaryVolumeDescriptorBody{
			SystemIdentifier:              opts.SystemIdentifier,
			VolumeIdentifier:              opts.VolumeIdentifier,
			EscapeSequences:               escape,
			VolumeSpaceSize:               p.layout.TotalSectors,
			VolumeSetSize:                 maxUint16(opts.SetSize, 1),
			VolumeSequenceNumber:          maxUint16(opts.SequenceNumber, 1),
			LogicalBlockSize:              consts.ISO9660_SECTOR_SIZE,
			PathTableSize:                 pt.PathTableSize,
			LocationOfTypeLPathTable:      pt.LExtent.Location,
			LocationOfTypeMPathTable:      pt.MExtent.Location,
			RootDirectoryRecord:           records[0],
			VolumeSetIdentifier:           opts.VolumeSetIdentifier,
			FileStructureVersion:          1,
			VolumeCreationDateAndTime:     now,
			VolumeModificationDateAndTime: now,
		},
	}
	return svd, nil
}

func maxUint16(v uint16, min uint16) uint16 {
	if v < min {
		return min
	}
	return v
}
