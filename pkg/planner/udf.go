package planner

import (
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/udf"
)

// udfAnchorLBA is the ECMA-167 3/8.4.2.1 anchor location every UDF reader
// probes first. This bridge publishes a single anchor there rather than the
// full 256/N-256/N-1 triple real UDF volumes carry (see DESIGN.md): N-1
// would have to be rewritten after TotalSectors is final, and a bridge
// whose primary tree is ISO9660/Joliet only needs one working anchor for a
// UDF-capable reader to find the rest of the sequence.
const udfAnchorLBA = 256

// UDFLayout is the bridge-format UDF-bridge layout planUDF produces: one
// Volume Descriptor Sequence (duplicated as Main/Reserve), a File Set
// Descriptor, and one File Entry plus (for directories) one File
// Identifier Descriptor stream per node reachable from the ISO9660 tree.
// UDF publishes the same directory tree and file content the ISO9660 facet
// does; only the metadata describing that tree is UDF-native (spec §3 UDF
// structures, "dual-publish").
type UDFLayout struct {
	AVDPExtent       Extent
	MainVDSExtent    Extent
	ReserveVDSExtent Extent
	FSDExtent        Extent
	LVIDExtent       Extent

	PartitionStart  uint32
	PartitionLength uint32

	AVDP    []byte
	Main    [][]byte // PVD, Partition, LVD, USD, Terminator, in that order
	Reserve [][]byte
	FSD     []byte
	LVID    []byte

	// FileEntryExtents and FileEntryBytes are keyed by the ISO-namespace
	// NodeID of every node (file or directory) the UDF tree publishes.
	FileEntryExtents map[filesystem.NodeID]Extent
	FileEntryBytes   map[filesystem.NodeID][]byte

	// DirEntryExtents and DirEntryBytes hold each directory's File
	// Identifier Descriptor stream.
	DirEntryExtents map[filesystem.NodeID]Extent
	DirEntryBytes   map[filesystem.NodeID][]byte
}

// planUDF builds the UDF-bridge descriptor sequence once every ISO9660
// directory and file extent is already assigned (spec §4.2 "UDF structures
// are built last, over the same content extents ISO9660/Joliet already
// claimed"). PartitionLength and every descriptor embedding it are
// finalized later by finalizeUDF, once TotalSectors is known.
func (p *planner) planUDF() error {
	t := p.in.Tree
	root := t.Root(filesystem.ISO)
	if root == filesystem.NilNode {
		return isoerr.Internal("planner: udf enabled but no iso root")
	}

	ul := &UDFLayout{
		FileEntryExtents: map[filesystem.NodeID]Extent{},
		FileEntryBytes:   map[filesystem.NodeID][]byte{},
		DirEntryExtents:  map[filesystem.NodeID]Extent{},
		DirEntryBytes:    map[filesystem.NodeID][]byte{},
		PartitionStart:   0,
	}
	p.layout.UDF = ul

	if p.next < udfAnchorLBA {
		p.next = udfAnchorLBA
	}
	ul.AVDPExtent = Extent{Location: p.next, Sectors: 1}
	p.next++

	// order lists every node reachable from root (root included, depth
	// first), so a File Entry can be reserved for each before any FID
	// stream is built and needs to reference one.
	var order []filesystem.NodeID
	var walk func(id filesystem.NodeID)
	walk = func(id filesystem.NodeID) {
		order = append(order, id)
		node := t.Node(id)
		for _, cid := range node.Children[filesystem.ISO] {
			walk(cid)
		}
	}
	walk(root)

	for _, id := range order {
		ul.FileEntryExtents[id] = Extent{Location: p.next, Sectors: 1}
		p.next++
	}

	// Build each directory's FID stream, then each node's File Entry.
	for _, id := range order {
		if t.Node(id).IsDir() {
			if err := p.buildUDFDirectory(ul, t, id, root); err != nil {
				return err
			}
		}
	}
	for _, id := range order {
		node := t.Node(id)
		if !node.IsDir() {
			if err := p.buildUDFFile(ul, node); err != nil {
				return err
			}
		}
	}

	fsd := &udf.FileSetDescriptor{
		LogicalVolumeIdentifier: p.udfVolumeIdentifier(),
		FileSetNumber:           0,
		RootDirectoryICB: udf.LongAD{
			Length:   uint32(udfSectorSize),
			Location: ul.FileEntryExtents[root].Location,
		},
	}
	ul.FSDExtent = Extent{Location: p.next, Sectors: 1}
	p.next++
	ul.FSD = fsd.Marshal(ul.FSDExtent.Location)

	ul.LVIDExtent = Extent{Location: p.next, Sectors: 1}
	p.next++
	lvid := &udf.LogicalVolumeIntegrityDescriptor{Open: false}
	ul.LVID = lvid.Marshal(ul.LVIDExtent.Location)

	ul.MainVDSExtent = Extent{Location: p.next, Sectors: 5}
	p.next += 5
	ul.Main = p.buildVDS(ul, ul.MainVDSExtent.Location)

	ul.ReserveVDSExtent = Extent{Location: p.next, Sectors: 5}
	p.next += 5
	ul.Reserve = p.buildVDS(ul, ul.ReserveVDSExtent.Location)

	ul.AVDP = (&udf.AnchorVolumeDescriptorPointer{
		MainVDS:    udf.ExtentAD{Length: uint32(5 * udfSectorSize), Location: ul.MainVDSExtent.Location},
		ReserveVDS: udf.ExtentAD{Length: uint32(5 * udfSectorSize), Location: ul.ReserveVDSExtent.Location},
	}).Marshal(ul.AVDPExtent.Location)

	return nil
}

const udfSectorSize = udf.SectorSize

func (p *planner) udfVolumeIdentifier() string {
	if p.in.Options != nil && p.in.Options.VolumeIdentifier != "" {
		return p.in.Options.VolumeIdentifier
	}
	return "ISOIMAGE"
}

// buildVDS marshals the five Main/Reserve Volume Descriptor Sequence
// members at consecutive sectors starting at base. PartitionLength is
// still zero here; finalizeUDF patches it once TotalSectors is known.
func (p *planner) buildVDS(ul *UDFLayout, base uint32) [][]byte {
	pvd := &udf.PrimaryVolumeDescriptor{
		VolumeDescriptorSequenceNumber: 0,
		PrimaryVolumeDescriptorNumber:  0,
		VolumeIdentifier:               p.udfVolumeIdentifier(),
		VolumeSequenceNumber:           1,
		MaxVolumeSequenceNumber:        1,
		InterchangeLevel:               2,
		MaxInterchangeLevel:            3,
		CharacterSetList:               1,
		MaxCharacterSetList:            1,
		VolumeSetIdentifier:            p.udfVolumeIdentifier(),
	}
	partition := &udf.PartitionDescriptor{
		VolumeDescriptorSequenceNumber: 1,
		PartitionNumber:                0,
		PartitionStartingLocation:      ul.PartitionStart,
		PartitionLength:                ul.PartitionLength,
	}
	lvd := &udf.LogicalVolumeDescriptor{
		VolumeDescriptorSequenceNumber: 2,
		LogicalVolumeIdentifier:        p.udfVolumeIdentifier(),
		LogicalBlockSize:               udfSectorSize,
		IntegritySequence:              udf.ExtentAD{Length: udfSectorSize, Location: ul.LVIDExtent.Location},
		FileSetDescriptorLocation:      udf.ExtentAD{Length: udfSectorSize, Location: ul.FSDExtent.Location},
	}
	usd := &udf.UnallocatedSpaceDescriptor{VolumeDescriptorSequenceNumber: 3}
	term := &udf.TerminatingDescriptor{}

	return [][]byte{
		pvd.Marshal(base),
		partition.Marshal(base + 1),
		lvd.Marshal(base + 2),
		usd.Marshal(base + 3),
		term.Marshal(base + 4),
	}
}

// finalizeUDF patches PartitionLength into the Main/Reserve Partition
// Descriptors now that TotalSectors is final.
func (p *planner) finalizeUDF() error {
	ul := p.layout.UDF
	if ul == nil {
		return nil
	}
	ul.PartitionLength = p.layout.TotalSectors

	main := p.buildVDS(ul, ul.MainVDSExtent.Location)
	reserve := p.buildVDS(ul, ul.ReserveVDSExtent.Location)
	ul.Main = main
	ul.Reserve = reserve
	return nil
}

// buildUDFDirectory builds dirID's FID stream (parent self-reference plus
// one entry per ISO9660 child) and the directory's own File Entry.
func (p *planner) buildUDFDirectory(ul *UDFLayout, t *filesystem.Tree, dirID, root filesystem.NodeID) error {
	node := t.Node(dirID)
	parentID := dirID
	if facet := node.FacetIn(filesystem.ISO); facet != nil && facet.Parent != filesystem.NilNode {
		parentID = facet.Parent
	}

	var body []byte

	// Size first with a zero location, then re-marshal once the real
	// sector is known (the tag's Location field is self-referential).
	entries := []*udf.FileIdentifierDescriptor{
		{Characteristics: udf.FileCharacteristicDirectory | udf.FileCharacteristicParent, ICB: udf.LongAD{Length: udfSectorSize, Location: ul.FileEntryExtents[parentID].Location}},
	}
	for _, cid := range node.Children[filesystem.ISO] {
		cnode := t.Node(cid)
		facet := cnode.FacetIn(filesystem.ISO)
		if facet == nil {
			continue
		}
		name := udfIdentifier(cnode, facet)
		chars := uint8(0)
		if cnode.IsDir() {
			chars = udf.FileCharacteristicDirectory
		}
		entries = append(entries, &udf.FileIdentifierDescriptor{
			Characteristics: chars,
			ICB:             udf.LongAD{Length: udfSectorSize, Location: ul.FileEntryExtents[cid].Location},
			Identifier:      name,
		})
	}

	for _, e := range entries {
		body = append(body, e.Marshal(0)...)
	}
	sectors := sectorsFor(int64(len(body)))
	if sectors == 0 {
		sectors = 1
	}
	extent := Extent{Location: p.next, Sectors: sectors}
	p.next += sectors

	body = body[:0]
	for _, e := range entries {
		body = append(body, e.Marshal(extent.Location)...)
	}
	padded := make([]byte, sectors*udfSectorSize)
	copy(padded, body)

	ul.DirEntryExtents[dirID] = extent
	ul.DirEntryBytes[dirID] = padded
	return p.buildUDFDirectoryEntry(ul, dirID, extent)
}

func (p *planner) buildUDFDirectoryEntry(ul *UDFLayout, dirID filesystem.NodeID, fidExtent Extent) error {
	fe := &udf.FileEntry{
		Type:              udf.FileTypeDirectory,
		Permissions:       0o755,
		FileLinkCount:     1,
		InformationLength: uint64(fidExtent.Sectors) * udfSectorSize,
		ExtentLength:      fidExtent.Sectors * udfSectorSize,
		ExtentLocation:    fidExtent.Location,
	}
	loc := ul.FileEntryExtents[dirID].Location
	ul.FileEntryBytes[dirID] = fe.Marshal(loc)
	return nil
}

func (p *planner) buildUDFFile(ul *UDFLayout, node *filesystem.Node) error {
	var length, location uint32
	if node.Content != nil {
		if ext, ok := p.layout.ContentExtents[node.Content]; ok {
			length = uint32(node.Content.Size())
			location = ext.Location
		}
	}
	ftype := udf.FileTypeRegular
	if node.Kind == filesystem.KindSymlink {
		ftype = udf.FileTypeSymlink
	}
	fe := &udf.FileEntry{
		Type:              ftype,
		Permissions:       0o644,
		FileLinkCount:     1,
		InformationLength: uint64(length),
		ExtentLength:      length,
		ExtentLocation:    location,
	}
	loc := ul.FileEntryExtents[node.ID].Location
	ul.FileEntryBytes[node.ID] = fe.Marshal(loc)
	return nil
}

// udfIdentifier prefers a node's Joliet facet name (already full Unicode,
// no version suffix) since UDF, like Joliet, has no d-character or
// version-number restriction; it falls back to the ISO facet's identifier
// with any ";version" suffix stripped.
func udfIdentifier(node *filesystem.Node, isoFacet *filesystem.Facet) string {
	if jf := node.FacetIn(filesystem.Joliet); jf != nil {
		return jf.Identifier
	}
	name := isoFacet.Identifier
	for i := 0; i < len(name); i++ {
		if name[i] == ';' {
			return name[:i]
		}
	}
	return name
}
