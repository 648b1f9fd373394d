// Package planner implements the Extent Planner (spec §4.2): the function
// that turns a filesystem.Tree plus configuration into a concrete on-disc
// layout — every directory, file, path table, boot catalog and UDF
// structure assigned a logical block address — while keeping every
// cross-referencing field (PVD space size, path table sizes, directory
// record extents, El Torito checksums, UDF tag CRCs) mutually consistent.
//
// Planning is a pure function of the tree plus options: calling Plan twice
// against an unmodified tree produces byte-identical output, which is what
// lets both the "lazy" and "always_consistent" modes (spec §4.2 "Modes")
// share one implementation; the only difference is how often a caller
// chooses to invoke it.
package planner

import (
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/logging"
	"github.com/bgrewell/iso-forge/pkg/option"
	"github.com/bgrewell/iso-forge/pkg/rockridge"
	"github.com/bgrewell/iso-forge/pkg/systemarea"
	"github.com/bgrewell/iso-forge/pkg/validation"
)

// Extent is a (location, length) pair measured in 2048-byte sectors.
type Extent struct {
	Location uint32
	Sectors  uint32
}

// ContentExtent additionally records the exact byte length, since content
// is zero-padded out to a sector boundary on disc.
type ContentExtent struct {
	Extent
	Size int64
}

// Input gathers everything Plan needs: the tree to lay out, the create
// options that were in effect, and the optional El Torito / isohybrid
// configuration (spec §4.1 add_eltorito, add_isohybrid).
type Input struct {
	Tree      *filesystem.Tree
	Options   *option.CreateOptions
	ElTorito  *eltorito.ElTorito
	Isohybrid *systemarea.MBR
	Logger    *logging.Logger

	// DuplicatePVD requests a second, byte-identical Primary Volume
	// Descriptor immediately following the first (spec §4.1
	// duplicate_pvd, §4.2 layout order item 2 "PVD(s)").
	DuplicatePVD bool
}

// Layout is the fully resolved plan: every location a Writer needs, plus
// the marshaled descriptors themselves.
type Layout struct {
	TotalSectors uint32

	SystemArea  *systemarea.SystemArea
	Descriptors *descriptor.VolumeDescriptorSet

	// PathTables holds the encoded L/M bytes and their extents, keyed by
	// namespace (ISO and, when enabled, Joliet).
	PathTables map[filesystem.Namespace]*PathTableLayout

	// DirectoryExtents and DirectoryContent hold, per namespace, every
	// directory node's assigned extent and final encoded bytes.
	DirectoryExtents map[filesystem.Namespace]map[filesystem.NodeID]Extent
	DirectoryContent map[filesystem.Namespace]map[filesystem.NodeID][]byte

	// ContentExtents assigns one extent per unique *filesystem.Content,
	// shared across every facet/hard-link that references it (spec §3
	// "Facets reference a Content by pointer so hard links share one
	// buffer").
	ContentExtents map[*filesystem.Content]ContentExtent

	BootCatalog       *eltorito.ElTorito
	BootCatalogExtent Extent

	// RRContinuationExtent and RRContinuationArea are the dedicated extent
	// pycdlib always reserves for the Rock Ridge ER record and its bytes
	// (SP/ER, spec §9 "Rock Ridge continuation (CE) areas"), unset when
	// Rock Ridge is disabled.
	RRContinuationExtent Extent
	RRContinuationArea   []byte

	// BootInfoTablePatches lists every boot file content that needs the
	// isolinux boot_info_table patched into it at write time (spec §4.4
	// Writer: "For the boot file carrying a boot_info_table ... patches
	// the header, then emits"). PVDLBA is always the System Area size
	// (the Primary Volume Descriptor's fixed LBA).
	BootInfoTablePatches []BootInfoTablePatch

	UDF *UDFLayout

	Isohybrid *systemarea.MBR
}

// BootInfoTablePatch names one El Torito boot file content that the
// Writer must patch in place before streaming it (spec §4.1 add_eltorito
// "boot_info_table", §4.4 Writer).
type BootInfoTablePatch struct {
	Content     *filesystem.Content
	PVDLBA      uint32
	BootFileLBA uint32
}

// PathTableLayout is one namespace's pair of path table encodings.
type PathTableLayout struct {
	L, M         []byte
	LExtent      Extent
	MExtent      Extent
	PathTableSize uint32
}

// planner carries the working state threaded through the multi-pass
// algorithm below.
type planner struct {
	in     Input
	log    *logging.Logger
	level  validation.InterchangeLevel
	rr     bool
	rrVer  string
	joliet bool
	udf    bool

	next uint32 // cursor for sequential extent assignment

	layout *Layout

	// relocatedParent maps a relocated (real, moved-under-RR_MOVED)
	// directory's NodeID to the original parent it was detached from, so
	// its own "." record can carry a PL entry pointing back (spec §9).
	relocatedParent map[filesystem.NodeID]filesystem.NodeID

	// relocatedByPlaceholder maps the placeholder NodeID left at a
	// relocated directory's original location to the real, moved NodeID,
	// so the placeholder's "." record can carry a CL entry.
	relocatedByPlaceholder map[filesystem.NodeID]filesystem.NodeID

	// pathTableOrder caches each namespace's breadth-first directory order
	// so finalizePathTables can rebuild parent numbers without recomputing
	// the walk once directory extents are known.
	pathTableOrder map[filesystem.Namespace][]filesystem.NodeID
}

// Plan computes a complete Layout for in.Tree under in.Options.
func Plan(in Input) (*Layout, error) {
	if in.Tree == nil {
		return nil, isoerr.Internal("planner: nil tree")
	}
	opts := in.Options
	if opts == nil {
		opts = option.DefaultCreateOptions()
	}
	logger := in.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	p := &planner{
		in:        in,
		log:       logger,
		level:     validation.InterchangeLevel(opts.InterchangeLevel),
		rr:        opts.RockRidge != option.RockRidgeNone,
		rrVer:     string(opts.RockRidge),
		joliet:    opts.Joliet != option.JolietDisabled,
		udf:       opts.UDF != option.UDFDisabled,
		relocatedParent:        map[filesystem.NodeID]filesystem.NodeID{},
		relocatedByPlaceholder: map[filesystem.NodeID]filesystem.NodeID{},
		pathTableOrder:         map[filesystem.Namespace][]filesystem.NodeID{},
		layout: &Layout{
			PathTables:       map[filesystem.Namespace]*PathTableLayout{},
			DirectoryExtents: map[filesystem.Namespace]map[filesystem.NodeID]Extent{},
			DirectoryContent: map[filesystem.Namespace]map[filesystem.NodeID][]byte{},
			ContentExtents:   map[*filesystem.Content]ContentExtent{},
		},
	}
	if in.ElTorito != nil {
		p.layout.BootCatalog = in.ElTorito
	}
	if in.Isohybrid != nil {
		p.layout.Isohybrid = in.Isohybrid
	}

	if p.rr {
		if err := p.relocateDeepDirectories(); err != nil {
			return nil, err
		}
	}

	p.next = consts.ISO9660_SYSTEM_AREA_SECTORS

	descCount := uint32(1) // PVD
	if in.DuplicatePVD {
		descCount++ // duplicate PVD
	}
	if p.joliet {
		descCount++ // SVD
	}
	if p.layout.BootCatalog != nil {
		descCount++ // Boot Record
	}
	descCount++ // Terminator
	vdsStart := p.next
	p.next += descCount

	// pycdlib always leaves a one-extent gap between the volume descriptor
	// set and the first path table (spec §8 seed scenario 1: terminator at
	// 17, LE path table at 19, not 18); match that offset so a self-authored
	// image's extent layout is byte-exact against the reference sizes.
	p.next++

	if err := p.planPathTables(); err != nil {
		return nil, err
	}
	if err := p.planDirectories(); err != nil {
		return nil, err
	}
	if p.rr {
		// pycdlib always reserves a dedicated extent for the Rock Ridge ER
		// record rather than inlining it in the root "." record (confirmed
		// by _examples/original_source/tests/common.py's check_rr_nofiles:
		// every Rock-Ridge-enabled image is one extent larger than its
		// non-Rock-Ridge equivalent, "1 for the Rock Ridge ER record").
		p.layout.RRContinuationExtent = Extent{Location: p.next, Sectors: 1}
		p.next++
		p.layout.RRContinuationArea = padToSectors(rockridge.ContinuationAreaBytes(p.rrVer), 1)
	}
	if p.layout.BootCatalog != nil {
		if err := p.planElTorito(); err != nil {
			return nil, err
		}
	}
	if err := p.planFileContent(); err != nil {
		return nil, err
	}
	if p.udf {
		if err := p.planUDF(); err != nil {
			return nil, err
		}
	}

	p.layout.TotalSectors = p.next
	p.layout.SystemArea = &systemarea.SystemArea{}
	if p.layout.Isohybrid != nil {
		p.layout.Isohybrid.TotalSectors512 = p.layout.TotalSectors * (consts.ISO9660_SECTOR_SIZE / 512)
		if err := systemarea.InstallMBR(p.layout.SystemArea, p.layout.Isohybrid); err != nil {
			return nil, fmt.Errorf("planner: isohybrid MBR: %w", err)
		}
	}

	if err := p.rewriteDirectoryContent(); err != nil {
		return nil, err
	}
	if err := p.finalizePathTables(); err != nil {
		return nil, err
	}
	if err := p.buildDescriptors(vdsStart); err != nil {
		return nil, err
	}
	if p.layout.BootCatalog != nil {
		if err := p.finalizeElTorito(); err != nil {
			return nil, err
		}
	}
	if p.udf {
		if err := p.finalizeUDF(); err != nil {
			return nil, err
		}
	}

	p.log.Debug("planned image", "sectors", p.layout.TotalSectors, "joliet", p.joliet, "rockridge", p.rr, "udf", p.udf)
	return p.layout, nil
}

// directoryNamespaces returns the directory-bearing namespaces in a fixed,
// deterministic order: ISO first, then Joliet.
func (p *planner) directoryNamespaces() []filesystem.Namespace {
	ns := []filesystem.Namespace{filesystem.ISO}
	if p.joliet {
		ns = append(ns, filesystem.Joliet)
	}
	return ns
}

// bfsOrder returns every directory node reachable from ns's root, ordered
// breadth-first (spec §3 Path Table: "ordered by directory level, then by
// parent, then by identifier" — breadth-first visitation naturally
// produces level order; siblings are already stored identifier-sorted by
// the tree).
func bfsOrder(t *filesystem.Tree, ns filesystem.Namespace) []filesystem.NodeID {
	root := t.Root(ns)
	if root == filesystem.NilNode {
		return nil
	}
	var order []filesystem.NodeID
	queue := []filesystem.NodeID{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		node := t.Node(id)
		for _, cid := range node.Children[ns] {
			if t.Node(cid).IsDir() {
				queue = append(queue, cid)
			}
		}
	}
	return order
}

// sectorsFor returns the number of 2048-byte sectors needed to hold n
// bytes, rounding up.
func sectorsFor(n int64) uint32 {
	if n <= 0 {
		return 0
	}
	s := n / consts.ISO9660_SECTOR_SIZE
	if n%consts.ISO9660_SECTOR_SIZE != 0 {
		s++
	}
	return uint32(s)
}

