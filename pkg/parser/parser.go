// Package parser implements the Opener/Parser component (spec §4.5):
// reconstructing namespace trees and volume metadata from an existing
// image's backing stream. It reads lazily through the stream it is given
// rather than copying content up front (spec §5 "Shared-resource policy").
//
// UDF structures are not reconstructed into their own tree: a UDF-bridge
// image publishes the identical directory hierarchy and file content the
// ISO9660/Joliet facets already carry, so opening always walks the
// ISO9660 tree; the UDF descriptor sequence is a write-side-only artifact
// once an image already exists on disc.
package parser

import (
	"fmt"
	"io"
	"sort"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/logging"
)

// Options configures how an existing image is parsed (mirrors the subset
// of option.OpenOptions the parser itself needs).
type Options struct {
	Source           io.ReaderAt
	RockRidgeEnabled bool
	ElToritoEnabled  bool
	PreferJoliet     bool
	StripVersionInfo bool
	Logger           *logging.Logger
}

// Result is everything Parse recovers from an existing image.
type Result struct {
	Tree          *filesystem.Tree
	Primary       *descriptor.PrimaryVolumeDescriptor
	Supplementary []*descriptor.SupplementaryVolumeDescriptor
	Boot          *descriptor.BootRecordDescriptor
	ElTorito      *eltorito.ElTorito
	HasJoliet     bool
	HasRockRidge  bool
}

// Parse reads the Volume Descriptor Sequence and walks every directory
// tree it finds, returning a populated filesystem.Tree.
func Parse(opts Options) (*Result, error) {
	if opts.Source == nil {
		return nil, isoerr.Internal("parser: nil source")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	set, err := readDescriptorSet(opts.Source)
	if err != nil {
		return nil, err
	}
	if set.Primary == nil {
		return nil, isoerr.InvalidImage("", "missing primary volume descriptor")
	}

	res := &Result{
		Primary:       set.Primary,
		Supplementary: set.Supplementary,
		Boot:          set.Boot,
	}

	var joliet *descriptor.SupplementaryVolumeDescriptor
	for _, svd := range set.Supplementary {
		if isJolietEscape(svd.EscapeSequences) {
			joliet = svd
			break
		}
	}
	res.HasJoliet = joliet != nil

	namespaces := []filesystem.Namespace{filesystem.ISO}
	if joliet != nil {
		namespaces = append(namespaces, filesystem.Joliet)
	}
	tree := filesystem.NewTree(namespaces, logger)

	p := &parseState{
		source:           opts.Source,
		tree:             tree,
		stripVersionInfo: opts.StripVersionInfo,
		nodeByExtent:     map[uint32]*filesystem.Node{},
	}

	isoRoot := tree.Root(filesystem.ISO)
	if err := p.walkDirectory(filesystem.ISO, set.Primary.RootDirectoryRecord, isoRoot); err != nil {
		return nil, fmt.Errorf("parser: walking iso9660 tree: %w", err)
	}
	res.HasRockRidge = p.sawRockRidge

	if joliet != nil {
		jRoot := tree.Root(filesystem.Joliet)
		if err := p.walkDirectory(filesystem.Joliet, joliet.RootDirectoryRecord, jRoot); err != nil {
			return nil, fmt.Errorf("parser: walking joliet tree: %w", err)
		}
	}

	res.Tree = tree

	if opts.ElToritoEnabled && set.Boot != nil {
		et, err := parseElTorito(opts.Source, set.Boot)
		if err != nil {
			return nil, fmt.Errorf("parser: el torito: %w", err)
		}
		res.ElTorito = et
	}

	return res, nil
}

func isJolietEscape(esc [32]byte) bool {
	for _, lvl := range [][3]byte{descriptor.JolietEscapeLevel1, descriptor.JolietEscapeLevel2, descriptor.JolietEscapeLevel3} {
		if esc[0] == lvl[0] && esc[1] == lvl[1] && esc[2] == lvl[2] {
			return true
		}
	}
	return false
}

// readDescriptorSet walks sectors starting at ISO9660_SYSTEM_AREA_SECTORS
// until the Set Terminator, classifying each by its type byte.
func readDescriptorSet(source io.ReaderAt) (*descriptor.VolumeDescriptorSet, error) {
	set := &descriptor.VolumeDescriptorSet{}
	lba := uint32(consts.ISO9660_SYSTEM_AREA_SECTORS)
	for {
		var sector [consts.ISO9660_SECTOR_SIZE]byte
		if _, err := source.ReadAt(sector[:], int64(lba)*consts.ISO9660_SECTOR_SIZE); err != nil {
			return nil, isoerr.IO("parser.readDescriptorSet", err)
		}
		switch descriptor.VolumeDescriptorType(sector[0]) {
		case descriptor.VolumeDescriptorPrimary:
			pvd := &descriptor.PrimaryVolumeDescriptor{}
			if err := pvd.Unmarshal(sector, source); err != nil {
				return nil, fmt.Errorf("parser: primary volume descriptor: %w", err)
			}
			if set.Primary == nil {
				set.Primary = pvd
			}
		case descriptor.VolumeDescriptorSupplementary:
			svd := &descriptor.SupplementaryVolumeDescriptor{}
			if err := svd.Unmarshal(sector, source); err != nil {
				return nil, fmt.Errorf("parser: supplementary volume descriptor: %w", err)
			}
			set.Supplementary = append(set.Supplementary, svd)
		case descriptor.VolumeDescriptorBootRecord:
			boot := &descriptor.BootRecordDescriptor{}
			if err := boot.Unmarshal(sector); err != nil {
				return nil, fmt.Errorf("parser: boot record: %w", err)
			}
			set.Boot = boot
		case descriptor.VolumeDescriptorTypeTerminator:
			term := &descriptor.VolumeDescriptorSetTerminator{}
			_ = term.Unmarshal(sector)
			set.Terminator = term
			return set, nil
		default:
			// Reserved or partition descriptor types are not part of
			// this module's scope; skip and keep scanning.
		}
		lba++
		if lba > consts.ISO9660_SYSTEM_AREA_SECTORS+64 {
			return nil, isoerr.InvalidImage("", "volume descriptor sequence never terminated")
		}
	}
}

// parseState threads shared decode context through the recursive
// directory walk: the backing stream, the tree being populated, and a
// location->Node map so a regular file reachable from two namespaces (or
// with multiple hard links) shares one node rather than being read twice.
type parseState struct {
	source           io.ReaderAt
	tree             *filesystem.Tree
	stripVersionInfo bool
	nodeByExtent     map[uint32]*filesystem.Node
	sawRockRidge     bool
}

// walkDirectory decodes dirRec's extent as a sequence of directory
// records, recursing into every subdirectory and attaching each entry
// under dirID, which the caller has already created (or, for the root
// record, already obtained from the tree).
func (p *parseState) walkDirectory(ns filesystem.Namespace, dirRec *directory.DirectoryRecord, dirID filesystem.NodeID) error {
	size := int64(dirRec.DataLength)
	buf := make([]byte, size)
	if size > 0 {
		if _, err := p.source.ReadAt(buf, int64(dirRec.LocationOfExtent)*consts.ISO9660_SECTOR_SIZE); err != nil {
			return isoerr.IO("parser.walkDirectory", err)
		}
	}

	type pending struct {
		rec  *directory.DirectoryRecord
		name string
	}
	var children []pending

	off := int64(0)
	for off < int64(len(buf)) {
		if buf[off] == 0 {
			// Zero padding to the end of a sector; resume at the next one.
			off += consts.ISO9660_SECTOR_SIZE - (off % consts.ISO9660_SECTOR_SIZE)
			continue
		}
		rec := &directory.DirectoryRecord{Joliet: ns == filesystem.Joliet}
		if err := rec.Unmarshal(buf[off:], p.source); err != nil {
			return fmt.Errorf("parser: directory record at offset %d: %w", off, err)
		}
		off += int64(rec.Len())

		if rec.FileIdentifier == directory.SelfIdentifier || rec.FileIdentifier == directory.ParentIdentifier {
			continue
		}
		if rec.RockRidge != nil {
			p.sawRockRidge = true
		}
		childName := rec.FileIdentifier
		if ns == filesystem.ISO && p.stripVersionInfo {
			childName = stripVersion(childName)
		}
		if rec.RockRidge != nil && rec.RockRidge.Name != "" {
			childName = rec.RockRidge.Name
		}
		children = append(children, pending{rec: rec, name: childName})
	}

	// Stable order by on-disc appearance (already identifier-sorted by
	// ECMA-119 9.4's path table requirement, but Rock Ridge NM renaming
	// can reorder names lexically; re-sort so Attach's own sorted-insert
	// invariant holds under repeated calls).
	sort.SliceStable(children, func(i, j int) bool { return children[i].name < children[j].name })

	for _, c := range children {
		facet := &filesystem.Facet{Identifier: c.name}
		if c.rec.RockRidge != nil {
			facet.RockRidge = c.rec.RockRidge
		}
		if c.rec.FileFlags != nil {
			facet.Hidden = c.rec.FileFlags.Existence
			facet.Associated = c.rec.FileFlags.AssociatedFile
		}

		if c.rec.FileFlags != nil && c.rec.FileFlags.Directory {
			child := p.tree.CreateDirectory()
			if err := p.tree.Attach(child, ns, dirID, facet); err != nil {
				return err
			}
			if err := p.walkDirectory(ns, c.rec, child.ID); err != nil {
				return err
			}
			continue
		}
		if err := p.attachFile(ns, dirID, facet, c.rec); err != nil {
			return err
		}
	}

	return nil
}

func (p *parseState) attachFile(ns filesystem.Namespace, parent filesystem.NodeID, facet *filesystem.Facet, rec *directory.DirectoryRecord) error {
	isSymlink := rec.RockRidge != nil && len(rec.RockRidge.Symlink) > 0

	if !isSymlink && rec.DataLength > 0 {
		if existing, ok := p.nodeByExtent[rec.LocationOfExtent]; ok {
			return p.tree.Attach(existing, ns, parent, facet)
		}
	}

	var node *filesystem.Node
	if isSymlink {
		node = p.tree.CreateSymlink(rec.RockRidge.Symlink)
	} else {
		content := filesystem.NewStreamContent(p.source, int64(rec.LocationOfExtent)*consts.ISO9660_SECTOR_SIZE, int64(rec.DataLength))
		node = p.tree.CreateFile(content)
		if rec.DataLength > 0 {
			p.nodeByExtent[rec.LocationOfExtent] = node
		}
	}
	return p.tree.Attach(node, ns, parent, facet)
}

// stripVersion removes the ";n" version suffix ECMA-119 file identifiers
// carry (spec §4.5 `open(strip_version_info bool)`).
func stripVersion(identifier string) string {
	for i := 0; i < len(identifier); i++ {
		if identifier[i] == ';' {
			return identifier[:i]
		}
	}
	return identifier
}

func parseElTorito(source io.ReaderAt, boot *descriptor.BootRecordDescriptor) (*eltorito.ElTorito, error) {
	lba := boot.BootCatalogLocation()
	buf := make([]byte, consts.ISO9660_SECTOR_SIZE)
	if _, err := source.ReadAt(buf, int64(lba)*consts.ISO9660_SECTOR_SIZE); err != nil {
		return nil, isoerr.IO("parser.parseElTorito", err)
	}
	et := &eltorito.ElTorito{}
	if err := et.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return et, nil
}
