package planner

import (
	"time"

	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
)

// planDirectories sizes every directory in every enabled namespace (a pass
// that needs no extent values, since a DirectoryRecord's on-disc length
// does not depend on the numeric extent/size it carries, only on the
// identifier and System Use bytes), then assigns each directory a
// contiguous extent in breadth-first order.
func (p *planner) planDirectories() error {
	for _, ns := range p.directoryNamespaces() {
		order := bfsOrder(p.in.Tree, ns)
		sizes := make(map[filesystem.NodeID]int64, len(order))
		for _, id := range order {
			records, err := p.buildRecords(ns, id, true)
			if err != nil {
				return err
			}
			var total int64
			for _, r := range records {
				total += int64(r.Len())
			}
			sizes[id] = total
		}

		extents := make(map[filesystem.NodeID]Extent, len(order))
		for _, id := range order {
			sectors := sectorsFor(sizes[id])
			if sectors == 0 {
				sectors = 1
			}
			extents[id] = Extent{Location: p.next, Sectors: sectors}
			p.next += sectors
		}
		p.layout.DirectoryExtents[ns] = extents
	}
	return nil
}

// rewriteDirectoryContent re-encodes every directory now that every
// directory and file extent is known, producing the final on-disc bytes
// the writer streams out.
func (p *planner) rewriteDirectoryContent() error {
	for _, ns := range p.directoryNamespaces() {
		content := make(map[filesystem.NodeID][]byte)
		for id := range p.layout.DirectoryExtents[ns] {
			records, err := p.buildRecords(ns, id, false)
			if err != nil {
				return err
			}
			var buf []byte
			for _, r := range records {
				b, err := r.Marshal()
				if err != nil {
					return isoerr.Internal("planner: marshal directory record: %v", err)
				}
				buf = append(buf, b...)
			}
			ext := p.layout.DirectoryExtents[ns][id]
			padded := make([]byte, int64(ext.Sectors)*2048)
			copy(padded, buf)
			content[id] = padded
		}
		p.layout.DirectoryContent[ns] = content
	}
	return nil
}

// buildRecords returns the "." / ".." / child records for dirID in
// namespace ns. When sizing is true, every extent-dependent field is a
// nonzero placeholder (so record length and Rock Ridge field presence are
// correct) rather than the real, not-yet-known value.
func (p *planner) buildRecords(ns filesystem.Namespace, dirID filesystem.NodeID, sizing bool) ([]*directory.DirectoryRecord, error) {
	t := p.in.Tree
	node := t.Node(dirID)
	facet := node.Facets[ns]
	if facet == nil {
		return nil, isoerr.Internal("planner: directory %d missing facet in namespace %v", dirID, ns)
	}

	selfExt := p.extentOf(ns, dirID, sizing)
	parentID := facet.Parent
	if parentID == filesystem.NilNode {
		parentID = dirID // root's ".." points at itself
	}
	parentExt := p.extentOf(ns, parentID, sizing)

	var out []*directory.DirectoryRecord
	self := &directory.DirectoryRecord{
		FileIdentifier:       directory.SelfIdentifier,
		LocationOfExtent:     selfExt.Location,
		DataLength:           uint32(selfExt.Sectors) * 2048,
		RecordingDateAndTime: recordTime(node),
		FileFlags:            &directory.FileFlags{Existence: true, Directory: true},
	}
	if ns == filesystem.ISO && p.rr {
		attrs, err := p.rockRidgeAttrsFor(node, facet, sizing)
		if err != nil {
			return nil, err
		}
		self.RockRidge = attrs
		self.SystemUseEntries = p.systemUseFor(attrs, dirID == t.Root(ns), sizing)
	}
	out = append(out, self)

	parent := &directory.DirectoryRecord{
		FileIdentifier:       directory.ParentIdentifier,
		LocationOfExtent:     parentExt.Location,
		DataLength:           uint32(parentExt.Sectors) * 2048,
		RecordingDateAndTime: recordTime(node),
		FileFlags:            &directory.FileFlags{Existence: true, Directory: true},
	}
	if ns == filesystem.ISO && p.rr {
		attrs, err := p.rockRidgeAttrsFor(t.Node(parentID), t.Node(parentID).Facets[ns], sizing)
		if err != nil {
			return nil, err
		}
		parent.RockRidge = attrs
		parent.SystemUseEntries = p.systemUseFor(attrs, false, sizing)
	}
	out = append(out, parent)

	for _, cid := range node.Children[ns] {
		child := t.Node(cid)
		cfacet := child.Facets[ns]
		rec := &directory.DirectoryRecord{
			FileIdentifier:       cfacet.Identifier,
			Joliet:               ns == filesystem.Joliet,
			RecordingDateAndTime: recordTime(child),
			FileFlags: &directory.FileFlags{
				Existence: cfacet.Hidden,
				Directory: child.IsDir(),
			},
		}
		switch child.Kind {
		case filesystem.KindDirectory:
			ext := p.extentOf(ns, cid, sizing)
			rec.LocationOfExtent = ext.Location
			rec.DataLength = uint32(ext.Sectors) * 2048
		default:
			ext := p.contentExtentOf(child.Content, sizing)
			rec.LocationOfExtent = ext.Location
			rec.DataLength = uint32(ext.Size)
		}
		if ns == filesystem.ISO && p.rr {
			attrs, err := p.rockRidgeAttrsFor(child, cfacet, sizing)
			if err != nil {
				return nil, err
			}
			rec.RockRidge = attrs
			rec.SystemUseEntries = p.systemUseFor(attrs, false, sizing)
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordTime(n *filesystem.Node) time.Time {
	if !n.ModTime.IsZero() {
		return n.ModTime
	}
	return time.Now()
}

// extentOf returns dirID's extent in ns, or a nonzero placeholder during
// the sizing pass before extents have been assigned.
func (p *planner) extentOf(ns filesystem.Namespace, id filesystem.NodeID, sizing bool) Extent {
	if sizing {
		return Extent{Location: 1, Sectors: 1}
	}
	return p.layout.DirectoryExtents[ns][id]
}

func (p *planner) contentExtentOf(c *filesystem.Content, sizing bool) ContentExtent {
	if sizing || c == nil {
		size := int64(0)
		if c != nil {
			size = c.Size()
		}
		return ContentExtent{Extent: Extent{Location: 1, Sectors: sectorsFor(size)}, Size: size}
	}
	return p.layout.ContentExtents[c]
}

// A hidden child facet is encoded by setting bit 0 of its record's file
// flags (FileFlags.Existence), which readers treat as "do not list";
// visible children leave it clear, and pkg/parser reads the same bit back
// into Facet.Hidden (spec §4.1 set_hidden/clear_hidden).
