package planner

import (
	"github.com/bgrewell/iso-forge/pkg/filesystem"
)

// planFileContent assigns an extent to every regular file's content that
// has not already been placed by an earlier stage (spec §4.2 layout order
// item 7: "File content, in path-table order within each namespace, with
// multi-namespace files written once at a single extent shared by all
// facets"). El Torito boot files are placed earlier, by planElTorito; this
// pass simply skips any Content pointer already present in ContentExtents,
// which is how the dedup-by-pointer sharing (spec §3 "File-content nodes
// may be shared by arbitrarily many facets") falls out naturally.
func (p *planner) planFileContent() error {
	t := p.in.Tree
	seen := make(map[*filesystem.Content]bool)

	var walk func(ns filesystem.Namespace)
	walk = func(ns filesystem.Namespace) {
		for _, dirID := range bfsOrder(t, ns) {
			for _, cid := range t.Node(dirID).Children[ns] {
				node := t.Node(cid)
				if node.Kind != filesystem.KindFile || node.Content == nil {
					continue
				}
				p.assignContent(node.Content, seen)
			}
		}
	}

	// ISO path-table order first (it is always enabled), then Joliet,
	// so a file reachable from both namespaces keeps the extent its ISO
	// facet claimed first (spec §4.2 "written once at a single extent").
	walk(filesystem.ISO)
	if p.joliet {
		walk(filesystem.Joliet)
	}
	return nil
}

// assignContent gives c a fresh extent unless one was already recorded
// (by this pass or an earlier one, e.g. planElTorito).
func (p *planner) assignContent(c *filesystem.Content, seen map[*filesystem.Content]bool) {
	if seen[c] {
		return
	}
	seen[c] = true
	if _, ok := p.layout.ContentExtents[c]; ok {
		return
	}
	size := c.Size()
	sectors := sectorsFor(size)
	p.layout.ContentExtents[c] = ContentExtent{
		Extent: Extent{Location: p.next, Sectors: sectors},
		Size:   size,
	}
	p.next += sectors
}
