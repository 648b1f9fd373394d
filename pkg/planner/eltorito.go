package planner

import (
	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
)

// planElTorito places the boot catalog ahead of the boot file(s) it
// describes, ahead of ordinary file content (spec §4.2 layout order item
// 6: "El Torito boot file(s) and boot catalog block"; spec §8 scenario 5,
// "boot catalog at LBA 32, boot file at LBA 33" - the catalog always gets
// the lower LBA, confirmed by
// _examples/original_source/tests/common.py's check_eltorito_nofiles).
// The catalog's on-disc length depends only on its entry count and
// platform grouping, not on the extent values the entries carry, so it
// can be sized and placed with a placeholder marshal before any boot
// file has a location; finalizeElTorito re-marshals it once every entry's
// real extent is known.
func (p *planner) planElTorito() error {
	t := p.in.Tree
	et := p.layout.BootCatalog

	seen := make(map[*filesystem.Content]bool)

	catalogID, err := t.Lookup(filesystem.ISO, et.BootCatalog)
	if err != nil {
		return isoerr.Invalid(et.BootCatalog, "iso_path", "el torito boot catalog not found: %v", err)
	}
	catalogNode := t.Node(catalogID)
	if catalogNode.Content == nil {
		return isoerr.Internal("planner: boot catalog %q has no content", et.BootCatalog)
	}

	placeholder, err := et.MarshalBinary()
	if err != nil {
		return isoerr.Internal("planner: marshal el torito catalog: %v", err)
	}
	catalogNode.Content.Owned = placeholder
	catalogNode.Content.Length = int64(len(placeholder))

	p.assignContent(catalogNode.Content, seen)
	catalogExt := p.layout.ContentExtents[catalogNode.Content]
	p.layout.BootCatalogExtent = catalogExt.Extent

	for _, entry := range et.Entries {
		id, err := t.Lookup(filesystem.ISO, entry.BootFile)
		if err != nil {
			return isoerr.Invalid(entry.BootFile, "iso_path", "el torito boot file not found: %v", err)
		}
		node := t.Node(id)
		if node.Content == nil {
			return isoerr.Internal("planner: boot file %q has no content", entry.BootFile)
		}
		p.assignContent(node.Content, seen)
		ext := p.layout.ContentExtents[node.Content]
		entry.SetExtent(eltorito.SectorOffset(ext.Location), ext.Size)

		if entry.BootInfoTable {
			p.layout.BootInfoTablePatches = append(p.layout.BootInfoTablePatches, BootInfoTablePatch{
				Content:     node.Content,
				PVDLBA:      consts.ISO9660_SYSTEM_AREA_SECTORS,
				BootFileLBA: ext.Location,
			})
		}
	}

	catalogBytes, err := et.MarshalBinary()
	if err != nil {
		return isoerr.Internal("planner: re-marshal el torito catalog: %v", err)
	}
	if len(catalogBytes) != len(placeholder) {
		return isoerr.Internal("planner: el torito catalog size changed after assigning boot file extents")
	}
	catalogNode.Content.Owned = catalogBytes
	return nil
}

// finalizeElTorito re-marshals the catalog once more: the sizing pass
// above used placeholder extents for any boot file whose content had not
// yet been assigned a location by an earlier facet, so catalog bytes must
// be rebuilt now that every extent in the whole image is final.
func (p *planner) finalizeElTorito() error {
	t := p.in.Tree
	et := p.layout.BootCatalog

	catalogID, err := t.Lookup(filesystem.ISO, et.BootCatalog)
	if err != nil {
		return isoerr.Internal("planner: boot catalog disappeared during finalize: %v", err)
	}
	catalogNode := t.Node(catalogID)

	catalogBytes, err := et.MarshalBinary()
	if err != nil {
		return isoerr.Internal("planner: re-marshal el torito catalog: %v", err)
	}
	if len(catalogBytes) != len(catalogNode.Content.Owned) {
		return isoerr.Internal("planner: el torito catalog size changed between planning passes")
	}
	catalogNode.Content.Owned = catalogBytes
	return nil
}
