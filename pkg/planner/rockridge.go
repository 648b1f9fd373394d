package planner

import (
	"fmt"
	"os"
	"time"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/rockridge"
	"github.com/bgrewell/iso-forge/pkg/susp"
)

// rockRidgeAttrsFor builds the Rock Ridge annotation for node's ISO facet.
// During the sizing pass (sizing=true) CL/PL fields that need an
// as-yet-unassigned extent get a nonzero placeholder so BuildEntries'
// presence check (gated on != 0) agrees between the sizing and final
// passes, keeping directory record lengths stable across both (spec §9).
func (p *planner) rockRidgeAttrsFor(node *filesystem.Node, facet *filesystem.Facet, sizing bool) (*rockridge.Attributes, error) {
	mode := node.Mode
	if mode == 0 {
		switch {
		case node.IsDir():
			mode = os.ModeDir | 0o755
		case node.Kind == filesystem.KindSymlink:
			mode = os.ModeSymlink | 0o777
		default:
			mode = 0o644
		}
	}
	links := uint32(1)
	if node.IsDir() {
		links = uint32(2 + countSubdirs(p.in.Tree, node))
	}

	attrs := &rockridge.Attributes{
		Version: p.rrVer,
		Posix: &rockridge.Posix{
			Mode:   mode,
			Links:  links,
			UID:    node.UID,
			GID:    node.GID,
			Serial: node.Serial,
		},
		Timestamps: map[uint8]time.Time{
			rockridge.TFCreation: recordTime(node),
			rockridge.TFModify:   recordTime(node),
		},
	}
	switch {
	case facet.RRName != "":
		attrs.Name = facet.RRName
	case facet.Identifier != "":
		attrs.Name = facet.Identifier
	}
	if node.Kind == filesystem.KindSymlink {
		attrs.Symlink = node.SymlinkTarget
	}

	if facet.Relocated {
		attrs.Relocated = true
		if real, ok := p.relocatedByPlaceholder[node.ID]; ok {
			attrs.ChildLink = p.extentOf(filesystem.ISO, real, sizing).Location
		} else if sizing {
			attrs.ChildLink = 1
		}
	}
	if parentID, ok := p.relocatedParent[node.ID]; ok {
		attrs.ParentLink = p.extentOf(filesystem.ISO, parentID, sizing).Location
	}
	return attrs, nil
}

func countSubdirs(t *filesystem.Tree, node *filesystem.Node) int {
	n := 0
	for _, cid := range node.Children[filesystem.ISO] {
		if t.Node(cid).IsDir() {
			n++
		}
	}
	return n
}

// systemUseFor assembles the full System Use field for a directory record:
// the SP/CE bootstrap pair ahead of everything else on the root "."
// record (SUSP-112 5.3/5.5), then attrs' own entries. The CE entry points
// at a dedicated continuation-area extent carrying the ER record; during
// the sizing pass (before that extent is assigned) a placeholder location
// is used since the CE entry's on-disc length doesn't depend on the
// extent value, only its presence (spec §9 "Rock Ridge continuation (CE)
// areas").
func (p *planner) systemUseFor(attrs *rockridge.Attributes, isRootSelf bool, sizing bool) susp.Entries {
	entries := rockridge.BuildEntries(attrs)
	if isRootSelf {
		ceExtent := p.layout.RRContinuationExtent.Location
		if sizing {
			ceExtent = 1
		}
		entries = append(rockridge.RootBootstrapEntries(p.rrVer, ceExtent), entries...)
	}
	return entries
}

// relocateDeepDirectories implements the Rock Ridge deep-directory
// workaround (spec §9 "Cyclic/dual-parent structure"): any ISO directory
// whose depth exceeds consts.ISO9660_MAX_DEPTH (8, at every interchange
// level) is detached from
// its real parent and reattached under a synthetic "RR_MOVED" directory
// at the ISO root, leaving an RE-flagged placeholder behind so readers
// that don't understand Rock Ridge still see an (empty) entry at the
// original path, and CL/PL entries let Rock Ridge-aware readers recover
// the real location either direction.
func (p *planner) relocateDeepDirectories() error {
	t := p.in.Tree
	root := t.Root(filesystem.ISO)
	if root == filesystem.NilNode {
		return nil
	}

	var deep []filesystem.NodeID
	t.Walk(filesystem.ISO, func(node *filesystem.Node, facet *filesystem.Facet, depth int) {
		if facet == nil || !node.IsDir() || node.ID == root {
			return
		}
		if depth > consts.ISO9660_MAX_DEPTH {
			deep = append(deep, node.ID)
		}
	})
	if len(deep) == 0 {
		return nil
	}

	if t.RRMoved == filesystem.NilNode {
		moved := t.CreateDirectory()
		if err := t.Attach(moved, filesystem.ISO, root, &filesystem.Facet{Identifier: "RR_MOVED"}); err != nil {
			return fmt.Errorf("planner: creating RR_MOVED: %w", err)
		}
		t.RRMoved = moved.ID
	}

	for _, id := range deep {
		node := t.Node(id)
		facet := node.Facets[filesystem.ISO]
		originalParent := facet.Parent
		originalName := facet.Identifier

		t.Detach(node, filesystem.ISO)

		placeholder := t.CreateDirectory()
		if err := t.Attach(placeholder, filesystem.ISO, originalParent, &filesystem.Facet{
			Identifier: originalName,
			Relocated:  true,
		}); err != nil {
			return fmt.Errorf("planner: attaching relocation placeholder for %q: %w", originalName, err)
		}

		relName := fmt.Sprintf("RH%06X", uint32(id))
		if err := t.Attach(node, filesystem.ISO, t.RRMoved, &filesystem.Facet{Identifier: relName}); err != nil {
			return fmt.Errorf("planner: reattaching %q under RR_MOVED: %w", originalName, err)
		}

		p.relocatedParent[node.ID] = originalParent
		p.relocatedByPlaceholder[placeholder.ID] = node.ID
	}
	return nil
}
