// Package filesystem implements the Namespace Trees component (spec §4.1,
// §3 "Node"/"Namespace facet"/"Directory"): one logical tree whose nodes
// carry up to three coexisting namespace facets (ISO9660, Joliet, UDF),
// with Rock Ridge modeled as an overlay on the ISO9660 facet rather than a
// namespace of its own. Nodes live in an arena and are addressed by index
// so that Rock Ridge deep-directory relocation (spec §9 "Cyclic/dual-parent
// structure") can be represented without parent/child ownership cycles.
package filesystem

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/rockridge"
)

// Namespace identifies one of the on-disc trees a facet belongs to. Rock
// Ridge is deliberately absent here: it annotates ISO9660 facets rather
// than owning its own tree (spec §3 Node, "Rock Ridge is not a separate
// namespace on disc but an overlay on ISO9660 facets").
type Namespace int

const (
	ISO Namespace = iota
	Joliet
	UDF
)

func (n Namespace) String() string {
	switch n {
	case ISO:
		return "iso9660"
	case Joliet:
		return "joliet"
	case UDF:
		return "udf"
	default:
		return "unknown"
	}
}

// Kind classifies what a Node represents (spec §3 "Logical object").
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
	KindBootCatalog
)

// ContentSource distinguishes the three states a logical object's bytes
// can be in (spec §3 "Logical object", "content source").
type ContentSource int

const (
	// SourceOwned means the node holds its own byte buffer, supplied by
	// the caller or materialized by copy-on-write (spec §5).
	SourceOwned ContentSource = iota
	// SourceStream means the content is a lazily-read region of an
	// opened image's backing stream (spec §5, "read lazily through a
	// shared, immutable handle").
	SourceStream
	// SourcePending means content was promised (add_fp-style) but not
	// yet resolved; write must fail if any pending content remains.
	SourcePending
)

// Content is one logical object's bytes (spec §3 "Logical object"): an
// owned buffer, a region of the source stream, or a pending placeholder.
// Facets reference a Content by pointer so hard links share one buffer.
type Content struct {
	Source ContentSource
	Owned  []byte
	Reader io.ReaderAt
	Offset int64
	Length int64

	fingerprint    uint64
	fingerprintSet bool
}

// NewOwnedContent wraps a caller-supplied byte buffer.
func NewOwnedContent(data []byte) *Content {
	return &Content{Source: SourceOwned, Owned: data, Length: int64(len(data))}
}

// NewStreamContent references a region of an opened image's backing
// stream, read lazily (spec §5 "Shared-resource policy").
func NewStreamContent(r io.ReaderAt, offset, length int64) *Content {
	return &Content{Source: SourceStream, Reader: r, Offset: offset, Length: length}
}

// NewPendingContent reserves size bytes of content to be supplied later
// (mirrors pycdlib's add_fp deferred-handle pattern).
func NewPendingContent(size int64) *Content {
	return &Content{Source: SourcePending, Length: size}
}

// Size returns the content length in bytes.
func (c *Content) Size() int64 { return c.Length }

// Bytes materializes the full content into memory.
func (c *Content) Bytes() ([]byte, error) {
	switch c.Source {
	case SourceOwned:
		return c.Owned, nil
	case SourceStream:
		buf := make([]byte, c.Length)
		if c.Length == 0 {
			return buf, nil
		}
		if _, err := c.Reader.ReadAt(buf, c.Offset); err != nil {
			return nil, isoerr.IO("content.Bytes", err)
		}
		return buf, nil
	default:
		return nil, isoerr.Internal("content: cannot read pending content")
	}
}

// MaterializeOwned copies a stream-backed region into an owned buffer
// (spec §5 copy-on-write: "mutations that would modify such content must
// first materialise the content into an owned buffer").
func (c *Content) MaterializeOwned() error {
	if c.Source == SourceOwned {
		return nil
	}
	b, err := c.Bytes()
	if err != nil {
		return err
	}
	c.Owned = b
	c.Source = SourceOwned
	c.Reader = nil
	return nil
}

// Fingerprint returns an xxhash/v2 hash of the content's bytes, computed
// once and cached. Nothing else in this module calls it: facets share an
// extent only when they share one *Content, and repeated add_file calls
// with byte-identical content are not deduplicated.
func (c *Content) Fingerprint() (uint64, error) {
	if c.fingerprintSet {
		return c.fingerprint, nil
	}
	b, err := c.Bytes()
	if err != nil {
		return 0, err
	}
	c.fingerprint = xxhash.Sum64(b)
	c.fingerprintSet = true
	return c.fingerprint, nil
}

// NodeID addresses a Node inside a Tree's arena. Parent/child relationships
// are stored as NodeIDs, not pointers, so that Rock Ridge relocation (spec
// §9) can re-parent a directory without invalidating existing references.
type NodeID int

// NilNode is the zero value meaning "no node".
const NilNode NodeID = -1

// Facet ties a logical Node into one namespace (spec §3 "Namespace
// facet"): an identifier, flags, optional Rock Ridge annotations (carried
// only on ISO facets), and the extent the planner assigns it.
type Facet struct {
	Namespace  Namespace
	Identifier string
	Parent     NodeID
	Hidden     bool
	Associated bool
	Protection bool

	// RRName is the Rock Ridge NM display name (spec §4.1 add_symlink "rr
	// name", §3 Namespace facet "Rock Ridge POSIX name up to 248 bytes"),
	// distinct from Identifier, which remains the raw ISO9660 8.3
	// identifier every reader understands. Empty on facets that were
	// never given one, in which case the ISO identifier doubles as the
	// Rock Ridge name.
	RRName string

	// RockRidge is non-nil only on ISO facets when Rock Ridge is enabled;
	// it is the overlay spec §3 describes ("shares extent assignments
	// with the ISO facet it annotates").
	RockRidge *rockridge.Attributes

	// Relocated marks an ISO facet that is the RR_MOVED placeholder for
	// a directory pushed past the depth-8 limit (spec §9).
	Relocated bool

	// Extent is the planner's assignment for this facet's directory or
	// file content. Zero until planned.
	Extent uint32

	// State tracks the Pending → Planned → Written lifecycle (spec §4.1).
	State FacetState
}

// FacetState models the per-facet lifecycle spec §4.1 describes.
type FacetState int

const (
	Pending FacetState = iota
	Planned
	Written
)

// Node is a logical object plus its namespace facets (spec §3 "Node"). It
// is addressed by NodeID inside a Tree's arena; Children are recorded per
// namespace as ordered NodeID slices so each namespace can maintain its
// own sort order over a shared set of underlying nodes.
type Node struct {
	ID      NodeID
	Kind    Kind
	Content *Content // nil for directories and symlinks

	// Facets is keyed by namespace; a node reachable from namespace N has
	// an entry here. Hiding a node from N keeps the entry and sets its
	// Hidden flag.
	Facets map[Namespace]*Facet

	// Children is the ordered, per-namespace child list for directory
	// nodes (spec §3 "Directory").
	Children map[Namespace][]NodeID

	// Symlink target components (spec §4.1 add_symlink), set only when
	// Kind == KindSymlink.
	SymlinkTarget []rockridge.SymlinkComponent

	// UID/GID/Mode/timestamps are the POSIX metadata Rock Ridge PX/TF
	// entries carry; stored on the node since it is shared across every
	// facet's hard links (spec §3 "File-content nodes may be shared").
	UID        uint32
	GID        uint32
	Mode       os.FileMode
	ModTime    time.Time
	CreateTime time.Time
	Serial     uint32

	// links counts the number of facets referencing this node across all
	// namespaces; used to detect when the node becomes unreachable.
	links int
}

func newNode(id NodeID, kind Kind) *Node {
	return &Node{
		ID:       id,
		Kind:     kind,
		Facets:   make(map[Namespace]*Facet),
		Children: make(map[Namespace][]NodeID),
	}
}

// FacetIn returns the node's facet in namespace ns, or nil if the node is
// not reachable from that namespace. A hidden facet is still returned,
// with Hidden set.
func (n *Node) FacetIn(ns Namespace) *Facet { return n.Facets[ns] }

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool { return n.Kind == KindDirectory }

// String is used by debug logging call sites.
func (n *Node) String() string {
	return fmt.Sprintf("Node{id=%d kind=%v facets=%d}", n.ID, n.Kind, len(n.Facets))
}
