package filesystem

import (
	"sort"
	"strings"

	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/logging"
	"github.com/bgrewell/iso-forge/pkg/rockridge"
)

// Tree is the arena-backed DAG of nodes shared across every enabled
// namespace (spec §3 "Node", §9 "Cyclic/dual-parent structure": "represent
// each node by an index into an arena and store parent/child links as
// indices, not owning references").
type Tree struct {
	arena []*Node
	roots map[Namespace]NodeID

	// RRMoved is the ISO-namespace "RR_MOVED" directory that deep Rock
	// Ridge relocation (spec §9) parks directories beyond depth 8 under.
	// NilNode until the first relocation occurs.
	RRMoved NodeID

	logger *logging.Logger
}

// NewTree creates an empty tree with a root directory in each of the given
// namespaces.
func NewTree(namespaces []Namespace, logger *logging.Logger) *Tree {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	t := &Tree{roots: make(map[Namespace]NodeID), RRMoved: NilNode, logger: logger}
	root := t.allocNode(KindDirectory)
	for _, ns := range namespaces {
		t.roots[ns] = root.ID
		root.Facets[ns] = &Facet{Namespace: ns, Identifier: "", Parent: NilNode}
		root.links++
	}
	return t
}

func (t *Tree) allocNode(kind Kind) *Node {
	id := NodeID(len(t.arena))
	n := newNode(id, kind)
	t.arena = append(t.arena, n)
	return n
}

// Node returns the node at id. Panics are never raised; callers that pass
// an out-of-range id get nil and should treat that as InternalInconsistency.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.arena) {
		return nil
	}
	return t.arena[id]
}

// Root returns the root node id for a namespace, or NilNode if that
// namespace was never enabled.
func (t *Tree) Root(ns Namespace) NodeID {
	id, ok := t.roots[ns]
	if !ok {
		return NilNode
	}
	return id
}

// HasNamespace reports whether ns has a root (i.e. was enabled at New()).
func (t *Tree) HasNamespace(ns Namespace) bool {
	_, ok := t.roots[ns]
	return ok
}

// CreateFile allocates a new file node with the given content.
func (t *Tree) CreateFile(content *Content) *Node {
	n := t.allocNode(KindFile)
	n.Content = content
	return n
}

// CreateDirectory allocates a new, childless directory node.
func (t *Tree) CreateDirectory() *Node {
	return t.allocNode(KindDirectory)
}

// CreateSymlink allocates a new symlink node (spec §4.1 add_symlink).
func (t *Tree) CreateSymlink(target []rockridge.SymlinkComponent) *Node {
	n := t.allocNode(KindSymlink)
	n.SymlinkTarget = target
	return n
}

// CreateBootCatalogNode allocates the single El Torito boot-catalog node
// (spec §3 "El Torito boot catalog").
func (t *Tree) CreateBootCatalogNode(content *Content) *Node {
	n := t.allocNode(KindBootCatalog)
	n.Content = content
	return n
}

// childCompare orders two candidate identifiers per namespace rules (spec
// §3 "Directory": "ISO9660: case-sensitive on identifier with version;
// Joliet: UCS-2BE lexicographic; UDF: FID file-identifier order").
func childCompare(ns Namespace, a, b string) int {
	return strings.Compare(a, b)
}

// sortedInsertIndex returns the index at which id (whose facet identifier
// is ident) should be inserted into dir's ordered child list for ns to
// keep it sorted.
func (t *Tree) sortedInsertIndex(dir *Node, ns Namespace, ident string) int {
	children := dir.Children[ns]
	return sort.Search(len(children), func(i int) bool {
		cf := t.Node(children[i]).Facets[ns]
		return childCompare(ns, cf.Identifier, ident) > 0
	})
}

// Attach registers a facet for node in namespace ns under parent, inserted
// in namespace sort order, and bumps the node's reference count (spec §3
// "Hard links are simply extra facets").
func (t *Tree) Attach(node *Node, ns Namespace, parent NodeID, facet *Facet) error {
	if node.Facets[ns] != nil {
		return isoerr.Internal("node %d already has a facet in namespace %v", node.ID, ns)
	}
	facet.Namespace = ns
	facet.Parent = parent
	node.Facets[ns] = facet
	node.links++

	if parent != NilNode {
		pnode := t.Node(parent)
		if pnode == nil || !pnode.IsDir() {
			return isoerr.Internal("attach: parent %d is not a directory", parent)
		}
		idx := t.sortedInsertIndex(pnode, ns, facet.Identifier)
		children := pnode.Children[ns]
		children = append(children, NilNode)
		copy(children[idx+1:], children[idx:])
		children[idx] = node.ID
		pnode.Children[ns] = children
	}
	return nil
}

// Detach removes node's facet in namespace ns from its parent's child list
// and decrements the reference count. When the last facet across all
// namespaces is gone, the node becomes unreachable and is left for garbage
// (spec §3 "A node with zero facets across all namespaces is unreachable
// and must be collected"); the arena never shrinks, so collection here
// means simply dropping the last reference.
func (t *Tree) Detach(node *Node, ns Namespace) {
	facet := node.Facets[ns]
	if facet == nil {
		return
	}
	if facet.Parent != NilNode {
		pnode := t.Node(facet.Parent)
		children := pnode.Children[ns]
		for i, c := range children {
			if c == node.ID {
				pnode.Children[ns] = append(children[:i], children[i+1:]...)
				break
			}
		}
	}
	delete(node.Facets, ns)
	node.links--
}

// Reachable reports whether node still has at least one facet.
func (t *Tree) Reachable(node *Node) bool { return node.links > 0 }

// Lookup resolves a "/"-separated path in namespace ns to a node id,
// walking child facets by identifier.
func (t *Tree) Lookup(ns Namespace, path string) (NodeID, error) {
	root := t.Root(ns)
	if root == NilNode {
		return NilNode, isoerr.Invalid(path, "namespace", "namespace %v is not enabled", ns)
	}
	parts := splitPath(path)
	cur := root
	for _, part := range parts {
		node := t.Node(cur)
		if node == nil || !node.IsDir() {
			return NilNode, isoerr.Invalid(path, "path", "%q is not a directory", part)
		}
		next := NilNode
		for _, cid := range node.Children[ns] {
			cf := t.Node(cid).Facets[ns]
			if cf != nil && cf.Identifier == part {
				next = cid
				break
			}
		}
		if next == NilNode {
			return NilNode, isoerr.Invalid(path, "path", "no such entry %q", part)
		}
		cur = next
	}
	return cur, nil
}

// LookupParent resolves the parent directory and final path component for
// path in namespace ns, used by mutations that create a new entry.
func (t *Tree) LookupParent(ns Namespace, path string) (NodeID, string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return NilNode, "", isoerr.Invalid(path, "path", "path must name an entry, not the root")
	}
	parent := t.Root(ns)
	if parent == NilNode {
		return NilNode, "", isoerr.Invalid(path, "namespace", "namespace %v is not enabled", ns)
	}
	for _, part := range parts[:len(parts)-1] {
		node := t.Node(parent)
		next := NilNode
		for _, cid := range node.Children[ns] {
			cf := t.Node(cid).Facets[ns]
			if cf != nil && cf.Identifier == part {
				next = cid
				break
			}
		}
		if next == NilNode {
			return NilNode, "", isoerr.Invalid(path, "path", "no such directory %q", part)
		}
		parent = next
	}
	return parent, parts[len(parts)-1], nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// SortedChildren returns the ordered facets of dir's children in ns.
func (t *Tree) SortedChildren(dir NodeID, ns Namespace) []*Facet {
	node := t.Node(dir)
	if node == nil {
		return nil
	}
	out := make([]*Facet, 0, len(node.Children[ns]))
	for _, cid := range node.Children[ns] {
		out = append(out, t.Node(cid).Facets[ns])
	}
	return out
}

// Depth returns the number of directory levels between the namespace root
// and node, inclusive of node itself (root is depth 0).
func (t *Tree) Depth(ns Namespace, id NodeID) int {
	depth := 0
	for id != t.Root(ns) && id != NilNode {
		facet := t.Node(id).Facets[ns]
		if facet == nil {
			break
		}
		id = facet.Parent
		depth++
	}
	return depth
}

// FullPath reconstructs the "/"-separated logical path to node in ns.
func (t *Tree) FullPath(ns Namespace, id NodeID) string {
	if id == t.Root(ns) {
		return "/"
	}
	var parts []string
	for id != NilNode && id != t.Root(ns) {
		facet := t.Node(id).Facets[ns]
		if facet == nil {
			break
		}
		parts = append([]string{facet.Identifier}, parts...)
		id = facet.Parent
	}
	return "/" + strings.Join(parts, "/")
}

// Walk visits every node reachable from ns's root, depth-first,
// pre-order, calling fn(node, facet, depth).
func (t *Tree) Walk(ns Namespace, fn func(node *Node, facet *Facet, depth int)) {
	root := t.Root(ns)
	if root == NilNode {
		return
	}
	t.walk(ns, root, 0, fn)
}

func (t *Tree) walk(ns Namespace, id NodeID, depth int, fn func(*Node, *Facet, int)) {
	node := t.Node(id)
	facet := node.Facets[ns]
	fn(node, facet, depth)
	if node.IsDir() {
		for _, cid := range node.Children[ns] {
			t.walk(ns, cid, depth+1, fn)
		}
	}
}

// AllNodes returns every node in the arena, including unreachable ones a
// caller may still hold a reference to (e.g. mid-mutation).
func (t *Tree) AllNodes() []*Node { return t.arena }
