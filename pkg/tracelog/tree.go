package tracelog

import (
	"strings"

	"github.com/SuperID/nanoservices/pkg/traceid"
)

// Node is one request ID in a reconstructed call tree.
type Node struct {
	ID       string
	Records  []Record
	Children []*Node
}

// Forest is the call tree of every observed request ID.
type Forest struct {
	Roots []*Node
	nodes map[string]*Node
}

// Build groups records by request ID in input order and links each ID to its parent.
// An ID whose parent was never observed becomes a root. Roots and children are
// ordered with traceid.Compare, so siblings sort by numeric index.
func Build(records []Record) *Forest {
	f := &Forest{nodes: make(map[string]*Node)}

	var ids []string
	for _, r := range records {
		n, ok := f.nodes[r.ID]
		if !ok {
			n = &Node{ID: r.ID}
			f.nodes[r.ID] = n
			ids = append(ids, r.ID)
		}
		n.Records = append(n.Records, r)
	}

	traceid.Sort(ids)
	for _, id := range ids {
		n := f.nodes[id]
		if parentID, ok := traceid.ParentID(id); ok {
			if parent, ok := f.nodes[parentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		f.Roots = append(f.Roots, n)
	}
	return f
}

// Node returns the node for id, or nil.
func (f *Forest) Node(id string) *Node {
	return f.nodes[id]
}

// Len returns the number of distinct request IDs.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// IDs returns every observed request ID, sorted.
func (f *Forest) IDs() []string {
	ids := make([]string, 0, len(f.nodes))
	for id := range f.nodes {
		ids = append(ids, id)
	}
	traceid.Sort(ids)
	return ids
}

// Select returns the top-most nodes whose ID starts with prefix: a matching node is
// returned unless its parent matches too, in which case it is rendered as part of
// the parent's subtree. An empty prefix selects all roots.
func (f *Forest) Select(prefix string) []*Node {
	if prefix == "" {
		return f.Roots
	}
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if strings.HasPrefix(n.ID, prefix) {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range f.Roots {
		walk(r)
	}
	return out
}

// Walk visits n and its descendants depth-first with their depth below n.
func (n *Node) Walk(fn func(node *Node, depth int)) {
	var walk func(node *Node, depth int)
	walk = func(node *Node, depth int) {
		fn(node, depth)
		for _, c := range node.Children {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
}
