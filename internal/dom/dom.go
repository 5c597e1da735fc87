package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// NodeID is a stable identity for a node within one Document.
// IDs are assigned lazily and never reused, so they stay valid as
// a key into side tables even while the tree mutates.
type NodeID uint64

// Document wraps a parsed HTML tree with stable node identities and a
// structural change feed. All highlighting state lives in side tables
// keyed by NodeID rather than on the nodes themselves.
type Document struct {
	mu    sync.Mutex
	root  *html.Node
	ids   map[*html.Node]NodeID
	nodes map[NodeID]*html.Node
	next  NodeID

	observer *Observer
}

// Parse reads HTML and builds a Document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromNode(root), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// FromNode wraps an existing tree. The Document takes ownership: all
// further mutations must go through Document methods so the change
// feed stays accurate.
func FromNode(root *html.Node) *Document {
	return &Document{
		root:  root,
		ids:   make(map[*html.Node]NodeID),
		nodes: make(map[NodeID]*html.Node),
		next:  1,
	}
}

// Root returns the document root node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the <body> element, or the root when the tree has none
// (fragments built by loaders always have one via html.Parse).
func (d *Document) Body() *html.Node {
	if b := findElement(d.root, "body"); b != nil {
		return b
	}
	return d.root
}

// ID returns the stable identity for n, assigning one on first use.
func (d *Document) ID(n *html.Node) NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idLocked(n)
}

func (d *Document) idLocked(n *html.Node) NodeID {
	if id, ok := d.ids[n]; ok {
		return id
	}
	id := d.next
	d.next++
	d.ids[n] = id
	d.nodes[id] = n
	return id
}

// Node resolves an identity back to its node. Returns nil for
// released (removed) nodes.
func (d *Document) Node(id NodeID) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nodes[id]
}

// release drops the identity mapping for n and its whole subtree.
func (d *Document) release(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o := d.observer
	var drop func(*html.Node)
	drop = func(n *html.Node) {
		if id, ok := d.ids[n]; ok {
			delete(d.ids, n)
			delete(d.nodes, id)
		}
		if o != nil {
			o.mu.Lock()
			delete(o.known, n)
			o.mu.Unlock()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			drop(c)
		}
	}
	drop(n)
}

// Text returns the text of a text node by identity.
func (d *Document) Text(id NodeID) string {
	n := d.Node(id)
	if n == nil || n.Type != html.TextNode {
		return ""
	}
	return n.Data
}

// TextContent concatenates all descendant text of n in document order.
func (d *Document) TextContent(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

// Contains reports whether ancestor contains n (or is n).
func Contains(ancestor, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

// CommonAncestor returns the deepest node containing every given node.
func CommonAncestor(nodes ...*html.Node) *html.Node {
	if len(nodes) == 0 {
		return nil
	}
	paths := make([][]*html.Node, len(nodes))
	for i, n := range nodes {
		var path []*html.Node
		for ; n != nil; n = n.Parent {
			path = append(path, n)
		}
		// Reverse so path[0] is the root.
		for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
			path[l], path[r] = path[r], path[l]
		}
		paths[i] = path
	}
	var common *html.Node
	for depth := 0; ; depth++ {
		var candidate *html.Node
		for _, path := range paths {
			if depth >= len(path) {
				return common
			}
			if candidate == nil {
				candidate = path[depth]
			} else if candidate != path[depth] {
				return common
			}
		}
		common = candidate
	}
}

// CompareOrder reports the document-order relationship of a and b:
// negative when a precedes b, zero when equal, positive when a follows b.
// Both nodes must belong to the same tree.
func CompareOrder(a, b *html.Node) int {
	if a == b {
		return 0
	}
	pathA := ancestorPath(a)
	pathB := ancestorPath(b)
	depth := 0
	for depth < len(pathA) && depth < len(pathB) && pathA[depth] == pathB[depth] {
		depth++
	}
	if depth == len(pathA) {
		return -1 // a is an ancestor of b
	}
	if depth == len(pathB) {
		return 1
	}
	// Siblings at the divergence point decide.
	for s := pathA[depth]; s != nil; s = s.NextSibling {
		if s == pathB[depth] {
			return -1
		}
	}
	return 1
}

func ancestorPath(n *html.Node) []*html.Node {
	var path []*html.Node
	for ; n != nil; n = n.Parent {
		path = append(path, n)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// NextNode steps to the next node in document order under root,
// or nil when traversal is exhausted.
func NextNode(n, root *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil && n != root; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// PrevNode steps to the previous node in document order under root.
func PrevNode(n, root *html.Node) *html.Node {
	if n == root {
		return nil
	}
	if n.PrevSibling != nil {
		n = n.PrevSibling
		for n.LastChild != nil {
			n = n.LastChild
		}
		return n
	}
	return n.Parent
}

// Render serializes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// ElementByID finds the first element carrying the given id attribute.
func (d *Document) ElementByID(id string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == id {
					found = n
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return found
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
