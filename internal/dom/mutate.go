package dom

import (
	"golang.org/x/net/html"
)

// MutationKind distinguishes structural from textual change.
type MutationKind int

const (
	// ChildList covers insertion and removal of child nodes.
	ChildList MutationKind = iota
	// CharacterData covers text node content change.
	CharacterData
)

// Mutation describes one observed change. Target identifies the parent
// element for ChildList changes and the text node itself for
// CharacterData changes.
type Mutation struct {
	Kind   MutationKind
	Target NodeID
}

// SetText replaces the content of a text node and records a
// CharacterData mutation.
func (d *Document) SetText(n *html.Node, text string) {
	if n.Type != html.TextNode {
		return
	}
	n.Data = text
	d.record(Mutation{Kind: CharacterData, Target: d.ID(n)}, n)
}

// CreateElement builds a detached element node.
func (d *Document) CreateElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: 0, Attr: attrs}
}

// CreateText builds a detached text node.
func (d *Document) CreateText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// InsertBefore inserts child under parent, before ref (append when ref
// is nil), and records a ChildList mutation on the parent.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	parent.InsertBefore(child, ref)
	d.record(Mutation{Kind: ChildList, Target: d.ID(parent)}, child)
}

// AppendChild appends child to parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// RemoveNode detaches n from its parent, releasing identities for the
// whole removed subtree.
func (d *Document) RemoveNode(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	parent.RemoveChild(n)
	d.release(n)
	d.record(Mutation{Kind: ChildList, Target: d.ID(parent)}, nil)
}

// SplitTextNode cuts a text node at a byte offset, leaving the head in
// place and inserting the tail as the following sibling. Returns the
// tail node. Offsets outside (0, len) return n unchanged.
func (d *Document) SplitTextNode(n *html.Node, offset int) *html.Node {
	if n.Type != html.TextNode || offset <= 0 || offset >= len(n.Data) {
		return n
	}
	tail := d.CreateText(n.Data[offset:])
	n.Data = n.Data[:offset]
	n.Parent.InsertBefore(tail, n.NextSibling)
	d.record(Mutation{Kind: ChildList, Target: d.ID(n.Parent)}, tail)
	return tail
}

// WrapTextRange wraps the [start, end) byte range of a text node in a
// new element, splitting the node as needed. Returns the wrapper.
// The wrapper is marked known so the feed's next observation pass
// skips it. The split tails are plain text insertions and still
// record, so callers rewriting their own markers disconnect the
// observer around the whole edit.
func (d *Document) WrapTextRange(n *html.Node, start, end int, wrapper *html.Node) *html.Node {
	if n.Type != html.TextNode || start < 0 || end > len(n.Data) || start >= end {
		return nil
	}
	parent := n.Parent
	if start > 0 {
		n = d.SplitTextNode(n, start)
		end -= start
	}
	if end < len(n.Data) {
		d.SplitTextNode(n, end)
	}
	ref := n.NextSibling
	parent.RemoveChild(n)
	wrapper.AppendChild(n)
	parent.InsertBefore(wrapper, ref)
	d.MarkKnown(wrapper)
	d.record(Mutation{Kind: ChildList, Target: d.ID(parent)}, wrapper)
	return wrapper
}

// Unwrap replaces an element with its own children, merging adjacent
// text nodes afterwards. Used to undo destructive highlight wrapping.
func (d *Document) Unwrap(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	ref := n.NextSibling
	for n.FirstChild != nil {
		c := n.FirstChild
		n.RemoveChild(c)
		parent.InsertBefore(c, ref)
	}
	parent.RemoveChild(n)
	d.release(n)
	d.mergeText(parent)
	d.record(Mutation{Kind: ChildList, Target: d.ID(parent)}, nil)
}

// mergeText joins runs of adjacent text-node children of parent.
func (d *Document) mergeText(parent *html.Node) {
	c := parent.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.TextNode && next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			parent.RemoveChild(next)
			d.release(next)
			continue // c may absorb further siblings
		}
		c = next
	}
}

// Attr reads an attribute of an element, empty when absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or replaces an attribute on an element.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
