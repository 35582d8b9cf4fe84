// Package dom abstracts the host document used for style and script
// injection. The manager only needs element creation, attachment, removal,
// and attribute queries, so the host supplies those four operations and the
// Injector tags every node it creates with the owning plugin's name for
// attributable bulk cleanup.
package dom

import (
	"sync"
)

// Node is an element in the host document.
type Node struct {
	Tag     string
	Attrs   map[string]string
	Content string
}

// Attr returns an attribute value.
func (n *Node) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// SetAttr sets an attribute value.
func (n *Node) SetAttr(name, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
}

// Document is the narrow host-document interface consumed by the Injector.
type Document interface {
	// CreateElement creates a detached element with the given tag.
	CreateElement(tag string) *Node

	// AppendChild attaches a node to the document.
	AppendChild(n *Node)

	// RemoveChild detaches a node. Returns true if the node was attached.
	RemoveChild(n *Node) bool

	// QueryByAttribute returns all attached nodes whose attribute matches
	// the given value, in attachment order.
	QueryByAttribute(attr, value string) []*Node
}

// MemoryDocument is an in-process Document for tests and headless hosts.
type MemoryDocument struct {
	mu    sync.Mutex
	nodes []*Node
}

// NewMemoryDocument creates an empty in-memory document.
func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{}
}

// CreateElement creates a detached element.
func (d *MemoryDocument) CreateElement(tag string) *Node {
	return &Node{Tag: tag, Attrs: make(map[string]string)}
}

// AppendChild attaches a node.
func (d *MemoryDocument) AppendChild(n *Node) {
	if n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes = append(d.nodes, n)
}

// RemoveChild detaches a node.
func (d *MemoryDocument) RemoveChild(n *Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, existing := range d.nodes {
		if existing == n {
			d.nodes = append(d.nodes[:i], d.nodes[i+1:]...)
			return true
		}
	}
	return false
}

// QueryByAttribute returns attached nodes with a matching attribute.
func (d *MemoryDocument) QueryByAttribute(attr, value string) []*Node {
	d.mu.Lock()
	defer d.mu.Unlock()

	var matched []*Node
	for _, n := range d.nodes {
		if n.Attr(attr) == value {
			matched = append(matched, n)
		}
	}
	return matched
}

// Len returns the number of attached nodes.
func (d *MemoryDocument) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nodes)
}
