package dom

import (
	"github.com/google/uuid"
)

// Attributes stamped on injected nodes.
const (
	// OwnerAttribute carries the owning plugin's name.
	OwnerAttribute = "data-plugin"

	// IDAttribute carries the unique node ID returned to the caller.
	IDAttribute = "id"
)

// Injector creates style and script nodes in the host document, tagged with
// the owning plugin's identity so they can be removed in bulk later.
type Injector struct {
	doc Document
}

// NewInjector creates an injector over the given document.
func NewInjector(doc Document) *Injector {
	return &Injector{doc: doc}
}

// Document returns the underlying host document.
func (in *Injector) Document() Document {
	return in.doc
}

// InjectCSS attaches a style node owned by the plugin.
// Returns the node's generated ID.
func (in *Injector) InjectCSS(owner, css string) string {
	return in.inject(owner, "style", css)
}

// InjectJS attaches a script node owned by the plugin.
// Returns the node's generated ID.
func (in *Injector) InjectJS(owner, code string) string {
	return in.inject(owner, "script", code)
}

func (in *Injector) inject(owner, tag, content string) string {
	id := uuid.NewString()

	n := in.doc.CreateElement(tag)
	n.SetAttr(OwnerAttribute, owner)
	n.SetAttr(IDAttribute, id)
	n.Content = content

	in.doc.AppendChild(n)
	return id
}

// RemoveOwner detaches every node tagged with the plugin's name.
// Returns the number of nodes removed.
func (in *Injector) RemoveOwner(owner string) int {
	removed := 0
	for _, n := range in.doc.QueryByAttribute(OwnerAttribute, owner) {
		if in.doc.RemoveChild(n) {
			removed++
		}
	}
	return removed
}

// NodesByOwner returns the attached nodes tagged with the plugin's name.
func (in *Injector) NodesByOwner(owner string) []*Node {
	return in.doc.QueryByAttribute(OwnerAttribute, owner)
}
