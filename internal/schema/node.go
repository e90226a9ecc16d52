// Package schema holds the type-node tree decoded from YAPI JSON schema text.
//
// Trees are normalized once while parsing (kind tags lowercased, missing tags
// defaulted to string) and are read-only afterwards, so the same tree can be
// rendered any number of times.
package schema

import "strings"

// Kind is the normalized type tag of a node.
type Kind string

const (
	KindBoolean Kind = "boolean"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindNull    Kind = "null"
	KindLong    Kind = "long"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// IsPrimitive reports whether k is one of the scalar kinds.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindBoolean, KindInteger, KindNumber, KindString, KindNull, KindLong:
		return true
	}
	return false
}

// Node is one node of a schema tree. Object nodes carry Properties in
// source order, array nodes carry Items. Any other kind string is kept
// verbatim (lowercased) so renderers can fall back on it.
type Node struct {
	Kind        Kind
	Description string
	Properties  []Property
	Required    []string
	Items       *Node

	// SelfRequired is the child-level required marker (`"required": true`
	// or `"required": "1"` on the property itself).
	SelfRequired bool
}

// Property is a named child of an object node. Node is nil when the
// property value was not a JSON object.
type Property struct {
	Name string
	Node *Node
}

// EmptyObject returns an object node without properties.
func EmptyObject() *Node {
	return &Node{Kind: KindObject}
}

// HasProperties reports whether n is a node with at least one property.
func (n *Node) HasProperties() bool {
	return n != nil && len(n.Properties) > 0
}

// Property returns the child named name, or nil.
func (n *Node) Property(name string) *Node {
	if n == nil {
		return nil
	}
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Node
		}
	}
	return nil
}

// IsRequired reports whether the property called name is required. A
// property is required when the parent lists it, or when the child marks
// itself required (either flagged directly or listing its own name).
func (n *Node) IsRequired(name string) bool {
	if n == nil {
		return false
	}
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	child := n.Property(name)
	if child == nil {
		return false
	}
	if child.SelfRequired {
		return true
	}
	for _, r := range child.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Drill walks a dotted property path from n. Each segment descends into
// the named property; a missing segment yields an empty object node.
func (n *Node) Drill(path string) *Node {
	cur := n
	for _, seg := range strings.Split(path, ".") {
		next := cur.Property(seg)
		if next == nil {
			return EmptyObject()
		}
		cur = next
	}
	return cur
}
