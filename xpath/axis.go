package xpath

import (
	"fmt"
	"slices"

	"github.com/midbel/angle/xml"
)

const (
	childAxis            = "child"
	parentAxis           = "parent"
	selfAxis             = "self"
	ancestorAxis         = "ancestor"
	ancestorSelfAxis     = "ancestor-or-self"
	descendantAxis       = "descendant"
	descendantSelfAxis   = "descendant-or-self"
	precedingAxis        = "preceding"
	precedingSiblingAxis = "preceding-sibling"
	followingAxis        = "following"
	followingSiblingAxis = "following-sibling"
	attributeAxis        = "attribute"
	namespaceAxis        = "namespace"
)

type axis string

func parseAxis(name string) (axis, error) {
	switch a := axis(name); a {
	case childAxis, parentAxis, selfAxis, ancestorAxis, ancestorSelfAxis,
		descendantAxis, descendantSelfAxis, precedingAxis, precedingSiblingAxis,
		followingAxis, followingSiblingAxis, attributeAxis, namespaceAxis:
		return a, nil
	default:
		return "", fmt.Errorf("%s: %w", name, errAxis)
	}
}

// reverse reports whether proximity positions are counted from the context
// node backward in document order.
func (a axis) reverse() bool {
	switch a {
	case parentAxis, ancestorAxis, ancestorSelfAxis, precedingAxis, precedingSiblingAxis:
		return true
	default:
		return false
	}
}

func (a axis) principal() xml.NodeType {
	if a == attributeAxis {
		return xml.TypeAttribute
	}
	return xml.TypeElement
}

// nodes returns the nodes of the axis in proximity order.
func (a axis) nodes(node xml.Node) []xml.Node {
	switch a {
	case childAxis:
		return slices.Clone(xml.Children(node))
	case parentAxis:
		if p := node.Parent(); p != nil {
			return []xml.Node{p}
		}
		return nil
	case selfAxis:
		return []xml.Node{node}
	case ancestorAxis:
		return ancestors(node, false)
	case ancestorSelfAxis:
		return ancestors(node, true)
	case descendantAxis:
		return descendants(node, false)
	case descendantSelfAxis:
		return descendants(node, true)
	case followingSiblingAxis:
		return followingSiblings(node)
	case precedingSiblingAxis:
		return precedingSiblings(node)
	case followingAxis:
		return following(node)
	case precedingAxis:
		return preceding(node)
	case attributeAxis:
		if el, ok := node.(*xml.Element); ok {
			return el.Attributes()
		}
		return nil
	default:
		return nil
	}
}

func ancestors(node xml.Node, self bool) []xml.Node {
	var list []xml.Node
	if self {
		list = append(list, node)
	}
	for p := node.Parent(); p != nil; p = p.Parent() {
		list = append(list, p)
	}
	return list
}

func descendants(node xml.Node, self bool) []xml.Node {
	var list []xml.Node
	if self {
		list = append(list, node)
	}
	return appendDescendants(list, node)
}

func appendDescendants(list []xml.Node, node xml.Node) []xml.Node {
	for _, c := range xml.Children(node) {
		list = append(list, c)
		list = appendDescendants(list, c)
	}
	return list
}

func siblings(node xml.Node) []xml.Node {
	if node.Type() == xml.TypeAttribute {
		return nil
	}
	p := node.Parent()
	if p == nil {
		return nil
	}
	return xml.Children(p)
}

func followingSiblings(node xml.Node) []xml.Node {
	list := siblings(node)
	if pos := node.Position() + 1; pos < len(list) {
		return slices.Clone(list[pos:])
	}
	return nil
}

func precedingSiblings(node xml.Node) []xml.Node {
	list := siblings(node)
	if len(list) == 0 || node.Position() == 0 {
		return nil
	}
	list = slices.Clone(list[:node.Position()])
	slices.Reverse(list)
	return list
}

func following(node xml.Node) []xml.Node {
	var list []xml.Node
	if node.Type() == xml.TypeAttribute {
		node = node.Parent()
		if node == nil {
			return nil
		}
		list = appendDescendants(list, node)
	}
	for curr := node; curr != nil; curr = curr.Parent() {
		for _, s := range followingSiblings(curr) {
			list = append(list, s)
			list = appendDescendants(list, s)
		}
	}
	return list
}

func preceding(node xml.Node) []xml.Node {
	var list []xml.Node
	if node.Type() == xml.TypeAttribute {
		node = node.Parent()
		if node == nil {
			return nil
		}
	}
	for curr := node; curr != nil; curr = curr.Parent() {
		for _, s := range precedingSiblings(curr) {
			sub := descendants(s, true)
			slices.Reverse(sub)
			list = append(list, sub...)
		}
	}
	return list
}
