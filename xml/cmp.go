package xml

import (
	"cmp"
	"slices"
)

const attrOffset = -1 << 30

// Compare orders a and b in document order. Nodes from distinct trees are
// ordered by the creation order of their documents.
func Compare(a, b Node) int {
	if a == b {
		return 0
	}
	ra, rb := Root(a), Root(b)
	if ra != rb {
		return cmp.Compare(treeSerial(ra), treeSerial(rb))
	}
	var (
		p1 = nodePath(a)
		p2 = nodePath(b)
	)
	for i := 0; i < len(p1) && i < len(p2); i++ {
		if c := cmp.Compare(p1[i], p2[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(p1), len(p2))
}

func Before(a, b Node) bool {
	return Compare(a, b) < 0
}

// SortUnique sorts nodes in document order and drops duplicates.
func SortUnique(nodes []Node) []Node {
	if len(nodes) < 2 {
		return nodes
	}
	slices.SortFunc(nodes, Compare)
	return slices.CompactFunc(nodes, func(a, b Node) bool {
		return a == b
	})
}

func treeSerial(n Node) int64 {
	if doc, ok := n.(*Document); ok {
		return doc.serial
	}
	return 0
}

func nodePath(n Node) []int {
	var list []int
	for n != nil && n.Parent() != nil {
		pos := n.Position()
		if n.Type() == TypeAttribute {
			pos += attrOffset
		}
		list = append(list, pos)
		n = n.Parent()
	}
	slices.Reverse(list)
	return list
}
