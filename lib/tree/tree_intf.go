package tree

import "github.com/benz9527/xavl/lib/infra"

// Direction is the side a node hangs on its parent.
// It doubles as the sign of a balance factor shift.
type Direction int8

const (
	Left Direction = -1 + iota
	Root
	Right
)

func (dir Direction) String() string {
	switch dir {
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Root:
		return "Root"
	default:
	}
	return "Unknown"
}

// AVLComparator is a strict total order over the records embedding the
// nodes. It returns <0, 0 or >0 when a is less than, equal to or greater
// than b. The order must stay the same for the lifetime of a tree.
type AVLComparator func(a, b *AVLNode) int64

// AVLKeyComparator builds a comparator from a key extractor.
// The extractor usually converts the node back into its record by Entry.
func AVLKeyComparator[K infra.OrderedKey](key func(node *AVLNode) K) AVLComparator {
	return func(a, b *AVLNode) int64 {
		return infra.CompareOrderedKey[K](key(a), key(b))
	}
}

// AVLVisitor is called per node by Foreach. Returning false stops the walk.
type AVLVisitor func(idx int64, node *AVLNode) bool
