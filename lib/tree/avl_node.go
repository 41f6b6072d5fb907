package tree

import "unsafe"

// AVLNode is the link metadata embedded inside a caller record.
// The tree only rewires these fields. It never allocates, copies or
// frees the enclosing record.
//
// A node that is not part of any tree is detached: nil links and a zero
// balance factor. The zero value is a detached node.
type AVLNode struct {
	parent *AVLNode
	left   *AVLNode
	right  *AVLNode
	// height(right) - height(left), always in [-1, 1] between operations.
	balance int8
}

func (node *AVLNode) Left() *AVLNode {
	if node == nil {
		return nil
	}
	return node.left
}

func (node *AVLNode) Right() *AVLNode {
	if node == nil {
		return nil
	}
	return node.right
}

// Parent exposes the structural back reference. It exists for traversal
// resumption (see AVLNextInPostorder) and carries no ownership.
func (node *AVLNode) Parent() *AVLNode {
	if node == nil {
		return nil
	}
	return node.parent
}

func (node *AVLNode) BalanceFactor() int8 {
	if node == nil {
		return 0
	}
	return node.balance
}

// IsDetached reports whether all link fields are in the detached state.
// A lone root node is attached but looks detached, callers that need
// to tell them apart must compare against the root handle.
func (node *AVLNode) IsDetached() bool {
	return node != nil && node.parent == nil && node.left == nil && node.right == nil && node.balance == 0
}

func (node *AVLNode) reset() {
	node.parent, node.left, node.right = nil, nil, nil
	node.balance = 0
}

func (node *AVLNode) isRoot() bool {
	return node != nil && node.parent == nil
}

func (node *AVLNode) Direction() Direction {
	if node == nil {
		// impossible run to here
		panic( /* debug assertion */ "[avltree] nil node without direction")
	}

	if node.isRoot() {
		return Root
	}
	if node == node.parent.left {
		return Left
	}
	return Right
}

func (node *AVLNode) child(dir Direction) *AVLNode {
	if dir == Left {
		return node.left
	}
	return node.right
}

func (node *AVLNode) setChild(dir Direction, child *AVLNode) {
	if dir == Left {
		node.left = child
	} else {
		node.right = child
	}
	if child != nil {
		child.parent = node
	}
}

func (node *AVLNode) minimum() *AVLNode {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

func (node *AVLNode) maximum() *AVLNode {
	aux := node
	for ; aux != nil && aux.right != nil; aux = aux.right {
	}
	return aux
}

// The pred node of the current node is its previous node in sorted order.
func (node *AVLNode) PrevInOrder() *AVLNode {
	x := node
	if x == nil {
		return nil
	}
	if x.left != nil {
		return x.left.maximum()
	}

	aux := x.parent
	// Backtrack to father node that is the x's pred.
	for aux != nil && x == aux.left {
		x = aux
		aux = aux.parent
	}
	return aux
}

// The succ node of the current node is its next node in sorted order.
func (node *AVLNode) NextInOrder() *AVLNode {
	x := node
	if x == nil {
		return nil
	}
	if x.right != nil {
		return x.right.minimum()
	}

	aux := x.parent
	// Backtrack to father node that is the x's succ.
	for aux != nil && x == aux.right {
		x = aux
		aux = aux.parent
	}
	return aux
}

// Entry converts an embedded node back to its enclosing record of type T.
// The offset is unsafe.Offsetof(record.field) of the embedded AVLNode.
// There is no runtime check, the node must originate from that field.
func Entry[T any](node *AVLNode, offset uintptr) *T {
	if node == nil {
		return nil
	}
	return (*T)(unsafe.Add(unsafe.Pointer(node), -int(offset)))
}

// EntryOf is Entry for records embedding AVLNode as their first field.
func EntryOf[T any](node *AVLNode) *T {
	return Entry[T](node, 0)
}
