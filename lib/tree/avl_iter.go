package tree

// In-order and postorder cursors. A cursor is just a node, every step is
// derived from the node's links so a walk can resume from any node
// without descending from the root again.
//
// Mutating the tree between steps gives undefined results, except for
// the postorder teardown pattern in AVLNextInPostorder.

func AVLFirstInOrder(root *AVLNode) *AVLNode {
	return root.minimum()
}

func AVLLastInOrder(root *AVLNode) *AVLNode {
	return root.maximum()
}

func (tree *AVLRoot) First() *AVLNode {
	return AVLFirstInOrder(tree.root)
}

func (tree *AVLRoot) Last() *AVLNode {
	return AVLLastInOrder(tree.root)
}

// Leftmost leaf, preferring the left child at each step.
func postorderLeaf(node *AVLNode) *AVLNode {
	for node != nil {
		if node.left != nil {
			node = node.left
		} else if node.right != nil {
			node = node.right
		} else {
			break
		}
	}
	return node
}

func AVLFirstInPostorder(root *AVLNode) *AVLNode {
	return postorderLeaf(root)
}

// AVLNextInPostorder returns the node after prev in postorder.
// prevParent must be prev's parent read before prev was handed to the
// caller. Only prevParent's links are read afterwards, so prev's own
// fields may be reset, reused or dropped right after it was visited.
// This is the way to tear down a whole tree, every node is visited after
// both of its children and before its parent.
//
// The links of every other node must stay untouched during the walk:
// calling Remove, Insert or anything else that relinks or rebalances the
// tree between two steps breaks the walk. Drop the root first, as
// Release does, then reset nodes one by one. To drain a live tree use
// Remove on First until IsEmpty.
func AVLNextInPostorder(prev, prevParent *AVLNode) *AVLNode {
	next := prevParent
	if next != nil && prev == next.left && next.right != nil {
		next = postorderLeaf(next.right)
	}
	return next
}

// Foreach visits the nodes in ascending order.
func (tree *AVLRoot) Foreach(action AVLVisitor) {
	idx := int64(0)
	for aux := tree.First(); aux != nil; aux = aux.NextInOrder() {
		if !action(idx, aux) {
			return
		}
		idx++
	}
}

// ForeachReverse visits the nodes in descending order.
func (tree *AVLRoot) ForeachReverse(action AVLVisitor) {
	idx := int64(0)
	for aux := tree.Last(); aux != nil; aux = aux.PrevInOrder() {
		if !action(idx, aux) {
			return
		}
		idx++
	}
}

// Release empties the tree in postorder and detaches every node, so the
// records can be inserted again. The optional release callback sees each
// node right after it was detached. It returns the number of nodes.
func (tree *AVLRoot) Release(release ...func(node *AVLNode)) int64 {
	aux := AVLFirstInPostorder(tree.root)
	tree.root = nil

	count := int64(0)
	for aux != nil {
		p := aux.parent
		aux.reset()
		for _, fn := range release {
			fn(aux)
		}
		count++
		aux = AVLNextInPostorder(aux, p)
	}
	return count
}
