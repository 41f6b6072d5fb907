package tree

// AVLRoot is the tree handle. A nil root means an empty tree.
// Insert and Remove mutate the handle in place because rotations may
// change the identity of the root.
//
// Nothing here is safe for concurrent use. Callers serialize every
// mutation and keep readers out while it runs.
type AVLRoot struct {
	root *AVLNode
}

func NewAVLRoot() *AVLRoot {
	return &AVLRoot{}
}

func (tree *AVLRoot) Root() *AVLNode {
	return tree.root
}

func (tree *AVLRoot) IsEmpty() bool {
	return tree.root == nil
}

// Reset forgets the whole tree without touching any node.
// Pair it with Release when the nodes are going to be reused.
func (tree *AVLRoot) Reset() {
	tree.root = nil
}

// References:
// https://github.com/ebiggers/avl_tree
// https://en.wikipedia.org/wiki/AVL_tree
// AVL properties:
// p1. For every node, keys in the left subtree are less and keys in the
//   right subtree are greater than the node's key.
// p2. balance(n) = height(n.right) - height(n.left) and it is one of
//   {-1, 0, 1} for every node.
// So the height of a tree with n nodes is at most ~1.44*log2(n+2).

// AVLLookup searches the tree rooted at root for the node equal to query.
func AVLLookup(root, query *AVLNode, cmp AVLComparator) *AVLNode {
	return AVLLookupFunc(root, func(node *AVLNode) int64 {
		return cmp(query, node)
	})
}

// AVLLookupFunc descends with a probe. The probe returns <0 to go left,
// >0 to go right and 0 on the wanted node.
func AVLLookupFunc(root *AVLNode, fn func(node *AVLNode) int64) *AVLNode {
	for aux := root; aux != nil; {
		res := fn(aux)
		if /* equal */ res == 0 {
			return aux
		} else /* greater */ if res > 0 {
			aux = aux.right
		} else /* less */ {
			aux = aux.left
		}
	}
	return nil
}

func (tree *AVLRoot) Lookup(query *AVLNode, cmp AVLComparator) *AVLNode {
	return AVLLookup(tree.root, query, cmp)
}

func (tree *AVLRoot) replaceChild(parent, oldChild, newChild *AVLNode) {
	if parent == nil {
		tree.root = newChild
		if newChild != nil {
			newChild.parent = nil
		}
		return
	}
	if oldChild == parent.left {
		parent.setChild(Left, newChild)
	} else {
		parent.setChild(Right, newChild)
	}
}

/*
		 |                         |
		 X                         S
		/ \     leftRotate(X)     / \
	   L   S    ============>    X   Sd
		  / \                   / \
		Sc   Sd                L   Sc
*/
func (tree *AVLRoot) leftRotate(x *AVLNode) {
	tree.rotate(x, Left)
}

/*
		 |                         |
		 X                         S
		/ \    rightRotate(X)     / \
	   S   R   ============>    Sd   X
	  / \                           / \
	Sd   Sc                        Sc   R
*/
func (tree *AVLRoot) rightRotate(x *AVLNode) {
	tree.rotate(x, Right)
}

// rotate moves x down to its dir side and promotes the child on the
// opposite side. The inner grandchild is the only subtree reparented.
// Balance factors are left to the caller.
func (tree *AVLRoot) rotate(x *AVLNode, dir Direction) {
	y := x.child(-dir)
	if y == nil {
		// impossible run to here
		panic( /* debug assertion */ "[avltree] rotate without a child to promote")
	}

	p := x.parent
	inner := y.child(dir)
	x.setChild(-dir, inner)
	tree.replaceChild(p, x, y)
	y.setChild(dir, x)
}

// rebalance restores the AVL property at x whose balance factor would
// become 2*heavy. It returns the new root of the rotated subtree and
// whether the subtree got shorter than it was before the imbalance.
//
// Case selection is decided by the balance factor of the heavy child y:
//
//	y leans to heavy      single rotation, x and y end balanced.
//	y is balanced         single rotation, only on removal, the height
//	                      of the subtree is kept.
//	y leans away          double rotation through the inner grandchild z.
func (tree *AVLRoot) rebalance(x *AVLNode, heavy Direction) (top *AVLNode, shorter bool) {
	h := int8(heavy)
	y := x.child(heavy)
	switch y.balance {
	case h:
		tree.rotate(x, -heavy)
		x.balance, y.balance = 0, 0
		return y, true
	case 0:
		tree.rotate(x, -heavy)
		x.balance, y.balance = h, -h
		return y, false
	default:
	}

	/*
		heavy == Right:

		    X                       Z
		   / \                    /   \
		  A   Y    rotate(Y)     X     Y
		     / \   rotate(X)    / \   / \
		    Z   D  ========>   A  B  C   D
		   / \
		  B   C
	*/
	z := y.child(-heavy)
	zb := z.balance
	tree.rotate(y, heavy)
	tree.rotate(x, -heavy)
	x.balance, y.balance, z.balance = 0, 0, 0
	if zb == h {
		x.balance = -h
	} else if zb == -h {
		y.balance = h
	}
	return z, true
}

// Insert attaches node to the tree. It returns nil on success. If a node
// comparing equal is already present it is returned unchanged and node
// stays detached.
//
// ai1: Parent balance becomes 0, the subtree height is unchanged, stop.
// ai2: Parent balance becomes ±1, the subtree grew by one, go upward.
// ai3: Parent balance would become ±2, one single or double rotation
// restores the height before the insertion, stop.
func (tree *AVLRoot) Insert(node *AVLNode, cmp AVLComparator) *AVLNode {
	if avlDebug && !node.IsDetached() {
		panic( /* debug assertion */ "[avltree] insert an attached node")
	}

	var (
		parent *AVLNode
		dir    = Root
	)
	for aux := tree.root; aux != nil; {
		parent = aux
		res := cmp(node, aux)
		if /* equal */ res == 0 {
			return aux
		} else /* less */ if res < 0 {
			dir, aux = Left, aux.left
		} else /* greater */ {
			dir, aux = Right, aux.right
		}
	}

	node.reset()
	if parent == nil {
		tree.root = node
		return nil
	}
	parent.setChild(dir, node)
	tree.insertRebalance(node)
	return nil
}

func (tree *AVLRoot) insertRebalance(x *AVLNode) {
	for p := x.parent; p != nil; x, p = p, p.parent {
		dir := x.Direction()
		d := int8(dir)
		switch nb := p.balance + d; {
		case /* ai1 */ nb == 0:
			p.balance = 0
			return
		case /* ai2 */ nb == d:
			p.balance = nb
		default /* ai3 */ :
			tree.rebalance(p, dir)
			return
		}
	}
}

/*
Remove detaches node from the tree. The node must be attached to this
tree, anything else is undefined (checked only under the avldebug tag).

ar1: Node has at most one child. Splice the child (or nil) into the node's
place. The shrink starts at the former parent.

ar2: Node has two children. The in-order successor S (leftmost of the right
subtree, without a left child) takes the node's position and balance.

	  |                    |
	  X                    S
	 / \                  / \
	L   R   replace(X)   L   R
	   /    =========>      /
	  ..                   ..
	 /                    /
	S                    Sr
	 \
	  Sr

The shrink starts at S's former parent on the left side. When S is R
itself the shrink starts at S on the right side.

Shrink walk at parent P whose dir side lost one level:

rm1: P balance becomes ±1 from 0, the height is unchanged, stop.
rm2: P balance becomes 0 from ±1, the height dropped, go upward.
rm3: P balance would become ±2, rotate. Go upward only when the rotated
subtree got shorter, which is every case but a balanced heavy child.
*/
func (tree *AVLRoot) Remove(node *AVLNode) {
	if avlDebug && !tree.contains(node) {
		panic( /* debug assertion */ "[avltree] remove a node not in the tree")
	}

	var (
		parent *AVLNode
		dir    Direction
	)
	if /* ar2 */ node.left != nil && node.right != nil {
		succ := node.right.minimum()
		if succ == node.right {
			parent, dir = succ, Right
		} else {
			parent, dir = succ.parent, Left
			parent.setChild(Left, succ.right)
			succ.setChild(Right, node.right)
		}
		succ.setChild(Left, node.left)
		succ.balance = node.balance
		tree.replaceChild(node.parent, node, succ)
	} else /* ar1 */ {
		child := node.left
		if child == nil {
			child = node.right
		}
		parent = node.parent
		if parent != nil {
			dir = node.Direction()
		}
		tree.replaceChild(parent, node, child)
	}

	tree.removeRebalance(parent, dir)
	node.reset()
}

func (tree *AVLRoot) removeRebalance(p *AVLNode, dir Direction) {
	for p != nil {
		d := int8(dir)
		top := p
		switch nb := p.balance - d; {
		case /* rm1 */ nb == -d:
			p.balance = nb
			return
		case /* rm2 */ nb == 0:
			p.balance = 0
		default /* rm3 */ :
			var shorter bool
			if top, shorter = tree.rebalance(p, -dir); !shorter {
				return
			}
		}

		if p = top.parent; p != nil {
			dir = top.Direction()
		}
	}
}

func (tree *AVLRoot) contains(node *AVLNode) bool {
	if node == nil || tree.root == nil {
		return false
	}
	aux := node
	for ; aux.parent != nil; aux = aux.parent {
	}
	return aux == tree.root
}
