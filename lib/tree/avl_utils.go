package tree

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/benz9527/xavl/lib/infra"
)

// avltree rule validation utilities.
// They walk the whole tree and are meant for tests and debug harnesses.

// AVLHeight returns the height of the tree, 0 for an empty tree.
func AVLHeight(root *AVLNode) int {
	if root == nil {
		return 0
	}
	return max(AVLHeight(root.left), AVLHeight(root.right)) + 1
}

// AVLHeightBound is the worst case height of an AVL tree with n nodes.
func AVLHeightBound(n int64) int {
	return int(math.Floor(1.4405*math.Log2(float64(n)+2) - 0.3277))
}

// AVLCount counts the nodes by postorder walk.
func AVLCount(root *AVLNode) int64 {
	count := int64(0)
	for aux := AVLFirstInPostorder(root); aux != nil; aux = AVLNextInPostorder(aux, aux.parent) {
		count++
	}
	return count
}

// Inorder traversal to validate the binary search order.
func AVLOrderValidate(root *AVLNode, cmp AVLComparator) error {
	var prev *AVLNode
	for aux := AVLFirstInOrder(root); aux != nil; aux = aux.NextInOrder() {
		if prev != nil && cmp(prev, aux) >= 0 {
			return infra.NewErrorStack("avltree order violation")
		}
		if aux.left != nil && cmp(aux.left, aux) >= 0 {
			return infra.NewErrorStack("avltree left child order violation")
		}
		if aux.right != nil && cmp(aux.right, aux) <= 0 {
			return infra.NewErrorStack("avltree right child order violation")
		}
		prev = aux
	}
	return nil
}

// Postorder traversal to compute the heights bottom-up and compare them
// with the stored balance factors.
func AVLBalanceValidate(root *AVLNode) error {
	_, err := balanceValidate(root)
	return err
}

func balanceValidate(node *AVLNode) (int, error) {
	if node == nil {
		return 0, nil
	}
	lh, err := balanceValidate(node.left)
	if err != nil {
		return 0, err
	}
	rh, err := balanceValidate(node.right)
	if err != nil {
		return 0, err
	}
	if bf := rh - lh; bf < -1 || bf > 1 {
		return 0, infra.NewErrorStack(fmt.Sprintf("avltree height violation, (right %d - left %d)", rh, lh))
	} else if bf != int(node.balance) {
		return 0, infra.NewErrorStack(fmt.Sprintf("avltree balance factor violation, stored %d, real %d", node.balance, bf))
	}
	return max(lh, rh) + 1, nil
}

// AVLLinkValidate checks the parent links, self references and cycles.
// The walk is bounded, a cyclic tree is reported instead of looping.
func AVLLinkValidate(root *AVLNode) error {
	if root == nil {
		return nil
	}
	if root.parent != nil {
		return infra.NewErrorStack("avltree root with parent")
	}

	seen := make(map[*AVLNode]struct{}, 64)
	stack := make([]*AVLNode, 0, 64)
	defer func() {
		clear(stack)
	}()
	stack = append(stack, root)
	for size := len(stack); size > 0; size = len(stack) {
		aux := stack[size-1]
		stack = stack[:size-1]
		if _, ok := seen[aux]; ok {
			return infra.NewErrorStack("avltree shared node or cycle")
		}
		seen[aux] = struct{}{}

		for _, child := range [2]*AVLNode{aux.left, aux.right} {
			if child == nil {
				continue
			}
			if child == aux {
				return infra.NewErrorStack("avltree node is its own child")
			}
			if child.parent != aux {
				return infra.NewErrorStack("avltree parent link violation")
			}
			stack = append(stack, child)
		}
	}
	return nil
}

// AVLValidate runs every validator. Link errors short-circuit the rest
// because the other walks rely on sound links.
func AVLValidate(root *AVLNode, cmp AVLComparator) error {
	if err := AVLLinkValidate(root); err != nil {
		return err
	}
	return multierr.Combine(
		AVLOrderValidate(root, cmp),
		AVLBalanceValidate(root),
	)
}
