package stress

import (
	"fmt"
	randv2 "math/rand/v2"
	"slices"

	"github.com/benz9527/xavl/lib/infra"
	"github.com/benz9527/xavl/lib/tree"
)

type ViolationKind string

const (
	ViolationDuplicate ViolationKind = "duplicate"
	ViolationLookup    ViolationKind = "lookup"
	ViolationLink      ViolationKind = "link"
	ViolationBalance   ViolationKind = "balance"
	ViolationOrder     ViolationKind = "order"
	ViolationHeight    ViolationKind = "height"
	ViolationTraversal ViolationKind = "traversal"
)

// Violation is an avltree rule broken during a round.
type Violation struct {
	Kind ViolationKind
	// Op is "insert" or "remove", Key is the key of that step.
	Op    string
	Key   int
	Nodes int
	err   error
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s violation after %s %d (%d nodes): %v", v.Kind, v.Op, v.Key, v.Nodes, v.err)
}

func (v *Violation) Unwrap() error {
	return v.err
}

type RoundStats struct {
	Nodes     int
	Inserts   int64
	Removes   int64
	Lookups   int64
	MaxHeight int
}

// Round inserts a random subset of keys into an empty tree and removes
// them in another random order. With verify enabled every step is
// followed by a full check of the tree.
type Round struct {
	rng    *randv2.Rand
	arena  *Arena
	tree   *tree.AVLRoot
	verify bool
	sorted []int
}

func NewRound(rng *randv2.Rand, arena *Arena, verify bool) *Round {
	return &Round{
		rng:    rng,
		arena:  arena,
		tree:   tree.NewAVLRoot(),
		verify: verify,
		sorted: make([]int, 0, arena.Cap()),
	}
}

func (r *Round) shuffle(data []int) {
	r.rng.Shuffle(len(data), func(i, j int) {
		data[i], data[j] = data[j], data[i]
	})
}

func (r *Round) lookup(key int) *Record {
	query := Record{Key: key}
	return RecordOf(r.tree.Lookup(&query.Node, CompareRecord))
}

// Run uses the first count keys of data, data is shuffled in place.
// data must be a permutation of [0, len(data)).
func (r *Round) Run(data []int, count int) (RoundStats, error) {
	stats := RoundStats{Nodes: count}
	if count > len(data) || count > r.arena.Cap() {
		return stats, infra.NewErrorStack(fmt.Sprintf("[stress] %d nodes over capacity %d", count, r.arena.Cap()))
	}
	r.tree.Reset()
	r.arena.Reset()
	defer func() {
		r.tree.Reset()
		r.arena.Reset()
	}()

	r.shuffle(data[:count])
	for i := 0; i < count; i++ {
		rec, err := r.arena.Alloc(data[i])
		if err != nil {
			return stats, err
		}
		if dup := r.tree.Insert(&rec.Node, CompareRecord); dup != nil {
			return stats, &Violation{
				Kind: ViolationDuplicate, Op: "insert", Key: data[i], Nodes: i,
				err: infra.NewErrorStack("avltree returned a duplicate for a distinct key"),
			}
		}
		stats.Inserts++
		if r.verify {
			if err := r.check(data[:i+1]); err != nil {
				err.Op, err.Key = "insert", data[i]
				return stats, err
			}
		}
	}
	stats.MaxHeight = tree.AVLHeight(r.tree.Root())

	// len(data) is never inserted.
	stats.Lookups++
	if rec := r.lookup(len(data)); rec != nil {
		return stats, &Violation{
			Kind: ViolationLookup, Op: "lookup", Key: len(data), Nodes: count,
			err: infra.NewErrorStack("avltree found an absent key"),
		}
	}

	r.shuffle(data[:count])
	for i := 0; i < count; i++ {
		stats.Lookups++
		rec := r.lookup(data[i])
		if rec == nil {
			return stats, &Violation{
				Kind: ViolationLookup, Op: "remove", Key: data[i], Nodes: count - i,
				err: infra.NewErrorStack("avltree lost an inserted key"),
			}
		}
		r.tree.Remove(&rec.Node)
		stats.Removes++
		if !rec.Node.IsDetached() {
			return stats, &Violation{
				Kind: ViolationLink, Op: "remove", Key: data[i], Nodes: count - i - 1,
				err: infra.NewErrorStack("avltree removed node still linked"),
			}
		}
		if r.verify {
			if err := r.check(data[i+1 : count]); err != nil {
				err.Op, err.Key = "remove", data[i]
				return stats, err
			}
		}
	}
	if !r.tree.IsEmpty() {
		return stats, &Violation{
			Kind: ViolationTraversal, Op: "remove", Key: -1, Nodes: 0,
			err: infra.NewErrorStack("avltree not empty after removing every key"),
		}
	}
	return stats, nil
}

// check verifies the tree holds exactly keys.
func (r *Round) check(keys []int) *Violation {
	root := r.tree.Root()
	v := &Violation{Nodes: len(keys)}
	// The recursive walks below trust the links.
	if err := tree.AVLLinkValidate(root); err != nil {
		v.Kind, v.err = ViolationLink, err
		return v
	}
	setHeights(root)
	if err := checkBalance(root); err != nil {
		v.Kind, v.err = ViolationBalance, err
		return v
	}
	if h := recordHeight(root); h > tree.AVLHeightBound(int64(len(keys))) {
		v.Kind, v.err = ViolationHeight, infra.NewErrorStack(fmt.Sprintf("avltree height %d over bound %d", h, tree.AVLHeightBound(int64(len(keys)))))
		return v
	}

	r.sorted = append(r.sorted[:0], keys...)
	slices.Sort(r.sorted)
	if err := checkInOrder(root, r.sorted); err != nil {
		v.Kind, v.err = ViolationOrder, err
		return v
	}
	if err := checkPostorder(root, len(keys)); err != nil {
		v.Kind, v.err = ViolationTraversal, err
		return v
	}
	return nil
}

func setHeights(node *tree.AVLNode) {
	if node == nil {
		return
	}
	setHeights(node.Left())
	setHeights(node.Right())
	RecordOf(node).height = max(recordHeight(node.Left()), recordHeight(node.Right())) + 1
}

func checkBalance(node *tree.AVLNode) error {
	if node == nil {
		return nil
	}
	bf := int(node.BalanceFactor())
	if bf < -1 || bf > 1 {
		return infra.NewErrorStack(fmt.Sprintf("avltree balance factor %d out of range at key %d", bf, recordKey(node)))
	}
	if actual := recordHeight(node.Right()) - recordHeight(node.Left()); bf != actual {
		return infra.NewErrorStack(fmt.Sprintf("avltree balance factor %d, real %d at key %d", bf, actual, recordKey(node)))
	}
	if err := checkBalance(node.Left()); err != nil {
		return err
	}
	return checkBalance(node.Right())
}

func checkInOrder(root *tree.AVLNode, sorted []int) error {
	x := 0
	for aux := tree.AVLFirstInOrder(root); aux != nil; aux = aux.NextInOrder() {
		if x >= len(sorted) || recordKey(aux) != sorted[x] {
			return infra.NewErrorStack(fmt.Sprintf("avltree in-order mismatch at index %d", x))
		}
		if l := aux.Left(); l != nil && recordKey(l) >= recordKey(aux) {
			return infra.NewErrorStack(fmt.Sprintf("avltree left child %d not less than %d", recordKey(l), recordKey(aux)))
		}
		if rt := aux.Right(); rt != nil && recordKey(rt) <= recordKey(aux) {
			return infra.NewErrorStack(fmt.Sprintf("avltree right child %d not greater than %d", recordKey(rt), recordKey(aux)))
		}
		RecordOf(aux).reached = false
		x++
	}
	if x != len(sorted) {
		return infra.NewErrorStack(fmt.Sprintf("avltree in-order visited %d of %d", x, len(sorted)))
	}

	x = len(sorted) - 1
	for aux := tree.AVLLastInOrder(root); aux != nil; aux = aux.PrevInOrder() {
		if x < 0 || recordKey(aux) != sorted[x] {
			return infra.NewErrorStack(fmt.Sprintf("avltree reverse in-order mismatch at index %d", x))
		}
		x--
	}
	if x != -1 {
		return infra.NewErrorStack(fmt.Sprintf("avltree reverse in-order stopped at index %d", x))
	}
	return nil
}

// checkPostorder expects the reached flags cleared by checkInOrder.
func checkPostorder(root *tree.AVLNode, count int) error {
	x := 0
	for aux := tree.AVLFirstInPostorder(root); aux != nil; aux = tree.AVLNextInPostorder(aux, aux.Parent()) {
		rec := RecordOf(aux)
		if rec.reached {
			return infra.NewErrorStack(fmt.Sprintf("avltree postorder revisited key %d", rec.Key))
		}
		rec.reached = true
		if p := aux.Parent(); p != nil && RecordOf(p).reached {
			return infra.NewErrorStack(fmt.Sprintf("avltree postorder parent of %d before child", rec.Key))
		}
		if l := aux.Left(); l != nil && !RecordOf(l).reached {
			return infra.NewErrorStack(fmt.Sprintf("avltree postorder left child of %d after parent", rec.Key))
		}
		if rt := aux.Right(); rt != nil && !RecordOf(rt).reached {
			return infra.NewErrorStack(fmt.Sprintf("avltree postorder right child of %d after parent", rec.Key))
		}
		x++
	}
	if x != count {
		return infra.NewErrorStack(fmt.Sprintf("avltree postorder visited %d of %d", x, count))
	}
	return nil
}
