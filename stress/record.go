package stress

import (
	"unsafe"

	"github.com/benz9527/xavl/lib/infra"
	"github.com/benz9527/xavl/lib/tree"
)

// Record is the caller record carried by the trees of a round. The tree
// only knows the embedded Node.
type Record struct {
	height  int
	reached bool
	Key     int
	Node    tree.AVLNode
}

var recordNodeOffset = unsafe.Offsetof(Record{}.Node)

func RecordOf(node *tree.AVLNode) *Record {
	return tree.Entry[Record](node, recordNodeOffset)
}

func recordKey(node *tree.AVLNode) int {
	return RecordOf(node).Key
}

var CompareRecord = tree.AVLKeyComparator[int](recordKey)

func recordHeight(node *tree.AVLNode) int {
	if node == nil {
		return 0
	}
	return RecordOf(node).height
}

// Arena is a fixed backing slice of records. A round allocates its
// records from it and resets it when the tree is dropped.
type Arena struct {
	records []Record
	next    int
}

func NewArena(capacity int) *Arena {
	return &Arena{
		records: make([]Record, capacity),
	}
}

func (arena *Arena) Cap() int {
	return len(arena.records)
}

func (arena *Arena) Len() int {
	return arena.next
}

func (arena *Arena) Alloc(key int) (*Record, error) {
	if arena.next >= len(arena.records) {
		return nil, infra.NewErrorStack("[stress] arena exhausted")
	}
	rec := &arena.records[arena.next]
	arena.next++
	*rec = Record{Key: key}
	return rec, nil
}

// Reset drops every record at once. The tree built on the records must
// be dropped too.
func (arena *Arena) Reset() {
	clear(arena.records[:arena.next])
	arena.next = 0
}
