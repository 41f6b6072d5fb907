package stress

import (
	"errors"
	randv2 "math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benz9527/xavl/lib/tree"
)

func newTestRound(seed uint64, capacity int) *Round {
	return NewRound(randv2.New(randv2.NewPCG(seed, 0)), NewArena(capacity), true)
}

func keysUpTo(n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func TestArena(t *testing.T) {
	arena := NewArena(2)
	require.Equal(t, 2, arena.Cap())
	a, err := arena.Alloc(7)
	require.NoError(t, err)
	require.Equal(t, 7, a.Key)
	require.True(t, a.Node.IsDetached())
	_, err = arena.Alloc(8)
	require.NoError(t, err)
	require.Equal(t, 2, arena.Len())
	_, err = arena.Alloc(9)
	require.Error(t, err)

	arena.Reset()
	require.Equal(t, 0, arena.Len())
	b, err := arena.Alloc(1)
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 1, b.Key)
}

func TestRecordOf(t *testing.T) {
	rec := &Record{Key: 42}
	require.Same(t, rec, RecordOf(&rec.Node))
	require.Nil(t, RecordOf(nil))
	require.Equal(t, int64(-1), CompareRecord(&(&Record{Key: 1}).Node, &rec.Node))
}

func TestRound_Run(t *testing.T) {
	t.Parallel()
	data := keysUpTo(50)
	round := newTestRound(1, len(data))
	for count := 0; count < len(data); count++ {
		stats, err := round.Run(data, count)
		require.NoError(t, err)
		require.Equal(t, count, stats.Nodes)
		require.Equal(t, int64(count), stats.Inserts)
		require.Equal(t, int64(count), stats.Removes)
		require.Equal(t, int64(count+1), stats.Lookups)
		require.LessOrEqual(t, stats.MaxHeight, tree.AVLHeightBound(int64(count)))
		require.True(t, round.tree.IsEmpty())
		require.Equal(t, 0, round.arena.Len())
	}
	// Still a permutation after the shuffles.
	seen := make(map[int]struct{}, len(data))
	for _, k := range data {
		seen[k] = struct{}{}
	}
	require.Len(t, seen, len(data))
}

func TestRound_RunWithoutVerify(t *testing.T) {
	t.Parallel()
	data := keysUpTo(300)
	round := NewRound(randv2.New(randv2.NewPCG(2, 0)), NewArena(len(data)), false)
	stats, err := round.Run(data, len(data))
	require.NoError(t, err)
	require.Equal(t, int64(300), stats.Inserts)
	require.LessOrEqual(t, stats.MaxHeight, tree.AVLHeightBound(300))
}

func TestRound_OverCapacity(t *testing.T) {
	round := newTestRound(3, 4)
	_, err := round.Run(keysUpTo(10), 5)
	require.Error(t, err)
	var v *Violation
	require.False(t, errors.As(err, &v))
}

func TestRound_Duplicate(t *testing.T) {
	round := newTestRound(4, 4)
	stats, err := round.Run([]int{3, 3}, 2)
	require.Error(t, err)
	var v *Violation
	require.True(t, errors.As(err, &v))
	require.Equal(t, ViolationDuplicate, v.Kind)
	require.Equal(t, "insert", v.Op)
	require.Equal(t, 3, v.Key)
	require.Equal(t, int64(1), stats.Inserts)
	require.Contains(t, err.Error(), "duplicate violation after insert 3")
	// The round leaves nothing behind.
	require.True(t, round.tree.IsEmpty())
}

func buildRoundTree(t *testing.T, round *Round, keys []int) {
	for _, k := range keys {
		rec, err := round.arena.Alloc(k)
		require.NoError(t, err)
		require.Nil(t, round.tree.Insert(&rec.Node, CompareRecord))
	}
}

func TestRound_CheckViolations(t *testing.T) {
	keys := []int{3, 1, 5, 0, 2, 4, 6}

	round := newTestRound(5, len(keys))
	buildRoundTree(t, round, keys)
	require.Nil(t, round.check(keys))

	// A missing key in the expected set.
	v := round.check(keys[:6])
	require.NotNil(t, v)
	require.Equal(t, ViolationOrder, v.Kind)

	// A key changed behind the tree's back.
	RecordOf(round.tree.Root()).Key = 100
	v = round.check([]int{100, 1, 5, 0, 2, 4, 6})
	require.NotNil(t, v)
	require.Equal(t, ViolationOrder, v.Kind)
	require.Contains(t, v.Error(), "in-order mismatch at index 3")

	round.tree.Reset()
	round.arena.Reset()
	require.Nil(t, round.check(nil))
}
