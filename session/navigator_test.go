package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/loupe/core"
)

func TestSelectMatch_EmptySet(t *testing.T) {
	_, ok := SelectMatch(core.Next, 0, false, 0)
	assert.False(t, ok)

	_, ok = SelectMatch(core.Prev, 2, true, 0)
	assert.False(t, ok)
}

func TestSelectMatch_NoCursorStartsAtFirst(t *testing.T) {
	index, ok := SelectMatch(core.Next, 0, false, 5)
	require.True(t, ok)
	assert.Equal(t, 0, index)

	index, ok = SelectMatch(core.Prev, 0, false, 5)
	require.True(t, ok)
	assert.Equal(t, 0, index)
}

func TestSelectMatch_Wraparound(t *testing.T) {
	index, ok := SelectMatch(core.Next, 4, true, 5)
	require.True(t, ok)
	assert.Equal(t, 0, index)

	index, ok = SelectMatch(core.Prev, 0, true, 5)
	require.True(t, ok)
	assert.Equal(t, 4, index)
}

func TestSelectMatch_CycleLaw(t *testing.T) {
	// n steps in either direction return to the start, visiting every
	// index exactly once along the way.
	const n = 7
	for start := 0; start < n; start++ {
		for _, direction := range []core.Direction{core.Next, core.Prev} {
			seen := make(map[int]bool)
			current := start
			for step := 0; step < n; step++ {
				next, ok := SelectMatch(direction, current, true, n)
				require.True(t, ok)
				assert.False(t, seen[next], "index %d visited twice", next)
				seen[next] = true
				current = next
			}
			assert.Equal(t, start, current)
			assert.Len(t, seen, n)
		}
	}
}

func navRanges() []core.MatchRange {
	return []core.MatchRange{
		{Path: "a.rs", Start: core.Anchor{Offset: 10}, End: core.Anchor{Offset: 13}},
		{Path: "a.rs", Start: core.Anchor{Offset: 40}, End: core.Anchor{Offset: 43}},
		{Path: "b.rs", Start: core.Anchor{Offset: 5}, End: core.Anchor{Offset: 8}},
	}
}

func TestResyncActiveIndex(t *testing.T) {
	t.Run("caret inside a match", func(t *testing.T) {
		index, ok := ResyncActiveIndex(navRanges(), "a.rs", 11, nil)
		require.True(t, ok)
		assert.Equal(t, 0, index)
	})

	t.Run("caret between matches snaps forward", func(t *testing.T) {
		index, ok := ResyncActiveIndex(navRanges(), "a.rs", 20, nil)
		require.True(t, ok)
		assert.Equal(t, 1, index)
	})

	t.Run("caret in earlier file snaps to next file's match", func(t *testing.T) {
		index, ok := ResyncActiveIndex(navRanges(), "aa.rs", 0, nil)
		require.True(t, ok)
		assert.Equal(t, 2, index)
	})

	t.Run("caret beyond every match clears the cursor", func(t *testing.T) {
		_, ok := ResyncActiveIndex(navRanges(), "b.rs", 100, nil)
		assert.False(t, ok)
	})

	t.Run("empty set", func(t *testing.T) {
		_, ok := ResyncActiveIndex(nil, "a.rs", 0, nil)
		assert.False(t, ok)
	})

	t.Run("custom resolver shifts comparisons", func(t *testing.T) {
		// Pretend every anchor drifted 100 bytes right since capture.
		resolve := func(_ core.ID, a core.Anchor) int { return a.Offset + 100 }
		index, ok := ResyncActiveIndex(navRanges(), "a.rs", 111, resolve)
		require.True(t, ok)
		assert.Equal(t, 0, index)
	})
}
