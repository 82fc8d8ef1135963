package spatial

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

// brokenIndex panics or drops entities while being populated.
type brokenIndex struct {
	*SpatialHash[int]
	panicAt int
	drop    bool
}

func (idx *brokenIndex) Insert(e int, bb BB) {
	if idx.panicAt > 0 && idx.Count() == idx.panicAt {
		panic("out of memory")
	}
	if idx.drop && idx.Count() > 0 {
		return
	}
	idx.SpatialHash.Insert(e, bb)
}

func newFailingManager(t *testing.T, broken *brokenIndex) *Manager[int] {
	m, err := NewManager[int](
		WithName(t.Name()),
		WithWorldBounds(NewBBForRect(0, 0, 1000, 1000)),
		WithAutoThresholds(10, 20),
	)
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		m.Insert(i, NewBBForRect(float64(i)*10, 0, 5, 5))
	}
	require.Equal(t, StrategyTree, m.CurrentStrategy())
	require.NoError(t, m.LastError())

	m.factory = func(s Strategy) (SpatialIndexer[int], error) {
		hash, err := NewSpatialHash[int](64)
		require.NoError(t, err)
		broken.SpatialHash = hash
		return broken, nil
	}
	return m
}

func TestManagerSwapFailureKeepsIndex(t *testing.T) {
	tests := []struct {
		name   string
		broken *brokenIndex
	}{
		{name: "panic", broken: &brokenIndex{panicAt: 3}},
		{name: "lost entities", broken: &brokenIndex{drop: true}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := newFailingManager(t, test.broken)
			before := m.Query(NewBBForRect(0, 0, 1000, 1000))

			err := m.SetStrategy(StrategyGrid)
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeRebuildFailed))
			require.Equal(t, StrategyAuto, m.Strategy())
			require.Equal(t, StrategyTree, m.CurrentStrategy())
			require.Equal(t, 15, m.Count())
			require.ElementsMatch(t, before, m.Query(NewBBForRect(0, 0, 1000, 1000)))

			err = m.Rebuild()
			require.True(t, errors.IsType(err, ErrTypeRebuildFailed))
			require.Equal(t, 15, m.Count())

			// Crossing the threshold logs the failure and keeps the tree.
			for i := 15; i < 25; i++ {
				m.Insert(i, NewBBForRect(float64(i)*10, 0, 5, 5))
			}
			require.Equal(t, StrategyTree, m.CurrentStrategy())
			require.Equal(t, 25, m.Count())
			require.True(t, errors.IsType(m.LastError(), ErrTypeRebuildFailed))

			// The next mutation retries the switch.
			m.factory = m.createIndex
			m.Insert(25, NewBBForRect(250, 0, 5, 5))
			require.NoError(t, m.LastError())
			require.Equal(t, StrategyGrid, m.CurrentStrategy())
			require.Equal(t, 26, m.Count())
		})
	}
}

func TestManagerSetWorldBoundsFailureRestoresBounds(t *testing.T) {
	m := newFailingManager(t, &brokenIndex{panicAt: 1})
	m.factory = func(s Strategy) (SpatialIndexer[int], error) {
		return nil, errors.New("no memory")
	}

	err := m.SetWorldBounds(NewBBForRect(0, 0, 50, 50))
	require.True(t, errors.IsType(err, ErrTypeRebuildFailed))
	require.Equal(t, NewBBForRect(0, 0, 1000, 1000), m.WorldBounds())
	require.Equal(t, 15, m.Count())
}
