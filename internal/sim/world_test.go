package sim

import (
	"math/rand"
	"testing"
	"time"

	spatial "github.com/ChestnutYueyue/Extra2D-sub001"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/setanarut/vec"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, seed int64, opts ...spatial.ManagerOption) *World {
	w, err := NewWorld(DefaultConfig(), rand.New(rand.NewSource(seed)), opts...)
	require.NoError(t, err)
	return w
}

func TestNewWorldInvalidConfig(t *testing.T) {
	for _, conf := range []Config{
		{Width: 0, Height: 10, BoxSize: 1},
		{Width: 10, Height: 10, BoxSize: 0},
		{Width: 10, Height: 10, BoxSize: 20},
		{Width: 10, Height: 10, BoxSize: 1, MaxSpeed: -1},
	} {
		w, err := NewWorld(conf, rand.New(rand.NewSource(1)))
		require.True(t, errors.IsType(err, spatial.ErrTypeInvalidConfig))
		require.Nil(t, w)
	}
}

func TestWorldSpawnDespawn(t *testing.T) {
	w := newTestWorld(t, 1)

	ids, err := w.Spawn(100)
	require.NoError(t, err)
	require.Len(t, ids, 100)
	require.Equal(t, 100, w.Len())
	require.Equal(t, 100, w.Manager().Count())

	for _, id := range ids {
		b, ok := w.Body(id)
		require.True(t, ok)
		bb, ok := w.Manager().BBOf(id)
		require.True(t, ok)
		require.Equal(t, b.BB(), bb)
	}

	require.Equal(t, 40, w.Despawn(40))
	require.Equal(t, 60, w.Len())
	require.Equal(t, 60, w.Manager().Count())
	for _, id := range ids[60:] {
		require.False(t, w.Manager().Contains(id))
	}

	require.Equal(t, 60, w.Despawn(1000))
	require.Equal(t, 0, w.Despawn(1))
	require.True(t, w.Manager().Empty())
}

func TestWorldSeedReproducible(t *testing.T) {
	a := newTestWorld(t, 42)
	b := newTestWorld(t, 42)

	idsA, err := a.Spawn(10)
	require.NoError(t, err)
	idsB, err := b.Spawn(10)
	require.NoError(t, err)
	require.Equal(t, idsA, idsB)

	for i := 0; i < 30; i++ {
		sa := a.Step(time.Second / 60)
		sb := b.Step(time.Second / 60)
		require.Equal(t, sa.Collisions, sb.Collisions)
	}
}

func TestWorldStepKeepsBodiesInside(t *testing.T) {
	w := newTestWorld(t, 7)
	_, err := w.Spawn(200)
	require.NoError(t, err)

	conf := DefaultConfig()
	inside := spatial.NewBBForRect(0, 0, conf.Width, conf.Height)

	for i := 0; i < 300; i++ {
		stats := w.Step(time.Second / 30)
		require.Equal(t, i+1, stats.Frame)
		require.Equal(t, 200, stats.Bodies)
		require.Equal(t, "QuadTree", stats.Strategy)
	}

	for _, id := range w.order {
		b := w.bodies[id]
		require.True(t, inside.Contains(b.BB()), "body %v left the world", id)
	}
}

func TestWorldStepFlagsCollisions(t *testing.T) {
	w := newTestWorld(t, 3)
	ids, err := w.Spawn(2)
	require.NoError(t, err)

	a, _ := w.Body(ids[0])
	b, _ := w.Body(ids[1])
	a.Position, a.Velocity = vec.Vec2{X: 100, Y: 100}, vec.Vec2{}
	b.Position, b.Velocity = vec.Vec2{X: 110, Y: 100}, vec.Vec2{}

	stats := w.Step(time.Second / 60)
	require.Equal(t, 1, stats.Collisions)
	require.True(t, a.Colliding)
	require.True(t, b.Colliding)
	require.Equal(t, 2, w.Colliding())

	b.Position = vec.Vec2{X: 500, Y: 500}
	stats = w.Step(time.Second / 60)
	require.Equal(t, 0, stats.Collisions)
	require.Equal(t, 0, w.Colliding())
}

func TestWorldCrossesThresholds(t *testing.T) {
	w := newTestWorld(t, 9, spatial.WithAutoThresholds(50, 150))

	_, err := w.Spawn(100)
	require.NoError(t, err)
	require.Equal(t, "QuadTree", w.Step(time.Second/60).Strategy)

	_, err = w.Spawn(60)
	require.NoError(t, err)
	require.Equal(t, "SpatialHash", w.Step(time.Second/60).Strategy)

	w.Despawn(60)
	require.Equal(t, "SpatialHash", w.Step(time.Second/60).Strategy)

	w.Despawn(60)
	require.Equal(t, "QuadTree", w.Step(time.Second/60).Strategy)
	require.Equal(t, 40, w.Manager().Count())
}

func TestBodyMoveBounces(t *testing.T) {
	b := &Body{
		Position: vec.Vec2{X: 95, Y: 50},
		Velocity: vec.Vec2{X: 100, Y: -10},
		Size:     10,
	}

	b.move(0.1, 100, 100)
	require.Equal(t, 95.0, b.Position.X)
	require.Equal(t, -100.0, b.Velocity.X)
	require.Equal(t, 49.0, b.Position.Y)
	require.Equal(t, -10.0, b.Velocity.Y)
}
