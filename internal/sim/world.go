// Package sim is a headless world of bouncing boxes whose broad phase runs
// through a spatial.Manager.
package sim

import (
	"math/rand"
	"time"

	spatial "github.com/ChestnutYueyue/Extra2D-sub001"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/setanarut/vec"
)

// Config describes the world.
type Config struct {
	Width    float64
	Height   float64
	BoxSize  float64
	MaxSpeed float64
}

// DefaultConfig returns the 1280x720 world of the original demo scene.
func DefaultConfig() Config {
	return Config{
		Width:    1280,
		Height:   720,
		BoxSize:  20,
		MaxSpeed: 150,
	}
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("invalid world size").
			WithType(spatial.ErrTypeInvalidConfig).
			WithTag("width", c.Width).
			WithTag("height", c.Height)
	}
	if c.BoxSize <= 0 || c.BoxSize > c.Width || c.BoxSize > c.Height {
		return errors.New("invalid box size").
			WithType(spatial.ErrTypeInvalidConfig).
			WithTag("box_size", c.BoxSize)
	}
	if c.MaxSpeed < 0 {
		return errors.New("invalid max speed").
			WithType(spatial.ErrTypeInvalidConfig).
			WithTag("max_speed", c.MaxSpeed)
	}
	return nil
}

// Body is a square moving at constant speed and bouncing off the world
// edges.
type Body struct {
	ID        uuid.UUID
	Position  vec.Vec2
	Velocity  vec.Vec2
	Size      float64
	Colliding bool
}

// BB returns the bounding box of the body.
func (b *Body) BB() spatial.BB {
	return spatial.NewBBForExtents(b.Position, b.Size/2, b.Size/2)
}

// move advances the body by dt and reflects it off the edges of a world of
// the given size.
func (b *Body) move(dt float64, width, height float64) {
	b.Position = b.Position.Add(b.Velocity.Scale(dt))

	half := b.Size / 2
	if b.Position.X < half || b.Position.X > width-half {
		b.Velocity.X = -b.Velocity.X
		b.Position.X = min(max(b.Position.X, half), width-half)
	}
	if b.Position.Y < half || b.Position.Y > height-half {
		b.Velocity.Y = -b.Velocity.Y
		b.Position.Y = min(max(b.Position.Y, half), height-half)
	}
}

// FrameStats summarizes a call to World.Step.
type FrameStats struct {
	Frame         int           `json:"frame"`
	Bodies        int           `json:"bodies"`
	Collisions    int           `json:"collisions"`
	Strategy      string        `json:"strategy"`
	UpdateTime    time.Duration `json:"update_time"`
	CollisionTime time.Duration `json:"collision_time"`
}

// World owns the bodies and keeps the manager in sync with them.
type World struct {
	conf    Config
	rng     *rand.Rand
	manager *spatial.Manager[uuid.UUID]

	bodies map[uuid.UUID]*Body
	order  []uuid.UUID
	frame  int
}

// NewWorld returns an empty world. rng drives spawning, including body
// IDs, so a seeded rng reproduces a run. opts configure the manager; the
// world bounds are always the world size.
func NewWorld(conf Config, rng *rand.Rand, opts ...spatial.ManagerOption) (*World, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}

	opts = append(opts[:len(opts):len(opts)], spatial.WithWorldBounds(spatial.NewBBForRect(0, 0, conf.Width, conf.Height)))
	manager, err := spatial.NewManager[uuid.UUID](opts...)
	if err != nil {
		return nil, errors.New("creating spatial manager failed").Wrap(err)
	}

	return &World{
		conf:    conf,
		rng:     rng,
		manager: manager,
		bodies:  make(map[uuid.UUID]*Body),
	}, nil
}

func (w *World) Manager() *spatial.Manager[uuid.UUID] {
	return w.manager
}

func (w *World) Len() int {
	return len(w.order)
}

// Body returns the body with the given ID.
func (w *World) Body(id uuid.UUID) (*Body, bool) {
	b, ok := w.bodies[id]
	return b, ok
}

// Spawn adds n bodies at random positions with random velocities and
// returns their IDs.
func (w *World) Spawn(n int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, n)
	half := w.conf.BoxSize / 2

	for i := 0; i < n; i++ {
		id, err := uuid.NewRandomFromReader(w.rng)
		if err != nil {
			return ids, errors.New("generating body id failed").Wrap(err)
		}

		b := &Body{
			ID: id,
			Position: vec.Vec2{
				X: half + w.rng.Float64()*(w.conf.Width-w.conf.BoxSize),
				Y: half + w.rng.Float64()*(w.conf.Height-w.conf.BoxSize),
			},
			Velocity: vec.Vec2{
				X: (w.rng.Float64()*2 - 1) * w.conf.MaxSpeed,
				Y: (w.rng.Float64()*2 - 1) * w.conf.MaxSpeed,
			},
			Size: w.conf.BoxSize,
		}

		w.bodies[id] = b
		w.order = append(w.order, id)
		w.manager.Insert(id, b.BB())
		ids = append(ids, id)
	}

	return ids, nil
}

// Despawn removes the n most recently spawned bodies and returns how many
// were removed.
func (w *World) Despawn(n int) int {
	n = min(n, len(w.order))
	if n <= 0 {
		return 0
	}

	for _, id := range w.order[len(w.order)-n:] {
		w.manager.Remove(id)
		delete(w.bodies, id)
	}
	clear(w.order[len(w.order)-n:])
	w.order = w.order[:len(w.order)-n]
	return n
}

// Step moves every body by dt, updates the index and flags the bodies
// whose boxes overlap another.
func (w *World) Step(dt time.Duration) FrameStats {
	w.frame++
	start := time.Now()

	for _, id := range w.order {
		b := w.bodies[id]
		b.move(dt.Seconds(), w.conf.Width, w.conf.Height)
		b.Colliding = false
		w.manager.Update(id, b.BB())
	}

	updated := time.Now()
	pairs := w.manager.QueryCollisions()
	for _, p := range pairs {
		w.bodies[p.A].Colliding = true
		w.bodies[p.B].Colliding = true
	}

	return FrameStats{
		Frame:         w.frame,
		Bodies:        len(w.order),
		Collisions:    len(pairs),
		Strategy:      w.manager.StrategyName(),
		UpdateTime:    updated.Sub(start),
		CollisionTime: time.Since(updated),
	}
}

// Colliding returns the number of bodies flagged by the last Step.
func (w *World) Colliding() int {
	n := 0
	for _, b := range w.bodies {
		if b.Colliding {
			n++
		}
	}
	return n
}
