package spatial

import (
	"fmt"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/setanarut/vec"
)

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	name          string
	worldBounds   *BB
	strategy      Strategy
	treeThreshold int
	hashThreshold int
	cellSize      float64
	maxObjects    int
	maxLevels     int
}

// WithName sets the manager label of the metrics the manager reports.
func WithName(name string) ManagerOption {
	return func(c *managerConfig) {
		c.name = name
	}
}

// WithWorldBounds sets the bounds covered by the QuadTree. Without it the
// manager builds no index until bounds are set or an entity is inserted.
func WithWorldBounds(bb BB) ManagerOption {
	return func(c *managerConfig) {
		c.worldBounds = &bb
	}
}

// WithStrategy sets the initial strategy.
func WithStrategy(s Strategy) ManagerOption {
	return func(c *managerConfig) {
		c.strategy = s
	}
}

// WithAutoThresholds sets the populations used by StrategyAuto.
func WithAutoThresholds(treeThreshold, hashThreshold int) ManagerOption {
	return func(c *managerConfig) {
		c.treeThreshold = treeThreshold
		c.hashThreshold = hashThreshold
	}
}

// WithCellSize sets the cell size of the SpatialHash.
func WithCellSize(cellSize float64) ManagerOption {
	return func(c *managerConfig) {
		c.cellSize = cellSize
	}
}

// WithTreeLimits sets the split capacity and depth limit of the QuadTree.
func WithTreeLimits(maxObjects, maxLevels int) ManagerOption {
	return func(c *managerConfig) {
		c.maxObjects = maxObjects
		c.maxLevels = maxLevels
	}
}

// Manager owns one active spatial index and replaces it with the other kind
// when the population crosses the configured thresholds.
//
// With StrategyAuto the QuadTree is used while the population is at or
// below the tree threshold and the SpatialHash once it reaches the hash
// threshold. Between the two the active structure is kept, so populations
// oscillating around a single value do not rebuild every frame.
//
// A Manager is meant to be driven from a single goroutine.
type Manager[E comparable] struct {
	name          string
	strategy      Strategy
	active        Strategy
	index         SpatialIndexer[E]
	worldBounds   BB
	hasBounds     bool
	treeThreshold int
	hashThreshold int
	cellSize      float64
	maxObjects    int
	maxLevels     int

	stats       QueryStats
	instruments instruments

	// factory builds replacement indexes. Tests swap it to inject failures.
	factory func(s Strategy) (SpatialIndexer[E], error)

	lastErr error
}

// NewManager returns a manager configured by opts. Invalid options are
// reported as ErrTypeInvalidConfig errors.
func NewManager[E comparable](opts ...ManagerOption) (*Manager[E], error) {
	conf := managerConfig{
		name:          "default",
		strategy:      StrategyAuto,
		treeThreshold: DefaultTreeThreshold,
		hashThreshold: DefaultHashThreshold,
		cellSize:      DefaultCellSize,
		maxObjects:    DefaultMaxObjects,
		maxLevels:     DefaultMaxLevels,
	}
	for _, opt := range opts {
		opt(&conf)
	}

	if err := validStrategy(conf.strategy); err != nil {
		return nil, err
	}
	if err := validThresholds(conf.treeThreshold, conf.hashThreshold); err != nil {
		return nil, err
	}
	if !validCellSize(conf.cellSize) {
		return nil, errors.New("invalid cell size").
			WithType(ErrTypeInvalidConfig).
			WithTag("cell_size", conf.cellSize)
	}
	if conf.maxObjects <= 0 || conf.maxLevels < 0 {
		return nil, errors.New("invalid tree limits").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_objects", conf.maxObjects).
			WithTag("max_levels", conf.maxLevels)
	}

	m := &Manager[E]{
		name:          conf.name,
		strategy:      conf.strategy,
		active:        StrategyNone,
		treeThreshold: conf.treeThreshold,
		hashThreshold: conf.hashThreshold,
		cellSize:      conf.cellSize,
		maxObjects:    conf.maxObjects,
		maxLevels:     conf.maxLevels,
	}
	m.factory = m.createIndex

	if conf.worldBounds != nil {
		if err := m.SetWorldBounds(*conf.worldBounds); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func validStrategy(s Strategy) error {
	switch s {
	case StrategyAuto, StrategyTree, StrategyGrid:
		return nil
	}
	return errors.New("invalid strategy").
		WithType(ErrTypeInvalidConfig).
		WithTag("strategy", s.String())
}

func validThresholds(treeThreshold, hashThreshold int) error {
	if treeThreshold < 0 || hashThreshold <= treeThreshold {
		return errors.New("invalid auto thresholds").
			WithType(ErrTypeInvalidConfig).
			WithTag("tree_threshold", treeThreshold).
			WithTag("hash_threshold", hashThreshold)
	}
	return nil
}

// createIndex returns an empty index of kind s.
func (m *Manager[E]) createIndex(s Strategy) (SpatialIndexer[E], error) {
	switch s {
	case StrategyTree:
		return NewQuadTree[E](m.worldBounds,
			WithMaxObjects(m.maxObjects),
			WithMaxLevels(m.maxLevels),
		)
	case StrategyGrid:
		return NewSpatialHash[E](m.cellSize)
	}
	return nil, errors.New("no index for strategy").
		WithType(ErrTypeInvalidConfig).
		WithTag("strategy", s.String())
}

// desiredStrategy returns the structure the manager should use for a
// population of count.
func (m *Manager[E]) desiredStrategy(count int) Strategy {
	if m.strategy != StrategyAuto {
		return m.strategy
	}

	switch {
	case count <= m.treeThreshold:
		return StrategyTree
	case count >= m.hashThreshold:
		return StrategyGrid
	case m.index == nil:
		return StrategyTree
	default:
		return m.active
	}
}

// swap builds an index of kind s holding every tracked entity and makes it
// the active index. The active index is only replaced once the new one is
// complete; on failure it is left untouched.
func (m *Manager[E]) swap(s Strategy) (err error) {
	next, err := m.factory(s)
	if err != nil {
		instrumentRebuildFailure(m.name)
		return errors.New("creating spatial index failed").
			WithType(ErrTypeRebuildFailed).
			WithTag("strategy", s.String()).
			Wrap(err)
	}

	defer func() {
		if r := recover(); r != nil {
			instrumentRebuildFailure(m.name)
			err = errors.New("populating spatial index failed").
				WithType(ErrTypeRebuildFailed).
				WithTag("strategy", s.String()).
				WithTag("panic", fmt.Sprint(r))
		}
	}()

	want := 0
	if m.index != nil {
		want = m.index.Count()
		m.index.Each(func(e E, bb BB) {
			next.Insert(e, bb)
		})
	}
	if got := next.Count(); got != want {
		instrumentRebuildFailure(m.name)
		return errors.New("populating spatial index lost entities").
			WithType(ErrTypeRebuildFailed).
			WithTag("strategy", s.String()).
			WithTag("want", want).
			WithTag("got", got)
	}

	prev := m.active
	m.index = next
	m.active = s
	m.instruments = newInstruments(m.name, s)
	m.instruments.setPopulation(want)

	if prev != StrategyNone && prev != s {
		instrumentStrategySwitch(m.name, prev, s)
		logs.WithTag("manager", m.name).
			WithTag("from", prev.String()).
			WithTag("to", s.String()).
			WithTag("count", want).
			Info("spatial index strategy switched")
	}
	return nil
}

// ensureIndex leaves the NoIndex state, using DefaultWorldBounds if no
// bounds were set.
func (m *Manager[E]) ensureIndex() error {
	if m.index != nil {
		return nil
	}
	if !m.hasBounds {
		m.worldBounds = DefaultWorldBounds
		m.hasBounds = true
	}
	return m.swap(m.desiredStrategy(0))
}

// reevaluate swaps the active index if the population asks for the other
// kind.
func (m *Manager[E]) reevaluate() error {
	if m.index == nil {
		return nil
	}

	count := m.index.Count()
	m.instruments.setPopulation(count)
	if want := m.desiredStrategy(count); want != m.active {
		return m.swap(want)
	}
	return nil
}

func (m *Manager[E]) afterMutation() {
	m.lastErr = m.reevaluate()
	if m.lastErr != nil {
		logs.Warn(m.lastErr)
	}
}

// LastError returns the error of the last automatic strategy switch made
// after a mutation. It is nil again once the active index matches the
// population.
func (m *Manager[E]) LastError() error {
	return m.lastErr
}

// Insert registers e at bb. Inserting an entity that is already tracked
// moves it.
func (m *Manager[E]) Insert(e E, bb BB) {
	if err := m.ensureIndex(); err != nil {
		m.lastErr = err
		logs.Warn(err)
		return
	}

	m.index.Insert(e, bb)
	m.afterMutation()
}

// Remove untracks e. Unknown entities are ignored.
func (m *Manager[E]) Remove(e E) {
	if m.index == nil {
		return
	}

	m.index.Remove(e)
	m.afterMutation()
}

// Update moves e to bb. Unknown entities are ignored.
func (m *Manager[E]) Update(e E, bb BB) {
	if m.index == nil {
		return
	}

	m.index.Update(e, bb)
	m.afterMutation()
}

// Query returns every entity whose bounding box intersects bb.
func (m *Manager[E]) Query(bb BB) []E {
	if m.index == nil {
		return nil
	}

	defer m.observe(time.Now())
	return m.index.Query(bb)
}

// QueryPoint returns every entity whose bounding box contains p.
func (m *Manager[E]) QueryPoint(p vec.Vec2) []E {
	if m.index == nil {
		return nil
	}

	defer m.observe(time.Now())
	return m.index.QueryPoint(p)
}

// QueryFunc calls f for every entity whose bounding box intersects bb until
// f returns false. f must not mutate the manager.
func (m *Manager[E]) QueryFunc(bb BB, f QueryFunc[E]) {
	if m.index == nil {
		return
	}

	defer m.observe(time.Now())
	m.index.QueryFunc(bb, f)
}

// QueryPointFunc calls f for every entity whose bounding box contains p
// until f returns false. f must not mutate the manager.
func (m *Manager[E]) QueryPointFunc(p vec.Vec2, f QueryFunc[E]) {
	if m.index == nil {
		return
	}

	defer m.observe(time.Now())
	m.index.QueryPointFunc(p, f)
}

// QueryCollisions returns every pair of distinct entities whose bounding
// boxes intersect, each pair once.
func (m *Manager[E]) QueryCollisions() []Pair[E] {
	if m.index == nil {
		return nil
	}

	defer m.observe(time.Now())
	return m.index.QueryCollisions()
}

func (m *Manager[E]) observe(start time.Time) {
	d := time.Since(start)
	m.stats.Queries++
	m.stats.Total += d
	m.instruments.observeQuery(d)
}

// Clear untracks every entity.
func (m *Manager[E]) Clear() {
	if m.index == nil {
		return
	}

	m.index.Clear()
	m.afterMutation()
}

func (m *Manager[E]) Count() int {
	if m.index == nil {
		return 0
	}
	return m.index.Count()
}

func (m *Manager[E]) Empty() bool {
	return m.Count() == 0
}

func (m *Manager[E]) Contains(e E) bool {
	return m.index != nil && m.index.Contains(e)
}

// BBOf returns the last bounding box registered for e.
func (m *Manager[E]) BBOf(e E) (BB, bool) {
	if m.index == nil {
		return BB{}, false
	}
	return m.index.BBOf(e)
}

// Each iterates over every tracked entity in insertion order.
func (m *Manager[E]) Each(f SpatialIndexIterator[E]) {
	if m.index == nil {
		return
	}
	m.index.Each(f)
}

// Rebuild replaces the active index with a freshly built one of the kind
// the current population asks for. On failure the active index is kept.
func (m *Manager[E]) Rebuild() error {
	if m.index == nil {
		return nil
	}

	s := m.desiredStrategy(m.index.Count())
	logs.WithTag("manager", m.name).
		WithTag("strategy", s.String()).
		WithTag("count", m.index.Count()).
		Debug("rebuilding spatial index")
	return m.swap(s)
}

// Optimize re-evaluates the strategy and reindexes the active structure in
// place when no switch is needed.
func (m *Manager[E]) Optimize() error {
	if m.index == nil {
		return nil
	}

	prev := m.index
	if err := m.reevaluate(); err != nil {
		return err
	}
	if m.index == prev {
		m.index.Reindex()
	}
	return nil
}

// SetStrategy pins the tree or the grid, or returns to StrategyAuto.
func (m *Manager[E]) SetStrategy(s Strategy) error {
	if err := validStrategy(s); err != nil {
		return err
	}
	if s == m.strategy {
		return nil
	}

	prev := m.strategy
	m.strategy = s
	if err := m.reevaluate(); err != nil {
		m.strategy = prev
		return err
	}
	return nil
}

// Strategy returns the configured strategy.
func (m *Manager[E]) Strategy() Strategy {
	return m.strategy
}

// SetAutoThresholds sets the populations used by StrategyAuto. The tree
// threshold must be lower than the hash threshold.
func (m *Manager[E]) SetAutoThresholds(treeThreshold, hashThreshold int) error {
	if err := validThresholds(treeThreshold, hashThreshold); err != nil {
		return err
	}

	m.treeThreshold = treeThreshold
	m.hashThreshold = hashThreshold
	return m.reevaluate()
}

// AutoThresholds returns the populations used by StrategyAuto.
func (m *Manager[E]) AutoThresholds() (treeThreshold, hashThreshold int) {
	return m.treeThreshold, m.hashThreshold
}

// SetWorldBounds sets the bounds covered by the QuadTree. An active tree is
// rebuilt over the new bounds; the grid does not use them. Bounds without a
// positive area are rejected and the previous bounds kept.
func (m *Manager[E]) SetWorldBounds(bb BB) error {
	if err := validWorldBounds(bb); err != nil {
		return err
	}

	prev, hadBounds := m.worldBounds, m.hasBounds
	m.worldBounds = bb
	m.hasBounds = true

	var err error
	switch {
	case m.index == nil:
		err = m.ensureIndex()
	case m.active == StrategyTree:
		err = m.swap(StrategyTree)
	}
	if err != nil {
		m.worldBounds, m.hasBounds = prev, hadBounds
	}
	return err
}

func (m *Manager[E]) WorldBounds() BB {
	return m.worldBounds
}

// SetCellSize sets the cell size of the SpatialHash, rehashing an active
// grid. Invalid sizes are rejected and the previous size kept.
func (m *Manager[E]) SetCellSize(cellSize float64) error {
	if !validCellSize(cellSize) {
		return errors.New("invalid cell size").
			WithType(ErrTypeInvalidConfig).
			WithTag("cell_size", cellSize)
	}

	if hash, ok := m.index.(*SpatialHash[E]); ok {
		if err := hash.SetCellSize(cellSize); err != nil {
			return err
		}
	}
	m.cellSize = cellSize
	return nil
}

func (m *Manager[E]) CellSize() float64 {
	return m.cellSize
}

// CurrentStrategy returns the kind of the active index, or StrategyNone.
func (m *Manager[E]) CurrentStrategy() Strategy {
	return m.active
}

// StrategyName returns the name of the active index kind.
func (m *Manager[E]) StrategyName() string {
	switch m.active {
	case StrategyTree:
		return "QuadTree"
	case StrategyGrid:
		return "SpatialHash"
	}
	return "None"
}

// Stats returns the queries answered since creation or the last ResetStats.
func (m *Manager[E]) Stats() QueryStats {
	return m.stats
}

func (m *Manager[E]) ResetStats() {
	m.stats = QueryStats{}
}

// DebugInfo returns a one line summary of the manager.
func (m *Manager[E]) DebugInfo() string {
	return fmt.Sprintf("%s (%s) - Entities: %d - Queries: %d, avg %v",
		m.StrategyName(), m.strategy, m.Count(), m.stats.Queries, m.stats.Average())
}
