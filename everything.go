package spatial

import "github.com/aukilabs/go-tooling/pkg/errors"

const (
	// DefaultCellSize is the side length of a SpatialHash cell.
	DefaultCellSize float64 = 64
	// DefaultMaxObjects is the number of objects a QuadTree leaf holds before it splits.
	DefaultMaxObjects int = 10
	// DefaultMaxLevels is the depth at which QuadTree nodes stop splitting.
	DefaultMaxLevels int = 5
	// DefaultTreeThreshold is the population at or below which StrategyAuto selects the QuadTree.
	DefaultTreeThreshold int = 1000
	// DefaultHashThreshold is the population at or above which StrategyAuto selects the SpatialHash.
	DefaultHashThreshold int = 5000

	pooledBufferSize int = 64
)

// DefaultWorldBounds is used when a Manager receives entities before any
// world bounds were set.
var DefaultWorldBounds = NewBBForRect(0, 0, 10000, 10000)

// Strategy selects the concrete structure behind a Manager.
type Strategy int

const (
	// StrategyAuto picks a structure from the population size.
	StrategyAuto Strategy = iota
	// StrategyTree pins the QuadTree.
	StrategyTree
	// StrategyGrid pins the SpatialHash.
	StrategyGrid

	// StrategyNone is reported by a Manager that has not built an index yet.
	StrategyNone Strategy = -1
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "Auto"
	case StrategyTree:
		return "Tree"
	case StrategyGrid:
		return "Grid"
	case StrategyNone:
		return "None"
	default:
		return "Unknown"
	}
}

// ParseStrategy parses the case sensitive names returned by Strategy.String
// along with their lower case forms.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "Auto", "auto":
		return StrategyAuto, nil
	case "Tree", "tree", "QuadTree", "quadtree":
		return StrategyTree, nil
	case "Grid", "grid", "SpatialHash", "hash":
		return StrategyGrid, nil
	}
	return StrategyAuto, errors.New("unknown strategy").
		WithType(ErrTypeInvalidConfig).
		WithTag("strategy", s)
}
