package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	spatial "github.com/ChestnutYueyue/Extra2D-sub001"
	"github.com/ChestnutYueyue/Extra2D-sub001/internal/sim"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "spatialdemo_info",
		Help:        "Spatial demo information.",
		ConstLabels: prometheus.Labels{"version": version},
	})

	frameSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spatialdemo_frame_seconds",
		Help:    "The time spent moving bodies and enumerating collisions per frame.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	collisionGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatialdemo_collisions",
		Help: "The number of colliding pairs in the last frame.",
	})
)

type config struct {
	AdminAddr       string        `cli:""        env:"SPATIAL_ADMIN_ADDR"        help:"Admin listening address. Empty disables it."`
	LogLevel        string        `cli:""        env:"SPATIAL_LOG_LEVEL"         help:"Log level (debug|info|warning|error)."`
	LogIndent       bool          `cli:""        env:"SPATIAL_LOG_INDENT"        help:"Indent logs."`
	Strategy        string        `cli:""        env:"SPATIAL_STRATEGY"          help:"Index strategy (auto|tree|grid)."`
	Bodies          int           `cli:""        env:"SPATIAL_BODIES"            help:"The number of bodies at start."`
	MaxBodies       int           `cli:""        env:"SPATIAL_MAX_BODIES"        help:"The number of bodies bursts grow to before shrinking back."`
	Burst           int           `cli:""        env:"SPATIAL_BURST"             help:"The number of bodies added or removed per burst."`
	BurstInterval   int           `cli:""        env:"SPATIAL_BURST_INTERVAL"    help:"The number of frames between bursts. 0 disables bursts."`
	Frames          int           `cli:""        env:"SPATIAL_FRAMES"            help:"The number of frames to run. 0 runs until interrupted."`
	FrameDuration   time.Duration `cli:""        env:"SPATIAL_FRAME_DURATION"    help:"The duration of a frame."`
	SummaryInterval int           `cli:""        env:"SPATIAL_SUMMARY_INTERVAL"  help:"The number of frames between frame summary logs."`
	Seed            int64         `cli:""        env:"SPATIAL_SEED"              help:"Random seed."`
	World           worldConfig   `cli:""        env:"-"                         help:"World configuration."`
	Index           indexConfig   `cli:",hidden" env:"-"                         help:"Index configuration."`
	Version         bool          `cli:""        env:"-"                         help:"Show version."`
	Help            bool          `cli:""        env:"-"                         help:"Show help."`
}

type worldConfig struct {
	Width    float64 `cli:"" env:"SPATIAL_WORLD_WIDTH"     help:"World width."`
	Height   float64 `cli:"" env:"SPATIAL_WORLD_HEIGHT"    help:"World height."`
	BoxSize  float64 `cli:"" env:"SPATIAL_WORLD_BOX_SIZE"  help:"Body side length."`
	MaxSpeed float64 `cli:"" env:"SPATIAL_WORLD_MAX_SPEED" help:"Maximum body speed per axis."`
}

type indexConfig struct {
	CellSize      float64 `cli:",hidden" env:"SPATIAL_CELL_SIZE"      help:"Hash grid cell size."`
	TreeThreshold int     `cli:",hidden" env:"SPATIAL_TREE_THRESHOLD" help:"Population at or below which auto uses the quad tree."`
	HashThreshold int     `cli:",hidden" env:"SPATIAL_HASH_THRESHOLD" help:"Population at or above which auto uses the hash grid."`
	MaxObjects    int     `cli:",hidden" env:"SPATIAL_MAX_OBJECTS"    help:"Quad tree leaf capacity."`
	MaxLevels     int     `cli:",hidden" env:"SPATIAL_MAX_LEVELS"     help:"Quad tree depth limit."`
}

func main() {
	world := sim.DefaultConfig()
	conf := config{
		AdminAddr:       ":18191",
		LogLevel:        logs.InfoLevel.String(),
		Strategy:        spatial.StrategyAuto.String(),
		Bodies:          1000,
		MaxBodies:       6000,
		Burst:           500,
		BurstInterval:   60,
		FrameDuration:   time.Second / 60,
		SummaryInterval: 60,
		Seed:            time.Now().UnixNano(),
		World: worldConfig{
			Width:    world.Width,
			Height:   world.Height,
			BoxSize:  world.BoxSize,
			MaxSpeed: world.MaxSpeed,
		},
		Index: indexConfig{
			CellSize:      spatial.DefaultCellSize,
			TreeThreshold: spatial.DefaultTreeThreshold,
			HashThreshold: spatial.DefaultHashThreshold,
			MaxObjects:    spatial.DefaultMaxObjects,
			MaxLevels:     spatial.DefaultMaxLevels,
		},
	}

	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Runs a headless bouncing box simulation on top of the adaptive spatial index.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}
	errors.Encoder = json.Marshal

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	strategy, err := spatial.ParseStrategy(conf.Strategy)
	if err != nil {
		logs.Fatal(err)
	}

	w, err := sim.NewWorld(sim.Config{
		Width:    conf.World.Width,
		Height:   conf.World.Height,
		BoxSize:  conf.World.BoxSize,
		MaxSpeed: conf.World.MaxSpeed,
	}, rand.New(rand.NewSource(conf.Seed)),
		spatial.WithName("spatialdemo"),
		spatial.WithStrategy(strategy),
		spatial.WithCellSize(conf.Index.CellSize),
		spatial.WithAutoThresholds(conf.Index.TreeThreshold, conf.Index.HashThreshold),
		spatial.WithTreeLimits(conf.Index.MaxObjects, conf.Index.MaxLevels),
	)
	if err != nil {
		logs.Fatal(errors.New("creating world failed").Wrap(err))
	}
	if _, err := w.Spawn(conf.Bodies); err != nil {
		logs.Fatal(errors.New("spawning bodies failed").Wrap(err))
	}

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("strategy", strategy.String()).
		WithTag("bodies", conf.Bodies).
		WithTag("seed", conf.Seed).
		Info("starting spatial demo")

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	if conf.AdminAddr != "" {
		var admin http.ServeMux
		admin.Handle("/metrics", promhttp.Handler())
		admin.HandleFunc("/health", handleHealthCheck)

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveAdmin(runCtx, &http.Server{
				Addr:    conf.AdminAddr,
				Handler: metrics.HTTPHandler(&admin, metricsPathFormatter),
			})
		}()
	}

	run(runCtx, w, conf)
	stop()
	wg.Wait()

	logs.WithTag("frames", conf.Frames).
		WithTag("bodies", w.Len()).
		WithTag("spatial", w.Manager().DebugInfo()).
		Info("spatial demo stopped")
}

func run(ctx context.Context, w *sim.World, conf config) {
	ticker := time.NewTicker(conf.FrameDuration)
	defer ticker.Stop()

	growing := true
	for frame := 1; conf.Frames == 0 || frame <= conf.Frames; frame++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if conf.BurstInterval > 0 && frame%conf.BurstInterval == 0 {
			growing = burst(w, conf, growing)
		}

		stats := w.Step(conf.FrameDuration)
		frameSeconds.Observe((stats.UpdateTime + stats.CollisionTime).Seconds())
		collisionGauge.Set(float64(stats.Collisions))

		if conf.SummaryInterval > 0 && frame%conf.SummaryInterval == 0 {
			logs.WithTag("frame", stats).Info("frame summary")
		}
	}
}

// burst grows the world towards MaxBodies, then shrinks it back to Bodies,
// so the population crosses the auto thresholds in both directions.
func burst(w *sim.World, conf config, growing bool) bool {
	if growing && w.Len()+conf.Burst > conf.MaxBodies {
		growing = false
	} else if !growing && w.Len()-conf.Burst < conf.Bodies {
		growing = true
	}

	if !growing {
		w.Despawn(conf.Burst)
		return growing
	}

	if _, err := w.Spawn(conf.Burst); err != nil {
		logs.Warn(errors.New("spawning bodies failed").Wrap(err))
	}
	return growing
}

func validateConfig(conf config) error {
	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.Bodies < 0 || conf.Burst < 0 || conf.Frames < 0 {
		return errors.New("negative count").
			WithTag("bodies", conf.Bodies).
			WithTag("burst", conf.Burst).
			WithTag("frames", conf.Frames)
	}

	if conf.MaxBodies < conf.Bodies {
		return errors.New("max bodies must not be lower than bodies").
			WithTag("bodies", conf.Bodies).
			WithTag("max_bodies", conf.MaxBodies)
	}

	return nil
}
