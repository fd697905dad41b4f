package simulator

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sguter90/heatmaestro/pkg/models"
	"go.uber.org/zap"
)

// Ranges of the synthetic readings
const (
	MinTemperature = 22.0
	MaxTemperature = 30.0
	MinHumidity    = 35.0
	MaxHumidity    = 65.0
)

const emitTimeout = 10 * time.Second

// IngestFunc hands a generated reading to the ingestion path
type IngestFunc func(ctx context.Context, in models.ReadingInput) error

// Options configures a Generator. Ingest and Active are required.
type Options struct {
	Ingest IngestFunc
	// Active is consulted on every tick, emission is skipped when it returns false
	Active   func() bool
	Interval time.Duration
	Rand     *rand.Rand
	Logger   *zap.Logger
}

// Generator emits one synthetic reading per interval while the simulator is active
type Generator struct {
	ingest   IngestFunc
	active   func() bool
	interval time.Duration
	rng      *rand.Rand
	rngMu    sync.Mutex
	log      *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	reset    chan time.Duration
}

// NewGenerator creates a stopped Generator
func NewGenerator(opts Options) *Generator {
	g := &Generator{
		ingest:   opts.Ingest,
		active:   opts.Active,
		interval: opts.Interval,
		rng:      opts.Rand,
		log:      opts.Logger,
	}
	if g.interval <= 0 {
		g.interval = models.DefaultIntervalSeconds * time.Second
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	if g.active == nil {
		g.active = func() bool { return true }
	}
	return g
}

// Start begins the emission loop. Calling Start on a running generator is a no-op.
func (g *Generator) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}

	g.running = true
	g.stopChan = make(chan struct{})
	g.done = make(chan struct{})
	g.reset = make(chan time.Duration, 1)
	go g.run(g.interval, g.stopChan, g.done, g.reset)

	g.log.Info("Simulator started", zap.Duration("interval", g.interval))
}

// Stop halts the loop and waits for it to exit. The generator can be started again.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.stopChan)
	done := g.done
	g.mu.Unlock()

	<-done
	g.log.Info("Simulator stopped")
}

// Running reports whether the loop is active
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Interval returns the current emission interval
func (g *Generator) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.interval
}

// SetInterval changes the emission interval, taking effect on the running loop
func (g *Generator) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if d == g.interval {
		return
	}
	g.interval = d
	g.log.Info("Simulator interval changed", zap.Duration("interval", d))

	if !g.running {
		return
	}
	// keep only the newest pending value
	select {
	case <-g.reset:
	default:
	}
	g.reset <- d
}

func (g *Generator) run(interval time.Duration, stop <-chan struct{}, done chan<- struct{}, reset <-chan time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case d := <-reset:
			ticker.Reset(d)
		case <-ticker.C:
			g.Tick()
		}
	}
}

// Tick runs one emission step: it skips when the simulator is inactive,
// otherwise it generates and ingests a reading. It reports whether a
// reading was emitted.
func (g *Generator) Tick() bool {
	if !g.active() {
		g.log.Debug("Simulator inactive, skipping tick")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	in := g.Generate()
	if err := g.ingest(ctx, in); err != nil {
		g.log.Error("Failed to ingest simulated reading", zap.Error(err))
		return false
	}
	return true
}

// Generate draws a reading from the configured ranges, rounded to one decimal
func (g *Generator) Generate() models.ReadingInput {
	g.rngMu.Lock()
	t := MinTemperature + g.rng.Float64()*(MaxTemperature-MinTemperature)
	h := MinHumidity + g.rng.Float64()*(MaxHumidity-MinHumidity)
	g.rngMu.Unlock()

	return models.ReadingInput{
		Temperature: round1(t),
		Humidity:    round1(h),
		Origin:      models.OriginSimulator,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
