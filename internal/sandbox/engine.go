package sandbox

import (
	"math"
	"sync"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v25"

	"github.com/ipvm-wg/homestar/internal/invocation"
)

// DefaultLimits are applied to a task whose Meta leaves a field unset,
// per the sandbox lifecycle's documented defaults.
var DefaultLimits = Limits{
	Fuel:    0, // 0 means no fuel limit
	Memory:  4 << 30,
	Timeout: 100 * time.Second,
}

// Limits is the resolved, always-populated form of invocation.Resources.
type Limits struct {
	Fuel    uint64
	Memory  uint64
	Timeout time.Duration
}

// ResolveLimits fills in any unset field of a task's Meta with the
// sandbox defaults.
func ResolveLimits(meta invocation.Resources) Limits {
	l := DefaultLimits
	if meta.Fuel != nil {
		l.Fuel = *meta.Fuel
	}
	if meta.Memory != nil {
		l.Memory = *meta.Memory
	}
	if meta.Time != nil {
		l.Timeout = *meta.Time
	}
	return l
}

// Engine owns a wasmtime.Engine configured for fuel metering and epoch
// interruption, and a CID-keyed cache of compiled modules so repeated
// invocations of the same resource skip recompilation.
type Engine struct {
	engine *wasmtime.Engine

	mu      sync.RWMutex
	modules map[string]*wasmtime.Module

	epochTicker *time.Ticker
	stopEpoch   chan struct{}
}

// NewEngine builds a metering-capable wasmtime engine and starts the
// background epoch ticker used to enforce wall-clock timeouts: every
// tick increments the engine's epoch, and a call configured with
// SetEpochDeadline traps once enough ticks elapse.
func NewEngine() *Engine {
	cfg := wasmtime.NewConfig()
	cfg.SetConsumeFuel(true)
	cfg.SetEpochInterruption(true)

	e := &Engine{
		engine:      wasmtime.NewEngineWithConfig(cfg),
		modules:     make(map[string]*wasmtime.Module),
		epochTicker: time.NewTicker(50 * time.Millisecond),
		stopEpoch:   make(chan struct{}),
	}
	go e.tickEpoch()
	return e
}

func (e *Engine) tickEpoch() {
	for {
		select {
		case <-e.epochTicker.C:
			e.engine.IncrementEpoch()
		case <-e.stopEpoch:
			return
		}
	}
}

// Close stops the epoch ticker. The underlying wasmtime.Engine is
// reference-counted by wasmtime-go itself and freed once every Store
// and Module referencing it is dropped.
func (e *Engine) Close() {
	e.epochTicker.Stop()
	close(e.stopEpoch)
}

// Module compiles (or returns the cached compilation of) the module at
// the given CID key, adapting a bare core module the same way
// regardless of whether the originating toolchain emitted it as a
// freestanding core module or extracted it from a component: this
// sandbox always talks to guest code through the linear-memory
// alloc/call convention described in call.go, so "adaptation" here is
// simply compiling the bytes once and keying the result by CID.
func (e *Engine) Module(cidKey string, wasmBytes []byte) (*wasmtime.Module, error) {
	e.mu.RLock()
	if m, ok := e.modules[cidKey]; ok {
		e.mu.RUnlock()
		return m, nil
	}
	e.mu.RUnlock()

	m, err := wasmtime.NewModule(e.engine, wasmBytes)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.modules[cidKey] = m
	e.mu.Unlock()
	return m, nil
}

func (e *Engine) newLimitedStore(l Limits) (*wasmtime.Store, error) {
	store := wasmtime.NewStore(e.engine)

	// A metered store starts with no fuel, so "no limit" is the maximum.
	fuel := l.Fuel
	if fuel == 0 {
		fuel = math.MaxInt64
	}
	if err := store.SetFuel(fuel); err != nil {
		return nil, err
	}

	// epoch deadline is measured in ticks of the 50ms ticker above; round
	// up so a short timeout still gets at least one tick.
	ticks := uint64(l.Timeout/(50*time.Millisecond)) + 1
	store.SetEpochDeadline(ticks)

	limiter := wasmtime.NewStoreLimits(int64(l.Memory), -1, -1, -1, -1)
	store.Limiter(limiter)

	return store, nil
}
