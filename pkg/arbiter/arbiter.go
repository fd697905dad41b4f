package arbiter

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDeviceMarker is matched case-insensitively against reading origins
	DefaultDeviceMarker = "raspberry"
	// DefaultInactivity is how long a real device may stay silent before the
	// simulator takes over again
	DefaultInactivity = 60 * time.Second
)

// State names the source currently trusted
type State string

const (
	StateSimulating State = "simulating"
	StateRealDevice State = "real_device"
	// StateWaiting is reported when the simulator is disabled and no real
	// device has been seen recently
	StateWaiting State = "waiting"
)

// Snapshot is a copy of the arbitration state
type Snapshot struct {
	State              State     `json:"state"`
	SimulatorEnabled   bool      `json:"simulator_enabled"`
	SimulatorActive    bool      `json:"simulator_active"`
	RealDeviceDetected bool      `json:"real_device_detected"`
	LastRealDevice     time.Time `json:"last_real_device,omitempty"`
}

// Options configures an Arbiter
type Options struct {
	// SimulatorEnabled is false when the process was started without a generator
	SimulatorEnabled bool
	DeviceMarker     string
	Inactivity       time.Duration
	Now              func() time.Time
	Logger           *zap.Logger
	// OnChange is called after every transition, with the arbiter lock held
	OnChange func(Snapshot)
}

// Arbiter decides whether simulated or real-device readings are
// authoritative. State only changes inside Observe, which the ingestion path
// calls once per reading; there is no background timer, so a silent device
// is only noticed when the next reading of any origin arrives.
type Arbiter struct {
	mu                 sync.RWMutex
	simulatorEnabled   bool
	simulatorActive    bool
	realDeviceDetected bool
	lastRealDevice     time.Time

	marker     string
	inactivity time.Duration
	now        func() time.Time
	log        *zap.Logger
	onChange   func(Snapshot)
}

// New creates an Arbiter in the Simulating state, or in the waiting state
// when the simulator is disabled
func New(opts Options) *Arbiter {
	a := &Arbiter{
		simulatorEnabled: opts.SimulatorEnabled,
		simulatorActive:  opts.SimulatorEnabled,
		marker:           strings.ToLower(strings.TrimSpace(opts.DeviceMarker)),
		inactivity:       opts.Inactivity,
		now:              opts.Now,
		log:              opts.Logger,
		onChange:         opts.OnChange,
	}
	if a.marker == "" {
		a.marker = DefaultDeviceMarker
	}
	if a.inactivity <= 0 {
		a.inactivity = DefaultInactivity
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	return a
}

// IsRealDevice reports whether an origin tag identifies the hardware source
func (a *Arbiter) IsRealDevice(origin string) bool {
	return strings.Contains(strings.ToLower(origin), a.marker)
}

// Observe updates the state for an incoming reading and returns the
// resulting snapshot. A real-device reading refreshes the liveness clock
// first, then the inactivity check runs for every reading.
func (a *Arbiter) Observe(origin string) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	changed := false

	if a.IsRealDevice(origin) {
		if !a.realDeviceDetected || a.simulatorActive {
			changed = true
		}
		a.realDeviceDetected = true
		a.lastRealDevice = now
		if a.simulatorActive {
			a.log.Info("Real device detected, disabling simulator", zap.String("origin", origin))
			a.simulatorActive = false
		}
	}

	if a.realDeviceDetected && now.Sub(a.lastRealDevice) > a.inactivity {
		a.realDeviceDetected = false
		changed = true
		if a.simulatorEnabled {
			a.simulatorActive = true
			a.log.Warn("Real device inactive, re-enabling simulator",
				zap.Duration("silent_for", now.Sub(a.lastRealDevice)))
		} else {
			a.log.Warn("Real device inactive, simulator disabled, waiting for readings",
				zap.Duration("silent_for", now.Sub(a.lastRealDevice)))
		}
	}

	snap := a.snapshotLocked()
	if changed && a.onChange != nil {
		a.onChange(snap)
	}
	return snap
}

// SimulatorActive reports whether the generator should emit readings
func (a *Arbiter) SimulatorActive() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.simulatorActive
}

// Snapshot returns the current state
func (a *Arbiter) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

func (a *Arbiter) snapshotLocked() Snapshot {
	s := Snapshot{
		SimulatorEnabled:   a.simulatorEnabled,
		SimulatorActive:    a.simulatorActive,
		RealDeviceDetected: a.realDeviceDetected,
		LastRealDevice:     a.lastRealDevice,
	}
	switch {
	case a.simulatorActive:
		s.State = StateSimulating
	case a.realDeviceDetected:
		s.State = StateRealDevice
	default:
		s.State = StateWaiting
	}
	return s
}
