package metrics

import (
	"sync/atomic"
	"time"
)

// ID names a counter slot.
type ID uint16

const (
	LoginSuccess ID = iota
	LoginFailure
	SecondFactorRequired
	SecondFactorSuccess
	SecondFactorFailure
	SecondFactorBypassed
	SecondFactorAttemptsExceeded
	SessionCreated
	SessionValidated
	SessionRejected
	SessionRevoked
	RegistrationSuccess
	RegistrationDuplicate
	PermissionDenied
	AccountDeactivated
	PasswordRehashed
	ValidateLatency
	idCount
)

var names = [idCount]string{
	LoginSuccess:                 "login_success",
	LoginFailure:                 "login_failure",
	SecondFactorRequired:         "second_factor_required",
	SecondFactorSuccess:          "second_factor_success",
	SecondFactorFailure:          "second_factor_failure",
	SecondFactorBypassed:         "second_factor_bypassed",
	SecondFactorAttemptsExceeded: "second_factor_attempts_exceeded",
	SessionCreated:               "session_created",
	SessionValidated:             "session_validated",
	SessionRejected:              "session_rejected",
	SessionRevoked:               "session_revoked",
	RegistrationSuccess:          "registration_success",
	RegistrationDuplicate:        "registration_duplicate",
	PermissionDenied:             "permission_denied",
	AccountDeactivated:           "account_deactivated",
	PasswordRehashed:             "password_rehashed",
	ValidateLatency:              "validate_latency",
}

// String returns the snake_case name used in logs and exports.
func (id ID) String() string {
	if id >= idCount {
		return "unknown"
	}
	return names[id]
}

// IDs lists every defined metric in declaration order.
func IDs() []ID {
	out := make([]ID, 0, int(idCount))
	for id := ID(0); id < idCount; id++ {
		out = append(out, id)
	}
	return out
}

const (
	// BucketCount is the number of latency histogram buckets.
	BucketCount   = 8
	cacheLineSize = 64
)

// BucketBounds are the inclusive upper bounds of the first seven buckets.
// The last bucket is unbounded.
var BucketBounds = [BucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type histogram struct {
	buckets [BucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls which parts of the collector are active.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics is a fixed-size set of atomic counters plus the validate latency
// histogram. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [idCount]paddedCounter
	histograms    [idCount]histogram
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
}

// New creates a collector.
func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only ValidateLatency carries a
// histogram; other ids are ignored.
func (m *Metrics) Observe(id ID, d time.Duration) {
	if m == nil || !m.enableLatency || id != ValidateLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current counter for id.
func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. A disabled collector returns empty maps.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[ID]uint64{},
			Histograms: map[ID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[ID]uint64, int(idCount)),
		Histograms: make(map[ID][]uint64, 1),
	}
	for id := ID(0); id < idCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, BucketCount)
		for i := 0; i < BucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[ValidateLatency].buckets[i])
		}
		s.Histograms[ValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range BucketBounds {
		if d <= bound {
			return i
		}
	}
	return BucketCount - 1
}
