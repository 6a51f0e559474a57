package metrics

import "sync"

const (
	FramesReceived     = "frames_received"
	FramesForwarded    = "frames_forwarded"
	FramesThrottled    = "frames_throttled"
	FramesEmpty        = "frames_empty"
	DecodeFailures     = "decode_failures"
	PerceptionFailures = "perception_failures"
	PerceptionRejected = "perception_rejected"
	ResultsPublished   = "results_published"
	SignalsRelayed     = "signals_relayed"
	SignalsMalformed   = "signals_malformed"
	EventsRateLimited  = "events_rate_limited"
	BackpressureDrops  = "backpressure_drops"
	MembersKicked      = "members_kicked"
	SessionsCreated    = "sessions_created"
	SessionsReaped     = "sessions_reaped"
	SnapshotsServed    = "snapshots_served"
)

// help is the HELP line of each known counter family.
var help = map[string]string{
	FramesReceived:     "Frames received from cameras, including empty ones.",
	FramesForwarded:    "Raw frames relayed to room peers.",
	FramesThrottled:    "Frames withheld from peers by the throttle interval.",
	FramesEmpty:        "Frame events without a blob.",
	DecodeFailures:     "Frames that could not be decoded, by reason.",
	PerceptionFailures: "Perception adapter errors.",
	PerceptionRejected: "Perception jobs refused by the worker pool.",
	ResultsPublished:   "Perception results published to rooms.",
	SignalsRelayed:     "Signaling messages relayed, by kind.",
	SignalsMalformed:   "Signaling messages that failed validation, by kind.",
	EventsRateLimited:  "Inbound events dropped by the per-connection limiter.",
	BackpressureDrops:  "Outbound messages dropped on full send queues, by message kind.",
	MembersKicked:      "Connections closed by the backpressure policy.",
	SessionsCreated:    "Session ids minted.",
	SessionsReaped:     "Idle sessions released by the reaper.",
	SnapshotsServed:    "Cached frames served on viewer_request.",
}

// Metrics is a minimal, concurrency-safe counter registry. A counter can be
// split by kind; its total is always kept alongside.
// A nil *Metrics is valid and drops every update.
type Metrics struct {
	mu    sync.Mutex
	m     map[string]uint64
	kinds map[string]map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m:     make(map[string]uint64),
		kinds: make(map[string]map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) { m.Add(name, 1) }

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += n
	m.mu.Unlock()
}

// IncKind bumps name and its kind breakdown, e.g. SignalsRelayed by "offer".
func (m *Metrics) IncKind(name, kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	if m.kinds == nil {
		m.kinds = make(map[string]map[string]uint64)
	}
	m.m[name]++
	byKind, ok := m.kinds[name]
	if !ok {
		byKind = make(map[string]uint64)
		m.kinds[name] = byKind
	}
	byKind[kind]++
	m.mu.Unlock()
}

// Get returns the total of name across all kinds.
func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) GetKind(name, kind string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kinds[name][kind]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

// KindSnapshot copies the per-kind breakdowns.
func (m *Metrics) KindSnapshot() map[string]map[string]uint64 {
	out := make(map[string]map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, byKind := range m.kinds {
		cp := make(map[string]uint64, len(byKind))
		for k, v := range byKind {
			cp[k] = v
		}
		out[name] = cp
	}
	return out
}
