package manager

import "time"

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 8
	defaultMaxWait       = 30 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Adapter is the recognition backend. Nil leaves the manager in the
	// error state: every generation fails fast with ErrModelUnavailable.
	Adapter InferenceAdapter
	// LoadErr explains why Adapter is nil, surfaced in /status.
	LoadErr string
	// Tokenizer re-tokenizes output for throughput; nil uses WordTokenizer.
	Tokenizer Tokenizer
	// MetricsLogPath is the append-only metrics log; empty discards records.
	MetricsLogPath string
	// Recorder overrides MetricsLogPath/Tokenizer when set (tests).
	Recorder *MetricsRecorder

	MaxQueueDepth int
	MaxWait       time.Duration
	MaxFragments  int

	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:     StateReady,
		adapter:   cfg.Adapter,
		pub:       cfg.Publisher,
		startTime: time.Now(),
	}
	if m.adapter == nil {
		m.state = StateError
		m.err = cfg.LoadErr
		if m.err == "" {
			m.err = ErrModelUnavailable.Error()
		}
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.MaxFragments <= 0 {
		m.maxFragments = defaultMaxFragments
	} else {
		m.maxFragments = cfg.MaxFragments
	}
	m.genCh = make(chan struct{}, 1)
	m.queueCh = make(chan struct{}, m.maxQueueDepth)

	m.recorder = cfg.Recorder
	if m.recorder == nil {
		rec, err := NewMetricsRecorder(cfg.MetricsLogPath, cfg.Tokenizer)
		if err != nil {
			// The metrics log is best effort; keep serving without it.
			logger().Warn().Err(err).Str("path", cfg.MetricsLogPath).Msg("metrics log disabled")
			rec, _ = NewMetricsRecorder("", cfg.Tokenizer)
		}
		m.recorder = rec
	}
	return m
}
