package manager

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"ocrd/internal/common/fsutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Outcome is the terminal state of a generation as seen by its consumer.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeErrored   Outcome = "errored"
)

// GenerationMetrics is computed once per streaming request and never mutated afterwards.
type GenerationMetrics struct {
	ID        string
	ImageSize string
	Mode      Mode
	Outcome   Outcome
	// HasFirst is false when no fragment was produced; TTFT, Tokens and
	// Throughput are then meaningless and omitted from the record.
	HasFirst   bool
	TTFT       time.Duration
	Total      time.Duration
	Tokens     int
	Throughput float64
}

// ComputeMetrics derives latency and throughput from the request timeline.
// Throughput is (tokens-1) over the time between first fragment and end,
// and zero when that window is empty or fewer than two tokens were produced.
func ComputeMetrics(start, first, end time.Time, hasFirst bool, tokens int) GenerationMetrics {
	m := GenerationMetrics{Total: end.Sub(start)}
	if m.Total < 0 {
		m.Total = 0
	}
	if !hasFirst {
		return m
	}
	m.HasFirst = true
	m.TTFT = first.Sub(start)
	if m.TTFT < 0 {
		m.TTFT = 0
	}
	m.Tokens = tokens
	gen := m.Total - m.TTFT
	if tokens > 1 && gen > 0 {
		m.Throughput = float64(tokens-1) / gen.Seconds()
	}
	return m
}

var (
	genTTFT = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocrd",
			Subsystem: "generation",
			Name:      "time_to_first_fragment_seconds",
			Help:      "Time from request start to the first generated fragment",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"mode"},
	)
	genDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocrd",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Total wall-clock duration of streaming generations",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"mode", "outcome"},
	)
	genThroughput = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocrd",
			Subsystem: "generation",
			Name:      "tokens_per_second",
			Help:      "Re-tokenized throughput after the first fragment",
			Buckets:   []float64{1, 5, 10, 15, 20, 30, 40, 60, 80, 120},
		},
		[]string{"mode"},
	)
	genOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrd",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Generations by terminal outcome",
		},
		[]string{"mode", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(genTTFT, genDuration, genThroughput, genOutcomes)
}

// MetricsRecorder appends one human-readable line per streaming request to a
// durable log. Write failures are reported on the service logger only.
type MetricsRecorder struct {
	tok    Tokenizer
	mu     sync.Mutex
	out    *captureWriter
	rec    zerolog.Logger
	closer io.Closer
}

// captureWriter remembers the last write error so Record can report it;
// zerolog itself swallows writer errors.
type captureWriter struct {
	w   io.Writer
	err error
}

func (c *captureWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		c.err = err
	}
	return n, err
}

// NewMetricsRecorder opens (or creates) the append-only log at path.
// An empty path discards records.
func NewMetricsRecorder(path string, tok Tokenizer) (*MetricsRecorder, error) {
	if path == "" {
		return NewMetricsRecorderWriter(io.Discard, tok), nil
	}
	if err := fsutil.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("metrics log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics log: %w", err)
	}
	r := NewMetricsRecorderWriter(f, tok)
	r.closer = f
	return r, nil
}

// NewMetricsRecorderWriter records to w.
func NewMetricsRecorderWriter(w io.Writer, tok Tokenizer) *MetricsRecorder {
	if tok == nil {
		tok = WordTokenizer{}
	}
	cw := &captureWriter{w: zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}}
	return &MetricsRecorder{
		tok: tok,
		out: cw,
		rec: zerolog.New(cw).With().Timestamp().Logger(),
	}
}

// Count re-tokenizes text, falling back to WordTokenizer when the configured
// tokenizer fails.
func (r *MetricsRecorder) Count(ctx context.Context, text string) int {
	if text == "" {
		return 0
	}
	n, err := r.tok.Count(ctx, text)
	if err == nil {
		return n
	}
	logger().Warn().Err(err).Msg("tokenizer failed; using word count")
	n, _ = WordTokenizer{}.Count(ctx, text)
	return n
}

// Record writes m to the durable log and observes the Prometheus series.
func (r *MetricsRecorder) Record(m GenerationMetrics) {
	mode := string(m.Mode)
	genOutcomes.WithLabelValues(mode, string(m.Outcome)).Inc()
	genDuration.WithLabelValues(mode, string(m.Outcome)).Observe(m.Total.Seconds())
	if m.HasFirst {
		genTTFT.WithLabelValues(mode).Observe(m.TTFT.Seconds())
		if m.Throughput > 0 {
			genThroughput.WithLabelValues(mode).Observe(m.Throughput)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.err = nil
	ev := r.rec.Info().
		Str("id", m.ID).
		Str("outcome", string(m.Outcome)).
		Str("image_size", m.ImageSize).
		Str("mode", mode)
	if m.HasFirst {
		ev = ev.Str("ttft", fmtSeconds(m.TTFT)).
			Str("total", fmtSeconds(m.Total)).
			Int("tokens", m.Tokens).
			Str("tokens_per_sec", fmt.Sprintf("%.2f", m.Throughput))
	} else {
		ev = ev.Str("total", fmtSeconds(m.Total))
	}
	ev.Msg("generation")
	if r.out.err != nil {
		logger().Error().Err(r.out.err).Str("id", m.ID).Msg("metrics log write failed")
	}
}

// Close closes the underlying log file, if any, and the tokenizer when it
// holds resources.
func (r *MetricsRecorder) Close() error {
	var first error
	if c, ok := r.tok.(io.Closer); ok {
		first = c.Close()
	}
	if r.closer != nil {
		if err := r.closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func fmtSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
