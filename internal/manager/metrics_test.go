package manager

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestComputeMetrics(t *testing.T) {
	start := time.Unix(1000, 0)
	first := start.Add(500 * time.Millisecond)
	end := start.Add(2500 * time.Millisecond)

	m := ComputeMetrics(start, first, end, true, 41)
	if m.TTFT != 500*time.Millisecond || m.Total != 2500*time.Millisecond {
		t.Fatalf("ttft=%v total=%v", m.TTFT, m.Total)
	}
	if math.Abs(m.Throughput-20) > 1e-9 {
		t.Fatalf("throughput = %v, want 20", m.Throughput)
	}

	if m := ComputeMetrics(start, first, end, true, 1); m.Throughput != 0 {
		t.Fatalf("single token throughput = %v", m.Throughput)
	}
	if m := ComputeMetrics(start, end, end, true, 10); m.Throughput != 0 {
		t.Fatalf("empty generation window throughput = %v", m.Throughput)
	}
	m = ComputeMetrics(start, time.Time{}, end, false, 0)
	if m.HasFirst || m.TTFT != 0 || m.Total != 2500*time.Millisecond {
		t.Fatalf("no-first metrics = %+v", m)
	}
}

func TestMetricsRecorder_RecordFormats(t *testing.T) {
	var buf bytes.Buffer
	r := NewMetricsRecorderWriter(&buf, nil)
	r.Record(GenerationMetrics{
		ID: "g1", ImageSize: "800x600", Mode: ModeText, Outcome: OutcomeCompleted,
		HasFirst: true, TTFT: 250 * time.Millisecond, Total: 1250 * time.Millisecond,
		Tokens: 11, Throughput: 10,
	})
	line := buf.String()
	for _, want := range []string{"generation", "id=g1", "image_size=800x600", "mode=text", "ttft=0.250s", "total=1.250s", "tokens=11", "tokens_per_sec=10.00"} {
		if !strings.Contains(line, want) {
			t.Fatalf("record missing %q: %s", want, line)
		}
	}
}

func TestMetricsRecorder_WriteFailureIsSwallowed(t *testing.T) {
	r := NewMetricsRecorderWriter(&errWriter{}, nil)
	m := GenerationMetrics{ID: "x", Mode: ModeTable, Outcome: OutcomeAborted}
	r.Record(m)
	r.Record(m)
	if r.out.err == nil {
		t.Fatalf("expected the second write failure to be observed")
	}
}

func TestMetricsRecorder_FileAppends(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "metrics.log")
	r, err := NewMetricsRecorder(p, nil)
	if err != nil {
		t.Fatalf("NewMetricsRecorder: %v", err)
	}
	r.Record(GenerationMetrics{ID: "a", Mode: ModeText, Outcome: OutcomeCompleted})
	r.Record(GenerationMetrics{ID: "b", Mode: ModeText, Outcome: OutcomeCompleted})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := strings.Count(string(b), "\n"); n != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", n, b)
	}
}

func TestMetricsRecorder_CountFallsBack(t *testing.T) {
	r := NewMetricsRecorderWriter(&bytes.Buffer{}, failingTokenizer{})
	if n := r.Count(context.Background(), "two words"); n != 2 {
		t.Fatalf("fallback count = %d", n)
	}
	if n := r.Count(context.Background(), ""); n != 0 {
		t.Fatalf("empty count = %d", n)
	}
}

func TestWordTokenizer(t *testing.T) {
	cases := map[string]int{
		"":                0,
		"hello world":     2,
		"Hello, world!":   4,
		"<td>42</td>":     8,
		"表格识别":            4,
		"a1b2 c3":         2,
		"  spaced\n\tout ": 2,
	}
	for in, want := range cases {
		got, err := WordTokenizer{}.Count(context.Background(), in)
		if err != nil || got != want {
			t.Fatalf("Count(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
}

// closingTokenizer records whether Close was called.
type closingTokenizer struct {
	WordTokenizer
	closed bool
}

func (c *closingTokenizer) Close() error {
	c.closed = true
	return nil
}

func TestManagerCloseReleasesTokenizer(t *testing.T) {
	tok := &closingTokenizer{}
	m := NewWithConfig(ManagerConfig{
		Adapter:  &fakeAdapter{},
		Recorder: NewMetricsRecorderWriter(&syncBuffer{}, tok),
	})
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !tok.closed {
		t.Fatalf("tokenizer not closed with the manager")
	}
}
