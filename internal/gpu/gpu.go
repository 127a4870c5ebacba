// Package gpu reports device memory usage by querying nvidia-smi.
package gpu

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ocrd/pkg/types"
)

const queryFields = "name,memory.total,memory.used,memory.free"

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Probe queries GPU memory.
type Probe struct {
	bin     string
	run     Runner
	timeout time.Duration
}

// NewProbe returns a Probe using the nvidia-smi binary at bin ("" looks it up
// on PATH).
func NewProbe(bin string) *Probe {
	if bin == "" {
		bin = "nvidia-smi"
	}
	return &Probe{bin: bin, run: execRunner, timeout: 5 * time.Second}
}

// WithRunner replaces the command runner (tests).
func (p *Probe) WithRunner(r Runner) *Probe {
	p.run = r
	return p
}

// Status reports all visible devices. A host without nvidia-smi, or where the
// query fails, is reported as unavailable with no devices rather than as an error.
func (p *Probe) Status(ctx context.Context) types.GPUStatus {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	out, err := p.run(ctx, p.bin, "--query-gpu="+queryFields, "--format=csv,noheader,nounits")
	if err != nil {
		return types.GPUStatus{Available: false, DeviceCount: 0, Info: []types.GPUInfo{}}
	}
	info, err := Parse(out)
	if err != nil {
		return types.GPUStatus{Available: false, DeviceCount: 0, Info: []types.GPUInfo{}}
	}
	return types.GPUStatus{Available: len(info) > 0, DeviceCount: len(info), Info: info}
}

// Parse converts nvidia-smi CSV rows (MiB, no units) into GPUInfo values.
// Reserved memory is everything not free; allocated is what processes use.
func Parse(out []byte) ([]types.GPUInfo, error) {
	r := csv.NewReader(bytes.NewReader(out))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = 4
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse nvidia-smi output: %w", err)
	}
	info := make([]types.GPUInfo, 0, len(recs))
	for _, rec := range recs {
		total, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		used, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		free, err3 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("parse nvidia-smi row %q", strings.Join(rec, ","))
		}
		reserved := total - free
		if reserved < 0 {
			reserved = 0
		}
		util := 0.0
		if total > 0 {
			util = reserved / total * 100
		}
		info = append(info, types.GPUInfo{
			Name:            strings.TrimSpace(rec[0]),
			TotalMemory:     fmt.Sprintf("%.0f MB", total),
			ReservedMemory:  fmt.Sprintf("%.0f MB", reserved),
			AllocatedMemory: fmt.Sprintf("%.0f MB", used),
			Utilization:     fmt.Sprintf("%.1f%%", util),
		})
	}
	return info, nil
}
