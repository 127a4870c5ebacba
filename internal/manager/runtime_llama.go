package manager

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"ocrd/internal/common/fsutil"
)

// LlamaServerOptions describes a llama-server process to spawn.
type LlamaServerOptions struct {
	Bin     string
	Model   string
	MMProj  string
	Host    string
	CtxSize int
	Threads int
	NGL     int
	Extra   []string
	// ReadyTimeout bounds the wait for /health; zero means 60s.
	ReadyTimeout time.Duration
}

// LlamaProcess is a llama-server child process owned by this daemon.
type LlamaProcess struct {
	cmd     *exec.Cmd
	baseURL string
	exited  chan struct{}
	waitErr error
	stop    sync.Once
}

// BaseURL is the root of the server's HTTP API.
func (p *LlamaProcess) BaseURL() string { return p.baseURL }

// Pid returns the child's process id.
func (p *LlamaProcess) Pid() int { return p.cmd.Process.Pid }

// StartLlamaServer launches llama-server for a model and its multimodal
// projector on a free local port and waits until /health answers 2xx.
func StartLlamaServer(ctx context.Context, opts LlamaServerOptions) (*LlamaProcess, error) {
	bin := strings.TrimSpace(opts.Bin)
	if bin == "" {
		bin = discoverLlamaBin()
	}
	if bin == "" {
		return nil, ErrDependencyUnavailable("llama-server not found: set --llama-bin or install llama.cpp")
	}
	if !fsutil.IsFile(bin) {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("llama-server not found or not a file: %s", bin))
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, ErrDependencyUnavailable("no model configured")
	}
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := findFreePort(host)
	if err != nil {
		return nil, err
	}
	args := []string{
		"--host", host,
		"--port", fmt.Sprint(port),
		"-m", model,
	}
	if opts.MMProj != "" {
		args = append(args, "--mmproj", opts.MMProj)
	}
	if opts.CtxSize > 0 {
		args = append(args, "--ctx-size", fmt.Sprint(opts.CtxSize))
	}
	if opts.Threads > 0 {
		args = append(args, "--threads", fmt.Sprint(opts.Threads))
	}
	if opts.NGL > 0 {
		args = append(args, "-ngl", fmt.Sprint(opts.NGL))
	}
	args = append(args, opts.Extra...)

	cmd := exec.Command(bin, args...)
	cmd.Dir = filepath.Dir(model)
	// Keep a tail of stderr for diagnostics when the server dies before ready.
	tail := &tailBuffer{}
	cmd.Stdout = &lineLogger{stream: "stdout"}
	cmd.Stderr = &lineLogger{stream: "stderr", tail: tail}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p := &LlamaProcess{cmd: cmd, baseURL: fmt.Sprintf("http://%s:%d", host, port), exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	logger().Info().Int("pid", cmd.Process.Pid).Str("model", model).Str("url", p.baseURL).Msg("llama-server spawned")

	timeout := opts.ReadyTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if err := p.waitForHealth(ctx, timeout); err != nil {
		_ = p.Stop()
		if t := tail.String(); t != "" {
			return nil, fmt.Errorf("%w; stderr tail: %s", err, t)
		}
		return nil, err
	}
	logger().Info().Int("pid", cmd.Process.Pid).Str("url", p.baseURL).Msg("llama-server ready")
	return p, nil
}

func (p *LlamaProcess) waitForHealth(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		if err := checkHealth(ctx, p.baseURL); err == nil {
			return nil
		}
		select {
		case <-p.exited:
			return fmt.Errorf("llama-server exited before ready: %v", p.waitErr)
		case <-ctx.Done():
			return fmt.Errorf("llama-server health check timeout on %s: %w", p.baseURL, ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Stop sends SIGTERM and kills the process if it has not exited within 2s.
func (p *LlamaProcess) Stop() error {
	p.stop.Do(func() {
		if p.cmd.Process == nil {
			return
		}
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.exited:
		case <-time.After(2 * time.Second):
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
		logger().Info().Int("pid", p.cmd.Process.Pid).Msg("llama-server stopped")
	})
	return nil
}

// lineLogger forwards child output to the trace log line by line.
// exec copies into it from a single goroutine per stream.
type lineLogger struct {
	stream  string
	tail    *tailBuffer
	pending []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(l.pending[:i], "\r"))
		l.pending = l.pending[i+1:]
		if l.tail != nil {
			l.tail.add(line)
		}
		logger().Trace().Str("stream", l.stream).Msg(line)
	}
	return len(p), nil
}

type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

const tailLimit = 4096

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.WriteString(line)
	t.buf.WriteByte('\n')
	if t.buf.Len() > tailLimit {
		b := t.buf.Bytes()
		keep := append([]byte(nil), b[len(b)-tailLimit:]...)
		t.buf.Reset()
		t.buf.Write(keep)
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}

func findFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func checkHealth(ctx context.Context, baseURL string) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

// discoverLlamaBin looks for llama-server in common install locations and PATH.
func discoverLlamaBin() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "apps", "llama.cpp", "build", "bin", "llama-server"),
		"/usr/local/bin/llama-server",
		"/opt/homebrew/bin/llama-server",
	}
	for _, p := range candidates {
		if fsutil.IsFile(p) {
			return p
		}
	}
	if lp, err := exec.LookPath("llama-server"); err == nil {
		return lp
	}
	return ""
}
