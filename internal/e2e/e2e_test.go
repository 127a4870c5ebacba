package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"ocrd/internal/manager"
	"ocrd/pkg/types"
)

func TestE2E_StreamRecordsMetrics(t *testing.T) {
	a := &scriptedAdapter{frags: []string{"<table>", "<tr><td>42</td></tr>", "</table>"}}
	st := newStack(t, a, nil)

	resp := postOCR(t, context.Background(), st.srv.URL, "scan.png", pngImage(t, 32, 16), map[string]string{"type": "table"})
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if string(body) != "<table><tr><td>42</td></tr></table>" {
		t.Fatalf("body=%q", body)
	}
	if resp.Header.Get("X-Filename") != "scan.png" {
		t.Fatalf("X-Filename=%q", resp.Header.Get("X-Filename"))
	}

	log := readFile(t, st.metricsLog)
	for _, want := range []string{"outcome=completed", "image_size=32x16", "mode=table", "ttft=", "tokens_per_sec="} {
		if !strings.Contains(log, want) {
			t.Fatalf("metrics log missing %q: %s", want, log)
		}
	}

	_, b := httpGet(t, st.srv.URL+"/status")
	var status types.StatusResponse
	if err := json.Unmarshal(b, &status); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if status.LastGeneration == nil || status.LastGeneration.Outcome != "completed" || status.GenerationsTotal != 1 {
		t.Fatalf("status=%+v", status)
	}
	if status.Inflight != 0 {
		t.Fatalf("gate still held: %+v", status)
	}
}

func TestE2E_CancelMidStream(t *testing.T) {
	a := &scriptedAdapter{frags: []string{"first ", "second ", "third"}, hold: make(chan struct{})}
	defer close(a.hold)
	st := newStack(t, a, nil)

	resp := postOCR(t, context.Background(), st.srv.URL, "scan.png", pngImage(t, 8, 8), map[string]string{"type": "text"})
	defer resp.Body.Close()
	r := bufio.NewReader(resp.Body)
	readUntil(t, r, "first ")

	_, b := httpPostJSON(t, st.srv.URL+"/cancel", nil)
	var cr types.CancelResponse
	if err := json.Unmarshal(b, &cr); err != nil || cr.Status != "cancelled" {
		t.Fatalf("cancel=%s err=%v", b, err)
	}

	rest, _ := io.ReadAll(r)
	if !strings.HasSuffix(string(rest), manager.AbortSentinel) {
		t.Fatalf("stream tail=%q", rest)
	}
	if strings.Contains(string(rest), "second") {
		t.Fatalf("fragments after abort leaked: %q", rest)
	}
	waitFor(t, "gate release", func() bool { return st.mgr.Status().Inflight == 0 })
	if !strings.Contains(readFile(t, st.metricsLog), "outcome=aborted") {
		t.Fatalf("abort not recorded")
	}

	_, b = httpPostJSON(t, st.srv.URL+"/cancel", nil)
	if err := json.Unmarshal(b, &cr); err != nil || cr.Status != string(manager.CancelNoActive) {
		t.Fatalf("idle cancel=%s", b)
	}
}

func TestE2E_AbortDoesNotLeakIntoNextRequest(t *testing.T) {
	a := &scriptedAdapter{frags: []string{"only"}}
	st := newStack(t, a, nil)

	// Cancel with nothing running is a no-op and must not poison the next run.
	httpPostJSON(t, st.srv.URL+"/cancel", nil)
	resp := postOCR(t, context.Background(), st.srv.URL, "a.png", pngImage(t, 4, 4), nil)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "only" {
		t.Fatalf("body=%q", body)
	}
}

func TestE2E_Backpressure429(t *testing.T) {
	a := &scriptedAdapter{frags: []string{"busy ", "done"}, hold: make(chan struct{})}
	st := newStack(t, a, func(c *manager.ManagerConfig) {
		c.MaxQueueDepth = 1
		c.MaxWait = 50 * time.Millisecond
	})

	first := postOCR(t, context.Background(), st.srv.URL, "a.png", pngImage(t, 4, 4), nil)
	defer first.Body.Close()
	r := bufio.NewReader(first.Body)
	readUntil(t, r, "busy ")

	second := postOCR(t, context.Background(), st.srv.URL, "b.png", pngImage(t, 4, 4), nil)
	b, _ := io.ReadAll(second.Body)
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status=%d body=%s", second.StatusCode, b)
	}

	close(a.hold)
	rest, _ := io.ReadAll(r)
	if string(rest) != "done" {
		t.Fatalf("first tail=%q", rest)
	}
}

func TestE2E_ClientDisconnectReleasesGate(t *testing.T) {
	a := &scriptedAdapter{frags: []string{"x ", "y"}, hold: make(chan struct{})}
	defer close(a.hold)
	st := newStack(t, a, nil)

	ctx, cancel := context.WithCancel(context.Background())
	resp := postOCR(t, ctx, st.srv.URL, "a.png", pngImage(t, 4, 4), nil)
	readUntil(t, bufio.NewReader(resp.Body), "x ")
	cancel()
	resp.Body.Close()

	waitFor(t, "gate release", func() bool { return st.mgr.Status().Inflight == 0 })
	waitFor(t, "abort record", func() bool {
		return strings.Contains(readFile(t, st.metricsLog), "outcome=aborted")
	})
}

func TestE2E_BlockingOCR(t *testing.T) {
	st := newStack(t, &scriptedAdapter{frags: []string{"# Invoice\n", "\nTotal: 42"}}, nil)
	resp := postOCR(t, context.Background(), st.srv.URL, "inv.png", pngImage(t, 4, 4), map[string]string{"type": "text", "stream": "false"})
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, b)
	}
	var out types.OCRResponse
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Filename != "inv.png" || !strings.Contains(out.HTML, "<h1>Invoice</h1>") || !strings.Contains(out.Text, "Total: 42") {
		t.Fatalf("out=%+v", out)
	}
}

func TestE2E_NoModel(t *testing.T) {
	st := newStack(t, nil, func(c *manager.ManagerConfig) { c.LoadErr = "model discovery: no gguf model found" })
	if resp, _ := httpGet(t, st.srv.URL+"/readyz"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz=%d", resp.StatusCode)
	}
	resp := postOCR(t, context.Background(), st.srv.URL, "a.png", pngImage(t, 4, 4), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("ocr status=%d", resp.StatusCode)
	}
	_, b := httpPostJSON(t, st.srv.URL+"/cancel", nil)
	if !strings.Contains(string(b), `"no model"`) {
		t.Fatalf("cancel=%s", b)
	}
	_, b = httpGet(t, st.srv.URL+"/status")
	if !strings.Contains(string(b), "no gguf model found") {
		t.Fatalf("status=%s", b)
	}
}

func TestE2E_Sessions(t *testing.T) {
	st := newStack(t, &scriptedAdapter{}, nil)
	for _, body := range []string{
		`{"id":"older","name":"First","content":"<p>1</p>"}`,
		`{"id":"newer","content":"<p>2</p>"}`,
	} {
		resp, b := httpPostJSON(t, st.srv.URL+"/save", []byte(body))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("save status=%d body=%s", resp.StatusCode, b)
		}
		// timestamps have one-second resolution
		time.Sleep(1100 * time.Millisecond)
	}
	_, b := httpGet(t, st.srv.URL+"/history")
	var list []types.Session
	if err := json.Unmarshal(b, &list); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(list) != 2 || list[0].ID != "newer" || list[0].Name != "Untitled" || list[1].Name != "First" {
		t.Fatalf("history=%+v", list)
	}
	if resp, _ := httpDelete(t, st.srv.URL+"/session/older"); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete=%d", resp.StatusCode)
	}
	if resp, _ := httpDelete(t, st.srv.URL+"/session/older"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete=%d", resp.StatusCode)
	}
}
