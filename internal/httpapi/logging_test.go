package httpapi

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("?log=1 override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	if got := requestLogLevel(r); got != defaultLogLevel {
		t.Fatalf("default = %v, want %v", got, defaultLogLevel)
	}
}

func TestRequestEvent(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { zlog = nil })

	r := httptest.NewRequest("GET", "/ocr", nil)
	requestEvent(r, LevelInfo, LevelDebug).Msg("hidden")
	requestEvent(r, LevelInfo, LevelInfo).Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug event emitted at info level: %s", out)
	}
	if !strings.Contains(out, `"path":"/ocr"`) || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected log: %s", out)
	}
}

func TestOCRLogsChunksAtDebug(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	t.Cleanup(func() { zlog = nil })

	env := newTestEnv(t, &mockService{ready: true, chunks: []string{"alpha", "beta"}})
	req := ocrRequest(t, "x.png", pngBytes, nil)
	req.Header.Set("X-Log-Level", "debug")
	env.do(req)
	out := buf.String()
	for _, want := range []string{"ocr start", `"chunk":"alpha"`, `"chunks":2`, "ocr end"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q: %s", want, out)
		}
	}
}
