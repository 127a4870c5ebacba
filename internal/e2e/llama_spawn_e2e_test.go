package e2e

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"ocrd/internal/manager"
	"ocrd/internal/registry"
)

// TestSpawnMode_RecognizeText spawns a real llama-server with a vision model
// and recognizes a generated image end to end. Skips unless:
// - OCRD_LLAMA_BIN points to a llama-server binary, and
// - OCRD_MODELS_DIR (default ~/models/ocr) holds a model and its mmproj.
func TestSpawnMode_RecognizeText(t *testing.T) {
	bin := strings.TrimSpace(os.Getenv("OCRD_LLAMA_BIN"))
	if bin == "" {
		t.Skip("OCRD_LLAMA_BIN not set; skipping spawn-mode recognition test")
	}
	dir := os.Getenv("OCRD_MODELS_DIR")
	if dir == "" {
		dir = "~/models/ocr"
	}
	pair, err := registry.Discover(dir, "", "")
	if err != nil || pair.MMProj == "" {
		t.Skipf("no model+mmproj under %s (%v); skipping", dir, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	proc, err := manager.StartLlamaServer(ctx, manager.LlamaServerOptions{
		Bin: bin, Model: pair.Model, MMProj: pair.MMProj, CtxSize: 4096,
	})
	if err != nil {
		t.Fatalf("start llama-server: %v", err)
	}
	st := newStack(t, manager.NewSpawnedLlamaServerAdapter(proc, 2*time.Minute), func(c *manager.ManagerConfig) {
		c.Tokenizer = manager.NewLlamaServerTokenizer(proc.BaseURL(), 10*time.Second)
	})

	resp := postOCR(t, ctx, st.srv.URL, "blank.png", pngImage(t, 64, 64), map[string]string{"type": "text"})
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "<!-- Error:") {
		t.Fatalf("generation failed: %s", body)
	}
	t.Logf("\n----- RECOGNIZED (spawn mode) -----\n%s\n-----------------------------------\n", body)
	if !strings.Contains(readFile(t, st.metricsLog), "outcome=completed") {
		t.Fatalf("metrics record missing")
	}
}
