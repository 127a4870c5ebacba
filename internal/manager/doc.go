// Package manager runs image recognition generations against a single model
// worker. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: modes, requests, the abort sentinel and the error marker.
//   - errors.go: error types and helpers (IsTooBusy, IsDependencyUnavailable, IsInputError).
//   - admission.go: single-flight generation gate with a bounded wait queue.
//   - abort.go: the shared abort signal.
//   - bridge.go: unbounded fragment queue between a worker and its consumer.
//   - worker.go: runs one adapter pass on its own goroutine.
//   - stream.go: Stream and ChunkStream, the incremental consumer.
//   - once.go: ProcessOnce, the blocking variant.
//   - metrics.go: per-generation timing, Prometheus series and the metrics log.
//   - ops.go: Cancel.
//   - status_report.go: Status/Snapshot reporting helpers.
//
// Adapters:
//
//   - llama-server (default): adapter_llama_server.go speaks the OpenAI-compatible
//     chat API of llama.cpp; runtime_llama.go can spawn the server itself.
//   - anthropic: adapter_anthropic.go.
//   - tesseract: enabled with `-tags=tesseract` (cgo, libtesseract).
//
// The `llama` build tag adds an in-process go-llama.cpp tokenizer used only to
// re-tokenize output for throughput accounting.
package manager
