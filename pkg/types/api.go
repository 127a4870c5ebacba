package types

// OCRResponse is returned by POST /ocr when stream=false.
type OCRResponse struct {
	// Upload id assigned to the image.
	// example: 3f1c2a9e-8d7b-4c55-9a0e-2b6f7e1d4c10
	ID string `json:"id" example:"3f1c2a9e-8d7b-4c55-9a0e-2b6f7e1d4c10"`
	// Recognized content rendered as HTML (tables are passed through, text is rendered from Markdown).
	// example: <table><tr><td>1</td></tr></table>
	HTML string `json:"html" example:"<table><tr><td>1</td></tr></table>"`
	// Raw recognized text as produced by the model.
	Text string `json:"text"`
	// Original filename of the upload.
	// example: invoice.png
	Filename string `json:"filename" example:"invoice.png"`
	// Recognition mode used.
	// example: table
	Mode string `json:"mode" example:"table"`
}

// CancelResponse is returned by POST /cancel.
type CancelResponse struct {
	// One of: cancelled, no active generation, no model.
	// example: cancelled
	Status string `json:"status" example:"cancelled"`
}

// SaveRequest is the body of POST /save.
type SaveRequest struct {
	// Optional session id. When empty a new id is generated.
	// example: 3f1c2a9e-8d7b-4c55-9a0e-2b6f7e1d4c10
	ID string `json:"id,omitempty" example:"3f1c2a9e-8d7b-4c55-9a0e-2b6f7e1d4c10"`
	// Optional display name; defaults to "Untitled".
	// example: March invoices
	Name string `json:"name,omitempty" validate:"max=256" example:"March invoices"`
	// Saved content (usually HTML produced by /ocr, possibly edited).
	Content string `json:"content" validate:"required"`
}

// SaveResponse is returned by POST /save.
type SaveResponse struct {
	// example: success
	Status string `json:"status" example:"success"`
	// example: 3f1c2a9e-8d7b-4c55-9a0e-2b6f7e1d4c10
	ID string `json:"id" example:"3f1c2a9e-8d7b-4c55-9a0e-2b6f7e1d4c10"`
}

// Session is one persisted recognition result, as listed by GET /history.
type Session struct {
	// example: 3f1c2a9e-8d7b-4c55-9a0e-2b6f7e1d4c10
	ID string `json:"id" example:"3f1c2a9e-8d7b-4c55-9a0e-2b6f7e1d4c10"`
	// Save time, "YYYY-MM-DD HH:MM:SS" local time.
	// example: 2024-03-01 14:22:05
	Timestamp string `json:"timestamp" example:"2024-03-01 14:22:05"`
	// example: March invoices
	Name string `json:"name" example:"March invoices"`
	// Saved content.
	Content string `json:"content"`
}

// MessageResponse is a generic status + message payload.
type MessageResponse struct {
	// example: success
	Status string `json:"status" example:"success"`
	// example: Session deleted
	Message string `json:"message,omitempty" example:"Session deleted"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// GPUInfo describes memory usage of one device.
type GPUInfo struct {
	// example: NVIDIA GeForce RTX 4090
	Name string `json:"name" example:"NVIDIA GeForce RTX 4090"`
	// example: 24564 MB
	TotalMemory string `json:"total_memory" example:"24564 MB"`
	// example: 9120 MB
	ReservedMemory string `json:"reserved_memory" example:"9120 MB"`
	// example: 8730 MB
	AllocatedMemory string `json:"allocated_memory" example:"8730 MB"`
	// example: 37.1%
	Utilization string `json:"utilization" example:"37.1%"`
}

// GPUStatus is returned by GET /gpu.
type GPUStatus struct {
	// example: true
	Available bool `json:"available" example:"true"`
	// example: 1
	DeviceCount int `json:"device_count" example:"1"`
	// Per-device memory usage.
	Info []GPUInfo `json:"info"`
}

// MetricsSnapshot is the last finalized generation record.
type MetricsSnapshot struct {
	ID string `json:"id"`
	// example: completed
	Outcome string `json:"outcome" example:"completed"`
	// example: table
	Mode string `json:"mode" example:"table"`
	// Image dimensions or "Unknown".
	// example: 1240x1754
	ImageSize string `json:"image_size" example:"1240x1754"`
	// Omitted when no fragment was produced.
	// example: 0.84
	TTFTSeconds *float64 `json:"ttft_seconds,omitempty" example:"0.84"`
	// example: 12.5
	TotalSeconds float64 `json:"total_seconds" example:"12.5"`
	// example: 412
	Tokens *int `json:"tokens,omitempty" example:"412"`
	// example: 35.2
	TokensPerSecond *float64 `json:"tokens_per_second,omitempty" example:"35.2"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Model worker state (ready, loading, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Recognition backend name.
	// example: llama-server
	Backend string `json:"backend" example:"llama-server"`
	// Optional error explaining a non-ready state.
	Error string `json:"error,omitempty"`
	// Number of generations currently running (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Requests holding or waiting for the generation slot.
	// example: 2
	QueueLen int `json:"queue_len" example:"2"`
	// example: 8
	MaxQueueDepth int `json:"max_queue_depth" example:"8"`
	// Whether the abort signal is currently set.
	AbortPending bool `json:"abort_pending"`
	// example: 120
	GenerationsTotal uint64 `json:"generations_total" example:"120"`
	// example: 4
	AbortsTotal uint64 `json:"aborts_total" example:"4"`
	// example: 1
	ErrorsTotal uint64 `json:"errors_total" example:"1"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	LastGeneration *MetricsSnapshot `json:"last_generation,omitempty"`
}

// RenderRequest is the body of POST /render.
type RenderRequest struct {
	// table or text
	// example: text
	Mode string `json:"mode" example:"text"`
	// Raw recognized text.
	Text string `json:"text" validate:"max=4194304"`
}

// RenderResponse is returned by POST /render.
type RenderResponse struct {
	HTML string `json:"html"`
}
