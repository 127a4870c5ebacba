package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ocrd/internal/manager"
	"ocrd/internal/uploads"
	"ocrd/pkg/types"
)

// @Summary      Recognize an image
// @Description  Uploads an image and runs OCR. By default the recognized text is streamed
// @Description  as text/plain chunks; an aborted stream ends with "<!-- Process Aborted -->"
// @Description  and a failed one with "<!-- Error: ... -->". With stream=false a JSON body is returned.
// @Tags         ocr
// @Accept       multipart/form-data
// @Produce      plain
// @Produce      json
// @Param        file    formData  file    true   "Image file"
// @Param        type    formData  string  false  "table or text"  default(table)
// @Param        stream  formData  bool    false  "Stream chunks"  default(true)
// @Success      200  {object}  types.OCRResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      499  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /ocr [post]
func (a *api) ocr(w http.ResponseWriter, r *http.Request) {
	lvl := requestLogLevel(r)
	if a.deps.Uploads == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "uploads not configured")
		return
	}
	// Multipart overhead on top of the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, fh, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	modeValue := r.FormValue("type")
	if strings.TrimSpace(modeValue) == "" {
		modeValue = string(manager.ModeTable)
	}
	mode := manager.ParseMode(modeValue)
	stream := true
	if v := r.FormValue("stream"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "stream must be a boolean")
			return
		}
		stream = b
	}

	if !a.svc.Ready() {
		writeJSONError(w, http.StatusServiceUnavailable, "Model not loaded. Check server logs.")
		return
	}

	up, err := a.deps.Uploads.Save(fh.Filename, file, maxUploadBytes)
	if err != nil {
		requestEvent(r, lvl, LevelError).Err(err).Msg("save upload")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	requestEvent(r, lvl, LevelInfo).Str("file", up.Filename).Str("upload", up.ID).
		Str("mode", string(mode)).Bool("stream", stream).Int64("bytes", up.Size).Msg("ocr start")

	req := manager.GenerationRequest{ImagePath: up.Path, Mode: mode}
	ctx, cancel := withShutdown(r.Context())
	defer cancel()

	if stream {
		a.ocrStream(ctx, w, r, lvl, up, req)
		return
	}
	a.ocrOnce(ctx, w, r, lvl, up, req)
}

func (a *api) ocrStream(ctx context.Context, w http.ResponseWriter, r *http.Request, lvl LogLevel, up uploads.Upload, req manager.GenerationRequest) {
	start := time.Now()
	cs, err := a.svc.Stream(ctx, req)
	if err != nil {
		// Stream only fails before a generation starts.
		a.discardUpload(r, lvl, up)
		a.fail(w, r, lvl, err, start)
		return
	}
	defer cs.Close()

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Filename", up.Filename)
	h.Set("X-File-Id", up.ID)
	h.Set("X-Generation-Id", cs.ID())
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	_ = rc.Flush()

	chunks := 0
	last := ""
	for {
		chunk, ok := cs.Next(ctx)
		if !ok {
			break
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			requestEvent(r, lvl, LevelInfo).Err(err).Msg("client went away")
			break
		}
		_ = rc.Flush()
		chunks++
		last = chunk
		streamChunksTotal.Inc()
		requestEvent(r, lvl, LevelDebug).Str("chunk", chunk).Msg("ocr chunk")
	}
	requestEvent(r, lvl, LevelInfo).Str("generation", cs.ID()).Int("chunks", chunks).
		Bool("aborted", last == manager.AbortSentinel).Dur("dur", time.Since(start)).Msg("ocr end")
}

func (a *api) ocrOnce(ctx context.Context, w http.ResponseWriter, r *http.Request, lvl LogLevel, up uploads.Upload, req manager.GenerationRequest) {
	start := time.Now()
	if ocrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ocrTimeout)*time.Second)
		defer cancel()
	}
	text, err := a.svc.ProcessOnce(ctx, req)
	if err == nil && text == manager.AbortSentinel {
		requestEvent(r, lvl, LevelInfo).Int("status", StatusClientClosedRequest).Dur("dur", time.Since(start)).Msg("ocr end")
		writeJSONError(w, StatusClientClosedRequest, "Processing aborted by user")
		return
	}
	if err != nil {
		// Client disconnect: nobody is listening for the answer.
		if r.Context().Err() != nil || shuttingDown() {
			return
		}
		if rejectedBeforeStart(err) {
			a.discardUpload(r, lvl, up)
		}
		a.fail(w, r, lvl, err, start)
		return
	}
	requestEvent(r, lvl, LevelInfo).Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("ocr end")
	writeJSON(w, http.StatusOK, types.OCRResponse{
		ID:       up.ID,
		HTML:     a.deps.Renderer.HTML(string(req.Mode), text),
		Text:     text,
		Filename: up.Filename,
		Mode:     string(req.Mode),
	})
}

// rejectedBeforeStart reports errors raised before the model saw the image:
// busy, model unavailable, or unreadable input.
func rejectedBeforeStart(err error) bool {
	return manager.IsTooBusy(err) || manager.IsDependencyUnavailable(err) || manager.IsInputError(err)
}

// discardUpload removes an upload that no generation will ever reference.
func (a *api) discardUpload(r *http.Request, lvl LogLevel, up uploads.Upload) {
	if err := a.deps.Uploads.Remove(up); err != nil {
		requestEvent(r, lvl, LevelError).Err(err).Str("upload", up.ID).Msg("remove rejected upload")
	}
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, lvl LogLevel, err error, start time.Time) {
	status, msg := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("generation_busy")
	}
	ev := requestEvent(r, lvl, LevelInfo)
	if status >= 500 {
		ev = requestEvent(r, lvl, LevelError)
	}
	ev.Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("ocr end")
	writeJSONError(w, status, msg)
}
