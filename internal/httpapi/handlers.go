package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"ocrd/internal/manager"
	"ocrd/internal/session"
	"ocrd/pkg/types"
)

var validate = validator.New()

// decodeJSON reads a size-limited JSON body into v and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeJSONError(w, http.StatusBadRequest, strings.ToLower(verrs[0].Field())+" is invalid ("+verrs[0].Tag()+")")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// @Summary      Cancel the running generation
// @Description  Sets the abort signal. Never fails; reports whether anything was running.
// @Tags         ocr
// @Produce      json
// @Success      200  {object}  types.CancelResponse
// @Router       /cancel [post]
func (a *api) cancel(w http.ResponseWriter, r *http.Request) {
	st := a.svc.Cancel()
	requestEvent(r, requestLogLevel(r), LevelInfo).Str("status", string(st)).Msg("cancel")
	writeJSON(w, http.StatusOK, types.CancelResponse{Status: string(st)})
}

// @Summary      GPU memory status
// @Tags         system
// @Produce      json
// @Success      200  {object}  types.GPUStatus
// @Router       /gpu [get]
func (a *api) gpu(w http.ResponseWriter, r *http.Request) {
	if a.deps.GPU == nil {
		writeJSON(w, http.StatusOK, types.GPUStatus{Info: []types.GPUInfo{}})
		return
	}
	writeJSON(w, http.StatusOK, a.deps.GPU.Status(r.Context()))
}

// @Summary      Render recognized text to HTML
// @Description  Tables pass through unchanged; text is rendered from Markdown (with math).
// @Tags         ocr
// @Accept       json
// @Produce      json
// @Param        body  body      types.RenderRequest  true  "Text to render"
// @Success      200   {object}  types.RenderResponse
// @Failure      400   {object}  types.ErrorResponse
// @Router       /render [post]
func (a *api) render(w http.ResponseWriter, r *http.Request) {
	var req types.RenderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode := manager.ParseMode(req.Mode)
	writeJSON(w, http.StatusOK, types.RenderResponse{HTML: a.deps.Renderer.HTML(string(mode), req.Text)})
}

// @Summary      Save a session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        body  body      types.SaveRequest  true  "Session"
// @Success      200   {object}  types.SaveResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Router       /save [post]
func (a *api) save(w http.ResponseWriter, r *http.Request) {
	if a.deps.Sessions == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "session store not configured")
		return
	}
	var req types.SaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := session.FromRequest(req, a.deps.Now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.deps.Sessions.Save(r.Context(), s); err != nil {
		requestEvent(r, requestLogLevel(r), LevelError).Err(err).Str("id", s.ID).Msg("save session")
		writeJSONError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	writeJSON(w, http.StatusOK, types.SaveResponse{Status: "success", ID: s.ID})
}

// @Summary      List saved sessions
// @Description  Newest first.
// @Tags         sessions
// @Produce      json
// @Success      200  {array}   types.Session
// @Failure      500  {object}  types.ErrorResponse
// @Router       /history [get]
func (a *api) history(w http.ResponseWriter, r *http.Request) {
	if a.deps.Sessions == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "session store not configured")
		return
	}
	list, err := a.deps.Sessions.List(r.Context())
	if err != nil {
		requestEvent(r, requestLogLevel(r), LevelError).Err(err).Msg("list sessions")
		writeJSONError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if list == nil {
		list = []types.Session{}
	}
	writeJSON(w, http.StatusOK, list)
}

// @Summary      Delete a session
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "Session id"
// @Success      200  {object}  types.MessageResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /session/{id} [delete]
func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	if a.deps.Sessions == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "session store not configured")
		return
	}
	id, err := session.SanitizeID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch err := a.deps.Sessions.Delete(r.Context(), id); {
	case errors.Is(err, session.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "Session not found")
	case err != nil:
		requestEvent(r, requestLogLevel(r), LevelError).Err(err).Str("id", id).Msg("delete session")
		writeJSONError(w, http.StatusInternalServerError, "failed to delete session")
	default:
		writeJSON(w, http.StatusOK, types.MessageResponse{Status: "success", Message: "Session deleted"})
	}
}
