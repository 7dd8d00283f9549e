package api

import (
	"net/http"

	"github.com/okian/rollcall/internal/domain/model"
)

// SessionHandler opens and closes the capture session.
type SessionHandler struct {
	deps Dependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps Dependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type stopResponse struct {
	Stopped bool `json:"stopped"`
}

// HandleSession handles POST and DELETE /session requests.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.start(w, r)
	case http.MethodDelete:
		writeJSON(w, http.StatusOK, stopResponse{Stopped: h.deps.StopSession(r.Context())})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.StartSession(r.Context())
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Session model.CaptureSession `json:"session"`
	}{Session: sess})
}
