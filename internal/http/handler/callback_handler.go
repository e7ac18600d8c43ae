package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/uiowa-coph/roomres/internal/http/response"
	"github.com/uiowa-coph/roomres/internal/observability"
	"github.com/uiowa-coph/roomres/internal/pipeline"
)

// CallbackHandler receives asynchronous package-state reports from the
// approval router.
type CallbackHandler struct {
	pipeline *pipeline.Pipeline
	secret   string
}

func NewCallbackHandler(p *pipeline.Pipeline, secret string) *CallbackHandler {
	return &CallbackHandler{pipeline: p, secret: secret}
}

func (h *CallbackHandler) Workflow(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get("X-Callback-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			observability.Audit(r, "workflow_callback_rejected")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "bad callback secret", nil)
			return
		}
	}
	var body struct {
		PackageID int    `json:"packageId"`
		State     string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PackageID < 1 || body.State == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed callback", nil)
		return
	}
	if err := h.pipeline.ApplyCallback(r.Context(), body.PackageID, body.State); err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "workflow_callback_applied", "package_id", body.PackageID, "state", body.State)
	response.JSON(w, r, http.StatusOK, map[string]any{"packageId": body.PackageID, "state": body.State})
}
