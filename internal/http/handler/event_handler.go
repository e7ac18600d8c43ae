package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/http/response"
	"github.com/uiowa-coph/roomres/internal/observability"
	"github.com/uiowa-coph/roomres/internal/pipeline"
	"github.com/uiowa-coph/roomres/internal/repository"
)

type EventHandler struct {
	pipeline *pipeline.Pipeline
}

func NewEventHandler(p *pipeline.Pipeline) *EventHandler {
	return &EventHandler{pipeline: p}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var sub domain.EventSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed event submission", nil)
		return
	}
	view, err := h.pipeline.Create(r.Context(), sessionCaller(r), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "event_created", "package_id", view.Event.PackageID, "user_email", view.Event.UserEmail)
	response.JSON(w, r, http.StatusCreated, view)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	packageID, ok := packageIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.pipeline.GetEvent(r.Context(), sessionCaller(r), packageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, view)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("filterField")
	value := r.URL.Query().Get("filterValue")
	if field == "" {
		// Default listing: the caller's own events.
		field, value = "userEmail", sessionCaller(r).Email
	}
	if _, ok := repository.EventFilterColumn(field); !ok {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "unsupported filter field", map[string]string{"filterField": field})
		return
	}
	events, err := h.pipeline.GetEvents(r.Context(), field, value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, events)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	packageID, ok := packageIDParam(w, r)
	if !ok {
		return
	}
	var sub domain.EventSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed event submission", nil)
		return
	}
	view, err := h.pipeline.Update(r.Context(), sessionCaller(r), packageID, sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "event_updated", "package_id", packageID)
	response.JSON(w, r, http.StatusOK, view)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	packageID, ok := packageIDParam(w, r)
	if !ok {
		return
	}
	if err := h.pipeline.Delete(r.Context(), sessionCaller(r), packageID); err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "event_deleted", "package_id", packageID)
	response.JSON(w, r, http.StatusOK, map[string]int{"packageId": packageID})
}

func (h *EventHandler) Void(w http.ResponseWriter, r *http.Request) {
	packageID, ok := packageIDParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reason == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "a void reason is required", nil)
		return
	}
	if err := h.pipeline.Void(r.Context(), sessionCaller(r), packageID, body.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "event_voided", "package_id", packageID, "reason", body.Reason)
	response.JSON(w, r, http.StatusOK, map[string]int{"packageId": packageID})
}

func packageIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "packageId")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "packageId must be a positive integer", nil)
		return 0, false
	}
	return id, true
}
