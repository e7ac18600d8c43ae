package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/http/response"
	"github.com/uiowa-coph/roomres/internal/pipeline"
	"github.com/uiowa-coph/roomres/internal/repository"
)

type LayoutHandler struct {
	pipeline *pipeline.Pipeline
}

func NewLayoutHandler(p *pipeline.Pipeline) *LayoutHandler {
	return &LayoutHandler{pipeline: p}
}

// GetForEvent serves the private layout attached to an event.
func (h *LayoutHandler) GetForEvent(w http.ResponseWriter, r *http.Request) {
	packageID, ok := packageIDParam(w, r)
	if !ok {
		return
	}
	layout, err := h.pipeline.GetLayout(r.Context(), packageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, layout)
}

func (h *LayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	layout, err := h.pipeline.GetLayoutByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, layout)
}

func (h *LayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("filterField")
	value := r.URL.Query().Get("filterValue")
	if field == "" {
		field, value = "type", domain.LayoutTypePublic
	}
	if _, ok := repository.LayoutFilterColumn(field); !ok {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "unsupported filter field", map[string]string{"filterField": field})
		return
	}
	layouts, err := h.pipeline.GetLayouts(r.Context(), field, value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, layouts)
}

// Save creates or replaces a public layout template.
func (h *LayoutHandler) Save(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []domain.LayoutItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed layout", nil)
		return
	}
	layout, err := h.pipeline.SavePublicLayout(r.Context(), sessionCaller(r), chi.URLParam(r, "id"), body.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, layout)
}

func (h *LayoutHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.pipeline.DeleteLayout(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"id": id})
}
