package project

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

const maxProjectSize = 32 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Sample bool `json:"sample"`
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// Create handles POST /canvas. An empty body creates a blank canvas.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	canvas, err := h.service.Create(r.Context(), req.Sample)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, canvas)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	canvas, err := h.service.Get(mux.Vars(r)["canvasId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, canvas)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Project(mux.Vars(r)["canvasId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) PutProject(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProjectSize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "project too large"})
		return
	}
	if err := h.service.Replace(r.Context(), mux.Vars(r)["canvasId"], data); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FramePNG handles GET /canvas/{canvasId}/frames/{frameId}.png.
func (h *Handler) FramePNG(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	png, err := h.service.FramePNG(vars["canvasId"], vars["frameId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	vars := mux.Vars(r)
	gen, err := h.service.Generate(r.Context(), vars["canvasId"], vars["frameId"], req.Prompt)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, gen)
}

func (h *Handler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.CancelGeneration(vars["canvasId"], vars["frameId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
