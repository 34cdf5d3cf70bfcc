// Package asset accepts image uploads and places them on a canvas as image
// references carrying the encoded bytes.
package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	_ "golang.org/x/image/webp"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/session"
	"github.com/inamate/canvas/internal/store"
)

const (
	maxUploadSize = 10 << 20 // 10MB
	// MaxPlacement bounds the longer side of a placed image in world units.
	MaxPlacement = 400.0
)

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string    `json:"id"`
	URL    string    `json:"url"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	Bounds geom.Rect `json:"bounds"`
}

// Sessions finds the canvas an upload targets.
type Sessions interface {
	Session(canvasID string) (*session.Session, bool)
}

// Handler serves image upload and retrieval endpoints.
type Handler struct {
	sessions Sessions
}

func NewHandler(sessions Sessions) *Handler {
	return &Handler{sessions: sessions}
}

// Placement scales a w×h image down so its longer side is at most
// MaxPlacement, keeping the aspect ratio, with its top-left at at.
func Placement(w, h int, at geom.Point) geom.Rect {
	fw, fh := float64(w), float64(h)
	if long := max(fw, fh); long > MaxPlacement {
		k := MaxPlacement / long
		fw, fh = fw*k, fh*k
	}
	return geom.Rect{X: at.X, Y: at.Y, Width: fw, Height: fh}
}

// Upload handles POST /canvas/{canvasId}/images (multipart form with a
// "file" field and optional "x", "y" world coordinates).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	canvasID := mux.Vars(r)["canvasId"]
	sess, ok := h.sessions.Session(canvasID)
	if !ok {
		writeError(w, http.StatusNotFound, "canvas not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large (max 10MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}
	mime, ok := mimeTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, "only PNG, JPEG and WebP images are supported")
		return
	}

	at := geom.Pt(formFloat(r, "x"), formFloat(r, "y"))
	bounds := Placement(cfg.Width, cfg.Height, at)
	shape := document.NewImage(bounds, &document.ImageData{
		MIME:   mime,
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
	})

	var addErr error
	err = sess.Do(r.Context(), func() {
		if _, addErr = sess.Store().AddShape(shape); addErr == nil {
			sess.Store().SetSelection(shape.ID)
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if errors.Is(addErr, store.ErrImageLimit) {
		writeError(w, http.StatusConflict, addErr.Error())
		return
	}
	if addErr != nil {
		slog.Error("add image", "error", addErr, "canvas", canvasID)
		writeError(w, http.StatusInternalServerError, "failed to place image")
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		ID:     shape.ID,
		URL:    "/canvas/" + canvasID + "/images/" + shape.ID,
		Width:  cfg.Width,
		Height: cfg.Height,
		Type:   format,
		Name:   header.Filename,
		Bounds: bounds,
	})
}

// Serve handles GET /canvas/{canvasId}/images/{shapeId} with the stored
// bytes of an image reference.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sess, ok := h.sessions.Session(vars["canvasId"])
	if !ok {
		writeError(w, http.StatusNotFound, "canvas not found")
		return
	}
	shape, ok := sess.Store().Shape(vars["shapeId"])
	if !ok || shape.Type != document.ShapeImage || shape.Image == nil || len(shape.Image.Data) == 0 {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Header().Set("Content-Type", shape.Image.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(shape.Image.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(shape.Image.Data)
}

func formFloat(r *http.Request, key string) float64 {
	v, err := strconv.ParseFloat(r.FormValue(key), 64)
	if err != nil {
		return 0
	}
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
