// Package server exposes sheet generation and frame geometry over
// HTTP, for clients that render the animation themselves and only need
// the geometry and offsets computed for them.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pixeldrift/spriteforge/pkg/cache"
	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
	"github.com/pixeldrift/spriteforge/pkg/gen"
	"github.com/pixeldrift/spriteforge/pkg/sprite"
)

// Generator is the slice of the generation client the server needs.
// *gen.Client satisfies it; tests substitute a stub.
type Generator interface {
	Generate(ctx context.Context, req gen.Request) (*gen.Result, error)
}

// storeTTL bounds how long generated sheets stay addressable by id.
const storeTTL = 24 * time.Hour

// Server handles the REST API.
type Server struct {
	log    *log.Logger
	gen    Generator
	sheets cache.Cache // sheet bytes under "img:<id>", metadata under "meta:<id>"
}

// New creates a server storing generated sheets in store.
func New(logger *log.Logger, g Generator, store cache.Cache) *Server {
	return &Server{log: logger, gen: g, sheets: store}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/generations", s.handleGenerate)
		r.Get("/sheets/{id}", s.handleSheet)
		r.Get("/sheets/{id}/offset", s.handleOffset)
	})

	return r
}

// sheetMeta is the stored description of a generated sheet, everything
// needed to re-derive geometry and offsets without re-decoding pixels.
type sheetMeta struct {
	Prompt     string            `json:"prompt"`
	Ratio      sprite.Ratio      `json:"ratio"`
	Grid       sprite.Grid       `json:"grid"`
	FrameCount int               `json:"frame_count"`
	Dims       sprite.Dimensions `json:"dimensions"`
	Geometry   sprite.Geometry   `json:"geometry"`
}

type generateRequest struct {
	Prompt  string `json:"prompt"`
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
}

type generateResponse struct {
	ID         string            `json:"id"`
	Ratio      sprite.Ratio      `json:"ratio"`
	FrameCount int               `json:"frame_count"`
	Dims       sprite.Dimensions `json:"dimensions"`
	Geometry   sprite.Geometry   `json:"geometry"`
	Cached     bool              `json:"cached"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, sferrors.Wrap(sferrors.ErrCodeInvalidInput, err, "decode request body"))
		return
	}
	if err := sferrors.ValidateGrid(req.Columns, req.Rows); err != nil {
		s.writeError(w, err)
		return
	}

	grid := sprite.Grid{Columns: req.Columns, Rows: req.Rows}
	result, err := s.gen.Generate(r.Context(), gen.Request{Prompt: req.Prompt, Grid: grid})
	if err != nil {
		s.writeError(w, err)
		return
	}

	sheet, err := sprite.LoadBytes(result.Image, grid)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id := uuid.NewString()
	meta := sheetMeta{
		Prompt:     req.Prompt,
		Ratio:      result.Ratio,
		Grid:       grid,
		FrameCount: sheet.Frames,
		Dims:       sheet.Dims,
		Geometry:   sheet.Geom,
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		s.writeError(w, sferrors.Wrap(sferrors.ErrCodeInternal, err, "encode sheet metadata"))
		return
	}

	ctx := r.Context()
	if err := s.sheets.Set(ctx, "img:"+id, result.Image, storeTTL); err != nil {
		s.writeError(w, sferrors.Wrap(sferrors.ErrCodeInternal, err, "store sheet"))
		return
	}
	if err := s.sheets.Set(ctx, "meta:"+id, metaData, storeTTL); err != nil {
		s.writeError(w, sferrors.Wrap(sferrors.ErrCodeInternal, err, "store sheet metadata"))
		return
	}

	s.writeJSON(w, http.StatusCreated, generateResponse{
		ID:         id,
		Ratio:      result.Ratio,
		FrameCount: sheet.Frames,
		Dims:       sheet.Dims,
		Geometry:   sheet.Geom,
		Cached:     result.Cached,
	})
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, ok, err := s.sheets.Get(r.Context(), "img:"+id)
	if err != nil {
		s.writeError(w, sferrors.Wrap(sferrors.ErrCodeInternal, err, "read sheet store"))
		return
	}
	if !ok {
		s.writeError(w, sferrors.New(sferrors.ErrCodeSheetNotFound, "no sheet with id %s", id))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}

type offsetResponse struct {
	Frame    int             `json:"frame"`
	Offset   sprite.Offset   `json:"offset"`
	Geometry sprite.Geometry `json:"geometry"`
}

// handleOffset derives the render offset for one frame of a stored
// sheet, so thin clients can position a background image without
// reimplementing the geometry.
func (s *Server) handleOffset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, ok, err := s.sheets.Get(r.Context(), "meta:"+id)
	if err != nil {
		s.writeError(w, sferrors.Wrap(sferrors.ErrCodeInternal, err, "read sheet store"))
		return
	}
	if !ok {
		s.writeError(w, sferrors.New(sferrors.ErrCodeSheetNotFound, "no sheet with id %s", id))
		return
	}

	var meta sheetMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		s.writeError(w, sferrors.Wrap(sferrors.ErrCodeInternal, err, "decode sheet metadata"))
		return
	}

	frame := 0
	if q := r.URL.Query().Get("frame"); q != "" {
		frame, err = strconv.Atoi(q)
		if err != nil {
			s.writeError(w, sferrors.New(sferrors.ErrCodeInvalidInput, "frame must be an integer, got %q", q))
			return
		}
	}
	if frame < 0 || frame >= meta.FrameCount {
		s.writeError(w, sferrors.New(sferrors.ErrCodeInvalidInput, "frame %d out of range [0,%d)", frame, meta.FrameCount))
		return
	}

	s.writeJSON(w, http.StatusOK, offsetResponse{
		Frame:    frame,
		Offset:   sprite.OffsetFor(meta.Geometry, meta.Grid.Columns, frame),
		Geometry: meta.Geometry,
	})
}

type errorResponse struct {
	Code    sferrors.Code `json:"code"`
	Message string        `json:"message"`
}

// writeError maps the error taxonomy onto status codes. Validation
// errors are the client's fault; collaborator failures surface as bad
// gateway so callers can distinguish them from server bugs.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := sferrors.GetCode(err)

	status := http.StatusInternalServerError
	switch code {
	case sferrors.ErrCodeInvalidInput, sferrors.ErrCodeInvalidGrid,
		sferrors.ErrCodeInvalidPrompt, sferrors.ErrCodeInvalidFPS:
		status = http.StatusBadRequest
	case sferrors.ErrCodeNotFound, sferrors.ErrCodeSheetNotFound:
		status = http.StatusNotFound
	case sferrors.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	case sferrors.ErrCodeGenerationFailed, sferrors.ErrCodeImageLoad,
		sferrors.ErrCodeNetwork, sferrors.ErrCodeUnauthorized:
		status = http.StatusBadGateway
	}

	if status >= 500 {
		s.log.Error("request failed", "err", err)
	} else {
		s.log.Debug("request rejected", "err", err)
	}

	if code == "" {
		code = sferrors.ErrCodeInternal
	}
	s.writeJSON(w, status, errorResponse{Code: code, Message: sferrors.UserMessage(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

// logRequests logs method, path, status and duration for every request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
