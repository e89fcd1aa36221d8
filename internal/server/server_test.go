package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/pixeldrift/spriteforge/pkg/cache"
	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
	"github.com/pixeldrift/spriteforge/pkg/gen"
	"github.com/pixeldrift/spriteforge/pkg/sprite"
)

// stubGenerator returns a fixed image or error without calling any
// external service.
type stubGenerator struct {
	image []byte
	err   error
}

func (s *stubGenerator) Generate(_ context.Context, req gen.Request) (*gen.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &gen.Result{
		Image:      s.image,
		Ratio:      sprite.Classify(req.Grid.Columns, req.Grid.Rows),
		FrameCount: req.Grid.FrameCount(),
	}, nil
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, g Generator) http.Handler {
	t.Helper()
	logger := log.New(io.Discard)
	return New(logger, g, newTestStore(t)).Router()
}

// newTestStore builds a throwaway file-backed sheet store.
func newTestStore(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() failed: %v", err)
	}
	return c
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{image: testPNG(t, 64, 64)})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGenerateSheetOffsetFlow(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{image: testPNG(t, 512, 512)})

	// Generate.
	body := `{"prompt": "a running fox", "columns": 4, "rows": 4}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var genResp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &genResp); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}
	if genResp.ID == "" {
		t.Fatal("response should carry a sheet id")
	}
	if genResp.Ratio != sprite.RatioSquare {
		t.Errorf("ratio = %q, want 1:1", genResp.Ratio)
	}
	if genResp.FrameCount != 16 {
		t.Errorf("frame count = %d, want 16", genResp.FrameCount)
	}
	if genResp.Geometry.FrameWidth != 128 || genResp.Geometry.FrameHeight != 128 {
		t.Errorf("geometry = %+v, want 128x128", genResp.Geometry)
	}

	// Fetch the stored image.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sheets/"+genResp.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("sheet status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}

	// Derive an offset.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sheets/"+genResp.ID+"/offset?frame=6", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("offset status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var offResp offsetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &offResp); err != nil {
		t.Fatalf("decode offset response: %v", err)
	}
	want := sprite.Offset{X: -256, Y: -128}
	if offResp.Offset != want {
		t.Errorf("offset = %+v, want %+v", offResp.Offset, want)
	}
}

func TestGenerateValidation(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{image: testPNG(t, 64, 64)})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"zero columns", `{"prompt": "fox", "columns": 0, "rows": 4}`},
		{"oversized grid", `{"prompt": "fox", "columns": 40, "rows": 4}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestGenerateUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{
		err: sferrors.New(sferrors.ErrCodeGenerationFailed, "service rejected the prompt"),
	})

	rec := httptest.NewRecorder()
	body := `{"prompt": "fox", "columns": 4, "rows": 4}`
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(body)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body)
	}

	var errResp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != sferrors.ErrCodeGenerationFailed {
		t.Errorf("error code = %q, want GENERATION_FAILED", errResp.Code)
	}
	if errResp.Message != "service rejected the prompt" {
		t.Errorf("message = %q, should be the user message without code prefix", errResp.Message)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{
		err: sferrors.New(sferrors.ErrCodeRateLimited, "slow down"),
	})

	rec := httptest.NewRecorder()
	body := `{"prompt": "fox", "columns": 4, "rows": 4}`
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(body)))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestSheetNotFound(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{image: testPNG(t, 64, 64)})

	for _, path := range []string{"/api/sheets/nope", "/api/sheets/nope/offset"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestOffsetValidation(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{image: testPNG(t, 512, 512)})

	rec := httptest.NewRecorder()
	body := `{"prompt": "fox", "columns": 4, "rows": 4}`
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body)
	}
	var genResp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &genResp); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}

	tests := []struct {
		name  string
		query string
	}{
		{"not a number", "?frame=abc"},
		{"negative", "?frame=-1"},
		{"out of range", "?frame=16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sheets/"+genResp.ID+"/offset"+tt.query, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body)
			}
		})
	}

	// Omitting the frame parameter defaults to frame 0.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sheets/"+genResp.ID+"/offset", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("default frame status = %d, want 200", rec.Code)
	}
	var offResp offsetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &offResp); err != nil {
		t.Fatalf("decode offset response: %v", err)
	}
	if offResp.Frame != 0 || offResp.Offset != (sprite.Offset{}) {
		t.Errorf("default offset = %+v, want frame 0 at origin", offResp)
	}
}
