package gen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixeldrift/spriteforge/pkg/cache"
	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
	"github.com/pixeldrift/spriteforge/pkg/sprite"
)

// testPNG is a tiny valid PNG used as the service's fake output.
func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func imageResponse(t *testing.T, raw []byte) apiResponse {
	t.Helper()
	return apiResponse{Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)}
}

func TestGenerate(t *testing.T) {
	raw := testPNG(t)

	var gotReq apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images" {
			t.Errorf("path = %q, want /v1/images", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(imageResponse(t, raw))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	res, err := client.Generate(context.Background(), Request{
		Prompt: "a running fox",
		Grid:   sprite.Grid{Columns: 4, Rows: 4},
	})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	if !bytes.Equal(res.Image, raw) {
		t.Error("result image does not match service payload")
	}
	if res.Ratio != sprite.RatioSquare {
		t.Errorf("ratio = %q, want 1:1", res.Ratio)
	}
	if res.FrameCount != 16 {
		t.Errorf("frame count = %d, want 16", res.FrameCount)
	}
	if res.Cached {
		t.Error("first generation should not be a cache hit")
	}

	if gotReq.AspectRatio != "1:1" {
		t.Errorf("request aspect_ratio = %q, want 1:1", gotReq.AspectRatio)
	}
	if gotReq.FrameCount != 16 {
		t.Errorf("request frame_count = %d, want 16", gotReq.FrameCount)
	}
	if !strings.Contains(gotReq.Prompt, "a running fox") {
		t.Errorf("request prompt %q lost the user prompt", gotReq.Prompt)
	}
	if !strings.Contains(gotReq.Prompt, "4 column") {
		t.Errorf("request prompt %q lost the grid instructions", gotReq.Prompt)
	}
}

func TestGenerateValidation(t *testing.T) {
	client := NewClient("http://unused", "k")

	_, err := client.Generate(context.Background(), Request{Prompt: "", Grid: sprite.Grid{Columns: 4, Rows: 4}})
	if !sferrors.Is(err, sferrors.ErrCodeInvalidPrompt) {
		t.Errorf("error code = %q, want INVALID_PROMPT", sferrors.GetCode(err))
	}

	_, err = client.Generate(context.Background(), Request{Prompt: "fox", Grid: sprite.Grid{Columns: 0, Rows: 4}})
	if !sferrors.Is(err, sferrors.ErrCodeInvalidGrid) {
		t.Errorf("error code = %q, want INVALID_GRID", sferrors.GetCode(err))
	}
}

func TestGenerateServiceRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiResponse{Error: "prompt violates content policy"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k")
	_, err := client.Generate(context.Background(), Request{
		Prompt: "fox",
		Grid:   sprite.Grid{Columns: 4, Rows: 4},
	})
	if !sferrors.Is(err, sferrors.ErrCodeGenerationFailed) {
		t.Fatalf("error code = %q, want GENERATION_FAILED", sferrors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "content policy") {
		t.Errorf("error %q should carry the service's message", err)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	raw := testPNG(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(imageResponse(t, raw))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", WithRetry(3, time.Millisecond))
	res, err := client.Generate(context.Background(), Request{
		Prompt: "fox",
		Grid:   sprite.Grid{Columns: 4, Rows: 4},
	})
	if err != nil {
		t.Fatalf("Generate() failed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if !bytes.Equal(res.Image, raw) {
		t.Error("result image does not match service payload")
	}
}

func TestGenerateErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   sferrors.Code
	}{
		{"unauthorized", http.StatusUnauthorized, sferrors.ErrCodeUnauthorized},
		{"forbidden", http.StatusForbidden, sferrors.ErrCodeUnauthorized},
		{"rate limited", http.StatusTooManyRequests, sferrors.ErrCodeRateLimited},
		{"server error", http.StatusInternalServerError, sferrors.ErrCodeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "k", WithRetry(1, time.Millisecond))
			_, err := client.Generate(context.Background(), Request{
				Prompt: "fox",
				Grid:   sprite.Grid{Columns: 4, Rows: 4},
			})
			if !sferrors.Is(err, tt.want) {
				t.Errorf("error code = %q, want %q", sferrors.GetCode(err), tt.want)
			}
		})
	}
}

func TestGenerateRateLimitedRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k")
	_, err := client.Generate(context.Background(), Request{
		Prompt: "fox",
		Grid:   sprite.Grid{Columns: 4, Rows: 4},
	})
	if !sferrors.Is(err, sferrors.ErrCodeRateLimited) {
		t.Fatalf("error code = %q, want RATE_LIMITED", sferrors.GetCode(err))
	}

	var rle *sferrors.RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatal("error should unwrap to a RateLimitedError")
	}
	if rle.RetryAfter != 30 {
		t.Errorf("retry after = %d, want 30", rle.RetryAfter)
	}
}

func TestGenerateCacheHit(t *testing.T) {
	raw := testPNG(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(imageResponse(t, raw))
	}))
	defer srv.Close()

	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() failed: %v", err)
	}

	client := NewClient(srv.URL, "k", WithCache(store, time.Hour))
	req := Request{Prompt: "fox", Grid: sprite.Grid{Columns: 4, Rows: 4}}

	first, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("first Generate() failed: %v", err)
	}
	if first.Cached {
		t.Error("first result should not be cached")
	}

	second, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Generate() failed: %v", err)
	}
	if !second.Cached {
		t.Error("second result should come from cache")
	}
	if !bytes.Equal(second.Image, raw) {
		t.Error("cached image does not match")
	}
	if calls.Load() != 1 {
		t.Errorf("service calls = %d, want 1", calls.Load())
	}

	// Refresh bypasses the cache.
	third, err := client.Generate(context.Background(), Request{Prompt: "fox", Grid: req.Grid, Refresh: true})
	if err != nil {
		t.Fatalf("refresh Generate() failed: %v", err)
	}
	if third.Cached {
		t.Error("refresh result should not be cached")
	}
	if calls.Load() != 2 {
		t.Errorf("service calls = %d, want 2 after refresh", calls.Load())
	}
}

func TestComposePrompt(t *testing.T) {
	got := ComposePrompt("a running fox", sprite.Grid{Columns: 4, Rows: 3})
	for _, want := range []string{"12 animation frames", "4 column", "3 row", "a running fox"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt %q missing %q", got, want)
		}
	}
}

func TestGenerateNoImageInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k")
	_, err := client.Generate(context.Background(), Request{
		Prompt: "fox",
		Grid:   sprite.Grid{Columns: 4, Rows: 4},
	})
	if !sferrors.Is(err, sferrors.ErrCodeGenerationFailed) {
		t.Errorf("error code = %q, want GENERATION_FAILED", sferrors.GetCode(err))
	}
}
