// Package gen implements the client for the external sprite-sheet
// generation service.
//
// The service accepts a prompt plus one of five canonical aspect
// ratios and returns a single raster image containing the requested
// animation frames as a grid. This package composes the outbound
// request (including the ratio classified from the grid shape),
// handles retry for transient failures, and caches results by
// generation parameters so identical requests are served locally.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pixeldrift/spriteforge/pkg/cache"
	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
	"github.com/pixeldrift/spriteforge/pkg/httputil"
	"github.com/pixeldrift/spriteforge/pkg/sprite"
)

const (
	httpTimeout = 120 * time.Second // image generation is slow

	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

// Request describes one sheet generation.
type Request struct {
	Prompt string      // what to draw, without grid instructions
	Grid   sprite.Grid // declared frame layout

	// Refresh bypasses the cache and always calls the service.
	Refresh bool
}

// Result is a completed generation.
type Result struct {
	Image      []byte       // encoded sheet image (PNG unless the service says otherwise)
	Ratio      sprite.Ratio // canonical ratio the request carried
	FrameCount int          // total frames requested
	Cached     bool         // served from cache without calling the service
}

// Client calls the sprite-sheet generation service. It handles request
// composition, retry for transient failures, and result caching.
type Client struct {
	http   *http.Client
	base   string
	apiKey string
	cache  cache.Cache
	ttl    time.Duration

	retryAttempts int
	retryDelay    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithCache sets the result cache and entry TTL.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.ttl = ttl
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.http = h }
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(cl *Client) {
		cl.retryAttempts = attempts
		cl.retryDelay = delay
	}
}

// NewClient creates a client for the service at baseURL, authenticating
// with apiKey. Without WithCache, results are not cached.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		http:          &http.Client{Timeout: httpTimeout},
		base:          baseURL,
		apiKey:        apiKey,
		cache:         cache.NewNullCache(),
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiRequest is the service's wire format for a generation call.
type apiRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	FrameCount  int    `json:"frame_count"`
}

// apiResponse is the service's wire format for a generation response.
// Image is a data URL or bare base64 payload; Error carries the
// service's rejection message on failure.
type apiResponse struct {
	Image string `json:"image"`
	Error string `json:"error,omitempty"`
}

// Generate requests a sprite sheet for req. The grid shape is
// classified into the nearest canonical ratio, the prompt is expanded
// with grid instructions, and the result is cached by (prompt, ratio,
// frame count). Transient failures are retried with backoff; a service
// rejection surfaces as a GENERATION_FAILED error carrying the
// service's own message.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := sferrors.ValidatePrompt(req.Prompt); err != nil {
		return nil, err
	}
	if err := sferrors.ValidateGrid(req.Grid.Columns, req.Grid.Rows); err != nil {
		return nil, err
	}

	ratio := sprite.Classify(req.Grid.Columns, req.Grid.Rows)
	frames := req.Grid.FrameCount()
	key := cache.SheetKey(req.Prompt, string(ratio), frames)

	if !req.Refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			return &Result{Image: data, Ratio: ratio, FrameCount: frames, Cached: true}, nil
		}
	}

	payload := apiRequest{
		Prompt:      ComposePrompt(req.Prompt, req.Grid),
		AspectRatio: string(ratio),
		FrameCount:  frames,
	}

	var img []byte
	err := httputil.Retry(ctx, c.retryAttempts, c.retryDelay, func() error {
		var err error
		img, err = c.post(ctx, payload)
		return err
	})
	if err != nil {
		return nil, err
	}

	_ = c.cache.Set(ctx, key, img, c.ttl)
	return &Result{Image: img, Ratio: ratio, FrameCount: frames}, nil
}

// ComposePrompt expands a user prompt with the grid instructions the
// service needs to lay frames out as a sheet.
func ComposePrompt(prompt string, grid sprite.Grid) string {
	return fmt.Sprintf(
		"sprite sheet of %d animation frames arranged in a %d column by %d row grid, "+
			"each frame a consecutive step of a looping animation, uniform frame size, "+
			"plain background: %s",
		grid.FrameCount(), grid.Columns, grid.Rows, prompt,
	)
}

func (c *Client) post(ctx context.Context, payload apiRequest) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/images", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &httputil.RetryableError{Err: sferrors.Wrap(sferrors.ErrCodeNetwork, err, "call generation service")}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, sferrors.Wrap(sferrors.ErrCodeGenerationFailed, err, "decode service response")
	}
	if apiResp.Image == "" {
		return nil, sferrors.New(sferrors.ErrCodeGenerationFailed, "service returned no image")
	}

	return sprite.DecodeDataURL(apiResp.Image)
}

// checkStatus maps service status codes onto the error taxonomy.
// 5xx responses are wrapped as retryable; everything else is terminal.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return sferrors.New(sferrors.ErrCodeUnauthorized, "generation service rejected the API key")
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return sferrors.Wrap(sferrors.ErrCodeRateLimited,
			&sferrors.RateLimitedError{RetryAfter: retryAfter},
			"generation service rate limit reached")
	case resp.StatusCode >= 500:
		return &httputil.RetryableError{
			Err: sferrors.New(sferrors.ErrCodeNetwork, "generation service error: status %d", resp.StatusCode),
		}
	default:
		return sferrors.New(sferrors.ErrCodeGenerationFailed, "generation rejected: %s", serviceMessage(resp))
	}
}

// serviceMessage extracts the service's error message from a non-OK
// response body, falling back to the raw status.
func serviceMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var apiResp apiResponse
		if json.Unmarshal(data, &apiResp) == nil && apiResp.Error != "" {
			return apiResp.Error
		}
	}
	return resp.Status
}
