package errors

import (
	"strings"
	"unicode"
)

// Playback speed bounds enforced at the user-input boundary. The core
// clock itself treats a non-positive speed as "not ticking" rather
// than an error.
const (
	MinFPS = 1.0
	MaxFPS = 60.0
)

// Grid bounds enforced at the user-input boundary. The upstream
// service produces unusably small frames beyond this.
const MaxGridSide = 16

// ValidatePrompt validates a generation prompt.
//
// The rules are intentionally conservative:
//   - No empty prompts
//   - No control characters
//   - Maximum length of 2000 characters
//
// Content policy is the generation service's job; this only rejects
// input that cannot form a sane request.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return New(ErrCodeInvalidPrompt, "prompt cannot be empty")
	}

	if len(prompt) > 2000 {
		return New(ErrCodeInvalidPrompt, "prompt too long (max 2000 characters)")
	}

	for _, r := range prompt {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return New(ErrCodeInvalidPrompt, "prompt contains invalid control characters")
		}
	}

	return nil
}

// ValidateGrid validates a declared grid shape. Columns and rows must
// each be in [1, MaxGridSide].
func ValidateGrid(columns, rows int) error {
	if columns < 1 || rows < 1 {
		return New(ErrCodeInvalidGrid, "grid must be at least 1x1, got %dx%d", columns, rows)
	}
	if columns > MaxGridSide || rows > MaxGridSide {
		return New(ErrCodeInvalidGrid, "grid must be at most %dx%d, got %dx%d", MaxGridSide, MaxGridSide, columns, rows)
	}
	return nil
}

// ValidateFPS validates a playback speed against the supported range.
func ValidateFPS(fps float64) error {
	if fps < MinFPS || fps > MaxFPS {
		return New(ErrCodeInvalidFPS, "fps must be between %g and %g, got %g", MinFPS, MaxFPS, fps)
	}
	return nil
}

// ClampGrid forces a grid shape into the valid range. The caller-side
// clamp that the geometry core relies on as an invariant.
func ClampGrid(columns, rows int) (int, int) {
	return clampSide(columns), clampSide(rows)
}

func clampSide(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxGridSide {
		return MaxGridSide
	}
	return n
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
