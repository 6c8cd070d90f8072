package ai

import (
	"errors"
	"strings"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyMedia is a precondition failure: analysis needs at least one media item.
var ErrEmptyMedia = errors.New("no media items provided")

// ErrNotConfigured means the upstream model credential is absent.
var ErrNotConfigured = errors.New("AI service not configured. Check API key.")

// ErrMalformedResponse covers empty or unparseable model output. Never retried.
var ErrMalformedResponse = errors.New("malformed analysis response")

// ErrUnsupportedMedia is returned by providers that cannot take a media kind.
var ErrUnsupportedMedia = errors.New("media type not supported by provider")

// GenericFailureMessage is shown when a failure carries no usable detail.
const GenericFailureMessage = "Analysis failed. Please ensure images are clear and try again."

// LooksLikeQuota matches provider error text that signals rate or quota limits.
func LooksLikeQuota(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "429") || strings.Contains(m, "quota") ||
		strings.Contains(m, "resource_exhausted") || strings.Contains(m, "rate limit")
}
