package middleware

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

// ValidateDeviceID: device id harus UUID
func ValidateDeviceID(device string) error {
	if device == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if _, err := uuid.Parse(device); err != nil {
		return fmt.Errorf("invalid device ID format")
	}
	return nil
}

// ValidateScanID validates scan ID format
func ValidateScanID(scanID string) error {
	if scanID == "" {
		return fmt.Errorf("scan ID cannot be empty")
	}
	if _, err := uuid.Parse(scanID); err != nil {
		return fmt.Errorf("invalid scan ID format")
	}
	return nil
}

// ValidateMediaMIME accepts image/* and video/* only.
func ValidateMediaMIME(mime string) error {
	m := strings.ToLower(strings.TrimSpace(mime))
	if strings.HasPrefix(m, "image/") || strings.HasPrefix(m, "video/") {
		return nil
	}
	return fmt.Errorf("unsupported media type: %q", mime)
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
