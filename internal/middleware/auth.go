package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	DeviceKey contextKey = "device"

	// DeviceHeader carries the client-generated partition key. It is not a credential.
	DeviceHeader = "X-Device-ID"
)

// RequireDevice reads and validates the device header and stores it in the context.
func RequireDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := strings.TrimSpace(r.Header.Get(DeviceHeader))
		if device == "" {
			writeError(w, http.StatusBadRequest, "missing "+DeviceHeader+" header")
			return
		}
		if err := ValidateDeviceID(device); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), DeviceKey, device)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDeviceFromContext extracts device from context
func GetDeviceFromContext(ctx context.Context) string {
	if device, ok := ctx.Value(DeviceKey).(string); ok {
		return device
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":` + quote(msg) + `}`))
}
