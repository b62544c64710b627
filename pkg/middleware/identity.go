package middleware

import (
	"net/http"
	"strings"
)

// Identity headers are set by the identity gateway after it verifies the
// caller; services trust them as-is.
const (
	UserIDHeader     = "X-User-ID"
	ProviderIDHeader = "X-Provider-ID"
)

func UserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

// ProviderID returns the provider the caller acts as, or "" when the
// caller is not a provider.
func ProviderID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ProviderIDHeader))
}
