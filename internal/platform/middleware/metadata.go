package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"intake-gateway/pkg/requestcontext"
)

// ClientMetadata extracts the client IP and a parsed device description
// from the request. Backup records and audit events carry both.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.UserAgent()
		ctx := requestcontext.WithClientMetadata(r.Context(), clientIP(r), ua)
		ctx = requestcontext.WithDevice(ctx, describeDevice(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	// The gateway sits behind the institutional load balancer.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func describeDevice(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	parts := []string{ua.OS()}
	if name != "" {
		parts = append(parts, name+" "+version)
	}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	}
	return strings.Join(parts, "; ")
}
