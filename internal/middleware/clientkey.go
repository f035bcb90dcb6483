package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// SessionHeader lets a browser tab keep its own conversation behind a shared IP.
const SessionHeader = "X-Session-ID"

// ClientKey identifies the caller for rate limiting. It expects chi's RealIP
// middleware to have resolved forwarded addresses into RemoteAddr.
func ClientKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// SessionKey identifies the caller's conversation: the X-Session-ID header when
// it holds a UUID, the client key otherwise.
func SessionKey(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(SessionHeader)); err == nil {
		return "sid:" + id.String()
	}
	return "ip:" + ClientKey(r)
}
