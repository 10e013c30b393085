package handler

import (
	"net/http"
	"strings"
)

// resolveBaseURL returns the externally visible scheme://host of the
// service. A configured public URL wins, then X-Forwarded-Proto with
// X-Forwarded-Host when the proxy in front is trusted, then the request's
// own scheme and Host. Forwarded headers are client-controlled otherwise.
func resolveBaseURL(r *http.Request, public string, trustProxy bool) string {
	if public != "" {
		return strings.TrimSuffix(public, "/")
	}

	if trustProxy {
		proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
		host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
		if proto != "" && host != "" {
			return proto + "://" + host
		}
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if r.Host != "" {
		return scheme + "://" + r.Host
	}
	return scheme + "://" + r.URL.Host
}

// firstHeaderValue takes the client-most entry of a comma separated list
// appended to by chained proxies.
func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
