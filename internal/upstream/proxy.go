package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
)

const defaultProxyTimeout = 30 * time.Second

// Proxy forwards requests to the backend unchanged, path included.
type Proxy struct {
	target  *url.URL
	timeout time.Duration
	rp      *httputil.ReverseProxy
}

// NewProxy builds a proxy to backendURL. Each forwarded request is bounded
// by timeout.
func NewProxy(backendURL string, timeout time.Duration) (*Proxy, error) {
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", backendURL)
	}
	if timeout <= 0 {
		timeout = defaultProxyTimeout
	}

	p := &Proxy{target: target, timeout: timeout}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
		},
		ErrorHandler: p.handleError,
	}
	return p, nil
}

func (p *Proxy) Target() string {
	return p.target.String()
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	slog.DebugContext(ctx, "Proxying request",
		"method", r.Method,
		"path", r.URL.RequestURI(),
		"target", p.target.Host,
	)
	p.rp.ServeHTTP(w, r.WithContext(ctx))
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Backend proxy error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "Backend proxy error",
		"message": err.Error(),
	})
}
