package http

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"finboard/internal/config"
	"finboard/internal/core"
	"finboard/internal/dataset"
	applog "finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"
	"finboard/internal/upstream"
	appweb "finboard/web"
)

const staticMaxAge = 3600

// Deps are the collaborators NewServer wires into routes.
type Deps struct {
	Config  *config.Config
	Manual  *services.ManualService
	Dataset *dataset.Store
	Runtime *upstream.ConfigClient
	// Proxy receives every /api request no local route handles.
	Proxy  http.Handler
	Logger *applog.Logger
	// Static holds the SPA; defaults to the embedded build.
	Static fs.FS
}

type Server struct {
	http.Server
	cfg     *config.Config
	manual  *services.ManualService
	dataset *dataset.Store
	runtime *upstream.ConfigClient
	proxy   http.Handler
	logger  *applog.Logger
	logs    *applog.StructuredLogger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("http server: config is required")
	}
	if deps.Manual == nil {
		return nil, fmt.Errorf("http server: manual service is required")
	}
	if deps.Runtime == nil {
		return nil, fmt.Errorf("http server: runtime config client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	static := deps.Static
	if static == nil {
		sub, err := fs.Sub(appweb.StaticFS, "static")
		if err != nil {
			return nil, fmt.Errorf("mount embedded static FS: %w", err)
		}
		static = sub
	}

	httpLogger := logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		cfg:     deps.Config,
		manual:  deps.Manual,
		dataset: deps.Dataset,
		runtime: deps.Runtime,
		proxy:   deps.Proxy,
		logger:  httpLogger,
		logs:    applog.NewStructuredLogger(httpLogger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.Config.RateLimitPerMinute}),
		now:     time.Now,
	}
	if s.dataset == nil {
		s.dataset = dataset.Empty()
	}

	mux := http.NewServeMux()
	s.routes(mux, static)

	ips := security.NewClientIPResolver()
	s.tracer = trace.NewMiddleware(ips.ClientIP, s.logs)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = s.limiter.Middleware(ips.ClientIP, s.rateLimited, http.MethodPut, http.MethodPost)(handler)
	handler = headers.Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(httpLogger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, static fs.FS) {
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/healthz", s.handleHealth)

	if s.cfg.FeatureStaticDB {
		mux.HandleFunc("GET /api/db/accounts", s.handleAccounts)
		mux.HandleFunc("GET /api/db/accounts/{id}/balances", s.handleBalance)
		mux.HandleFunc("GET /api/db/accounts/{id}/transactions", s.handleTransactions)
		s.logger.Info("Static dataset routes enabled (demo mode)")
	} else {
		s.logger.Info("Static dataset routes disabled; proxy will service /api/db requests")
	}

	mux.HandleFunc("GET /api/db/accounts/{id}/manual-data", s.handleGetRentRoll)
	mux.HandleFunc("PUT /api/db/accounts/{id}/manual-data", s.handlePutRentRoll)

	mux.HandleFunc("GET /api/db/accounts/{id}/manual/property/{unit}/{field}", s.fieldHandler(core.DomainProperty, s.handleGetField))
	mux.HandleFunc("PUT /api/db/accounts/{id}/manual/property/{unit}/{field}", s.fieldHandler(core.DomainProperty, s.handlePutField))
	for _, d := range []core.Domain{core.DomainHELOC, core.DomainMortgage} {
		pattern := "/api/db/accounts/{id}/manual/" + string(d) + "/{field}"
		mux.HandleFunc("GET "+pattern, s.fieldHandler(d, s.handleGetField))
		mux.HandleFunc("PUT "+pattern, s.fieldHandler(d, s.handlePutField))
	}

	mux.HandleFunc("GET /api/manual/summary", s.handleSummary)
	mux.HandleFunc("PUT /api/manual/liabilities/{slug}", s.handlePutLiability)
	mux.HandleFunc("PUT /api/manual/assets/"+core.AssetSlug, s.handlePutAsset)
	mux.HandleFunc("POST /api/migrate/drop-manual-data-fk", s.handleDropFK)

	if s.proxy != nil {
		mux.Handle("/api/", s.proxy)
	} else {
		mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusNotFound, "not_found").Write(w, r)
		})
	}

	mux.Handle("/", security.StaticAssetMiddleware(staticMaxAge)(spaHandler(static)))
}

// spaHandler serves files from static, falling back to index.html so
// client-side routes load the app shell.
func spaHandler(static fs.FS) http.Handler {
	files := http.FileServer(http.FS(static))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed").Write(w, r)
			return
		}
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}
		if info, err := fs.Stat(static, name); err != nil || info.IsDir() {
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFileFS(w, r, static, "index.html")
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate_limited").Write(w, r)
}

// Shutdown stops background work, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
