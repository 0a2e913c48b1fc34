package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"activityplanner/internal/tool"
)

const requestIDHeader = "X-Request-ID"

// HTTPServer serves the REST tool routes, the JSON-RPC endpoint at /mcp
// and, when configured, a metrics handler.
type HTTPServer struct {
	addr         string
	dispatcher   *Dispatcher
	logger       *slog.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxBody      int64
	router       chi.Router
	server       *http.Server
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	Dispatcher   *Dispatcher
	Metrics      http.Handler // nil disables the metrics route
	MetricsPath  string
	Logger       *slog.Logger
}

func NewHTTPServer(cfg HTTPConfig) *HTTPServer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 200 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &HTTPServer{
		addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		dispatcher:   cfg.Dispatcher,
		logger:       cfg.Logger,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		maxBody:      cfg.MaxBodyBytes,
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/health", s.handleHealth)
	r.Get("/tools", s.handleCatalogue)
	r.Post("/tools/{name}", s.handleTool)
	r.Post("/mcp", s.handleRPC)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics)
	}
	s.router = r
	return s
}

func (s *HTTPServer) Name() string { return "http" }

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler { return s.router }

// Start blocks serving until ctx is cancelled or Stop is called.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout, // a browser task can run for minutes
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("http server started", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "err", err)
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *HTTPServer) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *HTTPServer) handleCatalogue(rw http.ResponseWriter, r *http.Request) {
	tools := make([]listedTool, 0)
	for _, desc := range tool.Catalogue() {
		tools = append(tools, listedTool{Name: desc.Name, Description: desc.Description, InputSchema: desc.InputSchema})
	}
	writeJSON(rw, http.StatusOK, map[string]any{"tools": tools})
}

type toolResponse struct {
	Success bool    `json:"success"`
	Result  *string `json:"result,omitempty"`
	Error   *string `json:"error,omitempty"`
}

func failure(msg string) toolResponse { return toolResponse{Success: false, Error: &msg} }

func (s *HTTPServer) handleTool(rw http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, s.maxBody))
	if err != nil {
		writeJSON(rw, http.StatusRequestEntityTooLarge, failure("request body too large"))
		return
	}
	args := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeJSON(rw, http.StatusBadRequest, failure(fmt.Sprintf("invalid JSON body: %v", err)))
			return
		}
	}

	res, ok := s.dispatcher.Call(r.Context(), name, args)
	if !ok {
		writeJSON(rw, http.StatusNotFound, failure(fmt.Sprintf("unknown tool: %s", name)))
		return
	}
	if res.OK() {
		text := res.Text
		writeJSON(rw, http.StatusOK, toolResponse{Success: true, Result: &text})
		return
	}
	writeJSON(rw, http.StatusOK, failure(res.Text))
}

func (s *HTTPServer) handleRPC(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, s.maxBody))
	if err != nil {
		writeJSON(rw, http.StatusOK, rpcError(nil, rpcInvalidRequest, "request body too large"))
		return
	}
	resp := s.dispatcher.HandleRPC(r.Context(), body)
	if resp == nil {
		rw.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		rw.Header().Set(requestIDHeader, id)
		next.ServeHTTP(rw, r.WithContext(tool.WithRequestID(r.Context(), id)))
	})
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", tool.RequestID(r.Context()),
		)
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
