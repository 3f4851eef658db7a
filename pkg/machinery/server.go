package machinery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	// Path is the single endpoint calls are posted to.
	Path = "/x"
	// ServiceHeader carries the call key.
	ServiceHeader = "X-Machinery-Service"

	defaultMaxBody         = 8 << 20
	defaultShutdownTimeout = 5 * time.Second
)

// Server exposes a HandlerFunc over HTTP.
type Server struct {
	handler  HandlerFunc
	logger   *slog.Logger
	observer Observer
	maxBody  int64
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request and lifecycle logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver reports every handled call to o.
func WithObserver(o Observer) Option {
	return func(s *Server) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithMaxBodySize limits the request body; larger payloads are rejected.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New creates a Server dispatching to h.
func New(h HandlerFunc, opts ...Option) *Server {
	s := &Server{
		handler:  h,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: NoopObserver,
		maxBody:  defaultMaxBody,
	}
	for _, o := range opts {
		o(s)
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc(Path, s.serveCall)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) serveCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	values := r.Header.Values(ServiceHeader)
	if len(values) == 0 {
		s.observer.Call("", CallResultBadRequest, 0)
		writeJSON(w, http.StatusBadRequest, errorString(MsgMissingService))
		return
	}
	name := values[0]
	if !utf8.ValidString(name) {
		s.observer.Call("", CallResultBadRequest, 0)
		writeJSON(w, http.StatusBadRequest, errorString(MsgInvalidService))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.logger.Warn("read request body", "service", name, "error", err)
		s.observer.Call(name, CallResultDeserializeFailed, 0)
		writeJSON(w, http.StatusOK, DeserializeFailed())
		return
	}

	start := time.Now()
	out := s.handler(WithHeaders(r.Context(), r.Header.Clone()), name, string(body))
	d := time.Since(start)

	result := Classify(out)
	s.observer.Call(name, result, d)
	s.logger.Debug("machinery call", "service", name, "result", result, "duration", d)
	writeJSON(w, http.StatusOK, out)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("machinery listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("machinery server stopped")
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
