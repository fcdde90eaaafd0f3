package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/nativebox/internal/auth"
	"github.com/danmuck/nativebox/internal/native"
	"github.com/danmuck/nativebox/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Options configures the optional token guard and TLS.
type Options struct {
	// Token, when set, is required as a bearer token on mutating routes.
	Token   string
	TLSCert string
	TLSKey  string
}

func (o Options) tls() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

// Server exposes a repository's artifacts and metrics over HTTP.
type Server struct {
	Name     string
	Appeared time.Time

	opts   Options
	repo   *native.Repository
	router *gin.Engine
}

func New(name string, repo *native.Repository, opts Options) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(name))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Name:     name,
		Appeared: time.Now(),
		opts:     opts,
		repo:     repo,
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if s.repo.Closed() {
			status = "closed"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"uptime":    time.Since(s.Appeared).String(),
			"service":   s.Name,
			"artifacts": s.repo.Size(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/artifacts", func(c *gin.Context) {
		artifacts := s.repo.Artifacts()
		infos := make([]native.Info, 0, len(artifacts))
		for _, a := range artifacts {
			infos = append(infos, a.Info())
		}
		c.JSON(http.StatusOK, gin.H{
			"dir":       s.repo.Dir(),
			"artifacts": infos,
		})
	})

	s.router.GET("/artifacts/:namespace/:name", func(c *gin.Context) {
		a, ok := s.repo.Lookup(c.Param("namespace"), c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": native.ErrNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, a.Info())
	})

	guard := func(c *gin.Context) { c.Next() }
	if s.opts.Token != "" {
		guard = auth.Require(auth.StaticToken{Token: s.opts.Token})
	}
	s.router.POST("/artifacts/:namespace/:name/load", guard, func(c *gin.Context) {
		namespace, name := c.Param("namespace"), c.Param("name")
		if err := s.repo.LoadKey(namespace, name); err != nil {
			_ = c.Error(err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		a, ok := s.repo.Lookup(namespace, name)
		if !ok {
			c.JSON(http.StatusGone, gin.H{"error": native.ErrRepositoryClosed.Error()})
			return
		}
		c.JSON(http.StatusOK, a.Info())
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, native.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, native.ErrInvalidState), errors.Is(err, native.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, native.ErrRepositoryClosed):
		return http.StatusGone
	case errors.Is(err, native.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln, over TLS when Options names a key pair. ln is
// closed on return.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", ln.Addr().String()).
			Str("service", s.Name).
			Bool("tls", s.opts.tls()).
			Msg("status server listening")
		if s.opts.tls() {
			errCh <- srv.ServeTLS(ln, s.opts.TLSCert, s.opts.TLSKey)
			return
		}
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Str("service", s.Name).Msg("status server stopped")
	return nil
}
