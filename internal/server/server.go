// Package server exposes the tagger over HTTP so a browser extension can
// post a finished download and receive the tagged file back.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

const (
	defaultMaxUpload = 256 << 20
	shutdownTimeout  = 5 * time.Second
)

// Config configures a Server. The zero value listens on :8080, accepts
// any origin and discards logs.
type Config struct {
	Addr           string
	AllowOrigins   []string
	MaxUploadBytes int64
	Logger         *slog.Logger
	Version        string
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	log    *slog.Logger
	sink   *types.DedupSink
	router *gin.Engine
}

// Response is the JSON body of every non-file reply.
type Response struct {
	Success     bool                    `json:"success"`
	Message     string                  `json:"message,omitempty"`
	Diagnostics *types.DiagnosticReport `json:"diagnostics,omitempty"`
}

// New builds a server and its routes.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	l := cfg.Logger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg: cfg,
		log: l,
		// one sink for all requests keeps repeated failures to one log line
		sink: types.NewDedupSink(l),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	c := cors.DefaultConfig()
	if len(s.cfg.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = s.cfg.AllowOrigins
	}
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.ExposeHeaders = []string{headerFormat, headerDiagnostics, "Content-Disposition"}
	r.Use(cors.New(c))

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.health)
		api.POST("/tag", s.tag)
	}
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Diagnostics returns everything recorded across requests so far.
func (s *Server) Diagnostics() *types.DiagnosticReport { return s.sink.Report() }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": s.cfg.Version,
	})
}
