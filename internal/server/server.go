// Package server exposes the scanner over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tdh8316/usernamescan/internal/platform"
	"github.com/tdh8316/usernamescan/internal/probe"
	"github.com/tdh8316/usernamescan/internal/scan"
)

// DefaultSuggestionPlatforms are checked for suggested handles when the
// request names none.
var DefaultSuggestionPlatforms = []string{"instagram", "twitter", "github"}

const (
	maxSuggestions  = 20
	shutdownTimeout = 10 * time.Second
)

// Scanner is the part of *scan.Scanner the API serves.
type Scanner interface {
	Scan(ctx context.Context, handle string) (*scan.Report, error)
	ScanMany(ctx context.Context, handles, platformIDs []string) ([]*scan.Report, error)
	Check(ctx context.Context, handle, platformID string) (scan.Result, error)
	CheckRaw(ctx context.Context, handle, platformID string) (probe.Outcome, error)
	Platforms() []platform.Descriptor
}

type Config struct {
	Addr        string
	Mode        string
	CacheTTL    time.Duration
	RateLimit   float64
	Burst       int
	CORSOrigins []string
}

type Server struct {
	scanner Scanner
	cfg     Config
	log     logrus.FieldLogger
	cache   *cache.Cache
	handler http.Handler
}

func New(scanner Scanner, cfg Config, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{scanner: scanner, cfg: cfg, log: log}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	router := gin.New()
	router.Use(requestID(), accessLog(log), recovery(log))
	router.GET("/healthz", s.health)

	api := router.Group("/api", rateLimit(limiter))
	api.GET("/platforms", s.platforms)
	api.GET("/check-username", s.checkUsername)
	api.GET("/scan", s.scanGet)
	api.POST("/scan", s.scanPost)
	api.POST("/suggestions/check", s.checkSuggestions)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", headerRequestID},
		ExposedHeaders: []string{headerRequestID},
	}).Handler(router)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
