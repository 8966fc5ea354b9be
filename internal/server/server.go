// Package server exposes the cycle engine and compliance analytics over
// HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/fleetyard/internal/analytics"
	"github.com/zulandar/fleetyard/internal/cycle"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Engine    *cycle.Engine
	Analytics *analytics.Service
	Port      int
	Out       io.Writer
	Log       logrus.FieldLogger
	// JWTSecret verifies bearer tokens. Empty trusts the X-Operator-ID
	// header and grants every capability.
	JWTSecret string
	// Gatherer backs /metrics. Nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
	// StreamInterval is how often /events polls the fleet view. Zero means
	// 3 seconds.
	StreamInterval time.Duration
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := newRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Fleetyard API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newRouter validates opts and builds the gin engine with every route.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("server: engine is required")
	}
	if opts.Analytics == nil {
		return nil, fmt.Errorf("server: analytics is required")
	}
	if opts.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Log = l
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = 3 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(opts.Log))

	registerRoutes(router, opts)
	return router, nil
}
