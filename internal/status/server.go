// Package status serves health, prometheus metrics and buffer state over
// HTTP while the feed runs.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"feedflow/internal/buffer"
	"feedflow/internal/metrics"
	"feedflow/logger"
)

const defaultPort = "9090"

// Options wires the server to the running pipeline. Health reports the
// connection state name and whether it counts as healthy.
type Options struct {
	Address        string
	History        int
	SampleInterval time.Duration
	Health         func() (string, bool)
	Buffers        func() []buffer.Stats
}

type Server struct {
	opts          Options
	log           *logger.Log
	events        *eventStore
	logs          *logStore
	metricHandler metrics.MetricHandlerID
	sampler       *resourceSampler
	httpServer    *http.Server
}

func NewServer(opts Options, log *logger.Log) *Server {
	log = logger.Or(log)
	opts.Address = normalizeAddress(opts.Address)
	if opts.History <= 0 {
		opts.History = 200
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 5 * time.Second
	}
	if opts.Health == nil {
		opts.Health = func() (string, bool) { return "unknown", true }
	}
	if opts.Buffers == nil {
		opts.Buffers = func() []buffer.Stats { return nil }
	}

	s := &Server{
		opts:    opts,
		log:     log,
		events:  newEventStore(opts.History),
		logs:    newLogStore(opts.History),
		sampler: newResourceSampler(opts.History, opts.SampleInterval, "/", log),
	}
	s.metricHandler = metrics.RegisterMetricHandler(s.events.handle)
	log.AddHook(s.logs)
	return s
}

func (s *Server) Address() string { return s.opts.Address }

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	defer s.cleanup()

	s.sampler.start(ctx)
	s.httpServer = &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.WithComponent("status").WithFields(logger.Fields{"address": s.opts.Address}).Info("status server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	s.logs.close()
	s.sampler.stop()
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		state, ok := s.opts.Health()
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"state": state, "healthy": ok})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/api/buffers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"buffers": s.opts.Buffers()})
	})

	r.GET("/api/events", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"events": s.events.snapshot()})
	})

	r.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logs.snapshot()})
	})

	r.GET("/api/resources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"resources": s.sampler.snapshot()})
	})

	return r
}

// normalizeAddress turns loose listen specs (":9090", "host", a URL) into
// host:port.
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:" + defaultPort
	}
	if strings.Contains(addr, "://") {
		if u, err := url.Parse(addr); err == nil && u.Host != "" {
			addr = u.Host
		}
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultPort
		}
		return net.JoinHostPort(host, port)
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), defaultPort)
}
