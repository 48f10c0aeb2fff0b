package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"

	"feedflow/config"
	"feedflow/internal/buffer"
	"feedflow/internal/metrics"
	"feedflow/internal/router"
	"feedflow/internal/shutdown"
	"feedflow/internal/sink"
	"feedflow/internal/status"
	"feedflow/internal/stream"
	"feedflow/logger"
	"feedflow/models"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Path to configuration file (default "+config.DefaultConfigPath+")")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return 1
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		return 1
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Feedflow.Name,
		"version":     cfg.Feedflow.Version,
		"environment": config.AppEnvironment(),
		"channels":    cfg.Source.Channels,
	}).Info("starting feedflow")

	coord := shutdown.New(cfg.Shutdown.Timeout, log)
	ctx, cancel := coord.Notify(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	metrics.Init()
	if cfg.Metrics.CloudWatch.Enabled {
		if err := metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace); err != nil {
			log.WithError(err).Warn("cloudwatch metrics disabled")
		}
	}

	buffers, err := openBuffers(ctx, cfg, coord, log)
	if err != nil {
		log.WithError(err).Error("failed to open sinks")
		coord.Close()
		return 1
	}
	if err := checkChannels(cfg.Source.Channels, buffers); err != nil {
		log.WithError(err).Error("channel configuration rejected")
		coord.Close()
		return 1
	}

	r := router.New(buffers, log)
	manager := stream.New(stream.OptionsFromConfig(cfg), r, buffers, log)

	if cfg.Metrics.Enabled {
		srv := status.NewServer(status.Options{
			Address: cfg.Metrics.Address,
			Health: func() (string, bool) {
				s := manager.State()
				return s.String(), s == stream.StateSubscribed || s == stream.StateStreaming
			},
			Buffers: buffers.Stats,
		}, log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.WithComponent("status").WithError(err).Error("status server stopped")
			}
		}()
	}

	var result atomic.Int32
	err = coord.Run(ctx, func(ctx context.Context) error {
		reason, runErr := manager.Run(ctx)
		result.Store(int32(reason))
		return runErr
	})
	reason := stream.TerminationReason(result.Load())

	fields := logger.Fields{
		"reason":    reason.String(),
		"delivered": r.Count(router.Delivered),
		"skipped":   r.Count(router.Skipped),
		"malformed": r.Count(router.Malformed),
		"pending":   buffers.Pending(),
	}
	if reason.Fatal() {
		log.WithError(err).WithFields(fields).Error("feedflow terminated")
		return 1
	}
	if err != nil {
		log.WithError(err).WithFields(fields).Warn("feedflow stopped with errors")
		return 0
	}
	log.WithFields(fields).Info("feedflow stopped")
	return 0
}

// openBuffers builds one sink and buffer per configured destination, in
// routing order. Each sink is registered for closing after the drain.
func openBuffers(ctx context.Context, cfg *config.Config, coord *shutdown.Coordinator, log *logger.Log) (*buffer.Set, error) {
	log = logger.Or(log)
	names := make([]string, 0, len(cfg.Sinks))
	for name := range cfg.Sinks {
		if models.SchemaFor(models.Destination(name)) == nil {
			return nil, fmt.Errorf("sinks.%s: unknown destination", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var bufs []*buffer.Buffer
	for _, d := range models.Destinations {
		sc, ok := cfg.Sinks[string(d)]
		if !ok {
			continue
		}
		s, err := sink.New(ctx, d, sc, cfg.Storage, log)
		if err != nil {
			return nil, fmt.Errorf("sinks.%s: %w", d, err)
		}
		coord.Register(s.Name(), s)

		size, interval := cfg.BatchFor(string(d))
		bufs = append(bufs, buffer.New(d, s, size, interval, log))
		log.WithComponent("main").WithFields(logger.Fields{
			"destination":    string(d),
			"sink":           s.Name(),
			"batch_size":     size,
			"batch_interval": interval.String(),
		}).Info("destination ready")
	}
	log.WithComponent("main").WithFields(logger.Fields{"destinations": names}).Debug("sinks opened")
	return buffer.NewSet(bufs...), nil
}

// checkChannels rejects subscriptions whose data would have nowhere to go.
func checkChannels(channels []string, buffers *buffer.Set) error {
	for _, ch := range channels {
		d, ok := router.Classify(ch)
		if !ok {
			return fmt.Errorf("channel %q matches no known destination", ch)
		}
		if _, ok := buffers.Get(d); !ok {
			return fmt.Errorf("channel %q routes to %s, which has no sink configured", ch, d)
		}
	}
	return nil
}
