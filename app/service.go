// Package app wires the configured backends into the running service: the
// schedule API, the dispatcher with its calculators and the observability
// subscribers of the event bus.
package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/api/schedules"
	"github.com/kilianp07/soh/config"
	"github.com/kilianp07/soh/core/clock"
	"github.com/kilianp07/soh/core/events"
	coremetrics "github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/core/monitoring"
	"github.com/kilianp07/soh/core/reading"
	"github.com/kilianp07/soh/core/schedule"
	"github.com/kilianp07/soh/core/soh"
	"github.com/kilianp07/soh/infra/logger"
	"github.com/kilianp07/soh/infra/metrics"
	inframon "github.com/kilianp07/soh/infra/monitoring"
	"github.com/kilianp07/soh/infra/mqtt"
	_ "github.com/kilianp07/soh/infra/readings"
	_ "github.com/kilianp07/soh/infra/store"
	"github.com/kilianp07/soh/internal/eventbus"
)

// Service owns every long-lived component of the process.
type Service struct {
	cfg *config.Config
	log logger.Logger

	store    schedule.Store
	readings reading.Source
	bus      *eventbus.TypedBus[events.ScheduleEvent]
	sink     coremetrics.MetricsSink
	monitor  monitoring.Monitor
	mqtt     *mqtt.Client

	Schedules  *schedule.Service
	Dispatcher *soh.Dispatcher
	handler    http.Handler

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// New builds a Service from the configuration. Resources acquired before a
// failure are released.
func New(cfg *config.Config) (svc *Service, err error) {
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, log: logger.New("service"), ready: make(chan struct{})}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.monitor, err = inframon.NewSentryMonitor(cfg.Sentry); err != nil {
		return nil, errors.Wrap(err, "sentry")
	}
	if s.store, err = schedule.NewStore(cfg.Store); err != nil {
		return nil, err
	}
	if s.readings, err = reading.NewSource(cfg.Readings); err != nil {
		return nil, err
	}
	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, err
	}
	if cfg.MQTT.Enabled() {
		if s.mqtt, err = mqtt.NewClient(cfg.MQTT); err != nil {
			return nil, errors.Wrap(err, "mqtt client")
		}
	}
	s.bus = eventbus.NewTyped[events.ScheduleEvent]()

	s.Schedules, err = schedule.NewService(s.store, clock.System{}, s.bus, logger.New("schedule"))
	if err != nil {
		return nil, err
	}
	deps := soh.Deps{
		Repo:     s.store,
		Readings: s.readings,
		Clock:    clock.System{},
		Events:   s.bus,
		Sink:     s.sink,
		Monitor:  s.monitor,
		Log:      logger.New("soh"),
	}
	registry := soh.NewRegistry(logger.New("soh_registry"), s.monitor, s.sink)
	if s.Dispatcher, err = soh.NewDispatcher(cfg.Scheduler, deps, registry); err != nil {
		return nil, err
	}
	s.handler = schedules.NewHandler(s.Schedules, registry, logger.New("api"))
	return s, nil
}

// Handler returns the REST API.
func (s *Service) Handler() http.Handler { return s.handler }

// Readings returns the configured reading source.
func (s *Service) Readings() reading.Source { return s.readings }

// Ready is closed once the HTTP listener accepts connections.
func (s *Service) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound HTTP address, nil before Ready.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run starts every component and blocks until ctx is canceled. Calculators
// are stopped and awaited before Run returns.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collectorDone := metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics_collector"))
	var publisher mqtt.Publisher
	if s.mqtt != nil {
		publisher = s.mqtt
	}
	publisherDone := mqtt.StartEventPublisher(ctx, s.bus, publisher, s.cfg.MQTT.Prefix(), logger.New("mqtt_events"))
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if s.cfg.Scheduler.ResumeRunning {
		n, err := s.Dispatcher.Resume(ctx)
		if err != nil {
			s.log.Errorf("resume calculators: %v", err)
			s.monitor.CaptureException(err, map[string]string{"module": "app"})
		} else {
			s.log.Infof("%d calculators resumed", n)
		}
	}

	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.cfg.HTTP.Addr)
	}
	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)

	serveErr := make(chan error, 1)
	go func() {
		s.log.Infof("serving schedule API on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		_ = s.Dispatcher.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = errors.Wrap(err, "http server")
		}
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout())
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	<-dispatcherDone
	s.Dispatcher.Registry().Shutdown()
	<-collectorDone
	<-publisherDone
	return runErr
}

// Close releases the backends. It is safe to call on a partially built
// Service.
func (s *Service) Close() error {
	var errs error
	if s.bus != nil {
		s.bus.Close()
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if c, ok := s.readings.(io.Closer); ok {
		errs = errors.CombineErrors(errs, c.Close())
	}
	if s.store != nil {
		errs = errors.CombineErrors(errs, s.store.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errs
}
