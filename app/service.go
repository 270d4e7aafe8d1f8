package app

import (
	"context"
	"fmt"
	"time"

	"github.com/askelund/spotheat/auth"
	"github.com/askelund/spotheat/config"
	"github.com/askelund/spotheat/core/engine"
	"github.com/askelund/spotheat/core/events"
	coregateway "github.com/askelund/spotheat/core/gateway"
	"github.com/askelund/spotheat/core/jobs"
	"github.com/askelund/spotheat/core/logger"
	coremetrics "github.com/askelund/spotheat/core/metrics"
	"github.com/askelund/spotheat/core/prices"
	infragateway "github.com/askelund/spotheat/infra/gateway"
	infralogger "github.com/askelund/spotheat/infra/logger"
	inframetrics "github.com/askelund/spotheat/infra/metrics"
	"github.com/askelund/spotheat/infra/prices/nordpool"
	"github.com/askelund/spotheat/infra/store"
	"github.com/askelund/spotheat/internal/eventbus"
)

// Service assembles the optimizer: price source, storage, device gateway,
// metrics sinks and the background jobs driving per-user cycles.
type Service struct {
	cfg   *config.Config
	log   logger.Logger
	store *store.SQLiteStore

	prices      *prices.CachedSource
	tokens      *auth.ClientCred
	engine      *engine.Engine
	coordinator jobs.Coordinator
	sink        coremetrics.Sink
	bus         eventbus.EventBus

	mqttApplier *infragateway.MQTTApplier
	influx      *inframetrics.InfluxSink
}

// New wires all components from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := infralogger.New("service")

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if dir := cfg.Store.LegacyImportDir; dir != "" {
		n, errs := db.ImportLegacyDir(context.Background(), dir)
		for _, ierr := range errs {
			log.Warnf("legacy import: %v", ierr)
		}
		if n > 0 {
			log.Infof("imported %d legacy user files from %s", n, dir)
		}
	}

	s := &Service{
		cfg:         cfg,
		log:         log,
		store:       db,
		prices:      prices.NewCachedSource(nordpool.NewClient(cfg.Prices), infralogger.New("prices")),
		coordinator: jobs.NewMemoryCoordinator(),
		bus:         eventbus.New(),
	}

	var applier coregateway.Applier
	switch cfg.Gateway.Backend {
	case "mqtt":
		mq, err := infragateway.NewMQTTApplier(cfg.Gateway.MQTT, infralogger.New("gateway"))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("gateway: %w", err)
		}
		s.mqttApplier = mq
		applier = mq
	default:
		s.tokens = auth.NewClientCred(cfg.Gateway.Auth)
		applier = infragateway.NewHTTPApplier(cfg.Gateway, s.tokens, infralogger.New("gateway"))
	}

	sinks := []coremetrics.Sink{}
	if cfg.Metrics.PrometheusEnabled {
		prom, err := inframetrics.NewPromSink(cfg.Metrics)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prometheus sink: %w", err)
		}
		sinks = append(sinks, prom)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := inframetrics.NewInfluxSinkWithFallback(cfg.Metrics)
		if influx, ok := sink.(*inframetrics.InfluxSink); ok {
			s.influx = influx
		}
		sinks = append(sinks, sink)
	}
	s.sink = inframetrics.NewMultiSink(sinks...)

	s.engine = engine.New(s.prices, db, db, db, db, applier, s.sink, s.bus, infralogger.New("engine"))
	return s, nil
}

// Engine exposes the optimization engine for interactive callers.
func (s *Service) Engine() *engine.Engine { return s.engine }

// Run starts the background jobs and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := inframetrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prometheus server: %v", err)
			}
		}()
	}
	go s.watchAuthFailures(ctx)

	// Warm the price cache immediately so the first compute tick has data.
	s.withLease(jobs.KindPriceRefresh, s.leaseTTL(s.cfg.Jobs.PriceRefreshLeaseSeconds), func() {
		s.refreshPrices(ctx)
	})

	priceTick := time.NewTicker(time.Duration(s.cfg.Jobs.PriceRefreshMinutes) * time.Minute)
	defer priceTick.Stop()
	computeTick := time.NewTicker(time.Duration(s.cfg.Jobs.ScheduleComputeMinutes) * time.Minute)
	defer computeTick.Stop()
	tokenTick := time.NewTicker(time.Duration(s.cfg.Jobs.TokenRefreshMinutes) * time.Minute)
	defer tokenTick.Stop()
	dailyTimer := time.NewTimer(untilDailyBatch(time.Now().UTC(), s.cfg.Jobs.DailyBatchHourUTC))
	defer dailyTimer.Stop()

	s.log.Infof("optimizer running for zones %v", s.cfg.Zones)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-priceTick.C:
			s.withLease(jobs.KindPriceRefresh, s.leaseTTL(s.cfg.Jobs.PriceRefreshLeaseSeconds), func() {
				s.refreshPrices(ctx)
			})
		case <-computeTick.C:
			s.withLease(jobs.KindScheduleCompute, s.leaseTTL(s.cfg.Jobs.ScheduleComputeLeaseSeconds), func() {
				if err := s.engine.RunBatch(ctx, time.Now().UTC(), false); err != nil {
					s.log.Errorf("schedule compute: %v", err)
				}
			})
		case <-tokenTick.C:
			s.refreshToken()
		case now := <-dailyTimer.C:
			s.withLease(jobs.KindDailyBatch, s.leaseTTL(s.cfg.Jobs.DailyBatchLeaseSeconds), func() {
				if err := s.engine.RunBatch(ctx, now.UTC(), true); err != nil {
					s.log.Errorf("daily batch: %v", err)
				}
			})
			dailyTimer.Reset(untilDailyBatch(time.Now().UTC(), s.cfg.Jobs.DailyBatchHourUTC))
		}
	}
}

// Close releases external resources. Call after Run returns.
func (s *Service) Close() {
	s.bus.Close()
	if s.mqttApplier != nil {
		s.mqttApplier.Close()
	}
	if s.influx != nil {
		s.influx.Close()
	}
	if err := s.store.Close(); err != nil {
		s.log.Errorf("close store: %v", err)
	}
}

// withLease runs fn under a coordinator lease for the job kind. A held
// lease means another run is in flight and the tick is skipped silently.
func (s *Service) withLease(kind jobs.Kind, ttl time.Duration, fn func()) {
	lease, ok := s.coordinator.TryAcquire(kind, ttl)
	if err := s.sink.RecordLease(coremetrics.LeaseEvent{Kind: kind, Acquired: ok}); err != nil {
		s.log.Debugf("record lease: %v", err)
	}
	if !ok {
		s.log.Debugf("%s: lease held, skipping tick", kind)
		return
	}
	defer s.coordinator.Release(lease)
	fn()
}

func (s *Service) leaseTTL(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func (s *Service) refreshPrices(ctx context.Context) {
	now := time.Now().UTC()
	for _, zone := range s.cfg.Zones {
		if err := s.prices.Warm(ctx, zone, now); err != nil {
			s.log.Warnf("price refresh for %s: %v", zone, err)
		}
	}
}

// refreshToken forces a new device-cloud token. Only meaningful for the
// http backend; the mqtt backend authenticates at connect time.
func (s *Service) refreshToken() {
	if s.tokens == nil {
		return
	}
	s.withLease(jobs.KindTokenRefresh, s.leaseTTL(s.cfg.Jobs.TokenRefreshLeaseSeconds), func() {
		if _, err := s.tokens.ForceRefresh(); err != nil {
			s.log.Errorf("token refresh: %v", err)
		}
	})
}

// watchAuthFailures reacts to authorization failures from the engine by
// forcing a token refresh, so the next cycle retries with fresh credentials.
func (s *Service) watchAuthFailures(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if failure, isAuth := ev.(events.AuthFailure); isAuth {
				s.log.Warnf("auth failure for user %s: %s", failure.UserID, failure.Reason)
				s.refreshToken()
			}
		}
	}
}

// untilDailyBatch returns the duration to the next occurrence of the batch
// hour in UTC.
func untilDailyBatch(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
