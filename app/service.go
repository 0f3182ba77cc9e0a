// Package app assembles the dispatch engine, transports and the HTTP API
// from the configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apibreakdowns "github.com/openroad/roadassist/api/breakdowns"
	apidispatch "github.com/openroad/roadassist/api/dispatch"
	apidisputes "github.com/openroad/roadassist/api/disputes"
	apimechanics "github.com/openroad/roadassist/api/mechanics"
	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/config"
	"github.com/openroad/roadassist/core/availability"
	"github.com/openroad/roadassist/core/breakdown"
	"github.com/openroad/roadassist/core/dispatch"
	"github.com/openroad/roadassist/core/dispatch/logging"
	"github.com/openroad/roadassist/core/dispute"
	"github.com/openroad/roadassist/core/geo"
	"github.com/openroad/roadassist/core/monitoring"
	"github.com/openroad/roadassist/core/notify"
	corepay "github.com/openroad/roadassist/core/payment"
	"github.com/openroad/roadassist/core/pricing"
	"github.com/openroad/roadassist/core/storage"
	"github.com/openroad/roadassist/infra/logger"
	inframetrics "github.com/openroad/roadassist/infra/metrics"
	inframon "github.com/openroad/roadassist/infra/monitoring"
	inframqtt "github.com/openroad/roadassist/infra/mqtt"
	infrapay "github.com/openroad/roadassist/infra/payment"
	"github.com/openroad/roadassist/internal/eventbus"
)

// Service owns every long-lived component of the dispatch server.
type Service struct {
	Coordinator *dispatch.Coordinator
	Auth        *auth.Manager

	cfg      *config.Config
	bus      eventbus.EventBus
	reactor  *dispatch.Reactor
	sweeper  *dispatch.Sweeper
	audit    logging.LogStore
	disputes dispute.Store
	mqtt     *inframqtt.Notifier
	handler  http.Handler
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	if cfg.Sentry.DSN != "" {
		mon, err := inframon.NewSentryMonitor(cfg.Sentry)
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		monitoring.Init(mon)
	}

	sink, err := inframetrics.NewSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	audit, err := newAuditStore(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}

	var notifier notify.Notifier
	var mqttNotifier *inframqtt.Notifier
	if cfg.MQTT.Broker != "" {
		mqttNotifier, err = inframqtt.NewNotifier(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		notifier = mqttNotifier
	} else {
		log.Warnf("no MQTT broker configured, offers go to a mock notifier")
		notifier = notify.NewMock()
	}

	var payments corepay.Gateway
	if cfg.Payment.BaseURL != "" {
		payments = infrapay.NewClient(cfg.Payment)
	} else {
		log.Warnf("no payment gateway configured, charges go to a mock")
		payments = corepay.NewMock()
	}

	var blobs storage.BlobStore
	if cfg.Storage.Dir != "" {
		blobs, err = storage.NewFSStore(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("blob store: %w", err)
		}
	} else {
		blobs = storage.NewMemoryStore()
	}

	bus := eventbus.New()
	index := geo.NewIndex()
	avail := availability.NewManager(index)
	store := breakdown.NewMemoryStore()
	machine := breakdown.NewMachine(store, bus, logger.New("breakdown"))

	coord, err := dispatch.NewCoordinator(cfg.Dispatch, dispatch.Deps{
		Index:    index,
		Reserver: avail,
		Machine:  machine,
		Store:    store,
		Notifier: notifier,
		Bus:      bus,
		Logger:   logger.New("dispatch"),
		Sink:     sink,
		Audit:    audit,
		Pricer:   pricing.NewTableEstimator(),
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	if mqttNotifier != nil {
		err = mqttNotifier.SubscribeReplies(func(r inframqtt.Reply) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			switch r.Action {
			case "accept":
				if _, err := coord.Accept(ctx, r.BreakdownID, r.MechanicID); err != nil {
					log.Warnf("reply accept %s by %s: %v", r.BreakdownID, r.MechanicID, err)
				}
			case "decline":
				if err := coord.Decline(r.BreakdownID, r.MechanicID); err != nil {
					log.Warnf("reply decline %s by %s: %v", r.BreakdownID, r.MechanicID, err)
				}
			}
		})
		if err != nil {
			return nil, fmt.Errorf("subscribe replies: %w", err)
		}
	}

	authMgr, err := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer,
		time.Duration(cfg.Auth.TTLHours)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	disputeStore, err := newDisputeStore(cfg.Disputes)
	if err != nil {
		return nil, fmt.Errorf("dispute store: %w", err)
	}
	disputes := dispute.NewHandler(disputeStore, store, bus, logger.New("dispute"))

	api := http.NewServeMux()
	apibreakdowns.NewHandler(coord, machine, store, blobs).Register(api)
	apimechanics.NewHandler(avail, index).Register(api)
	apidisputes.NewHandler(disputes).Register(api)
	api.Handle("GET /api/dispatch/logs", apidispatch.NewLogHandler(audit))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/", authMgr.Middleware(api))

	return &Service{
		Coordinator: coord,
		Auth:        authMgr,
		cfg:         cfg,
		bus:         bus,
		reactor:     dispatch.NewReactor(bus, store, avail, notifier, payments, logger.New("reactor")),
		sweeper:     dispatch.NewSweeper(coord),
		audit:       audit,
		disputes:    disputeStore,
		mqtt:        mqttNotifier,
		handler:     root,
		log:         log,
	}, nil
}

func newDisputeStore(cfg config.DisputesConfig) (dispute.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return dispute.NewSQLiteStore(cfg.Path)
	default:
		return dispute.NewMemoryStore(), nil
	}
}

func newAuditStore(cfg config.LoggingConfig) (logging.LogStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return logging.NewSQLiteStore(cfg.Path)
	case "jsonl":
		return logging.NewJSONLStore(cfg.Path)
	default:
		return logging.NopStore{}, nil
	}
}

// Handler exposes the composed HTTP handler, mainly for tests.
func (s *Service) Handler() http.Handler { return s.handler }

// Run starts the reactor, the sweeper and the HTTP server, then blocks
// until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.reactor.Run(ctx)
	go s.sweeper.Run(ctx)

	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Coordinator.Close()
	s.bus.Close()
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	err := s.audit.Close()
	if derr := s.disputes.Close(); derr != nil && err == nil {
		err = derr
	}
	monitoring.Flush(2 * time.Second)
	return err
}
