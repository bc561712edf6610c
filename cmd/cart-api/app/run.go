package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"time"

	"github.com/aq2208/gcart-api/configs"
	"github.com/aq2208/gcart-api/internal/adapter/agent"
	"github.com/aq2208/gcart-api/internal/adapter/cache"
	grpcadapter "github.com/aq2208/gcart-api/internal/adapter/grpc"
	"github.com/aq2208/gcart-api/internal/adapter/http"
	"github.com/aq2208/gcart-api/internal/adapter/http/middleware"
	"github.com/aq2208/gcart-api/internal/adapter/kafka"
	"github.com/aq2208/gcart-api/internal/adapter/observ"
	"github.com/aq2208/gcart-api/internal/adapter/queue"
	"github.com/aq2208/gcart-api/internal/adapter/repo"
	"github.com/aq2208/gcart-api/internal/adapter/whatsapp"
	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	Router *gin.Engine

	cfg      configs.Config
	log      *zap.Logger
	server   *nethttp.Server
	grpc     *grpcServer
	health   *grpcadapter.Health
	rabbit   *queue.Router
	consumer *kafka.Consumer
}

func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// init loggers
	logging.Init(logging.Options{Component: cfg.App.Name, FilePath: cfg.Log.File, Level: cfg.Log.Level})
	logger, err := observ.NewLogger(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	closers = append(closers, func() { _ = logger.Sync() })
	logging.Base().Info("cart-api: Starting up...")

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return fail(err)
	}
	db.SetConnMaxLifetime(orDefault(cfg.MySQL.ConnMaxLifetime, 30*time.Minute))
	db.SetMaxOpenConns(orDefaultInt(cfg.MySQL.MaxOpenConns, 16))
	db.SetMaxIdleConns(orDefaultInt(cfg.MySQL.MaxIdleConns, 16))
	closers = append(closers, func() { _ = db.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fail(fmt.Errorf("mysql ping: %w", err))
	}

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closers = append(closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fail(fmt.Errorf("redis ping: %w", err))
	}

	// init rabbitmq: one channel publishes, one consumes
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return fail(fmt.Errorf("rabbitmq dial: %w", err))
	}
	closers = append(closers, func() { _ = conn.Close() })
	pubCh, err := conn.Channel()
	if err != nil {
		return fail(fmt.Errorf("rabbitmq channel: %w", err))
	}
	conCh, err := conn.Channel()
	if err != nil {
		return fail(fmt.Errorf("rabbitmq channel: %w", err))
	}
	topo := queue.Topology{Exchange: cfg.Rabbit.Exchange, RoutingKey: cfg.Rabbit.RoutingKey, Queue: cfg.Rabbit.Queue}
	producer, err := queue.NewRabbitProducer(pubCh, topo)
	if err != nil {
		return fail(err)
	}

	// metrics
	metrics := observ.NewMetrics(prometheus.DefaultRegisterer)

	// kafka: cart events out, projection in
	syncProducer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		return fail(fmt.Errorf("kafka producer: %w", err))
	}
	publisher := kafka.NewPublisher(syncProducer, cfg.Kafka.TopicEvents, metrics.ObserveCartEvent)
	closers = append(closers, func() { _ = publisher.Close() })

	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return fail(fmt.Errorf("kafka group: %w", err))
	}
	closers = append(closers, func() { _ = grp.Close() })

	// infra
	toolCalls := repo.NewMySQLToolCallRepo(db)
	cartEvents := repo.NewMySQLCartEventRepo(db)
	sessions := cache.NewRedisSessionStore(rdb, cfg.Session.TTL)
	summaries := cache.NewRedisCache(rdb, cfg.Session.SummaryTTL)
	dedup := cache.NewRedisIdempotencyStore(rdb, orDefault(cfg.Relay.DedupTTL, 5*time.Minute),
		cache.WithScopeTTL(usecase.ScopeInflight, orDefault(cfg.Relay.InflightTTL, 2*time.Minute)))

	// usecases
	pricing, err := cfg.PricingRules()
	if err != nil {
		return fail(err)
	}
	shop := usecase.NewShop(domain.DefaultCatalog(), pricing)
	tools := usecase.NewToolbox(shop, sessions,
		usecase.WithAudit(toolCalls),
		usecase.WithEvents(publisher),
		usecase.WithObserver(metrics),
	)

	// register queue-handler
	rabbit := queue.NewRouter(conCh,
		queue.WithPrefetch(orDefaultInt(cfg.Rabbit.Prefetch, 50)),
		queue.WithTimeout(orDefault(cfg.Rabbit.Timeout, 60*time.Second)),
		queue.WithRequeue(false),
		queue.WithLogger(logger.Named("rabbit")),
	)

	var webhook *http.WebhookHandler
	if cfg.Agent.Engine != "" {
		creds, err := agent.DefaultTokenProvider()
		if err != nil {
			return fail(err)
		}
		backend := agent.NewVertexClient(cfg.Agent.Engine, cfg.Agent.Location, creds,
			agent.WithHTTPClient(&nethttp.Client{Timeout: orDefault(cfg.Agent.Timeout, 60*time.Second)}))
		messenger := whatsapp.NewClient(cfg.WhatsApp.APIKey, cfg.WhatsApp.BaseURL, cfg.WhatsApp.Timeout)
		relay := usecase.NewRelay(usecase.RelayConfig{VerifyToken: cfg.Relay.VerifyToken}, dedup, producer, backend, messenger)

		rabbit.Register(topo.Queue, queue.JSONHandler[usecase.InboundMsg]{
			HandleFunc: relay.Process,
			Validate:   usecase.InboundMsg.Validate,
		})
		webhook = http.NewWebhookHandler(relay, metrics)
	} else {
		logging.Base().Warn("agent.engine not set; whatsapp relay disabled")
	}

	// register kafka-listener
	projector := kafka.NewCartEventHandler(cartEvents, summaries)
	projector.Observe = metrics.ObserveCartEvent
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicEvents}, projector.Handle)
	consumer.Logger = logger.Named("kafka")

	// init handlers + routers + middleware
	tokens := security.NewTokens(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.Audience, cfg.Security.TTL)
	router := http.NewRouter(http.RouterDeps{
		Info:      http.ServiceInfo{Name: cfg.App.Name, Version: cfg.App.Version},
		Tools:     http.NewToolHandler(tools, summaries),
		Webhook:   webhook,
		Token:     http.NewTokenHandler(tokens),
		Authz:     middleware.NewAuthz(tokens),
		Signature: middleware.NewWebhookSignature(security.NewWebhookSigner(cfg.Security.WebhookSecret)),
		Metrics:   middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Logger:    logging.New("http"),
	})

	// grpc health
	health := grpcadapter.NewHealth(map[string]grpcadapter.Probe{
		"mysql": db.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"rabbitmq": func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
	})

	a := &App{
		Router: router,
		cfg:    cfg,
		log:    logger,
		server: &nethttp.Server{
			Addr:         cfg.App.HTTPAddr,
			Handler:      router,
			ReadTimeout:  orDefault(cfg.HTTP.ReadTimeout, 10*time.Second),
			WriteTimeout: orDefault(cfg.HTTP.WriteTimeout, 30*time.Second),
			IdleTimeout:  orDefault(cfg.HTTP.IdleTimeout, 60*time.Second),
		},
		grpc:     newGRPCServer(health),
		health:   health,
		rabbit:   rabbit,
		consumer: consumer,
	}
	return a, cleanup, nil
}

// Run serves until ctx is cancelled or one component fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	var lis net.Listener
	if a.cfg.App.GRPCAddr != "" {
		var err error
		if lis, err = net.Listen("tcp", a.cfg.App.GRPCAddr); err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := a.rabbit.Start(gctx); err != nil {
		if lis != nil {
			_ = lis.Close()
		}
		return fmt.Errorf("rabbit router: %w", err)
	}
	g.Go(func() error {
		a.rabbit.Wait()
		return nil
	})

	g.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if lis != nil {
		g.Go(func() error { return a.grpc.Serve(lis) })
		g.Go(func() error { return a.health.Run(gctx, 15*time.Second) })
	}

	g.Go(func() error {
		err := a.consumer.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), orDefault(a.cfg.HTTP.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := a.rabbit.Stop(); err != nil {
			a.log.Warn("rabbit stop", zap.Error(err))
		}
		a.grpc.Stop(shutdownCtx)
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func orDefaultInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
