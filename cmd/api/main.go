package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws"
	"github.com/imrishuroy/go-pizza-storefront/internal/cart"
	"github.com/imrishuroy/go-pizza-storefront/internal/catalog"
	"github.com/imrishuroy/go-pizza-storefront/internal/checkout"
	"github.com/imrishuroy/go-pizza-storefront/internal/config"
	orderevents "github.com/imrishuroy/go-pizza-storefront/internal/events"
	"github.com/imrishuroy/go-pizza-storefront/internal/handlers"
	"github.com/imrishuroy/go-pizza-storefront/internal/idempotency"
	"github.com/imrishuroy/go-pizza-storefront/internal/live"
	"github.com/imrishuroy/go-pizza-storefront/internal/logging"
	"github.com/imrishuroy/go-pizza-storefront/internal/metrics"
	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

func setupRouter(deps handlers.Deps, m *metrics.ServerMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID(), handlers.AccessLog(), m.Middleware())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	handlers.RegisterRoutes(r, deps)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		slog.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	var (
		slot        cart.Slot = cart.NewMemorySlot()
		readerOpts  []catalog.Option
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis not reachable at startup", "error", err)
		}
		slot = cart.NewRedisSlot(redisClient, cfg.CartTTL)
		if cfg.CatalogCacheTTL > 0 {
			readerOpts = append(readerOpts, catalog.WithCache(catalog.NewRedisCache(redisClient, cfg.CatalogCacheTTL)))
		}
	} else {
		slog.Warn("REDIS_URL not set, carts are kept in process memory")
	}

	var publisher orderevents.Publisher = orderevents.Nop{}
	if cfg.OrdersQueueURL != "" {
		publisher = orderevents.NewSQSPublisher(clients.SQS, cfg.OrdersQueueURL)
	}

	carts := cart.NewStore(slot)
	ordersStore := orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.TransitionPolicy)
	idemStore := idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	hub := live.NewHub(ordersStore)
	defer hub.Close()

	deps := handlers.Deps{
		Menu:       catalog.NewReader(clients.DynamoDB, cfg.PizzasTable, cfg.CatalogReadPolicy, readerOpts...),
		Carts:      carts,
		Checkout:   checkout.NewService(carts, ordersStore, idemStore, publisher),
		Orders:     ordersStore,
		Hub:        hub,
		Publisher:  publisher,
		AdminToken: cfg.AdminToken,
	}

	// Without a stream only this process's own writes refresh the admin view.
	var source live.Source
	if cfg.OrdersStreamARN != "" {
		source = live.NewStreamSource(clients.DynamoDBStreams, cfg.OrdersStreamARN, cfg.StreamPoll)
	} else {
		trigger := live.NewTrigger()
		deps.Changes = trigger
		source = trigger
	}
	go func() {
		if err := hub.Run(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("order change source stopped", "error", err)
		}
	}()

	slog.Info("storefront configured",
		"transition_policy", cfg.TransitionPolicy,
		"catalog_read_policy", cfg.CatalogReadPolicy,
		"order_stream", cfg.OrdersStreamARN != "",
		"event_queue", cfg.OrdersQueueURL != "",
	)

	r := setupRouter(deps, metrics.NewServerMetrics("api"))

	// if RUN_LOCAL is true, run a local HTTP server for development.
	if cfg.RunLocal {
		srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: r}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("running local server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to run local server", "error", err)
			os.Exit(1)
		}
		return
	}

	// lambda adapter; the admin event stream needs the local server
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
