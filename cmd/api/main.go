package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/rizalap/digishop/internal/aws"
	"github.com/rizalap/digishop/internal/config"
	"github.com/rizalap/digishop/internal/dispatch"
	"github.com/rizalap/digishop/internal/handlers"
	"github.com/rizalap/digishop/internal/orders"
	"github.com/rizalap/digishop/internal/ratelimit"
	"github.com/rizalap/digishop/internal/service"
	"github.com/rizalap/digishop/internal/storage/dynamo"
	"github.com/rizalap/digishop/internal/storage/postgres"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(cfg.Log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrderRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	var (
		store   orders.Store
		catalog orders.Catalog
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("failed to ping database: %v", err)
		}
		store = postgres.NewStore(db, logger)
		catalog = postgres.NewCatalog(db)
	default:
		store = dynamo.NewStore(clients.DynamoDB, cfg.OrdersTable, logger)
		catalog = dynamo.NewCatalog(clients.DynamoDB, cfg.ProductsTable)
	}

	metrics := dispatch.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace)
	dispatcher := dispatch.New(logger,
		dispatch.NewLedger(cfg.LedgerPath),
		dispatch.NewChatAlert(aws.NewPublisher(clients.SQS, cfg.NotifyQueueURL)),
		metrics,
	)

	handlerCfg := handlers.HandlerConfig{
		Service: service.NewOrders(store, catalog, dispatcher, logger),
		Limiter: ratelimit.New(cfg.CreateRateLimit, cfg.CreateRateWindow, cfg.RateMaxKeys),
		Metrics: metrics,
		Log:     logger,
	}

	r := setupRouter(handlerCfg)

	if cfg.RunLocal {
		logger.Infof("running local server on %s", cfg.Port)
		if err := r.Run(cfg.Port); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
