// The api binary runs the dashboard service: the HTTP API plus the periodic
// warehouse sync loop that detects and dispatches new-order notifications.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	internalaws "github.com/jmedranoh/go-fulfillment-tracker/internal/aws"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/handlers"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/lifecycle"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/metrics"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/notify"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/reconcile"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/warehouse"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := internalaws.NewAWSClients(ctx)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	source, err := warehouse.Open(mustEnv(logger, "WAREHOUSE_DSN"))
	if err != nil {
		logger.Fatal("failed to open warehouse", zap.Error(err))
	}
	defer source.Close()

	records := lifecycle.NewStore(
		clients.DynamoDB,
		getEnv("LIFECYCLE_TABLE", "order-lifecycle"),
		getEnv("ALLOW_REREQUEST", "true") == "true",
	)

	notifier := notify.New(notify.Config{
		Token:     os.Getenv("WHATSAPP_TOKEN"),
		PhoneID:   os.Getenv("WHATSAPP_PHONE_ID"),
		Recipient: os.Getenv("WHATSAPP_RECIPIENT"),
	}, records, notify.NewAttemptLog(getEnv("ATTEMPT_LOG", "notification_attempts.csv")), logger)

	// With a queue configured the loop only enqueues and the worker sends;
	// otherwise sends happen inline as the original deployment did.
	var dispatcher reconcile.Dispatcher
	if queueURL := os.Getenv("PENDING_QUEUE_URL"); queueURL != "" {
		dispatcher = reconcile.NewQueueDispatcher(internalaws.NewPublisher(clients.SQS, queueURL))
		logger.Info("dispatching notifications via queue", zap.String("queue_url", queueURL))
	} else {
		dispatcher = reconcile.NewInlineDispatcher(notifier)
		logger.Info("dispatching notifications inline")
	}

	engine := reconcile.NewEngine(reconcile.Config{
		Source:      source,
		Records:     records,
		Dispatcher:  dispatcher,
		Metrics:     metrics.NewPublisher(clients.CloudWatch),
		Logger:      logger.Named("sync"),
		Interval:    time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 60)) * time.Second,
		CallTimeout: time.Duration(getEnvInt("CALL_TIMEOUT_SECONDS", 15)) * time.Second,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterRoutes(r, handlers.HandlerConfig{
		Engine:  engine,
		Records: records,
		Logger:  logger.Named("api"),
	})

	server := &http.Server{
		Addr:         ":" + getEnv("PORT", "8080"),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		engine.RunSync(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnv(logger *zap.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		logger.Fatal("missing required environment variable", zap.String("key", key))
	}
	return v
}
