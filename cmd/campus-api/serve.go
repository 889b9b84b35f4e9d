package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartcampus/campus-api/internal/auth"
	"github.com/smartcampus/campus-api/internal/chat"
	"github.com/smartcampus/campus-api/internal/config"
	"github.com/smartcampus/campus-api/internal/events"
	"github.com/smartcampus/campus-api/internal/health"
	"github.com/smartcampus/campus-api/internal/http/router"
	"github.com/smartcampus/campus-api/internal/metrics"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/smartcampus/campus-api/internal/storage/sqldb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// STARTUP SEQUENCE:
//  1. Load configuration and build the logger
//  2. Open and migrate the database
//  3. Build the realtime hub, and the broker publisher/consumer when configured
//  4. Build the chat proxy, auth service, health checker and metrics
//  5. Run the HTTP server (and the gRPC health server) under one errgroup
//  6. On SIGINT/SIGTERM, shut everything down within the configured timeout
func serve(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting campus-api", zap.String("env", cfg.Env), zap.String("address", cfg.Addr))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqldb.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info("storage initialised", zap.String("driver", cfg.Database.Driver))

	m := metrics.New("campus")

	hub := realtime.NewHub(cfg.Realtime.SubscriberBuffer, log)
	hub.OnSubscribersChanged = m.SetSubscribers

	g, gctx := errgroup.WithContext(ctx)

	var changes realtime.Publisher = hub
	var broker health.Broker

	if cfg.Realtime.RabbitMQURL != "" {
		publisher, consumer, err := connectBroker(cfg, hub, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		defer consumer.Close()

		changes, broker = publisher, publisher
		g.Go(func() error { return consumer.Run(gctx) })
	}

	completer, err := chat.NewCompleter(cfg.Chat.Provider, cfg.Chat.GatewayURL, cfg.Chat.Model)
	if err != nil {
		return err
	}
	proxy := chat.NewProxy(completer, cfg.Chat.APIKeyEnv, log)
	proxy.Observe = func(o chat.Outcome) { m.ChatOutcome(string(o)) }

	checker := health.NewChecker(store, broker, log)

	handler := router.New(router.Deps{
		Store:   store,
		Auth:    auth.NewService(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, log),
		Chat:    proxy,
		Hub:     hub,
		Changes: m.CountChanges(changes),
		Health:  checker,
		Metrics: m,
		Log:     log,
		Stop:    gctx,
	})

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,

		// No WriteTimeout: realtime streams stay open.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		log.Info("server started", zap.String("address", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.GRPCHealthAddr != "" {
		grpcServer := grpc.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, health.NewServer(checker))

		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return fmt.Errorf("grpc health listener: %w", err)
		}

		g.Go(func() error {
			log.Info("grpc health server started", zap.String("address", cfg.GRPCHealthAddr))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

func connectBroker(cfg *config.Config, hub *realtime.Hub, log *zap.Logger) (*events.Publisher, *events.Consumer, error) {
	publisher, err := events.NewPublisher(cfg.Realtime.RabbitMQURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect change publisher: %w", err)
	}

	consumer, err := events.NewConsumer(cfg.Realtime.RabbitMQURL, hub, log)
	if err != nil {
		publisher.Close()
		return nil, nil, fmt.Errorf("connect change consumer: %w", err)
	}

	log.Info("realtime changes routed through broker")
	return publisher, consumer, nil
}
