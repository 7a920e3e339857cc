package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/config"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/consumer"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/notification"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/obs"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/rpc"
)

func main() {
	app := &cli.App{
		Name:  "notification-service",
		Usage: "order notification dispatcher and history over gRPC",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "gRPC port (overrides GRPC_PORT)"},
			&cli.StringFlag{Name: "service-name", Value: "notification-service", EnvVars: []string{"SERVICE_NAME"}},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the gRPC server",
				Action: serve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("notification-service failed")
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ServiceName = c.String("service-name")
	if port := c.Int("port"); port > 0 {
		cfg.GRPCPort = port
	}
	obs.SetupLogging(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		log.WithError(err).Warn("⚠️ Tracing disabled")
	}

	// History store
	var history notification.HistoryStore
	switch cfg.HistoryBackend {
	case config.BackendRedis:
		redisClient, err := notification.NewRedisClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		redisHistory := notification.NewRedisHistory(redisClient, cfg.Redis.KeyPrefix)
		defer redisHistory.Close()
		history = redisHistory
	default:
		log.Warn("⚠️ Using in-memory notification history")
		history = notification.NewMemoryHistory()
	}

	dispatcher := notification.NewDispatcher(history)
	grpcServer, healthServer := rpc.NewGRPCServer(dispatcher)

	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
	if err != nil {
		return err
	}

	// Register with Consul
	if cfg.Consul.Enabled {
		consul, err := discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port)
		if err != nil {
			log.WithError(err).Warn("⚠️ Failed to connect to Consul")
		} else {
			err = consul.Register(discovery.ServiceConfig{
				Name: cfg.ServiceName,
				ID:   cfg.InstanceID(),
				Port: cfg.GRPCPort,
				Tags: []string{"grpc", "notifications"},
				GRPC: true,
			})
			if err != nil {
				log.WithError(err).Warn("⚠️ Failed to register service")
			} else {
				defer consul.Deregister(cfg.InstanceID())
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := messaging.NewRabbitMQ(cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.User, cfg.RabbitMQ.Password)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()

		notificationConsumer := consumer.NewNotificationConsumer(dispatcher)
		for _, queue := range consumer.Queues {
			if err := rabbitMQ.DeclareQueue(string(queue)); err != nil {
				return err
			}
			messages, err := rabbitMQ.Consume(string(queue), cfg.RabbitMQ.Prefetch)
			if err != nil {
				return err
			}
			g.Go(func() error {
				notificationConsumer.Run(gctx, messages)
				return nil
			})
		}
	}

	g.Go(func() error {
		log.WithFields(log.Fields{"port": cfg.GRPCPort, "history": cfg.HistoryBackend}).Info("🚀 Notification Service starting")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownTracing != nil {
			_ = shutdownTracing(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}
