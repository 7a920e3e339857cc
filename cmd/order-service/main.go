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
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/client"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/config"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/db"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/handlers"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/obs"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/order"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/publisher"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/store"
)

func main() {
	app := &cli.App{
		Name:  "order-service",
		Usage: "order processing engine behind a REST API",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "HTTP port (overrides HTTP_PORT)"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrateDB,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("order-service failed")
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if port := c.Int("port"); port > 0 {
		cfg.HTTPPort = port
	}
	obs.SetupLogging(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	return cfg, nil
}

func connectPostgres(cfg config.Config) (*db.PostgresDB, error) {
	return db.NewPostgresDB(db.Options{
		Host:         cfg.Postgres.Host,
		Port:         cfg.Postgres.Port,
		User:         cfg.Postgres.User,
		Password:     cfg.Postgres.Password,
		DBName:       cfg.Postgres.DBName,
		SSLMode:      cfg.Postgres.SSLMode,
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
	})
}

func migrateDB(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	database, err := connectPostgres(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	return db.Migrate(database)
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		log.WithError(err).Warn("⚠️ Tracing disabled")
	}

	// Storage
	var orderStore order.Store
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		database, err := connectPostgres(cfg)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := db.Migrate(database); err != nil {
			return err
		}
		orderStore = db.NewStore(database)
	default:
		log.Warn("⚠️ Using in-memory store: it starts with no clients or products and is lost on restart")
		orderStore = store.NewMemory()
	}

	// Consul is optional; a nil client resolves to the configured fallbacks
	var consul *discovery.ConsulClient
	if cfg.Consul.Enabled {
		consul, err = discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port)
		if err != nil {
			log.WithError(err).Warn("⚠️ Failed to connect to Consul, using static addresses")
			consul = nil
		}
	}

	// Notification service (gRPC)
	target := consul.ResolveAddr(cfg.Notification.ServiceName, cfg.Notification.Addr)
	notifications, err := client.NewNotificationClient(target, cfg.Notification.Timeout)
	if err != nil {
		return err
	}
	defer notifications.Close()

	opts := []order.Option{}
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := messaging.NewRabbitMQ(cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.User, cfg.RabbitMQ.Password)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()

		orderPublisher, err := publisher.NewOrderPublisher(rabbitMQ)
		if err != nil {
			return err
		}
		opts = append(opts, order.WithPublisher(orderPublisher))
	}

	engine := order.NewEngine(orderStore, notifications, opts...)
	orderHandler := handlers.NewOrderHandler(engine, notifications)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           handlers.NewRouter(orderHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if consul != nil {
		err := consul.Register(discovery.ServiceConfig{
			Name: cfg.ServiceName,
			ID:   cfg.InstanceID(),
			Port: cfg.HTTPPort,
			Tags: []string{"api", "orders"},
		})
		if err != nil {
			log.WithError(err).Warn("⚠️ Failed to register service")
		} else {
			defer consul.Deregister(cfg.InstanceID())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{
			"port":         cfg.HTTPPort,
			"storage":      cfg.StorageBackend,
			"notification": target,
		}).Info("🚀 Order Service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("⚠️ HTTP shutdown")
		}
		if shutdownTracing != nil {
			_ = shutdownTracing(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}
