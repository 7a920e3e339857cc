package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/config"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/handlers"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/obs"
)

const orderService = "order-service"

// Resolver finds a healthy instance of a service, e.g. *discovery.ConsulClient.
type Resolver interface {
	GetServiceURL(serviceName string) (string, error)
}

type Gateway struct {
	resolver  Resolver
	fallbacks map[string]string
	proxies   map[string]*httputil.ReverseProxy
	mutex     sync.RWMutex
	services  map[string]string
	client    *http.Client
}

// NewGateway routes to fallbacks until the resolver knows better. resolver may be nil.
func NewGateway(resolver Resolver, fallbacks map[string]string) *Gateway {
	g := &Gateway{
		resolver:  resolver,
		fallbacks: fallbacks,
		proxies:   make(map[string]*httputil.ReverseProxy),
		services:  make(map[string]string),
		client:    &http.Client{Timeout: 2 * time.Second},
	}

	g.discoverServices()
	return g
}

func (g *Gateway) discoverServices() {
	for svc, fallback := range g.fallbacks {
		target := fallback
		if g.resolver != nil {
			resolved, err := g.resolver.GetServiceURL(svc)
			if err != nil {
				log.WithField("service", svc).WithError(err).Warn("⚠️ Service not found, using fallback")
			} else {
				target = resolved
			}
		}
		g.updateProxy(svc, target)
	}
}

func (g *Gateway) updateProxy(serviceName, serviceURL string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.services[serviceName] == serviceURL {
		return
	}

	target, err := url.Parse(serviceURL)
	if err != nil {
		log.WithField("service", serviceName).WithError(err).Error("❌ Invalid URL")
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithField("service", serviceName).WithError(err).Error("❌ Proxy error")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error": "service unavailable"}`)
	}

	g.proxies[serviceName] = proxy
	g.services[serviceName] = serviceURL
	log.WithFields(log.Fields{"service": serviceName, "url": serviceURL}).Info("✅ Updated route")
}

func (g *Gateway) watchServices(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.discoverServices()
		}
	}
}

func (g *Gateway) getProxy(serviceName string) *httputil.ReverseProxy {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.proxies[serviceName]
}

func (g *Gateway) ProxyTo(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxy := g.getProxy(serviceName)
		if proxy == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": serviceName + " unavailable"})
			return
		}
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"service": serviceName,
		}).Debug("🔀 Routing")
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

func (g *Gateway) HealthCheck(c *gin.Context) {
	g.mutex.RLock()
	services := make(map[string]string, len(g.services))
	for name, u := range g.services {
		services[name] = u
	}
	g.mutex.RUnlock()

	statuses := make(map[string]string)
	allHealthy := true

	for name, u := range services {
		req, _ := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, u+"/health", nil)
		resp, err := g.client.Do(req)
		if err != nil || resp.StatusCode != http.StatusOK {
			statuses[name] = "unhealthy"
			allHealthy = false
		} else {
			statuses[name] = "healthy"
		}
		if resp != nil {
			resp.Body.Close()
		}
	}

	status := "healthy"
	if !allHealthy {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"service":  "api-gateway",
		"services": statuses,
	})
}

func (g *Gateway) ListServices(c *gin.Context) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	c.JSON(http.StatusOK, gin.H{"services": g.services})
}

func (g *Gateway) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestID(), handlers.RequestLogger())

	router.GET("/health", g.HealthCheck)
	router.GET("/services", g.ListServices)

	orders := g.ProxyTo(orderService)
	router.Any("/orders", orders)
	router.Any("/orders/*path", orders)
	router.Any("/clients/*path", orders)

	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	obs.SetupLogging(cfg.LogLevel, cfg.LogFormat, "api-gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var resolver Resolver
	if cfg.Consul.Enabled {
		consul, err := discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port)
		if err != nil {
			log.WithError(err).Warn("⚠️ Failed to connect to Consul, using static routes")
		} else {
			resolver = consul
		}
	}

	gateway := NewGateway(resolver, map[string]string{orderService: cfg.Gateway.OrderServiceURL})
	go gateway.watchServices(ctx, cfg.Gateway.RefreshInterval)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Gateway.Port),
		Handler:           gateway.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.Gateway.Port).Info("🚀 API Gateway starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("API Gateway failed")
	}
}
