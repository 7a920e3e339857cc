package discovery

import (
	"fmt"
	"net"

	"github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type ConsulClient struct {
	client *api.Client
}

type ServiceConfig struct {
	Name string
	ID   string
	Port int
	Tags []string

	// GRPC switches the health check from GET /health to the gRPC health protocol.
	GRPC bool
	// Address overrides the detected outbound IP.
	Address string
}

func NewConsulClient(host string, port int) (*ConsulClient, error) {
	config := api.DefaultConfig()
	config.Address = fmt.Sprintf("%s:%d", host, port)

	client, err := api.NewClient(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Consul client")
	}

	// Test connection
	if _, err = client.Agent().Self(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Consul")
	}

	log.WithField("addr", config.Address).Info("✅ Connected to Consul")

	return &ConsulClient{client: client}, nil
}

// getOutboundIP gets the preferred outbound IP of this machine
func getOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}

// Registration builds the agent registration for cfg
func Registration(cfg ServiceConfig) *api.AgentServiceRegistration {
	hostIP := cfg.Address
	if hostIP == "" {
		hostIP = getOutboundIP()
	}

	check := &api.AgentServiceCheck{
		Interval:                       "10s",
		Timeout:                        "5s",
		DeregisterCriticalServiceAfter: "30s",
	}
	if cfg.GRPC {
		check.GRPC = net.JoinHostPort(hostIP, fmt.Sprint(cfg.Port))
	} else {
		check.HTTP = fmt.Sprintf("http://%s/health", net.JoinHostPort(hostIP, fmt.Sprint(cfg.Port)))
	}

	return &api.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Port:    cfg.Port,
		Address: hostIP,
		Tags:    cfg.Tags,
		Check:   check,
	}
}

// Register registers a service with Consul
func (c *ConsulClient) Register(cfg ServiceConfig) error {
	registration := Registration(cfg)

	if err := c.client.Agent().ServiceRegister(registration); err != nil {
		return errors.Wrap(err, "failed to register service")
	}

	log.WithFields(log.Fields{
		"service": cfg.Name,
		"id":      cfg.ID,
		"address": registration.Address,
		"port":    cfg.Port,
	}).Info("✅ Registered service")
	return nil
}

// Deregister removes a service from Consul
func (c *ConsulClient) Deregister(serviceID string) error {
	if err := c.client.Agent().ServiceDeregister(serviceID); err != nil {
		return errors.Wrap(err, "failed to deregister service")
	}

	log.WithField("id", serviceID).Info("✅ Deregistered service")
	return nil
}

// GetService returns a healthy instance of a service
func (c *ConsulClient) GetService(serviceName string) (string, int, error) {
	services, _, err := c.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to get service")
	}

	if len(services) == 0 {
		return "", 0, errors.Errorf("no healthy instances of %s found", serviceName)
	}

	// Return first healthy instance
	service := services[0].Service
	address := service.Address
	if address == "" {
		address = "localhost"
	}

	return address, service.Port, nil
}

// GetServiceAddr returns host:port, suitable as a gRPC target
func (c *ConsulClient) GetServiceAddr(serviceName string) (string, error) {
	address, port, err := c.GetService(serviceName)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(address, fmt.Sprint(port)), nil
}

// GetServiceURL returns the full URL for a service
func (c *ConsulClient) GetServiceURL(serviceName string) (string, error) {
	addr, err := c.GetServiceAddr(serviceName)
	if err != nil {
		return "", err
	}
	return "http://" + addr, nil
}

// ResolveAddr asks Consul for a healthy instance and falls back when Consul
// is not configured (nil receiver) or has none.
func (c *ConsulClient) ResolveAddr(serviceName, fallback string) string {
	if c == nil {
		return fallback
	}
	addr, err := c.GetServiceAddr(serviceName)
	if err != nil {
		log.WithField("service", serviceName).WithError(err).Warn("⚠️ Service not found, using fallback")
		return fallback
	}
	return addr
}
