package discovery

import (
	"fmt"
	"net"

	"github.com/hashicorp/consul/api"
)

// ServiceName is the name the server registers under
const ServiceName = "podsync"

type ConsulClient struct {
	client *api.Client
}

func NewConsulClient(address string) (*ConsulClient, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulClient{client: client}, nil
}

func (c *ConsulClient) RegisterService(serviceID, serviceName, address, port string) error {
	return c.client.Agent().ServiceRegister(NewRegistration(serviceID, serviceName, address, port))
}

func (c *ConsulClient) DeregisterService(serviceID string) error {
	return c.client.Agent().ServiceDeregister(serviceID)
}

// NewRegistration builds the agent registration with an HTTP health check
// against the address the service is reachable on
func NewRegistration(serviceID, serviceName, address, port string) *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      serviceID,
		Name:    serviceName,
		Address: address,
		Port:    parsePort(port),
		Tags:    []string{"pods", "inventory"},
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s/health", net.JoinHostPort(address, port)),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
	}
}

func parsePort(port string) int {
	var p int
	fmt.Sscanf(port, "%d", &p)
	return p
}
