package testtool

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container 已啟動的測試容器與其對外位址
type Container struct {
	testcontainers.Container
	Host string
	Port string
}

// Addr host:port of the first exposed port
func (c *Container) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// SetupContainer start image exposing port ("27017/tcp"), ready once the port listens
func SetupContainer(ctx context.Context, image, port string) (*Container, error) {
	natPort, err := nat.NewPort("tcp", strings.TrimSuffix(port, "/tcp"))
	if err != nil {
		return nil, err
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{string(natPort)},
			WaitingFor:   wait.ForListeningPort(natPort),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", image, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		return nil, err
	}
	mapped, err := c.MappedPort(ctx, natPort)
	if err != nil {
		return nil, err
	}
	return &Container{Container: c, Host: host, Port: mapped.Port()}, nil
}
