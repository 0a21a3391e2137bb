package clients

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthClient queries a grpc.health.v1 endpoint, such as the one the
// gateway serves next to its HTTP API.
type HealthClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

func NewHealthClient(addr string) (*HealthClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("health service connection failed: %w", err)
	}

	return &HealthClient{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// Check returns the serving status of service; "" asks about the server as
// a whole.
func (c *HealthClient) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func (c *HealthClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
