package api

import (
	"context"
)

// HealthStatus represents the API health status
type HealthStatus struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// Health checks if the API is healthy
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var health HealthStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&health).
		SetError(&Error{}).
		Get("/health")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &health, nil
}
