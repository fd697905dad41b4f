package api

import (
	"context"
	"strconv"

	"github.com/sguter90/heatmaestro/pkg/models"
)

// IntervalResponse carries the sample interval in seconds
type IntervalResponse struct {
	Interval int `json:"interval"`
}

// ActiveConfig returns the active configuration. The error satisfies
// IsNotFound while no configuration has been saved.
func (c *Client) ActiveConfig(ctx context.Context) (*models.EnvironmentalConfig, error) {
	var cfg models.EnvironmentalConfig
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&cfg).
		SetError(&Error{}).
		Get("/api/v1/config/active")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig stores cfg as the new active configuration
func (c *Client) SaveConfig(ctx context.Context, cfg models.EnvironmentalConfig) (*models.EnvironmentalConfig, error) {
	var saved models.EnvironmentalConfig
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.PayloadFromConfig(cfg)).
		SetResult(&saved).
		SetError(&Error{}).
		Post("/api/v1/config")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ConfigHistory returns saved configurations, newest first
func (c *Client) ConfigHistory(ctx context.Context, limit int) ([]models.EnvironmentalConfig, error) {
	var history []models.EnvironmentalConfig
	req := c.http.R().
		SetContext(ctx).
		SetResult(&history).
		SetError(&Error{})
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get("/api/v1/config/history")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return history, nil
}

// Interval returns the sample interval devices should use, in seconds
func (c *Client) Interval(ctx context.Context) (int, error) {
	var result IntervalResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&Error{}).
		Get("/api/v1/config/interval")
	if err := check(resp, err); err != nil {
		return 0, err
	}
	return result.Interval, nil
}
