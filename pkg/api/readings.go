package api

import (
	"context"
	"strconv"

	"github.com/sguter90/heatmaestro/pkg/arbiter"
	"github.com/sguter90/heatmaestro/pkg/models"
)

// ReadingRequest is the body posted to the ingestion endpoint
type ReadingRequest struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Origin      string  `json:"origin,omitempty"`
}

// ReadingResponse is returned after a reading was stored
type ReadingResponse struct {
	OK      bool                 `json:"ok"`
	Reading models.SensorReading `json:"reading"`
	Alerts  models.Alerts        `json:"alerts"`
}

// Status is the dashboard summary
type Status struct {
	Backend       string                     `json:"backend"`
	Breaker       string                     `json:"breaker,omitempty"`
	StoreHealthy  bool                       `json:"store_healthy"`
	Source        arbiter.Snapshot           `json:"source"`
	Config        models.EnvironmentalConfig `json:"config"`
	ConfigSaved   bool                       `json:"config_saved"`
	LatestReading *models.SensorReading      `json:"latest_reading,omitempty"`
	Alerts        *models.Alerts             `json:"alerts,omitempty"`
}

// PostReading submits one reading
func (c *Client) PostReading(ctx context.Context, reading ReadingRequest) (*ReadingResponse, error) {
	var result ReadingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reading).
		SetResult(&result).
		SetError(&Error{}).
		Post("/api/v1/readings")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

// Latest returns the most recent readings, newest first. A limit of 0 uses
// the server default.
func (c *Client) Latest(ctx context.Context, limit int) ([]models.SensorReading, error) {
	var readings []models.SensorReading
	req := c.http.R().
		SetContext(ctx).
		SetResult(&readings).
		SetError(&Error{})
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get("/api/v1/readings/latest")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return readings, nil
}

// Status returns the dashboard summary
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&status).
		SetError(&Error{}).
		Get("/api/v1/status")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &status, nil
}
