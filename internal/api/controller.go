// Package api exposes the outward status queries over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oceanobs/streamwatch/internal/datastore/repository"
	"github.com/oceanobs/streamwatch/internal/logger"
	"github.com/oceanobs/streamwatch/internal/monitor"
)

// Controller handles the status query endpoints.
type Controller struct {
	queries *monitor.Queries
	streams repository.StreamRepository
	counts  repository.CountRepository
	log     logger.Logger
}

// NewController registers all routes on the given echo instance.
func NewController(
	e *echo.Echo,
	queries *monitor.Queries,
	streams repository.StreamRepository,
	counts repository.CountRepository,
	registry *prometheus.Registry,
	log logger.Logger,
) *Controller {
	c := &Controller{queries: queries, streams: streams, counts: counts, log: log}

	g := e.Group("/api/v1")
	g.GET("/expected", c.ListExpected)
	g.GET("/streams", c.ListStreams)
	g.GET("/streams/:id", c.GetStreamStatus)
	g.GET("/streams/:id/rates", c.GetStreamRates)
	g.GET("/instruments/:refdes", c.GetInstrumentStatus)
	g.GET("/sites/:site", c.GetSiteStatus)
	g.GET("/status/counts", c.GetStatusCounts)
	g.PATCH("/streams/:id/thresholds", c.SetThresholds)
	g.POST("/streams/:id/disable", c.DisableStream)
	g.POST("/streams/:id/enable", c.EnableStream)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	return c
}

func (c *Controller) handleError(ctx echo.Context, err error, message string) error {
	if errors.Is(err, repository.ErrStreamNotFound) {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}
	c.log.Error(message, logger.Error(err))
	return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": message})
}

func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// ListExpected returns the expected stream definitions.
func (c *Controller) ListExpected(ctx echo.Context) error {
	expected, err := c.streams.ListExpected(ctx.Request().Context())
	if err != nil {
		return c.handleError(ctx, err, "failed to list expected streams")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"expected_streams": expected,
		"count":            len(expected),
	})
}

// ListStreams returns all deployed streams.
func (c *Controller) ListStreams(ctx echo.Context) error {
	streams, err := c.streams.ListStreams(ctx.Request().Context())
	if err != nil {
		return c.handleError(ctx, err, "failed to list streams")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"streams": streams,
		"count":   len(streams),
	})
}

// GetStreamStatus returns the persisted status of one stream.
func (c *Controller) GetStreamStatus(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid stream id"})
	}
	status, err := c.queries.StreamStatusByID(ctx.Request().Context(), id)
	if err != nil {
		return c.handleError(ctx, err, "failed to get stream status")
	}
	return ctx.JSON(http.StatusOK, status)
}

// GetStreamRates returns the hourly mean rate series for plotting.
// Query params start/end are RFC 3339; defaults cover the last week.
func (c *Controller) GetStreamRates(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid stream id"})
	}
	if _, err := c.streams.GetStream(ctx.Request().Context(), id); err != nil {
		return c.handleError(ctx, err, "failed to get stream")
	}
	end := time.Now().UTC()
	start := end.Add(-7 * 24 * time.Hour)
	if v := ctx.QueryParam("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid start time"})
		}
	}
	if v := ctx.QueryParam("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid end time"})
		}
	}
	rates, err := c.counts.HourlyRates(ctx.Request().Context(), id, start, end)
	if err != nil {
		return c.handleError(ctx, err, "failed to compute hourly rates")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"stream_id": id,
		"rates":     rates,
	})
}

// GetInstrumentStatus returns one instrument's rollup with detail.
func (c *Controller) GetInstrumentStatus(ctx echo.Context) error {
	status, err := c.queries.InstrumentStatusByRefDes(ctx.Request().Context(), ctx.Param("refdes"))
	if err != nil {
		return c.handleError(ctx, err, "failed to get instrument status")
	}
	return ctx.JSON(http.StatusOK, status)
}

// GetSiteStatus returns a site rollup across its instruments.
func (c *Controller) GetSiteStatus(ctx echo.Context) error {
	status, err := c.queries.SiteStatusByPrefix(ctx.Request().Context(), ctx.Param("site"))
	if err != nil {
		return c.handleError(ctx, err, "failed to get site status")
	}
	return ctx.JSON(http.StatusOK, status)
}

// GetStatusCounts tallies streams per status.
func (c *Controller) GetStatusCounts(ctx echo.Context) error {
	counts, err := c.queries.StatusCounts(ctx.Request().Context())
	if err != nil {
		return c.handleError(ctx, err, "failed to count statuses")
	}
	return ctx.JSON(http.StatusOK, counts)
}

// thresholdsRequest carries per-field overrides; absent fields revert to
// the expected stream defaults.
type thresholdsRequest struct {
	Rate *float64 `json:"rate"`
	Warn *int     `json:"warn_interval"`
	Fail *int     `json:"fail_interval"`
}

// SetThresholds replaces one stream's override fields.
func (c *Controller) SetThresholds(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid stream id"})
	}
	var req thresholdsRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.streams.SetOverrides(ctx.Request().Context(), id, req.Rate, req.Warn, req.Fail); err != nil {
		return c.handleError(ctx, err, "failed to set thresholds")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// DisableStream excludes a stream from monitoring.
func (c *Controller) DisableStream(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid stream id"})
	}
	if err := c.streams.DisableStream(ctx.Request().Context(), id); err != nil {
		return c.handleError(ctx, err, "failed to disable stream")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// EnableStream restores a stream to its expected defaults.
func (c *Controller) EnableStream(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid stream id"})
	}
	if err := c.streams.EnableStream(ctx.Request().Context(), id); err != nil {
		return c.handleError(ctx, err, "failed to enable stream")
	}
	return ctx.NoContent(http.StatusNoContent)
}
