package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oceanobs/streamwatch/internal/conf"
	"github.com/oceanobs/streamwatch/internal/logger"
)

// streamMetadata mirrors one entry of the sensor inventory's
// /metadata/times response.
type streamMetadata struct {
	Stream  string  `json:"stream"`
	Method  string  `json:"method"`
	Count   uint64  `json:"count"`
	EndTime float64 `json:"endTime"`
}

// RefDesLister supplies the set of instruments to poll. Satisfied by the
// stream repository.
type RefDesLister interface {
	ListRefDesNames(ctx context.Context) ([]string, error)
}

// HTTPSource polls the sensor inventory service for per-stream counter
// metadata, one request per known instrument.
type HTTPSource struct {
	client  *http.Client
	baseURL string
	refdes  RefDesLister
	log     logger.Logger
}

// NewHTTPSource creates a metadata-polling source.
func NewHTTPSource(settings *conf.HTTPSourceSettings, refdes RefDesLister, log logger.Logger) *HTTPSource {
	return &HTTPSource{
		client:  &http.Client{Timeout: settings.Timeout.Std()},
		baseURL: settings.BaseURL,
		refdes:  refdes,
		log:     log,
	}
}

// Gather polls every known instrument. An unreachable instrument is
// logged and skipped; the rest of the batch still ingests.
func (s *HTTPSource) Gather(ctx context.Context) ([]Reading, error) {
	names, err := s.refdes.ListRefDesNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments to poll: %w", err)
	}

	var readings []Reading
	for _, name := range names {
		entries, err := s.fetchMetadata(ctx, name)
		if err != nil {
			s.log.Warn("metadata poll failed",
				logger.String("refdes", name), logger.Error(err))
			continue
		}
		for _, entry := range entries {
			readings = append(readings, Reading{
				RefDes:   name,
				Stream:   entry.Stream,
				Method:   entry.Method,
				Count:    entry.Count,
				LastSeen: time.Unix(int64(entry.EndTime), 0).UTC(),
			})
		}
	}
	return readings, nil
}

// fetchMetadata queries /sensor/inv/<site>/<node>/<sensor>/metadata/times
// for one instrument.
func (s *HTTPSource) fetchMetadata(ctx context.Context, refdes string) ([]streamMetadata, error) {
	site, node, sensor, err := SplitRefDes(refdes)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/sensor/inv/%s/%s/%s/metadata/times", s.baseURL, site, node, sensor)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata endpoint returned %d", resp.StatusCode)
	}
	var entries []streamMetadata
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	return entries, nil
}

// Close is a no-op; the source holds no persistent connection.
func (s *HTTPSource) Close() error { return nil }
