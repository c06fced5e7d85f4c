package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/den-kezlia/torrent/internal/types"
)

// DefaultEndpoint is the public Overpass interpreter
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// OverpassDataSource fetches OSM data from Overpass API
type OverpassDataSource struct {
	transport *Transport
	logger    *slog.Logger
	endpoint  string
}

// NewOverpassDataSource creates a new Overpass data source. A nil transport
// gets DefaultTransportConfig.
func NewOverpassDataSource(endpoint string, transport *Transport) *OverpassDataSource {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if transport == nil {
		transport = NewTransport(DefaultTransportConfig())
	}

	return &OverpassDataSource{
		transport: transport,
		logger:    transport.cfg.Logger,
		endpoint:  endpoint,
	}
}

// Query posts an Overpass QL query and returns the response elements in order.
func (ds *OverpassDataSource) Query(ctx context.Context, query string) ([]types.Element, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ds.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := ds.transport.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	elements, err := DecodeOverpassJSON(resp.Body)
	if err != nil {
		return nil, err
	}

	ds.logger.Debug("overpass query completed",
		"elements", len(elements),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return elements, nil
}

// FetchHighways returns the highway ways of an area followed by their nodes.
func (ds *OverpassDataSource) FetchHighways(ctx context.Context, q HighwayQuery) ([]types.Element, error) {
	return ds.Query(ctx, q.Build())
}
