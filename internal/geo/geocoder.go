// Package geo resolves free-text locations to coordinates via an external
// geocoding API. The boundary contract is deliberately forgiving: a lookup
// never fails past this package. Missing key, empty location, transport
// errors and empty result sets all degrade to {0,0}, logged but absorbed,
// so one unresolvable address never sinks a whole import.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Point is a coordinate pair. The zero value doubles as "unknown".
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoder resolves a free-text location to coordinates.
type Geocoder interface {
	Locate(ctx context.Context, location string) Point
}

// Disabled is a Geocoder used when no API key is configured.
type Disabled struct{}

func (Disabled) Locate(context.Context, string) Point { return Point{} }

// HTTPGeocoder calls a Google-geocoding-shaped API:
// GET <base>?address=<location>&key=<key>, reading
// results[0].geometry.location.{lat,lng} from the response.
type HTTPGeocoder struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// New returns an HTTPGeocoder, or Disabled when apiKey is empty.
func New(baseURL, apiKey string, logger *zap.Logger) Geocoder {
	if apiKey == "" {
		logger.Info("geocoding disabled: no API key configured")
		return Disabled{}
	}
	return &HTTPGeocoder{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// geocodeResponse mirrors just the part of the provider payload we read.
type geocodeResponse struct {
	Results []struct {
		Geometry struct {
			Location Point `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	Status string `json:"status"`
}

func (g *HTTPGeocoder) Locate(ctx context.Context, location string) Point {
	if location == "" || location == "Unknown" {
		return Point{}
	}

	point, err := g.lookup(ctx, location)
	if err != nil {
		g.logger.Warn("geocoding failed",
			zap.String("location", location),
			zap.Error(err),
		)
		return Point{}
	}
	return point
}

func (g *HTTPGeocoder) lookup(ctx context.Context, location string) (Point, error) {
	q := url.Values{}
	q.Set("address", location)
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Point{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("calling geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("HTTP %d from geocoder", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return Point{}, fmt.Errorf("reading body: %w", err)
	}

	var parsed geocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Point{}, fmt.Errorf("parsing response: %w", err)
	}

	if len(parsed.Results) == 0 {
		return Point{}, fmt.Errorf("no results (status %q)", parsed.Status)
	}

	return parsed.Results[0].Geometry.Location, nil
}
