package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"apartment-valuation-service/internal/config"
	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

type client struct {
	baseURL   string
	userAgent string
	suffix    string
	http      *http.Client
}

// NewClient geocodes addresses with the Nominatim search API.
func NewClient(cfg *config.GeocoderConfig) ports.Geocoder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &client{
		baseURL:   cfg.URL,
		userAgent: cfg.UserAgent,
		suffix:    cfg.Suffix,
		http:      &http.Client{Timeout: timeout},
	}
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (c *client) Geocode(ctx context.Context, address string) (*domain.Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.ErrGeocodeMiss
	}

	params := url.Values{}
	params.Set("q", address+c.suffix)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(places) == 0 {
		return nil, domain.ErrGeocodeMiss
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon %q: %w", places[0].Lon, err)
	}
	return &domain.Coordinates{Lat: lat, Lon: lon}, nil
}
