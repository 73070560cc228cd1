package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/config"
	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

// Column names of the city open-data price tables.
const (
	fieldNeighborhood = "Barris"
	fieldDistrict     = "Dte."
)

type client struct {
	baseURL          string
	snapshotResource string
	historyResource  string
	snapshotColumn   string
	limit            int
	maxAttempts      int
	baseDelay        time.Duration
	http             *http.Client
}

// NewClient reads the baseline datasets from a CKAN datastore_search endpoint.
func NewClient(cfg *config.OpenDataConfig) ports.BaselineSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 1000
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	column := cfg.SnapshotColumn
	if column == "" {
		column = "2015"
	}
	return &client{
		baseURL:          cfg.URL,
		snapshotColumn:   column,
		snapshotResource: cfg.SnapshotResource,
		historyResource:  cfg.HistoryResource,
		limit:            limit,
		maxAttempts:      attempts,
		baseDelay:        cfg.BaseDelay,
		http:             &http.Client{Timeout: timeout},
	}
}

type datastoreResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []map[string]any `json:"records"`
	} `json:"result"`
	Error json.RawMessage `json:"error,omitempty"`
}

func (c *client) FetchSnapshot(ctx context.Context) ([]ports.SnapshotRecord, error) {
	records, err := c.fetch(ctx, c.snapshotResource)
	if err != nil {
		return nil, err
	}
	out := make([]ports.SnapshotRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, ports.SnapshotRecord{
			Neighborhood: stringField(rec, fieldNeighborhood),
			District:     stringField(rec, fieldDistrict),
			Price:        stringField(rec, c.snapshotColumn),
		})
	}
	return out, nil
}

func (c *client) FetchHistory(ctx context.Context) ([]ports.HistoryRecord, error) {
	records, err := c.fetch(ctx, c.historyResource)
	if err != nil {
		return nil, err
	}
	out := make([]ports.HistoryRecord, 0, len(records))
	for _, rec := range records {
		// every four-digit column is a year of the series
		prices := make(map[int]string)
		for k := range rec {
			if len(k) != 4 {
				continue
			}
			if y, err := strconv.Atoi(k); err == nil {
				prices[y] = stringField(rec, k)
			}
		}
		out = append(out, ports.HistoryRecord{
			Neighborhood: stringField(rec, fieldNeighborhood),
			Prices:       prices,
		})
	}
	return out, nil
}

// fetch retries with exponential back-off. Failures wrap domain.ErrDataFetch.
func (c *client) fetch(ctx context.Context, resourceID string) ([]map[string]any, error) {
	var lastErr error
	delay := c.baseDelay

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		records, err := c.fetchOnce(ctx, resourceID)
		if err == nil {
			return records, nil
		}
		lastErr = err

		if attempt < c.maxAttempts {
			log.WithError(err).WithFields(log.Fields{
				"resource_id": resourceID,
				"attempt":     attempt,
				"retry_in":    delay.String(),
			}).Warn("open data fetch failed, retrying")
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrDataFetch, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return nil, fmt.Errorf("%w: resource %s after %d attempts: %v", domain.ErrDataFetch, resourceID, c.maxAttempts, lastErr)
}

func (c *client) fetchOnce(ctx context.Context, resourceID string) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("resource_id", resourceID)
	params.Set("limit", strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body datastoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("datastore_search failed: %s", string(body.Error))
	}
	return body.Result.Records, nil
}

func stringField(rec map[string]any, key string) string {
	switch v := rec[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
