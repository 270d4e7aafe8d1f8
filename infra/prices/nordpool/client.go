package nordpool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/askelund/spotheat/core/model"
)

// Config defines the day-ahead price endpoint.
type Config struct {
	BaseURL        string `json:"base_url"`
	Currency       string `json:"currency"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Currency == "" {
		c.Currency = "EUR"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	return nil
}

// Client fetches hourly day-ahead prices over HTTP. It implements
// prices.Source.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

// NewClient creates a Client from the configuration.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		now:  time.Now,
	}
}

type pricePayload struct {
	Zone     string `json:"zone"`
	Currency string `json:"currency"`
	Points   []struct {
		Start time.Time `json:"start"`
		Price float64   `json:"price"`
	} `json:"points"`
}

// Prices retrieves the hourly series for the given zone and horizon day.
func (c *Client) Prices(ctx context.Context, zone string, day model.HorizonDay) (model.PriceSeries, error) {
	date := c.now().UTC()
	if day == model.DayTomorrow {
		date = date.AddDate(0, 0, 1)
	}
	url := fmt.Sprintf("%s/api/v1/dayahead/%s?zone=%s&currency=%s",
		c.cfg.BaseURL, date.Format("2006-01-02"), zone, c.cfg.Currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		// Tomorrow's auction result is simply not published yet.
		return nil, fmt.Errorf("no prices published for %s %s", zone, date.Format("2006-01-02"))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var payload pricePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}

	series := make(model.PriceSeries, 0, len(payload.Points))
	for _, p := range payload.Points {
		series = append(series, model.PricePoint{Timestamp: p.Start.UTC(), Price: p.Price, Day: day})
	}
	series.Sort()
	return series, nil
}
