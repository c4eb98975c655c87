package flipp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://backflipp.wishabi.com/flipp"

// Flyer is a single published flyer as returned by the backflipp API.
type Flyer struct {
	ID         int64    `json:"id"`
	Merchant   string   `json:"merchant"`
	Categories []string `json:"categories"`
}

// Item is a single discounted item inside a flyer. Fields the API omits
// decode to the empty string.
type Item struct {
	Name      string `json:"name"`
	Price     string `json:"current_price"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
}

// Client is a client for the backflipp flyer aggregator API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new backflipp client. An empty baseURL selects the
// public endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// GroceryFlyers returns the grocery flyers currently published for a postal
// code. Flyers outside the Groceries category are filtered out.
func (c *Client) GroceryFlyers(ctx context.Context, postalCode string) ([]Flyer, error) {
	endpoint := fmt.Sprintf("%s/flyers?postal_code=%s&locale=en-ca", c.baseURL, url.QueryEscape(postalCode))

	var resp struct {
		Flyers []Flyer `json:"flyers"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to list flyers for %s: %w", postalCode, err)
	}

	var grocery []Flyer
	for _, f := range resp.Flyers {
		for _, category := range f.Categories {
			if strings.EqualFold(category, "Groceries") {
				grocery = append(grocery, f)
				break
			}
		}
	}
	return grocery, nil
}

// FlyerItems returns the items of a single flyer.
func (c *Client) FlyerItems(ctx context.Context, flyerID int64) ([]Item, error) {
	endpoint := fmt.Sprintf("%s/flyers/%d?locale=en-ca", c.baseURL, flyerID)

	var resp struct {
		Items []Item `json:"items"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch items for flyer %d: %w", flyerID, err)
	}
	return resp.Items, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backflipp api error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
