package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/weather-favorites/internal/models"
)

// CityClient looks up cities by free-text name.
type CityClient interface {
	SearchCities(ctx context.Context, query string) ([]models.CityRecord, error)
}

// NinjasCityClient queries the API Ninjas city endpoint, authenticated with X-Api-Key.
type NinjasCityClient struct {
	apiKey    string
	baseURL   string
	transport transport
}

// NewNinjasCityClient returns a client for baseURL (e.g. https://api.api-ninjas.com/v1).
func NewNinjasCityClient(apiKey, baseURL string, timeout time.Duration) (*NinjasCityClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: city API key is required", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid city API URL: %w", err)
	}
	return &NinjasCityClient{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: newTransport(timeout),
	}, nil
}

// SearchCities calls GET /city?name=query. A null body yields no cities.
func (c *NinjasCityClient) SearchCities(ctx context.Context, query string) ([]models.CityRecord, error) {
	u, err := url.Parse(c.baseURL + "/city")
	if err != nil {
		return nil, fmt.Errorf("invalid city API URL: %w", err)
	}
	params := url.Values{}
	params.Set("name", query)
	u.RawQuery = params.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	body, err := c.transport.get(ctx, APICity, req)
	if err != nil {
		return nil, err
	}
	return decodeCities(body)
}
