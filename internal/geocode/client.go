package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client queries a Nominatim-style reverse geocoding endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a reverse geocoding client. Nominatim's usage policy
// requires an identifying User-Agent.
func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// reverseResponse is the subset of the Nominatim jsonv2 reverse payload the
// client consumes.
type reverseResponse struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

// addressPreference orders the address components considered for the label,
// most specific first.
var addressPreference = []string{
	"leisure", "amenity", "sports_centre", "stadium", "park",
	"suburb", "neighbourhood", "village", "town", "city",
}

// Resolve calls the reverse endpoint and reduces the JSON response to a short
// label, preferring venue and facility names over address components.
func (c *Client) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	url := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%.6f&lon=%.6f&zoom=16", c.baseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating reverse geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var payload reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding reverse geocode response: %w", err)
	}

	label := payload.label()
	if label == "" {
		return "", errors.New("reverse geocode response had no usable name")
	}
	return label, nil
}

func (r reverseResponse) label() string {
	if r.Name != "" {
		return r.Name
	}
	for _, key := range addressPreference {
		if v := r.Address[key]; v != "" {
			return v
		}
	}
	if r.DisplayName != "" {
		return strings.TrimSpace(strings.SplitN(r.DisplayName, ",", 2)[0])
	}
	return ""
}
