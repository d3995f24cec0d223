// Package wigle queries the WiGLE network search API for access point
// locations.
package wigle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/catfinder/internal/httputil"
	"github.com/banshee-data/catfinder/internal/packet"
)

// DefaultBaseURL is the WiGLE v2 API root.
const DefaultBaseURL = "https://api.wigle.net/api/v2"

const searchPath = "/network/search"

var (
	// ErrNotFound is returned when WiGLE knows no location for a BSSID.
	ErrNotFound = errors.New("wigle: no location")
	// ErrNoCredentials is returned when the client has no user or token.
	ErrNoCredentials = errors.New("wigle: missing credentials")
)

// APIError is a non-success answer from WiGLE.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("wigle: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return "wigle: " + e.Message
}

// Network is one search result.
type Network struct {
	NetID       string   `json:"netid"`
	SSID        string   `json:"ssid"`
	TriLat      *float64 `json:"trilat"`
	TriLong     *float64 `json:"trilong"`
	Channel     int      `json:"channel"`
	Road        string   `json:"road"`
	HouseNumber string   `json:"housenumber"`
	LastUpdate  string   `json:"lastupdt"`
}

// HasLocation reports whether WiGLE returned coordinates.
func (n Network) HasLocation() bool { return n.TriLat != nil && n.TriLong != nil }

type searchResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	ResultCount  int       `json:"resultCount"`
	SearchAfter  string    `json:"searchAfter"`
	Results      []Network `json:"results"`
}

// Client talks to WiGLE with HTTP basic auth.
type Client struct {
	http    httputil.HTTPClient
	baseURL string
	user    string
	token   string
}

// NewClient returns a client for baseURL (DefaultBaseURL when empty). A nil
// hc uses httputil.NewStandardClient.
func NewClient(hc httputil.HTTPClient, baseURL, user, token string) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), user: user, token: token}
}

func (c *Client) search(ctx context.Context, params url.Values) (*searchResponse, error) {
	if c.user == "" || c.token == "" {
		return nil, ErrNoCredentials
	}
	params.Set("onlymine", "false")
	params.Set("freenet", "false")
	params.Set("paynet", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wigle request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("wigle read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("wigle decode failed: %w", err)
	}
	if !sr.Success {
		msg := sr.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, &APIError{Message: msg}
	}
	return &sr, nil
}

// Lookup returns the first search result for bssid. It returns ErrNotFound
// when WiGLE has no result or the result carries no coordinates.
func (c *Client) Lookup(ctx context.Context, bssid packet.BSSID) (Network, error) {
	sr, err := c.search(ctx, url.Values{"netid": {bssid.String()}})
	if err != nil {
		return Network{}, err
	}
	if sr.ResultCount == 0 || len(sr.Results) == 0 {
		return Network{}, ErrNotFound
	}
	n := sr.Results[0]
	if !n.HasLocation() {
		return Network{}, ErrNotFound
	}
	return n, nil
}

// Area is a latitude/longitude rectangle.
type Area struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// ResultsPerPage is the page size requested by SearchArea.
const ResultsPerPage = 100

// areaVariance is the fuzz WiGLE applies around the rectangle.
const areaVariance = 0.003

// SearchArea pages through every network inside area, calling fn for each
// page. Paging stops at the last page, on the first error, or when fn returns
// an error. It returns the number of results delivered.
func (c *Client) SearchArea(ctx context.Context, area Area, fn func([]Network) error) (int, error) {
	params := url.Values{
		"latrange1":      {formatCoord(area.LatMin)},
		"latrange2":      {formatCoord(area.LatMax)},
		"longrange1":     {formatCoord(area.LonMin)},
		"longrange2":     {formatCoord(area.LonMax)},
		"resultsPerPage": {strconv.Itoa(ResultsPerPage)},
		"variance":       {strconv.FormatFloat(areaVariance, 'f', -1, 64)},
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sr, err := c.search(ctx, params)
		if err != nil {
			return total, err
		}
		if len(sr.Results) == 0 {
			return total, nil
		}
		if err := fn(sr.Results); err != nil {
			return total, err
		}
		total += len(sr.Results)
		if sr.SearchAfter == "" {
			return total, nil
		}
		params.Set("searchAfter", sr.SearchAfter)
	}
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', 7, 64)
}
