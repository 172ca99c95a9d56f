// Package vpic is a client for the NHTSA vPIC vehicle registry
// (DecodeVin). Missing attributes stay empty, never fabricated.
package vpic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://vpic.nhtsa.dot.gov/api"

// Client decodes VINs into vehicle attributes.
type Client interface {
	DecodeVIN(ctx context.Context, vin string) (*VehicleAttributes, error)
}

// VehicleAttributes is the best-effort subset of a registry decode the
// pipeline cares about. Unset fields are empty strings.
type VehicleAttributes struct {
	Year  string `json:"year"`
	Make  string `json:"make"`
	Model string `json:"model"`
}

// Empty reports whether the decode produced nothing usable.
func (a *VehicleAttributes) Empty() bool {
	return a.Year == "" && a.Make == "" && a.Model == ""
}

// decodeResponse mirrors the vPIC JSON envelope.
type decodeResponse struct {
	Results []decodeResult `json:"Results"`
}

type decodeResult struct {
	Variable string `json:"Variable"`
	Value    string `json:"Value"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a vPIC client. The registry needs no credentials.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) DecodeVIN(ctx context.Context, vin string) (*VehicleAttributes, error) {
	if vin == "" {
		return nil, eris.New("vpic: vin is required")
	}

	u := c.baseURL + "/vehicles/DecodeVin/" + url.PathEscape(vin) + "?format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "vpic: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "vpic: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "vpic: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("vpic: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var decoded decodeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, eris.Wrap(err, "vpic: unmarshal response")
	}

	attrs := &VehicleAttributes{}
	for _, r := range decoded.Results {
		switch r.Variable {
		case "Model Year":
			attrs.Year = r.Value
		case "Make":
			attrs.Make = r.Value
		case "Model":
			attrs.Model = r.Value
		}
	}
	return attrs, nil
}
