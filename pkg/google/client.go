// Package google is a small client for the Places API (New) text search.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// FieldMask limits responses to what a cafe lookup needs. Places bills by
// the fields requested, so keep it narrow.
const FieldMask = "places.id,places.location,places.displayName,places.formattedAddress"

// Client searches for places by free text.
type Client interface {
	TextSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is the body of a places:searchText call.
type SearchRequest struct {
	Query string `json:"textQuery"`
	// PageSize caps the number of places returned. Zero leaves the server
	// default in place.
	PageSize     int    `json:"pageSize,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// SearchResponse lists matching places, best match first.
type SearchResponse struct {
	Places []Place `json:"places"`
}

// First returns the best match, if any.
func (r *SearchResponse) First() (Place, bool) {
	if r == nil || len(r.Places) == 0 {
		return Place{}, false
	}
	return r.Places[0], true
}

// Place is one search hit.
type Place struct {
	ID               string  `json:"id"`
	DisplayName      Text    `json:"displayName"`
	FormattedAddress string  `json:"formattedAddress"`
	Location         *LatLng `json:"location,omitempty"`
}

// Located reports whether the place carries both an id and coordinates.
func (p Place) Located() bool {
	return p.ID != "" && p.Location != nil
}

// Text is a localized string.
type Text struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// APIError is a non-200 reply. Status and Message come from the Google error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("google: status %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("google: status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// HTTPStatus lets the gateway classify the failure.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func newAPIError(code int, body []byte) *APIError {
	e := &APIError{StatusCode: code, Body: string(body)}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil {
		e.Status = env.Error.Status
		e.Message = env.Error.Message
	}
	return e
}

// Option configures the client.
type Option func(*placesClient)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(url string) Option {
	return func(c *placesClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the transport timeout. The gateway applies its own
// per-attempt deadline on top.
func WithTimeout(d time.Duration) Option {
	return func(c *placesClient) {
		c.http.Timeout = d
	}
}

type placesClient struct {
	key     string
	baseURL string
	http    *http.Client
}

// NewClient returns a Places client authenticated with key.
func NewClient(key string, opts ...Option) Client {
	c := &placesClient{
		key:     key,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *placesClient) TextSearch(ctx context.Context, sr SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(sr.Query) == "" {
		return nil, eris.New("google: empty search query")
	}
	payload, err := json.Marshal(sr)
	if err != nil {
		return nil, eris.Wrap(err, "google: encode search")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "google: build search request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.key)
	req.Header.Set("X-Goog-FieldMask", FieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: search")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read search response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "google: decode search response")
	}
	return &out, nil
}
