// Package kodik provides a client for the Kodik aggregator API and the
// mapping from its payloads to catalog records.
package kodik

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
	"time"

	"golang.org/x/time/rate"

	"github.com/justmedia/kodisync/internal/catalog"
)

const (
	defaultBaseURL       = "https://kodikapi.com"
	defaultRatePerSecond = 5

	// DefaultPageLimit is the page size used when the caller does not set one.
	DefaultPageLimit = 50
	// MaxPageLimit is the largest page size the API accepts.
	MaxPageLimit = 100
)

// ErrMissingToken is returned when the client is constructed without an API
// token.
var ErrMissingToken = errors.New("kodik: API token is required")

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the Kodik API. Requests never retry: a failed page fetch
// surfaces to the caller, which stops the run rather than risk skipping
// entries mid-stream.
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPDoer
	limiter    *rate.Limiter
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRateLimit caps outgoing requests at n per second.
func WithRateLimit(n int) Option {
	return func(client *Client) {
		if n > 0 {
			client.limiter = rate.NewLimiter(rate.Limit(n), 1)
		}
	}
}

// NewClient creates a Kodik API client.
func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	client := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultRatePerSecond), 1),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// ListParams controls a /list page request.
type ListParams struct {
	Limit int
	// PageLink, when set, is the opaque next_page URL from a previous
	// response and is fetched verbatim (all other params ignored).
	PageLink         string
	Types            []string
	Year             int
	Sort             string
	Order            string
	WithMaterialData bool
}

// List fetches one page of the catalog listing.
func (c *Client) List(ctx context.Context, params ListParams) (*ListResponse, error) {
	var endpoint string
	if params.PageLink != "" {
		endpoint = params.PageLink
	} else {
		q := url.Values{}
		limit := params.Limit
		if limit <= 0 {
			limit = DefaultPageLimit
		}
		if limit > MaxPageLimit {
			limit = MaxPageLimit
		}
		q.Set("limit", strconv.Itoa(limit))
		if len(params.Types) > 0 {
			q.Set("types", strings.Join(params.Types, ","))
		}
		if params.Year > 0 {
			q.Set("year", strconv.Itoa(params.Year))
		}
		if params.Sort != "" {
			q.Set("sort", params.Sort)
		}
		if params.Order != "" {
			q.Set("order", params.Order)
		}
		if params.WithMaterialData {
			q.Set("with_material_data", "true")
		}
		endpoint = c.buildURL("list", q)
	}

	var resp ListResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchParams controls a /search request.
type SearchParams struct {
	IDs              catalog.ExternalIDs
	WithEpisodesData bool
	WithMaterialData bool
	Limit            int
}

// SearchByIDs looks up every entry matching any of the given external
// identifiers. At least one identifier must be set.
func (c *Client) SearchByIDs(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	ids := params.IDs.NonEmpty()
	if len(ids) == 0 {
		return nil, errors.New("kodik: search requires at least one external ID")
	}

	q := url.Values{}
	for field, value := range ids {
		if field == catalog.FieldMyDramaListID {
			field = "mdl_id"
		}
		q.Set(field, value)
	}
	if params.WithEpisodesData {
		q.Set("with_episodes_data", "true")
	}
	if params.WithMaterialData {
		q.Set("with_material_data", "true")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = MaxPageLimit
	}
	q.Set("limit", strconv.Itoa(limit))

	var resp SearchResponse
	if err := c.getJSON(ctx, c.buildURL("search", q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Translations fetches the full voiceover/subtitle track dictionary.
func (c *Client) Translations(ctx context.Context) (*TranslationsResponse, error) {
	var resp TranslationsResponse
	if err := c.getJSON(ctx, c.buildURL("translations/v2", url.Values{}), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) buildURL(path string, q url.Values) string {
	q.Set("token", c.token)
	return c.baseURL + "/" + path + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("kodik: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}
