// Package geocode resolves free-text Greek place descriptions to coordinates
// via a Nominatim-compatible endpoint, with a local sqlite result cache.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// greeceBounds is the plausibility envelope for results: mainland plus all
// island groups, in lon/lat order.
var greeceBounds = geom.NewBounds(geom.XY).Set(19.0, 34.5, 30.0, 42.0)

// Client looks up coordinates for location text. Lookups are throttled and
// cached; results outside the Greece envelope are treated as non-matches.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *Cache
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header required by Nominatim's usage
// policy.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithThrottle sets the minimum spacing between upstream lookups.
func WithThrottle(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithCache attaches a persistent result cache.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// NewClient creates a geocoding client. An empty baseURL uses the public
// Nominatim endpoint.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		userAgent:  "strategic-investments-gr/1.0",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// place is one Nominatim search result. Coordinates arrive as strings.
type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves text to coordinates. ok is false for unmatched text and
// for matches outside the Greece envelope; both outcomes are cached.
func (c *Client) Geocode(ctx context.Context, text string) (lat, lon float64, ok bool, err error) {
	if c.cache != nil {
		if hit, found, cacheErr := c.cache.Get(ctx, text); cacheErr == nil && found {
			return hit.Lat, hit.Lon, hit.Matched, nil
		}
	}

	lat, lon, ok, err = c.lookup(ctx, text)
	if err != nil {
		return 0, 0, false, err
	}

	if c.cache != nil {
		if cacheErr := c.cache.Put(ctx, text, Entry{Lat: lat, Lon: lon, Matched: ok}); cacheErr != nil {
			zap.L().Warn("geocode cache write failed", zap.Error(cacheErr))
		}
	}
	return lat, lon, ok, nil
}

func (c *Client) lookup(ctx context.Context, text string) (float64, float64, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, 0, false, eris.Wrap(err, "geocode: throttle")
	}

	params := url.Values{
		"q":            {text},
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {"gr"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return 0, 0, false, eris.Errorf("geocode: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "geocode: read body")
	}

	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		return 0, 0, false, eris.Wrap(err, "geocode: parse response")
	}
	if len(places) == 0 {
		return 0, 0, false, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "geocode: parse latitude")
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "geocode: parse longitude")
	}

	if !greeceBounds.OverlapsPoint(geom.XY, geom.Coord{lon, lat}) {
		zap.L().Debug("geocode result outside Greece envelope",
			zap.String("text", text),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
		)
		return 0, 0, false, nil
	}
	return lat, lon, true, nil
}
