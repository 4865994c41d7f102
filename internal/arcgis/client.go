package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/catastropr/gridsearch/internal/core/model"
	"github.com/catastropr/gridsearch/internal/core/observability"
)

// queryPath is the parcel layer of the registry's MapServer.
const queryPath = "/server/rest/services/Parcelario/Parcelas/MapServer/654/query"

// Page is one decoded result page.
type Page struct {
	Features []model.PropertyRecord
}

type backendError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Features []struct {
		Attributes model.PropertyRecord `json:"attributes"`
	} `json:"features"`
	Error *backendError `json:"error"`
}

// Client executes single request/response exchanges against the registry.
// Authentication happens elsewhere; the client only carries the opaque
// cookie header the auth collaborator acquired.
type Client struct {
	logger    *slog.Logger
	http      *http.Client
	base      string
	referer   string
	userAgent string
	cookie    string
	now       func() time.Time // for tests
}

type ClientConfig struct {
	BaseURL   string
	Referer   string
	UserAgent string
	Cookie    string
}

func NewClient(logger *slog.Logger, hc *http.Client, cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, model.InvalidArgumentf("registry base URL is required")
	}
	return &Client{
		logger:    logger,
		http:      hc,
		base:      base,
		referer:   cfg.Referer,
		userAgent: cfg.UserAgent,
		cookie:    cfg.Cookie,
		now:       time.Now,
	}, nil
}

// queryURL builds the proxied query endpoint. The trailing '?' matters: the
// registry proxy expects the inner service URL as the outer query string, so
// the final URL carries two question marks.
func (c *Client) queryURL(d Descriptor, offset, count int) string {
	return fmt.Sprintf("%s/proxy/proxy.ashx?%s%s?%s", c.base, c.base, queryPath, d.Values(offset, count).Encode())
}

// FetchPage performs one paginated query exchange and decodes the feature
// attributes. A backend error embedded in a 200 response is surfaced as an
// error, as is a response lacking the feature list.
func (c *Client) FetchPage(ctx context.Context, d Descriptor, offset, count int) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL(d, offset, count), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency("registry", time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("registry status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("registry error %d: %s", env.Error.Code, env.Error.Message)
	}
	if env.Features == nil {
		return nil, fmt.Errorf("response missing feature list")
	}

	page := &Page{Features: make([]model.PropertyRecord, 0, len(env.Features))}
	for _, f := range env.Features {
		if f.Attributes != nil {
			page.Features = append(page.Features, f.Attributes)
		}
	}

	c.logger.Debug("page fetched",
		"offset", offset,
		"count", len(page.Features))
	return page, nil
}
