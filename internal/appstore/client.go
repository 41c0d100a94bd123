// Package appstore is a small client for the App Store Connect sales and
// finance report endpoints.
package appstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	salesReportsPath   = "/salesReports"
	financeReportsPath = "/financeReports"

	maxReportBytes = 256 << 20
	maxErrorBytes  = 1 << 20
)

// ErrObjectResponse is used by callers to tag a 2xx response that carried a
// JSON object instead of report text.
var ErrObjectResponse = errors.New("appstore: structured object instead of report text")

// Config configures a Client.
type Config struct {
	KeyID      string
	IssuerID   string
	PrivateKey []byte // PEM encoded EC private key
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client downloads reports. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	tokens    *tokenSource
}

// NewClient validates cfg and parses the signing key.
func NewClient(cfg Config) (*Client, error) {
	if cfg.KeyID == "" || cfg.IssuerID == "" {
		return nil, fmt.Errorf("appstore: key id and issuer id are required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("appstore: base url is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	tokens, err := newTokenSource(cfg.KeyID, cfg.IssuerID, cfg.PrivateKey, cfg.Now)
	if err != nil {
		return nil, err
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      hc,
		tokens:    tokens,
	}, nil
}

// DownloadSalesReport fetches one sales and trends report.
func (c *Client) DownloadSalesReport(ctx context.Context, filters map[string]string) (*Report, error) {
	return c.download(ctx, salesReportsPath, filters)
}

// DownloadFinanceReport fetches one financial report.
func (c *Client) DownloadFinanceReport(ctx context.Context, filters map[string]string) (*Report, error) {
	return c.download(ctx, financeReportsPath, filters)
}

func (c *Client) download(ctx context.Context, path string, filters map[string]string) (*Report, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+encodeFilters(filters), nil)
	if err != nil {
		return nil, fmt.Errorf("appstore: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/a-gzip, application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("appstore: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, parseAPIError(resp.StatusCode, body)
	}

	body, err := readLimited(resp.Body, maxReportBytes)
	if err != nil {
		return nil, fmt.Errorf("appstore: read %s: %w", path, err)
	}
	return decodeReport(body, maxReportBytes)
}

// encodeFilters renders filters as filter[key]=value in key order.
func encodeFilters(filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make([]string, 0, len(keys))
	for _, k := range keys {
		q = append(q, url.QueryEscape("filter["+k+"]")+"="+url.QueryEscape(filters[k]))
	}
	return strings.Join(q, "&")
}
