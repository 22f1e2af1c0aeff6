// Package lookup is the client of the external vacancy lookup service.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/jobassist/internal/metrics"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrLookupUnavailable covers transport failures, timeouts, non-2xx
	// responses and service-reported errors. Callers may retry.
	ErrLookupUnavailable = errors.New("job lookup unavailable")
	// ErrJobNotFound means the service answered and has no such vacancy.
	ErrJobNotFound = errors.New("job not found")
)

const (
	toolListVacancies = "search_available_vacancies"
	toolByID          = "search_by_id_vacante"
	toolByAdID        = "search_by_ad_id"
)

// Pagination is passed through from the service unchanged.
type Pagination struct {
	Total      int  `json:"total"`
	Offset     int  `json:"offset"`
	Limit      int  `json:"limit"`
	HasMore    bool `json:"has_more"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// Page is one page of the vacancy listing.
type Page struct {
	Items      []Summary  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	PageSize   int
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Client calls the lookup service tools over HTTP. It keeps no job data
// between calls; concurrent identical detail requests share one round trip.
type Client struct {
	baseURL  string
	timeout  time.Duration
	pageSize int
	http     *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
	inflight singleflight.Group
}

// NewClient creates a lookup client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		timeout:  opts.Timeout,
		pageSize: opts.PageSize,
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

type listRequest struct {
	DetailLevel string `json:"detail_level"`
	Offset      int    `json:"offset"`
	Limit       int    `json:"limit"`
}

type listResponse struct {
	Results []Summary `json:"results"`
	Error   string    `json:"error,omitempty"`
	Pagination
}

// ListAvailable returns the page of open vacancies starting at offset.
func (c *Client) ListAvailable(ctx context.Context, offset int) (Page, error) {
	if offset < 0 {
		offset = 0
	}
	var resp listResponse
	err := c.call(ctx, toolListVacancies, listRequest{DetailLevel: "summary", Offset: offset, Limit: c.pageSize}, &resp)
	if err != nil {
		return Page{}, err
	}
	if resp.Error != "" {
		c.metrics.IncLookup(toolListVacancies, "service_error")
		return Page{}, fmt.Errorf("%s: %w: %s", toolListVacancies, ErrLookupUnavailable, resp.Error)
	}

	items := make([]Summary, 0, len(resp.Results))
	for _, s := range resp.Results {
		if s.JobID == "" {
			continue
		}
		items = append(items, s)
	}
	c.metrics.IncLookup(toolListVacancies, "ok")
	return Page{Items: items, Pagination: resp.Pagination}, nil
}

// GetByID returns the detail record of a vacancy, or ErrJobNotFound.
func (c *Client) GetByID(ctx context.Context, jobID string) (JobRecord, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return JobRecord{}, ErrJobNotFound
	}

	ch := c.inflight.DoChan(toolByID+":"+jobID, func() (any, error) {
		// Detached from any one caller so a cancelled caller does not fail
		// the others sharing this round trip.
		callCtx := context.WithoutCancel(ctx)
		var rec JobRecord
		if err := c.call(callCtx, toolByID, map[string]string{"id_vacante": jobID}, &rec); err != nil {
			return JobRecord{}, err
		}
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return JobRecord{}, fmt.Errorf("%s: %w: %v", toolByID, ErrLookupUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return JobRecord{}, res.Err
		}
		return c.checkRecord(toolByID, jobID, res.Val.(JobRecord))
	}
}

// SearchByAdID returns the id of the vacancy advertised by a campaign ad.
func (c *Client) SearchByAdID(ctx context.Context, adID string) (string, error) {
	adID = strings.TrimSpace(adID)
	if adID == "" {
		return "", ErrJobNotFound
	}
	var rec JobRecord
	if err := c.call(ctx, toolByAdID, map[string]string{"ad_id": adID, "detail_level": "summary"}, &rec); err != nil {
		return "", err
	}
	rec, err := c.checkRecord(toolByAdID, adID, rec)
	if err != nil {
		return "", err
	}
	id := FirstPresent(rec.IDVacante, rec.IDPuesto)
	if !id.Set {
		c.metrics.IncLookup(toolByAdID, "not_found")
		return "", fmt.Errorf("%s %s: %w", toolByAdID, adID, ErrJobNotFound)
	}
	return id.Text, nil
}

func (c *Client) checkRecord(tool, key string, rec JobRecord) (JobRecord, error) {
	switch {
	case rec.Error != "" && isNotFoundMessage(rec.Error):
		c.metrics.IncLookup(tool, "not_found")
		return JobRecord{}, fmt.Errorf("%s %s: %w", tool, key, ErrJobNotFound)
	case rec.Error != "":
		c.metrics.IncLookup(tool, "service_error")
		return JobRecord{}, fmt.Errorf("%s %s: %w: %s", tool, key, ErrLookupUnavailable, rec.Error)
	case rec.Empty():
		c.metrics.IncLookup(tool, "not_found")
		return JobRecord{}, fmt.Errorf("%s %s: %w", tool, key, ErrJobNotFound)
	}
	c.metrics.IncLookup(tool, "ok")
	return rec, nil
}

func isNotFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "no vacancy found") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "no se encontr")
}

// call posts body to a tool endpoint and decodes the JSON answer into out.
// Every failure is reported as ErrLookupUnavailable except HTTP 404, which is
// ErrJobNotFound.
func (c *Client) call(ctx context.Context, tool string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", tool, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp/tool/"+tool, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", tool, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.IncLookup(tool, "transport_error")
		c.logger.Warn("Lookup request failed", "tool", tool, "error", err, "elapsed", time.Since(start))
		return fmt.Errorf("%s: %w: %v", tool, ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.metrics.IncLookup(tool, "transport_error")
		return fmt.Errorf("%s: read body: %w: %v", tool, ErrLookupUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.metrics.IncLookup(tool, "not_found")
		return fmt.Errorf("%s: %w", tool, ErrJobNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.metrics.IncLookup(tool, "http_error")
		c.logger.Warn("Lookup returned non-2xx", "tool", tool, "status", resp.StatusCode)
		return fmt.Errorf("%s: %w: status %d", tool, ErrLookupUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.metrics.IncLookup(tool, "decode_error")
		return fmt.Errorf("%s: decode response: %w: %v", tool, ErrLookupUnavailable, err)
	}
	c.logger.Debug("Lookup request completed", "tool", tool, "elapsed", time.Since(start))
	return nil
}
