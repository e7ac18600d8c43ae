// Package docsync mirrors approved events into the external document-tracking
// list. The mirror is best-effort: callers report failures but never fail the
// surrounding request because of one.
package docsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/uiowa-coph/roomres/internal/config"
	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/observability"
)

// Item is the fixed projection the tracking list accepts.
type Item struct {
	PackageID int    `json:"packageId"`
	EventName string `json:"eventName"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	UserEmail string `json:"userEmail"`
	URL       string `json:"url"`
	Comments  string `json:"comments"`
}

// NewItem projects a record onto the tracking-list schema. Times are
// normalized to 24-hour clock; the list sorts on them lexically.
func NewItem(rec *domain.EventRecord, baseURL string) Item {
	return Item{
		PackageID: rec.PackageID,
		EventName: rec.EventName,
		Date:      rec.Date,
		StartTime: normalizeTime(rec.StartTime),
		EndTime:   normalizeTime(rec.EndTime),
		UserEmail: rec.UserEmail,
		URL:       fmt.Sprintf("%s/events/%d", strings.TrimRight(baseURL, "/"), rec.PackageID),
		Comments:  rec.Comments,
	}
}

var timeLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

func normalizeTime(v string) string {
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(v)); err == nil {
			return t.Format("15:04")
		}
	}
	return v
}

type Client struct {
	createURL string
	updateURL string
	deleteURL string
	baseURL   string
	httpc     *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		createURL: cfg.DocSyncCreateURL,
		updateURL: cfg.DocSyncUpdateURL,
		deleteURL: cfg.DocSyncDeleteURL,
		baseURL:   cfg.BaseURL,
		httpc:     &http.Client{Timeout: cfg.ExternalTimeout},
	}
}

func (c *Client) Create(ctx context.Context, item Item) error {
	return c.post(ctx, "create", c.createURL, item)
}

func (c *Client) Update(ctx context.Context, item Item) error {
	return c.post(ctx, "update", c.updateURL, item)
}

func (c *Client) Delete(ctx context.Context, packageID int) error {
	return c.post(ctx, "delete", c.deleteURL, map[string]int{"packageId": packageID})
}

func (c *Client) post(ctx context.Context, action, url string, body any) error {
	if url == "" {
		// Mirror not configured for this deployment.
		observability.RecordDocSyncAttempt(action, "skipped")
		return nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		observability.RecordDocSyncAttempt(action, "failure")
		return fmt.Errorf("docsync %s: encode: %w", action, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpc.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return struct{}{}, fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return struct{}{}, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		observability.RecordDocSyncAttempt(action, "failure")
		return fmt.Errorf("docsync %s: %w", action, err)
	}
	observability.RecordDocSyncAttempt(action, "success")
	return nil
}
