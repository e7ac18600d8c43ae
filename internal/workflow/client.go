// Package workflow is the client for the campus approval-routing service.
// Every call carries the user's bearer token, a separate application bearer,
// and the original caller's IP.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/uiowa-coph/roomres/internal/config"
	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/identity"
)

// Error is any non-success answer from the routing service.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("workflow %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("workflow %s: %s", e.Op, e.Message)
}

// RoutingEntry is the strict projection of a submission the router accepts.
// Booleans travel as strings because the router rejects native booleans.
type RoutingEntry struct {
	EventName         string `json:"event_name"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	RoomNumber        string `json:"room_number"`
	NumPeople         int    `json:"num_people"`
	UserEmail         string `json:"user_email"`
	SetupRequired     string `json:"setup_required"`
	FoodDrinkRequired string `json:"food_drink_required"`
}

// NewRoutingEntry projects a submission onto the router's schema.
func NewRoutingEntry(sub domain.EventSubmission) RoutingEntry {
	return RoutingEntry{
		EventName:         sub.EventName,
		Date:              sub.Date,
		StartTime:         sub.StartTime,
		EndTime:           sub.EndTime,
		RoomNumber:        sub.RoomNumber,
		NumPeople:         sub.NumPeople,
		UserEmail:         sub.UserEmail,
		SetupRequired:     strconv.FormatBool(sub.SetupRequired),
		FoodDrinkRequired: strconv.FormatBool(sub.FoodDrinkRequired),
	}
}

type Client struct {
	baseURL  string
	formID   string
	identity *identity.Client
	httpc    *http.Client
}

func NewClient(cfg *config.Config, id *identity.Client) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.WorkflowBaseURL, "/"),
		formID:   cfg.WorkflowFormID,
		identity: id,
		httpc:    &http.Client{Timeout: cfg.ExternalTimeout},
	}
}

// CreatePackage opens a new approval package for the entry and returns the
// router-assigned identifier with the caller's permission set.
func (c *Client) CreatePackage(ctx context.Context, userToken, ip string, entry RoutingEntry) (*domain.ApprovalPackage, error) {
	var pkg domain.ApprovalPackage
	err := c.do(ctx, "create_package", http.MethodPost, c.packagesURL(), userToken, ip, entry, &pkg)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetPermissions reports the actions the router grants the requesting user on
// the package.
func (c *Client) GetPermissions(ctx context.Context, userToken, ip string, packageID int) (*domain.PackageActions, error) {
	var pkg domain.ApprovalPackage
	url := fmt.Sprintf("%s/%d/permissions", c.packagesURL(), packageID)
	if err := c.do(ctx, "get_permissions", http.MethodGet, url, userToken, ip, nil, &pkg); err != nil {
		return nil, err
	}
	return &pkg.Actions, nil
}

// RemovePackage deletes the package outright.
func (c *Client) RemovePackage(ctx context.Context, userToken, ip string, packageID int) error {
	url := fmt.Sprintf("%s/%d", c.packagesURL(), packageID)
	return c.do(ctx, "remove_package", http.MethodDelete, url, userToken, ip, nil, nil)
}

// VoidPackage cancels routing with a reason, leaving the package visible in
// the router's history.
func (c *Client) VoidPackage(ctx context.Context, userToken, ip string, packageID int, reason string) error {
	url := fmt.Sprintf("%s/%d/void", c.packagesURL(), packageID)
	body := map[string]string{"voidReason": reason}
	return c.do(ctx, "void_package", http.MethodPut, url, userToken, ip, body, nil)
}

func (c *Client) packagesURL() string {
	return fmt.Sprintf("%s/forms/%s/packages", c.baseURL, c.formID)
}

func (c *Client) do(ctx context.Context, op, method, url, userToken, ip string, body, out any) error {
	appToken, err := c.identity.AppToken(ctx)
	if err != nil {
		return &Error{Op: op, Message: err.Error()}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Message: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &Error{Op: op, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("X-App-Authorization", "Bearer "+appToken)
	req.Header.Set("X-Client-Remote-Addr", ip)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &Error{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// The application bearer may have been revoked upstream.
		c.identity.InvalidateAppToken()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &Error{Op: op, Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
