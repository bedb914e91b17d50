// Package client is the Go SDK used by driver and customer apps: a REST client,
// the real-time stream and the local views that reconcile the two.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/cockroachdb/errors"
)

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is the lost-race answer to an accept
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for an API mounted at baseURL, e.g. http://host:8080/api
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type CreateRequest struct {
	Latitude  float64              `json:"latitude"`
	Longitude float64              `json:"longitude"`
	Address   string               `json:"address,omitempty"`
	Category  models.WasteCategory `json:"category,omitempty"`
	Level     models.WasteLevel    `json:"level,omitempty"`
	UploadRef string               `json:"uploadRef,omitempty"`
}

type envelope struct {
	Error   string                 `json:"error"`
	Pickup  models.PickupPayload   `json:"pickup"`
	Pickups []models.PickupPayload `json:"pickups"`
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (models.PickupPayload, error) {
	var out envelope
	err := c.do(ctx, http.MethodPost, "/pickups", req, &out)
	return out.Pickup, err
}

func (c *Client) Get(ctx context.Context, id string) (models.PickupPayload, error) {
	var out envelope
	err := c.do(ctx, http.MethodGet, "/pickups/"+id, nil, &out)
	return out.Pickup, err
}

// Pending is the catch-up read drivers reconcile against
func (c *Client) Pending(ctx context.Context) ([]models.PickupPayload, error) {
	var out envelope
	err := c.do(ctx, http.MethodGet, "/pickups/pending", nil, &out)
	return out.Pickups, err
}

func (c *Client) Mine(ctx context.Context) ([]models.PickupPayload, error) {
	var out envelope
	err := c.do(ctx, http.MethodGet, "/pickups", nil, &out)
	return out.Pickups, err
}

func (c *Client) Accept(ctx context.Context, id string) (models.PickupPayload, error) {
	var out envelope
	err := c.do(ctx, http.MethodPost, "/pickups/"+id+"/accept", nil, &out)
	return out.Pickup, err
}

func (c *Client) Cancel(ctx context.Context, id string) (models.PickupPayload, error) {
	var out envelope
	err := c.do(ctx, http.MethodPost, "/pickups/"+id+"/cancel", nil, &out)
	return out.Pickup, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e envelope
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
