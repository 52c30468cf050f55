package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/models"
)

// Client talks to the loginwatch HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Ingest submits a batch of events and returns the committed count.
func (c *Client) Ingest(events []models.EventPayload) (int, error) {
	var resp models.IngestResponse
	err := c.do(http.MethodPost, "/api/events", models.IngestRequest{Events: events}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ListEvents fetches events, optionally filtered by query parameters.
func (c *Client) ListEvents(params url.Values) ([]models.Event, error) {
	path := "/api/events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var events []models.Event
	if err := c.do(http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListIdentities fetches all identity summaries.
func (c *Client) ListIdentities() ([]models.Identity, error) {
	var ids []models.Identity
	if err := c.do(http.MethodGet, "/api/identities", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetIdentity fetches one identity summary.
func (c *Client) GetIdentity(computerName string) (*models.Identity, error) {
	var id models.Identity
	if err := c.do(http.MethodGet, "/api/identities/"+url.PathEscape(computerName), nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// SetIdentityStatus updates the lifecycle flag on one identity.
func (c *Client) SetIdentityStatus(computerName string, status models.IdentityStatus) (*models.Identity, error) {
	var id models.Identity
	path := "/api/identities/" + url.PathEscape(computerName) + "/status"
	if err := c.do(http.MethodPut, path, models.StatusUpdateRequest{Status: status}, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// TriggerReport asks the server to generate and deliver a report.
func (c *Client) TriggerReport(kind, lookback string) error {
	body := map[string]string{"kind": kind}
	if lookback != "" {
		body["lookback"] = lookback
	}
	return c.do(http.MethodPost, "/api/reports", body, nil)
}

func (c *Client) do(method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
