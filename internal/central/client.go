// Package central is a minimal ZeroTier Central API client used to
// authorize a freshly joined node on its network and pin its overlay
// address.
package central

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultBaseURL = "https://api.zerotier.com/api/v1"

// Client is a minimal ZeroTier Central API client for member management.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
}

// MemberConfig is the controller-side configuration of a network member.
type MemberConfig struct {
	Authorized      bool     `json:"authorized"`
	IPAssignments   []string `json:"ipAssignments"`
	NoAutoAssignIPs bool     `json:"noAutoAssignIps"`
}

// MemberUpdate is the request body for updating a network member.
type MemberUpdate struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Config      MemberConfig `json:"config"`
}

// APIError is returned for non-success HTTP responses so callers can log
// the status and body before deciding whether to continue.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("central API returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a new Central API client.
func NewClient(apiToken string) *Client {
	return &Client{
		apiToken:   apiToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
}

// AuthorizeMember authorizes the node on the network and assigns it the
// requested overlay address. Success is HTTP 200 or 201; any other status
// is returned as an *APIError.
func (c *Client) AuthorizeMember(ctx context.Context, networkID, nodeID string, update MemberUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal member update: %w", err)
	}

	url := fmt.Sprintf("%s/network/%s/member/%s", c.baseURL, networkID, nodeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authorize member %s on network %s: %w", nodeID, networkID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return nil
}
