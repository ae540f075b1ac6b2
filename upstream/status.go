// Package upstream holds the clients for the two external APIs: the server
// status API and the profile lookup API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360/playerlist/errors"
)

// ServerStatus is the subset of the status API response the service uses.
type ServerStatus struct {
	Online  bool        `json:"online"`
	Players PlayerCount `json:"players"`
}

// PlayerCount carries the player counts and username list for an online
// server. The status API omits the whole block when the server is offline.
type PlayerCount struct {
	Online int      `json:"online"`
	Max    int      `json:"max"`
	List   []string `json:"list"`
}

// StatusSource fetches the current status of the watched game server.
type StatusSource interface {
	Fetch(ctx context.Context) (*ServerStatus, error)
}

// StatusClient queries a mcsrvstat-compatible status API for a single
// server address.
type StatusClient struct {
	baseURL string
	address string
	client  *http.Client
}

// NewStatusClient creates a status client bound to one server address.
func NewStatusClient(baseURL, address string, timeout time.Duration) *StatusClient {
	return &StatusClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		address: address,
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the current server status. Network failures and non-200
// responses are transient; a malformed body is invalid.
func (c *StatusClient) Fetch(ctx context.Context) (*ServerStatus, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(c.address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "upstream", "Fetch", "build status request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrUpstreamUnavailable, err),
			"upstream", "Fetch", "query status API")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: status API returned %d", errors.ErrUpstreamUnavailable, resp.StatusCode),
			"upstream", "Fetch", "query status API")
	}

	var status ServerStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"upstream", "Fetch", "decode status response")
	}

	return &status, nil
}
