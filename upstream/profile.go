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

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/playerlist/errors"
	"github.com/c360/playerlist/pkg/retry"
)

// Profile is the metadata returned by the profile lookup API for one
// username. UUID is in canonical dashed form.
type Profile struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
}

// ProfileSource resolves a username to its profile.
type ProfileSource interface {
	Lookup(ctx context.Context, username string) (Profile, error)
}

// ProfileClient queries an ashcon-compatible profile API. Lookups are rate
// limited and retried on transient failures; any failure satisfies
// errors.Is(err, errors.ErrLookupFailed).
type ProfileClient struct {
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	retryCfg retry.Config
}

// NewProfileClient creates a profile client. A non-positive lookupRate
// disables rate limiting.
func NewProfileClient(baseURL string, timeout time.Duration, lookupRate float64, burst int) *ProfileClient {
	limit := rate.Inf
	if lookupRate > 0 {
		limit = rate.Limit(lookupRate)
	}
	if burst <= 0 {
		burst = 1
	}
	return &ProfileClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		retryCfg: retry.DefaultConfig(),
	}
}

// Lookup resolves a username to a profile.
func (c *ProfileClient) Lookup(ctx context.Context, username string) (Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Profile{}, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrLookupFailed, err),
			"upstream", "Lookup", "rate limit wait")
	}

	profile, err := retry.DoWithResult(ctx, c.retryCfg, func() (Profile, error) {
		return c.fetch(ctx, username)
	})
	if err != nil {
		if retry.IsNonRetryable(err) {
			return Profile{}, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrLookupFailed, err),
				"upstream", "Lookup", "profile lookup")
		}
		return Profile{}, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrLookupFailed, err),
			"upstream", "Lookup", "profile lookup")
	}

	return profile, nil
}

func (c *ProfileClient) fetch(ctx context.Context, username string) (Profile, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, retry.NonRetryable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		// Unknown username or bad request; retrying will not help.
		_, _ = io.Copy(io.Discard, resp.Body)
		return Profile{}, retry.NonRetryable(fmt.Errorf("profile API returned %d for %q", resp.StatusCode, username))
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Profile{}, fmt.Errorf("profile API returned %d for %q", resp.StatusCode, username)
	}

	var body struct {
		UUID     string `json:"uuid"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Profile{}, retry.NonRetryable(fmt.Errorf("decode profile response: %w", err))
	}

	id, err := uuid.Parse(body.UUID)
	if err != nil {
		return Profile{}, retry.NonRetryable(fmt.Errorf("profile API returned bad uuid %q: %w", body.UUID, err))
	}

	name := body.Username
	if name == "" {
		name = username
	}
	return Profile{UUID: id.String(), Username: name}, nil
}
