// Package profiles looks up user profiles through the GitHub REST API.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/garlicnation/commontags"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

var (
	// ErrNotFound means no user exists for the handle.
	ErrNotFound = errors.New("profile not found")
	// ErrRateLimited means the API refused the request for quota reasons.
	ErrRateLimited = errors.New("profile lookup rate limited")
	// ErrEmptyHandle is returned without making a request.
	ErrEmptyHandle = errors.New("empty handle")
)

// StatusError is returned for any other unexpected response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github api: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Options configure a Client.
type Options struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit  float64
	HTTPClient *http.Client
}

// Client fetches profiles. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	limiter *rate.Limiter
	http    *http.Client
}

// New returns a Client with defaults applied to zero fields of opts.
func New(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		limiter: rate.NewLimiter(rate.Inf, 0),
		http:    opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

type userResponse struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// GetProfile implements commontags.ProfileFetcher.
func (c *Client) GetProfile(ctx context.Context, handle string) (commontags.Profile, error) {
	if strings.TrimSpace(handle) == "" {
		return commontags.Profile{}, ErrEmptyHandle
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return commontags.Profile{}, errors.Wrap(err, "waiting for rate limiter")
	}

	endpoint := c.baseURL + "/users/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return commontags.Profile{}, errors.Wrap(err, "building profile request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return commontags.Profile{}, errors.Wrapf(err, "fetching profile %q", handle)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return commontags.Profile{}, errors.Wrapf(ErrNotFound, "handle %q", handle)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return commontags.Profile{}, errors.Wrapf(ErrRateLimited, "handle %q", handle)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return commontags.Profile{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return commontags.Profile{}, errors.Wrapf(err, "decoding profile %q", handle)
	}
	if user.Login == "" {
		user.Login = handle
	}
	return commontags.Profile{
		Handle:      user.Login,
		DisplayName: user.Name,
		AvatarURL:   user.AvatarURL,
	}, nil
}
