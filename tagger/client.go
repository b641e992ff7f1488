// Package tagger talks to a Clarifai-style image recognition API: it
// authenticates with client credentials and turns image URLs into tags.
package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/garlicnation/commontags"
)

const (
	// DefaultBaseURL is the public Clarifai API.
	DefaultBaseURL = "https://api.clarifai.com"
	// DefaultModel is Clarifai's general image recognition model.
	DefaultModel = "general-image-recognition"
	// DefaultBatchSize is the largest number of inputs sent in one request.
	DefaultBatchSize = 32
	// DefaultParallelism bounds concurrent batch requests in TagImages.
	DefaultParallelism = 4

	statusSuccess = 10000
)

var (
	// ErrRateLimited means the API refused the request for quota reasons.
	ErrRateLimited = errors.New("image tagger rate limited")
	// ErrUnauthorized means the token or client credentials were rejected.
	ErrUnauthorized = errors.New("image tagger unauthorized")
)

// APIError is returned for any other failed request.
type APIError struct {
	StatusCode  int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("image tagger: status %d, code %d: %s", e.StatusCode, e.Code, e.Description)
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Model   string
	// MinConfidence drops concepts scored below it.
	MinConfidence float64
	BatchSize     int
	Parallelism   int
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit  float64
	HTTPClient *http.Client
}

// Client tags images. It is safe for concurrent use.
type Client struct {
	endpoint      string
	minConfidence float64
	batchSize     int
	parallelism   int
	limiter       *rate.Limiter
	http          *http.Client
}

// New returns a Client with defaults applied to zero fields of opts.
func New(opts Options) *Client {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		endpoint:      base + "/v2/models/" + model + "/outputs",
		minConfidence: opts.MinConfidence,
		batchSize:     opts.BatchSize,
		parallelism:   opts.Parallelism,
		limiter:       rate.NewLimiter(rate.Inf, 0),
		http:          opts.HTTPClient,
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.parallelism <= 0 {
		c.parallelism = DefaultParallelism
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

type imageInput struct {
	Data struct {
		Image struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"data"`
}

type predictRequest struct {
	Inputs []imageInput `json:"inputs"`
}

type apiStatus struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type predictResponse struct {
	Status  apiStatus `json:"status"`
	Outputs []struct {
		Status apiStatus `json:"status"`
		Data   struct {
			Concepts []struct {
				Name  string  `json:"name"`
				Value float64 `json:"value"`
			} `json:"concepts"`
		} `json:"data"`
	} `json:"outputs"`
}

// TagImage implements commontags.ImageTagger.
func (c *Client) TagImage(ctx context.Context, url string, token commontags.Token) ([]string, error) {
	tags, err := c.predict(ctx, []string{url}, token)
	if err != nil {
		return nil, err
	}
	return tags[0], nil
}

// TagImages tags every url and returns one tag list per url, in the same
// order. URLs are sent in batches; the first failing batch fails the call.
func (c *Client) TagImages(ctx context.Context, urls []string, token commontags.Token) ([][]string, error) {
	results := make([][]string, len(urls))
	if len(urls) == 0 {
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for start := 0; start < len(urls); start += c.batchSize {
		start := start
		end := start + c.batchSize
		if end > len(urls) {
			end = len(urls)
		}
		g.Go(func() error {
			tags, err := c.predict(ctx, urls[start:end], token)
			if err != nil {
				return err
			}
			copy(results[start:end], tags)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) predict(ctx context.Context, urls []string, token commontags.Token) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for rate limiter")
	}

	body := predictRequest{Inputs: make([]imageInput, len(urls))}
	for i, u := range urls {
		body.Inputs[i].Data.Image.URL = u
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encoding tag request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building tag request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(token))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "tagging images")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	}

	var out predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return nil, errors.Wrap(err, "decoding tag response")
	}
	if resp.StatusCode != http.StatusOK || out.Status.Code != statusSuccess {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: out.Status.Code, Description: out.Status.Description}
	}
	if len(out.Outputs) != len(urls) {
		return nil, errors.Errorf("image tagger returned %d outputs for %d inputs", len(out.Outputs), len(urls))
	}

	tags := make([][]string, len(urls))
	for i, output := range out.Outputs {
		if output.Status.Code != 0 && output.Status.Code != statusSuccess {
			return nil, &APIError{StatusCode: resp.StatusCode, Code: output.Status.Code, Description: output.Status.Description}
		}
		set := make([]string, 0, len(output.Data.Concepts))
		for _, concept := range output.Data.Concepts {
			if concept.Value < c.minConfidence {
				continue
			}
			set = append(set, concept.Name)
		}
		tags[i] = set
	}
	return tags, nil
}
