package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"visual-regression/internal/retry"
)

type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
}

func NewClient(apiURL string, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(time.Minute)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
	}
}

// NewHTTPClient retries connect failures, gateway errors, 409 and 429.
// timeout covers every attempt, so Retry-After is honoured for at most a
// quarter of it.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &retry.Transport{
			RetryStrategy: retry.NewExponentialBackOff(500*time.Millisecond, 10*time.Second, 5, nil),
			RetryOn:       retry.NewDefaultRetryOn(),
			MaxRetryAfter: maxRetryAfter(timeout),
		},
	}
}

func maxRetryAfter(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return time.Minute
	}
	return timeout / 4
}

type imagesResponse struct {
	Err    *string           `json:"err"`
	Status int               `json:"status"`
	Images map[string]string `json:"images"`
}

// ImageURLs asks Figma to render the given nodes and returns the temporary
// download URL of each, keyed by node id.
func (c *Client) ImageURLs(ctx context.Context, fileKey string, ids []string, format string, scale float64) (map[string]string, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("format", format)
	query.Set("scale", strconv.FormatFloat(scale, 'f', -1, 64))
	endpoint := fmt.Sprintf("%s/v1/images/%s?%s", c.apiURL, url.PathEscape(fileKey), query.Encode())

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("X-Figma-Token", c.token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, xerrors.Errorf("failed to request images: %w", err)
	}
	defer response.Body.Close()

	var body imagesResponse
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return nil, xerrors.Errorf("failed to decode images response (status %d): %w", response.StatusCode, err)
	}
	if body.Err != nil && *body.Err != "" {
		return nil, xerrors.Errorf("figma API error (status %d): %s", response.StatusCode, *body.Err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("unexpected status from figma API: %d", response.StatusCode)
	}

	urls := make(map[string]string, len(ids))
	for _, id := range ids {
		u, ok := body.Images[id]
		if !ok || u == "" {
			return nil, xerrors.Errorf("image URL not found for node %s", id)
		}
		urls[id] = u
	}
	return urls, nil
}

func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to create request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, xerrors.Errorf("failed to download %s: %w", imageURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("unexpected status downloading %s: %d", imageURL, response.StatusCode)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, xerrors.Errorf("failed to read image: %w", err)
	}
	return data, nil
}
