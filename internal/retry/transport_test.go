package retry_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"visual-regression/internal/retry"
)

type transportMock struct {
	http.RoundTripper
	fakeRoundTrip func(*http.Request) (*http.Response, error)
}

func (m *transportMock) RoundTrip(request *http.Request) (*http.Response, error) {
	return m.fakeRoundTrip(request)
}

type temporaryError struct {
	s string
}

func (te *temporaryError) Error() string {
	return te.s
}

func (te *temporaryError) Temporary() bool {
	return true
}

type closeRecorder struct {
	io.Reader
	closed *atomic.Bool
}

func (c *closeRecorder) Close() error {
	c.closed.Store(true)
	return nil
}

func newClient(base http.RoundTripper, maxRetryAfter time.Duration) *http.Client {
	return &http.Client{
		Transport: &retry.Transport{
			Base:          base,
			RetryStrategy: retry.NewExponentialBackOff(time.Millisecond, 10*time.Millisecond, 5, nil),
			RetryOn:       retry.NewDefaultRetryOn(),
			MaxRetryAfter: maxRetryAfter,
		},
	}
}

func TestTransport_RetriesTemporaryError(t *testing.T) {
	var calls atomic.Int32
	client := newClient(&transportMock{
		fakeRoundTrip: func(request *http.Request) (*http.Response, error) {
			if calls.Add(1) == 1 {
				return nil, &temporaryError{"fake"}
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("ok")),
			}, nil
		},
	}, 0)

	response, err := client.Get("http://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()

	if diff := cmp.Diff(http.StatusOK, response.StatusCode); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int32(2), calls.Load()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTransport_PermanentError(t *testing.T) {
	var calls atomic.Int32
	client := newClient(&transportMock{
		fakeRoundTrip: func(request *http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("fake")
		},
	}, 0)

	if _, err := client.Get("http://example.com/"); err == nil {
		t.Fatal("Expected error")
	}
	if diff := cmp.Diff(int32(1), calls.Load()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTransport_GivesUp(t *testing.T) {
	var calls atomic.Int32
	client := newClient(&transportMock{
		fakeRoundTrip: func(request *http.Request) (*http.Response, error) {
			calls.Add(1)
			return &http.Response{
				StatusCode: http.StatusServiceUnavailable,
				Body:       io.NopCloser(strings.NewReader("")),
			}, nil
		},
	}, 0)

	response, err := client.Get("http://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()

	if diff := cmp.Diff(http.StatusServiceUnavailable, response.StatusCode); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int32(6), calls.Load()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTransport_ClosesRetriedBody(t *testing.T) {
	var closed atomic.Bool
	var calls atomic.Int32
	client := newClient(&transportMock{
		fakeRoundTrip: func(request *http.Request) (*http.Response, error) {
			if calls.Add(1) == 1 {
				return &http.Response{
					StatusCode: http.StatusConflict,
					Body:       &closeRecorder{Reader: strings.NewReader("busy"), closed: &closed},
				}, nil
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("ok")),
			}, nil
		},
	}, 0)

	response, err := client.Get("http://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()

	if !closed.Load() {
		t.Error("Expected discarded response body to be closed")
	}
}

func TestTransport_ReplaysBody(t *testing.T) {
	var bodies []string
	client := newClient(&transportMock{
		fakeRoundTrip: func(request *http.Request) (*http.Response, error) {
			b, err := io.ReadAll(request.Body)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, string(b))
			if len(bodies) == 1 {
				return &http.Response{
					StatusCode: http.StatusBadGateway,
					Body:       io.NopCloser(strings.NewReader("")),
				}, nil
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("")),
			}, nil
		},
	}, 0)

	response, err := client.Post("http://example.com/", "text/plain", bytes.NewReader([]byte("payload")))
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()

	if diff := cmp.Diff([]string{"payload", "payload"}, bodies); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTransport_RetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newClient(http.DefaultTransport, 50*time.Millisecond)

	start := time.Now()
	response, err := client.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()

	if diff := cmp.Diff(http.StatusOK, response.StatusCode); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > 900*time.Millisecond {
		t.Errorf("Expected Retry-After to be honoured and capped, took %v", elapsed)
	}
}

func TestTransport_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &http.Client{
		Transport: &retry.Transport{
			Base: &transportMock{
				fakeRoundTrip: func(request *http.Request) (*http.Response, error) {
					cancel()
					return nil, &temporaryError{"fake"}
				},
			},
			RetryStrategy: retry.NewExponentialBackOff(time.Hour, time.Hour, 5, func(i int64) int64 { return i }),
			RetryOn:       retry.NewDefaultRetryOn(),
		},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com/", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.Do(request); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
