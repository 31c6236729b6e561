package retry

import (
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/exp/constraints"
)

type Strategy interface {
	Sleep(uint) (time.Duration, bool)
}

type never struct{}

func NewNever() *never {
	return &never{}
}

func (nr *never) Sleep(n uint) (time.Duration, bool) {
	return 0, true
}

type Entropy func(int64) int64

type exponentialBackOff struct {
	base          time.Duration
	max           time.Duration
	maxRetryCount uint
	entropy       Entropy
}

// NewExponentialBackOff returns full jitter backoff: attempt n sleeps a
// random duration in [0, min(base*2^n, max)).
func NewExponentialBackOff(base time.Duration, max time.Duration, maxRetryCount uint, entropy Entropy) *exponentialBackOff {
	return &exponentialBackOff{
		base:          base,
		max:           max,
		maxRetryCount: maxRetryCount,
		entropy:       entropy,
	}
}

func (eb *exponentialBackOff) Sleep(retryCount uint) (time.Duration, bool) {
	if retryCount >= eb.maxRetryCount {
		return 0, true
	}

	ceiling := int64(eb.max)
	if retryCount < 63 {
		if delay, err := checkedMulInt64(1<<retryCount, int64(eb.base)); err == nil {
			ceiling = lesser(delay, ceiling)
		}
	}
	return time.Duration(eb.jitter(ceiling)), false
}

func (eb *exponentialBackOff) jitter(n int64) int64 {
	if eb.entropy != nil {
		return eb.entropy(n)
	}
	if n <= 0 {
		return 0
	}
	return rand.Int63n(n)
}

func lesser[T constraints.Ordered](l T, r T) T {
	if l > r {
		return r
	}
	return l
}

var OverflowError = errors.New("overflow")

func checkedMulInt64(l int64, r int64) (int64, error) {
	if l == 0 || r == 0 {
		return l * r, nil
	}
	if l > math.MaxInt64/r {
		return 0, OverflowError
	}
	return l * r, nil
}

// RetryAfter parses the Retry-After header as delta seconds or an HTTP date.
func RetryAfter(response *http.Response, now time.Time) (time.Duration, bool) {
	v := response.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(lesser(seconds, math.MaxInt64/int64(time.Second))) * time.Second, true
	}

	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}

	return 0, false
}
