// Package sources implements the eight independent evidence-source
// clients: MyVariant, FDA, CGI, VICC, CIViC, Semantic Scholar
// (literature), ClinicalTrials, and OncoKB. Each client is self-contained
// (HTTP pooling, retries, parsing, source-specific filtering) behind the
// uniform domain.SourceClient contract.
package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/tierdx/tierdx/internal/domain"
)

// sharedTransport is the single HTTP transport every source client pools
// connections through, per the one-shared-transport-per-process policy.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
}

// NewHTTPClient returns an *http.Client bound to the shared transport with
// the given per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Transport: sharedTransport, Timeout: timeout}
}

// RetryConfig controls the exponential backoff retry helper shared by
// every client: up to Attempts tries, base delay doubling each time up to
// MaxDelay, abandoned early if the context is cancelled.
type RetryConfig struct {
	Attempts int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryConfig is 3 attempts, base 2s, cap 10s, multiplier 1 (pure
// doubling), matching the retry policy in the component design.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

// IsTransient classifies an HTTP status code as retryable.
func IsTransient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Retry runs fn up to cfg.Attempts times, waiting an exponentially
// doubling delay (capped at cfg.MaxDelay) between attempts. fn should
// return a nil error only on success; any non-nil error is treated as
// transient and retried until attempts are exhausted or ctx is done.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = time.Duration(math.Min(float64(delay*2), float64(cfg.MaxDelay)))
		}
		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// NewBreaker builds a per-source circuit breaker with shared defaults:
// trips after 5 consecutive failures, half-opens after 30s.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"source": name, "from": from.String(), "to": to.String(),
			}).Warn("source circuit breaker state change")
		},
	})
}

// NewLimiter returns a token-bucket limiter allowing ratePerSec requests
// per second, burst 1 — used for Semantic Scholar's 1 req/s policy. The
// "4 concurrent" policy of the other sources uses newConcurrencyLimiter.
func NewLimiter(ratePerSec float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(ratePerSec), 1)
}

// WaitLimiter blocks until the limiter admits a request or ctx is done.
func WaitLimiter(ctx context.Context, l *rate.Limiter) error {
	return l.Wait(ctx)
}

// rateAdapter wraps a token-bucket limiter for sources billed per-second
// rather than per-concurrent-request (Semantic Scholar).
type rateAdapter struct {
	limiter *rate.Limiter
}

func newRateAdapter(perSecond float64) *rateAdapter {
	return &rateAdapter{limiter: NewLimiter(perSecond)}
}

func (r *rateAdapter) wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Absent builds the common "source produced nothing" result: used both
// for permanent errors (degraded) and for a clean empty response
// (present-but-empty is represented by returning a zero-value fragment
// with FetchPresent, not by this helper).
func Absent(source domain.SourceName, err error) (any, domain.FetchState, error) {
	if err != nil {
		logrus.WithError(err).WithField("source", source).Warn("source degraded")
		return nil, domain.FetchDegraded, nil
	}
	return nil, domain.FetchAbsent, nil
}

// wrapErr is a small helper mirroring the teacher's pervasive
// fmt.Errorf("...: %w", err) wrapping style.
func wrapErr(stage string, err error) error {
	return fmt.Errorf("%s: %w", stage, err)
}

// rateLimiterAdapter enforces the "default 4 concurrent" per-host policy
// via a buffered-channel semaphore rather than a token bucket, since the
// policy in §5 is a concurrency cap, not a requests-per-second rate.
type rateLimiterAdapter struct {
	sem chan struct{}
}

func newConcurrencyLimiter(n int) *rateLimiterAdapter {
	return &rateLimiterAdapter{sem: make(chan struct{}, n)}
}

// acquire blocks until a concurrency slot is free or ctx is done, and
// returns a release function the caller must invoke exactly once.
func (r *rateLimiterAdapter) acquire(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}

func secondsOrDefault(seconds, def int) time.Duration {
	if seconds <= 0 {
		return time.Duration(def) * time.Second
	}
	return time.Duration(seconds) * time.Second
}
