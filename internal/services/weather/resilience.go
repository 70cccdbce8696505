package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

type backoff struct {
	maxRetries int
	initial    time.Duration
	max        time.Duration
}

var (
	errRateLimited = errors.New("provider rate limited")
	errServer      = errors.New("provider server error")
	errCircuitOpen = errors.New("provider circuit open")
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doWithRetry runs the request through the breaker, retrying transient
// failures with exponential backoff until ctx is done.
func doWithRetry(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, bo backoff, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		out, err := cb.Execute(func() (interface{}, error) {
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				resp.Body.Close()
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServer, resp.StatusCode)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				resp.Body.Close()
				return nil, fmt.Errorf("provider status %d", resp.StatusCode)
			}
			return resp, nil
		})
		if err == nil {
			return out.(*http.Response), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		lastErr = err
		if attempt >= bo.maxRetries {
			return nil, lastErr
		}
		delay := bo.initial << attempt
		if bo.max > 0 && delay > bo.max {
			delay = bo.max
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
