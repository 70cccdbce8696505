package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	pkghttp "GridCast/pkg/http"
)

// PerMinute limits each client IP to rpm requests per minute with bursts up
// to rpm. Rejected requests get 429 and a Retry-After header.
func PerMinute(l *Limiter, rpm int) echo.MiddlewareFunc {
	capacity := float64(rpm)
	refill := capacity / 60
	retry := strconv.Itoa(int(math.Ceil(1 / refill)))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.Allow(c.RealIP(), capacity, refill) {
				return next(c)
			}
			c.Response().Header().Set("Retry-After", retry)
			return pkghttp.AppErrorResponse(c, pkghttp.TooManyRequestsError("rate limit exceeded").
				WithParam("limit_per_minute", rpm))
		}
	}
}

// Janitor prunes idle buckets every interval until stop is closed.
func Janitor(l *Limiter, interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.Prune(interval)
		case <-stop:
			return
		}
	}
}
