package sys

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/time/rate"
)

// UserLimiter hands out one token bucket per user. Idle buckets age out of the cache.
type UserLimiter struct {
	limiters *ccache.Cache[*rate.Limiter]
	every    time.Duration
	burst    int
	idle     time.Duration
}

func NewUserLimiter(every time.Duration, burst int) *UserLimiter {
	return &UserLimiter{
		limiters: ccache.New(
			ccache.Configure[*rate.Limiter]().
				MaxSize(10000).
				GetsPerPromote(3).
				ItemsToPrune(100),
		),
		every: every,
		burst: burst,
		idle:  10 * time.Minute,
	}
}

// Allow reports whether userID may act now and consumes a token if so.
func (l *UserLimiter) Allow(userID snowflake.ID) bool {
	item, err := l.limiters.Fetch(userID.String(), l.idle, func() (*rate.Limiter, error) {
		return rate.NewLimiter(rate.Every(l.every), l.burst), nil
	})
	if err != nil {
		return true
	}
	item.Extend(l.idle)
	return item.Value().Allow()
}

func (l *UserLimiter) Stop() {
	l.limiters.Stop()
}

// InteractionLimiter throttles interactions that reach the track resolver.
var InteractionLimiter = NewUserLimiter(2*time.Second, 3)
