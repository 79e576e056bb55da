package utils

import (
	"golang.org/x/time/rate"
	"sync"
	"time"
)

// KeyBasedRateLimiter hands out one limiter per key, each allowing `times`
// events every `seconds` seconds.
type KeyBasedRateLimiter struct {
	seconds    int
	times      int
	limiterMap sync.Map
}

func NewKeyBasedRateLimiter(seconds, times int) *KeyBasedRateLimiter {
	return &KeyBasedRateLimiter{
		seconds: seconds,
		times:   times,
	}
}

func (k *KeyBasedRateLimiter) Acquire(key string) bool {
	value, _ := k.limiterMap.LoadOrStore(key, rate.NewLimiter(rate.Every(time.Duration(k.seconds)*time.Second), k.times))
	return value.(*rate.Limiter).Allow()
}

func (k *KeyBasedRateLimiter) Clean(key string) {
	k.limiterMap.Delete(key)
}
