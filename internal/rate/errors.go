package rate

import "errors"

var (
	// ErrRateLimited is returned once a caller exhausts its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures from the backing Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
