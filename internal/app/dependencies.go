package app

import (
	validator "github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Dependencies groups the shared services the bootstrap hands to the HTTP
// surface. Built once in main; consumers receive fields, never the container.
type Dependencies struct {
	Redis        *redis.Client
	Validator    *validator.Validate
	LimiterStore limiter.Store
	Limiter      *limiter.Limiter
}

// NewLimiterStore wires a rate limiter store backed by Redis.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{})
}
