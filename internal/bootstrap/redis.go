package bootstrap

import "github.com/redis/go-redis/v9"

// newRedisClient builds a redis.Client for the queue backend. Connection
// is lazy (go-redis dials on first command), so this never itself fails;
// a bad addr surfaces on the queue's first Publish/Subscribe instead.
func newRedisClient(addr string) (*redis.Client, error) {
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}
