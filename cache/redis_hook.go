package cache

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisHook records per-command latency of the redis tier
type redisHook struct {
	metrics *Metrics
}

func (h redisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h redisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.metrics.recordRedisCommand(ctx, cmd.Name(), time.Since(start), commandFailed(err))
		return err
	}
}

// ProcessPipelineHook splits the round trip evenly over the queued commands
func (h redisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if len(cmds) == 0 {
			return err
		}
		per := time.Since(start) / time.Duration(len(cmds))
		for _, cmd := range cmds {
			h.metrics.recordRedisCommand(ctx, cmd.Name(), per, commandFailed(cmd.Err()))
		}
		return err
	}
}

// redis.Nil is a miss, not a failure
func commandFailed(err error) bool {
	return err != nil && !errors.Is(err, redis.Nil)
}

// Instrument attaches command latency metrics to the underlying client
func (t *RedisTier) Instrument(metrics *Metrics) {
	if !metrics.IsMetricsEnabled() {
		return
	}
	t.client.AddHook(redisHook{metrics: metrics})
}
